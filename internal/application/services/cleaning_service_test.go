package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailiq/customer-segmentation/internal/domain/entities"
	apperrors "github.com/retailiq/customer-segmentation/pkg/errors"
)

// txTable builds a raw table over the full required-column set. Row cell
// order: InvoiceNo, StockCode, Description, Quantity, InvoiceDate,
// UnitPrice, CustomerID, Name, Email, Country.
func txTable(rows ...[]string) *entities.TransactionTable {
	return entities.NewTransactionTable(entities.RequiredColumns(), rows)
}

func TestClean_MissingColumnsIsSchemaError(t *testing.T) {
	svc := NewCleaningService("")

	table := entities.NewTransactionTable(
		[]string{"InvoiceNo", "Quantity", "UnitPrice"},
		[][]string{{"1001", "2", "5.00"}},
	)

	_, err := svc.Clean(table)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeSchema))
	assert.Contains(t, err.Error(), "CustomerID")
	assert.Contains(t, err.Error(), "Email")
}

func TestClean_DropsInvalidRows(t *testing.T) {
	svc := NewCleaningService("")

	tests := []struct {
		name string
		row  []string
	}{
		{"cancelled invoice", []string{"C1001", "S1", "MUGS", "2", "2024-01-05 10:00:00", "5.00", "101", "Ada", "ada@example.com", "UK"}},
		{"zero quantity", []string{"1001", "S1", "MUGS", "0", "2024-01-05 10:00:00", "5.00", "101", "Ada", "ada@example.com", "UK"}},
		{"negative quantity", []string{"1001", "S1", "MUGS", "-3", "2024-01-05 10:00:00", "5.00", "101", "Ada", "ada@example.com", "UK"}},
		{"unparseable quantity", []string{"1001", "S1", "MUGS", "lots", "2024-01-05 10:00:00", "5.00", "101", "Ada", "ada@example.com", "UK"}},
		{"zero price", []string{"1001", "S1", "MUGS", "2", "2024-01-05 10:00:00", "0", "101", "Ada", "ada@example.com", "UK"}},
		{"unparseable price", []string{"1001", "S1", "MUGS", "2", "2024-01-05 10:00:00", "free", "101", "Ada", "ada@example.com", "UK"}},
		{"missing customer id", []string{"1001", "S1", "MUGS", "2", "2024-01-05 10:00:00", "5.00", "", "Ada", "ada@example.com", "UK"}},
		{"unparseable date", []string{"1001", "S1", "MUGS", "2", "soon", "5.00", "101", "Ada", "ada@example.com", "UK"}},
		{"blank email", []string{"1001", "S1", "MUGS", "2", "2024-01-05 10:00:00", "5.00", "101", "Ada", "  ", "UK"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleaned, err := svc.Clean(txTable(tt.row))
			require.NoError(t, err)
			assert.Empty(t, cleaned)
		})
	}
}

func TestClean_SurvivingRowsAreFullyTyped(t *testing.T) {
	svc := NewCleaningService("")

	cleaned, err := svc.Clean(txTable(
		[]string{"1001", "S1", "MUGS", "3", "2024-01-05 10:00:00", "10.00", "101", "Ada", "ada@example.com", "UK"},
		[]string{"1002", "S2", "BOWLS", "2.0", "2024-01-06", "4.50", "102.0", "", "bo@example.com", "FR"},
	))
	require.NoError(t, err)
	require.Len(t, cleaned, 2)

	first := cleaned[0]
	assert.Equal(t, int64(3), first.Quantity)
	assert.True(t, first.LineTotal.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, int64(101), first.CustomerID)

	// Float-form cells coerce to their integral values.
	second := cleaned[1]
	assert.Equal(t, int64(2), second.Quantity)
	assert.Equal(t, int64(102), second.CustomerID)
	assert.True(t, second.LineTotal.Equal(decimal.NewFromInt(9)))
	assert.Empty(t, second.Name)
}

func TestClean_EveryInvariantHoldsOnSurvivors(t *testing.T) {
	svc := NewCleaningService("")

	cleaned, err := svc.Clean(txTable(
		[]string{"C2000", "S1", "MUGS", "5", "2024-01-05 10:00:00", "2.00", "101", "Ada", "ada@example.com", "UK"},
		[]string{"2001", "S1", "MUGS", "5", "2024-01-05 10:00:00", "2.00", "101", "Ada", "ada@example.com", "UK"},
		[]string{"2002", "S2", "BOWLS", "-1", "2024-01-06 09:00:00", "3.00", "102", "Bo", "bo@example.com", "FR"},
		[]string{"2003", "S3", "PLATES", "4", "2024-01-07 09:00:00", "1.25", "103", "Cy", "cy@example.com", "DE"},
	))
	require.NoError(t, err)
	require.Len(t, cleaned, 2)

	for _, tx := range cleaned {
		assert.Greater(t, tx.Quantity, int64(0))
		assert.True(t, tx.UnitPrice.IsPositive())
		assert.NotEqual(t, "C", tx.InvoiceNo[:1])
		assert.NotEmpty(t, tx.Email)
		assert.False(t, tx.InvoiceDate.IsZero())
	}
}

func TestClean_CancelMarkerIsConfigurable(t *testing.T) {
	svc := NewCleaningService("X")

	cleaned, err := svc.Clean(txTable(
		[]string{"X3000", "S1", "MUGS", "1", "2024-01-05", "2.00", "101", "Ada", "ada@example.com", "UK"},
		[]string{"C3001", "S1", "MUGS", "1", "2024-01-05", "2.00", "101", "Ada", "ada@example.com", "UK"},
	))
	require.NoError(t, err)

	// Only the X prefix cancels; C invoices survive under this marker.
	require.Len(t, cleaned, 1)
	assert.Equal(t, "C3001", cleaned[0].InvoiceNo)
}

func TestClean_EmptyResultIsNotAnError(t *testing.T) {
	svc := NewCleaningService("")

	cleaned, err := svc.Clean(txTable())
	require.NoError(t, err)
	assert.Empty(t, cleaned)
}
