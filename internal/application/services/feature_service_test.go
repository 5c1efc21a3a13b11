package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailiq/customer-segmentation/internal/domain/entities"
	apperrors "github.com/retailiq/customer-segmentation/pkg/errors"
)

func tx(invoice string, customerID int64, desc string, qty int64, price string, date string, name, email string) *entities.Transaction {
	ts, err := time.Parse("2006-01-02 15:04:05", date)
	if err != nil {
		ts, err = time.Parse("2006-01-02", date)
		if err != nil {
			panic(err)
		}
	}
	unitPrice := decimal.RequireFromString(price)
	return &entities.Transaction{
		InvoiceNo:   invoice,
		StockCode:   "S-" + desc,
		Description: desc,
		Quantity:    qty,
		UnitPrice:   unitPrice,
		InvoiceDate: ts,
		CustomerID:  customerID,
		Name:        name,
		Email:       email,
		Country:     "UK",
		LineTotal:   decimal.NewFromInt(qty).Mul(unitPrice),
	}
}

func TestDerive_EmptyInput(t *testing.T) {
	svc := NewFeatureService()

	_, _, err := svc.Derive(nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeEmptyInput))
}

func TestDerive_SnapshotAndRecency(t *testing.T) {
	svc := NewFeatureService()

	rows, snapshot, err := svc.Derive([]*entities.Transaction{
		tx("1001", 101, "MUGS", 2, "5.00", "2024-01-03 10:00:00", "Ada", "ada@example.com"),
		tx("1002", 101, "MUGS", 1, "5.00", "2024-01-08 10:00:00", "Ada", "ada@example.com"),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// Snapshot sits one day past the latest invoice.
	assert.Equal(t, time.Date(2024, 1, 9, 10, 0, 0, 0, time.UTC), snapshot)
	assert.Equal(t, 1, rows[0].Recency)
	assert.Equal(t, rows[0].Recency, rows[0].LastPurchaseDaysAgo)
	assert.Equal(t, time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC), rows[0].LastPurchase)
}

func TestDerive_FrequencyCountsDistinctInvoices(t *testing.T) {
	svc := NewFeatureService()

	rows, _, err := svc.Derive([]*entities.Transaction{
		tx("1001", 101, "MUGS", 2, "5.00", "2024-01-03 10:00:00", "Ada", "ada@example.com"),
		tx("1001", 101, "BOWLS", 1, "3.00", "2024-01-03 10:05:00", "Ada", "ada@example.com"),
		tx("1002", 101, "MUGS", 4, "5.00", "2024-01-05 10:00:00", "Ada", "ada@example.com"),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, 2, rows[0].Frequency)
	assert.True(t, rows[0].Monetary.Equal(decimal.NewFromInt(33)))
	assert.True(t, rows[0].TotalSpent.Equal(rows[0].Monetary))
}

func TestDerive_LatestNameAndEmailWin(t *testing.T) {
	svc := NewFeatureService()

	rows, _, err := svc.Derive([]*entities.Transaction{
		tx("1001", 101, "MUGS", 1, "5.00", "2024-01-03 10:00:00", "Ada Old", "old@example.com"),
		tx("1002", 101, "MUGS", 1, "5.00", "2024-01-06 10:00:00", "Ada New", "new@example.com"),
		tx("1003", 101, "MUGS", 1, "5.00", "2024-01-04 10:00:00", "Ada Mid", "mid@example.com"),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "Ada New", rows[0].Name)
	assert.Equal(t, "new@example.com", rows[0].Email)
}

func TestDerive_TimestampTieKeepsLastInputRow(t *testing.T) {
	svc := NewFeatureService()

	rows, _, err := svc.Derive([]*entities.Transaction{
		tx("1001", 101, "MUGS", 1, "5.00", "2024-01-03 10:00:00", "First", "first@example.com"),
		tx("1002", 101, "MUGS", 1, "5.00", "2024-01-03 10:00:00", "Second", "second@example.com"),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "Second", rows[0].Name)
	assert.Equal(t, "second@example.com", rows[0].Email)
}

func TestDerive_FavoriteCategory(t *testing.T) {
	svc := NewFeatureService()

	tests := []struct {
		name string
		txs  []*entities.Transaction
		want string
	}{
		{
			name: "highest summed quantity wins",
			txs: []*entities.Transaction{
				tx("1001", 101, "MUGS", 5, "1.00", "2024-01-03 10:00:00", "Ada", "ada@example.com"),
				tx("1002", 101, "BOWLS", 2, "9.00", "2024-01-04 10:00:00", "Ada", "ada@example.com"),
			},
			want: "MUGS",
		},
		{
			name: "quantity tie falls to revenue",
			txs: []*entities.Transaction{
				tx("1001", 101, "MUGS", 3, "1.00", "2024-01-03 10:00:00", "Ada", "ada@example.com"),
				tx("1002", 101, "BOWLS", 3, "4.00", "2024-01-04 10:00:00", "Ada", "ada@example.com"),
			},
			want: "BOWLS",
		},
		{
			name: "full tie keeps first-encountered description",
			txs: []*entities.Transaction{
				tx("1001", 101, "PLATES", 3, "2.00", "2024-01-03 10:00:00", "Ada", "ada@example.com"),
				tx("1002", 101, "BOWLS", 3, "2.00", "2024-01-04 10:00:00", "Ada", "ada@example.com"),
			},
			want: "PLATES",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, _, err := svc.Derive(tt.txs)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, tt.want, rows[0].FavCategory)
		})
	}
}

func TestDerive_RowsOrderedByMonetaryDescending(t *testing.T) {
	svc := NewFeatureService()

	rows, _, err := svc.Derive([]*entities.Transaction{
		tx("1001", 101, "MUGS", 1, "10.00", "2024-01-03 10:00:00", "Low", "low@example.com"),
		tx("1002", 102, "MUGS", 1, "50.00", "2024-01-03 10:00:00", "High", "high@example.com"),
		tx("1003", 103, "MUGS", 1, "25.00", "2024-01-03 10:00:00", "Mid", "mid@example.com"),
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, int64(102), rows[0].CustomerID)
	assert.Equal(t, int64(103), rows[1].CustomerID)
	assert.Equal(t, int64(101), rows[2].CustomerID)
}

func TestDerive_MonetaryTieKeepsCustomerIDOrder(t *testing.T) {
	svc := NewFeatureService()

	rows, _, err := svc.Derive([]*entities.Transaction{
		tx("1001", 202, "MUGS", 1, "10.00", "2024-01-03 10:00:00", "B", "b@example.com"),
		tx("1002", 101, "MUGS", 1, "10.00", "2024-01-03 10:00:00", "A", "a@example.com"),
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// The stable sort preserves the ascending-id base order on ties.
	assert.Equal(t, int64(101), rows[0].CustomerID)
	assert.Equal(t, int64(202), rows[1].CustomerID)
}
