package services

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/retailiq/customer-segmentation/internal/domain/entities"
	apperrors "github.com/retailiq/customer-segmentation/pkg/errors"
)

// DefaultCancelMarker is the invoice prefix marking cancelled orders.
const DefaultCancelMarker = "C"

// CleaningService normalizes raw transaction rows and filters out invalid
// and cancelled ones. It is a pure transform: an empty result is not an
// error here, emptiness is the aggregator's concern.
type CleaningService struct {
	cancelMarker string
}

// NewCleaningService creates a cleaning service. An empty marker falls back
// to the default "C" prefix.
func NewCleaningService(cancelMarker string) *CleaningService {
	if cancelMarker == "" {
		cancelMarker = DefaultCancelMarker
	}
	return &CleaningService{cancelMarker: cancelMarker}
}

// Clean validates the column contract and returns the surviving cleaned
// transactions. Rows are dropped when:
//   - the invoice id starts with the cancellation marker (case-sensitive)
//   - quantity or unit price is missing, unparseable, or <= 0
//   - customer id or invoice date is missing or unparseable
//   - the email is missing or blank
func (s *CleaningService) Clean(table *entities.TransactionTable) ([]*entities.Transaction, error) {
	if table == nil {
		return nil, apperrors.NewValidationError("no transaction table supplied")
	}

	var missing []string
	for _, col := range entities.RequiredColumns() {
		if !table.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewSchemaError(fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")))
	}

	cleaned := make([]*entities.Transaction, 0, len(table.Rows))
	for _, row := range table.Rows {
		invoiceNo := table.Field(row, entities.ColInvoiceNo)
		if strings.HasPrefix(invoiceNo, s.cancelMarker) {
			continue
		}

		quantity, ok := parseQuantity(table.Field(row, entities.ColQuantity))
		if !ok || quantity <= 0 {
			continue
		}

		unitPrice, ok := parsePrice(table.Field(row, entities.ColUnitPrice))
		if !ok || !unitPrice.IsPositive() {
			continue
		}

		customerID, ok := parseCustomerID(table.Field(row, entities.ColCustomerID))
		if !ok {
			continue
		}

		invoiceDate, ok := parseTimestamp(table.Field(row, entities.ColInvoiceDate))
		if !ok {
			continue
		}

		email := strings.TrimSpace(table.Field(row, entities.ColEmail))
		if email == "" {
			continue
		}

		cleaned = append(cleaned, &entities.Transaction{
			InvoiceNo:   invoiceNo,
			StockCode:   table.Field(row, entities.ColStockCode),
			Description: table.Field(row, entities.ColDescription),
			Quantity:    quantity,
			UnitPrice:   unitPrice,
			InvoiceDate: invoiceDate,
			CustomerID:  customerID,
			Name:        strings.TrimSpace(table.Field(row, entities.ColName)),
			Email:       email,
			Country:     table.Field(row, entities.ColCountry),
			LineTotal:   decimal.NewFromInt(quantity).Mul(unitPrice),
		})
	}

	return cleaned, nil
}

// parseQuantity accepts integer cells and float cells carrying whole values
// ("3", "3.0"); anything else reads as missing.
func parseQuantity(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.Trunc(f) != f || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}

func parsePrice(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, false
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return price, true
}

// parseCustomerID accepts integer ids, also in the "17850.0" float form
// pandas-exported CSVs tend to carry.
func parseCustomerID(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.Trunc(f) != f || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
}

func parseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
