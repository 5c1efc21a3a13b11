package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Column names of the required-column contract. Case-sensitive and exact;
// extra columns in an upload are ignored.
const (
	ColInvoiceNo   = "InvoiceNo"
	ColStockCode   = "StockCode"
	ColDescription = "Description"
	ColQuantity    = "Quantity"
	ColInvoiceDate = "InvoiceDate"
	ColUnitPrice   = "UnitPrice"
	ColCustomerID  = "CustomerID"
	ColName        = "Name"
	ColEmail       = "Email"
	ColCountry     = "Country"
)

// RequiredColumns is the fixed column contract for uploaded transaction data.
func RequiredColumns() []string {
	return []string{
		ColInvoiceNo, ColStockCode, ColDescription, ColQuantity, ColInvoiceDate,
		ColUnitPrice, ColCustomerID, ColName, ColEmail, ColCountry,
	}
}

// TransactionTable is a raw tabular dataset as decoded from an upload,
// before any cleaning. Cell values are untyped strings.
type TransactionTable struct {
	Columns []string
	Rows    [][]string

	index map[string]int
}

// NewTransactionTable builds a table with a column lookup index.
func NewTransactionTable(columns []string, rows [][]string) *TransactionTable {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, exists := index[c]; !exists {
			index[c] = i
		}
	}
	return &TransactionTable{Columns: columns, Rows: rows, index: index}
}

// HasColumn reports whether the table contains the named column.
func (t *TransactionTable) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Field returns the cell value for the named column in the given row.
// Rows shorter than the header read as empty cells.
func (t *TransactionTable) Field(row []string, name string) string {
	i, ok := t.index[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// Transaction is one cleaned transactional retail record. Every field is
// populated: cleaning drops rows with missing customer id, timestamp or
// email, non-positive quantity/price, and cancelled invoices.
type Transaction struct {
	InvoiceNo   string
	StockCode   string
	Description string
	Quantity    int64
	UnitPrice   decimal.Decimal
	InvoiceDate time.Time
	CustomerID  int64
	Name        string
	Email       string
	Country     string

	// LineTotal = Quantity * UnitPrice, computed during cleaning.
	LineTotal decimal.Decimal
}
