package tabular

import (
	"bytes"
	"encoding/csv"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/retailiq/customer-segmentation/internal/domain/entities"
	apperrors "github.com/retailiq/customer-segmentation/pkg/errors"
)

// ReadTransactionsCSV decodes an uploaded CSV into a raw transaction table.
// Non-UTF-8 payloads are retried as Latin-1, matching how exports from
// legacy retail systems usually arrive. Column presence is not checked
// here; the cleaner owns the required-column contract.
func ReadTransactionsCSV(data []byte) (*entities.TransactionTable, error) {
	var source io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		source = transform.NewReader(bytes.NewReader(data), charmap.ISO8859_1.NewDecoder())
	}

	table, err := decode(source)
	if err != nil {
		return nil, apperrors.NewValidationError("could not parse uploaded file as CSV")
	}
	return table, nil
}

func decode(r io.Reader) (*entities.TransactionTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // ragged rows read as missing cells
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, apperrors.NewValidationError("uploaded file is empty or has no header row")
	}
	header = trimBOM(header)

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, record)
	}

	return entities.NewTransactionTable(header, rows), nil
}

// trimBOM strips a UTF-8 byte order mark from the first header cell so the
// exact-name column check is not defeated by "InvoiceNo".
func trimBOM(header []string) []string {
	if len(header) > 0 {
		header[0] = string(bytes.TrimPrefix([]byte(header[0]), []byte("\ufeff")))
	}
	return header
}
