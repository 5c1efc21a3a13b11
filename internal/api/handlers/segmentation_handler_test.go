package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailiq/customer-segmentation/internal/application/services"
	"github.com/retailiq/customer-segmentation/internal/domain/entities"
	apperrors "github.com/retailiq/customer-segmentation/pkg/errors"
)

// stubRunner returns a canned result or error and records the request it saw.
type stubRunner struct {
	result *services.SegmentationResult
	err    error

	gotTable *entities.TransactionTable
	gotReq   services.SegmentationRequest
}

func (s *stubRunner) Run(_ context.Context, table *entities.TransactionTable, req services.SegmentationRequest) (*services.SegmentationResult, error) {
	s.gotTable = table
	s.gotReq = req
	return s.result, s.err
}

func uploadRequest(t *testing.T, target, csvBody string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "transactions.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(csvBody))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func sampleResult() *services.SegmentationResult {
	monetary := decimal.RequireFromString("120.50")
	return &services.SegmentationResult{
		RunID:        "run-1",
		SnapshotDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Summary:      entities.SegmentSummary{entities.SegmentVIP: 1},
		Rows: []*entities.CustomerFeatures{{
			CustomerID:          101,
			Name:                "Ada",
			Email:               "ada@example.com",
			LastPurchase:        time.Date(2024, 1, 8, 14, 30, 0, 0, time.UTC),
			FavCategory:         "MUGS",
			TotalSpent:          monetary,
			LastPurchaseDaysAgo: 2,
			Recency:             2,
			Frequency:           4,
			Monetary:            monetary,
			Cluster:             2,
			Segment:             entities.SegmentVIP,
		}},
	}
}

func TestSegmentCustomers_Success(t *testing.T) {
	runner := &stubRunner{result: sampleResult()}
	handler := NewSegmentationHandler(runner, nil, 0, false, nil)

	req := uploadRequest(t, "/api/segment", "InvoiceNo,Quantity\n1001,2\n")
	rec := httptest.NewRecorder()
	handler.SegmentCustomers(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "run-1", resp["run_id"])
	assert.Equal(t, "2024-01-10", resp["snapshot_date"])
	assert.NotContains(t, resp, "dispatch")

	rows, ok := resp["rows"].([]any)
	require.True(t, ok)
	require.Len(t, rows, 1)
	row := rows[0].(map[string]any)
	assert.Equal(t, "2024-01-08", row["Last_Purchase"])
	assert.Equal(t, 120.5, row["Monetary"])
	assert.Equal(t, entities.SegmentVIP, row["Segment"])

	// The decoded upload reached the pipeline untouched.
	require.NotNil(t, runner.gotTable)
	assert.Equal(t, []string{"InvoiceNo", "Quantity"}, runner.gotTable.Columns)
	assert.False(t, runner.gotReq.SendMessages)
}

func TestSegmentCustomers_ForwardsDispatchFlags(t *testing.T) {
	result := sampleResult()
	result.Dispatch = &entities.DispatchReport{Attempted: 1, Sent: 1}
	runner := &stubRunner{result: result}
	handler := NewSegmentationHandler(runner, nil, 0, true, nil)

	req := uploadRequest(t, "/api/segment?send_emails=true&limit=5", "InvoiceNo\n1001\n")
	rec := httptest.NewRecorder()
	handler.SegmentCustomers(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, runner.gotReq.SendMessages)
	assert.Equal(t, 5, runner.gotReq.Limit)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp, "dispatch")
}

func TestSegmentCustomers_MailNotConfigured(t *testing.T) {
	runner := &stubRunner{result: sampleResult()}
	handler := NewSegmentationHandler(runner, nil, 0, false, nil)

	req := uploadRequest(t, "/api/segment?send_emails=true", "InvoiceNo\n1001\n")
	rec := httptest.NewRecorder()
	handler.SegmentCustomers(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "EMAIL_USER/EMAIL_PASS not configured")
	assert.Nil(t, runner.gotTable)
}

func TestSegmentCustomers_MissingFileField(t *testing.T) {
	handler := NewSegmentationHandler(&stubRunner{}, nil, 0, false, nil)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("note", "no file here"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/segment", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.SegmentCustomers(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing 'file' upload")
}

func TestSegmentCustomers_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"schema error", apperrors.NewSchemaError("missing required columns: Email"), http.StatusUnprocessableEntity},
		{"empty input", apperrors.NewEmptyInputError("no rows survived cleaning"), http.StatusUnprocessableEntity},
		{"model unavailable", apperrors.NewModelUnavailableError("artifacts not loaded", nil), http.StatusServiceUnavailable},
		{"validation", apperrors.NewValidationError("bad csv"), http.StatusBadRequest},
		{"internal", apperrors.NewInternalError("boom", nil), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewSegmentationHandler(&stubRunner{err: tt.err}, nil, 0, false, nil)

			req := uploadRequest(t, "/api/segment", "InvoiceNo\n1001\n")
			rec := httptest.NewRecorder()
			handler.SegmentCustomers(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestSegmentCustomers_InternalErrorBodyIsGeneric(t *testing.T) {
	handler := NewSegmentationHandler(&stubRunner{err: apperrors.NewInternalError("join failed on node 4", nil)}, nil, 0, false, nil)

	req := uploadRequest(t, "/api/segment", "InvoiceNo\n1001\n")
	rec := httptest.NewRecorder()
	handler.SegmentCustomers(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
	assert.NotContains(t, rec.Body.String(), "node 4")
}
