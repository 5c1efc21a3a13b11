package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/retailiq/customer-segmentation/internal/adapters/tabular"
	"github.com/retailiq/customer-segmentation/internal/application/services"
	"github.com/retailiq/customer-segmentation/internal/domain/entities"
	"github.com/retailiq/customer-segmentation/internal/infrastructure/observability"
	apperrors "github.com/retailiq/customer-segmentation/pkg/errors"
)

const maxUploadBytes = 64 << 20 // 64 MiB

// SegmentationRunner runs one pipeline invocation over an uploaded table.
type SegmentationRunner interface {
	Run(ctx context.Context, table *entities.TransactionTable, req services.SegmentationRequest) (*services.SegmentationResult, error)
}

// SegmentationHandler accepts a transactional CSV upload, runs the RFM
// pipeline, and optionally dispatches segment-triggered messages.
type SegmentationHandler struct {
	service        SegmentationRunner
	redisClient    *redislib.Client
	idempotencyTTL time.Duration
	mailReady      bool
	metrics        *observability.Metrics
}

// NewSegmentationHandler creates a new segmentation handler. redisClient
// may be nil, which disables the idempotency guard.
func NewSegmentationHandler(
	service SegmentationRunner,
	redisClient *redislib.Client,
	idempotencyTTL time.Duration,
	mailReady bool,
	metrics *observability.Metrics,
) *SegmentationHandler {
	if idempotencyTTL <= 0 {
		idempotencyTTL = 24 * time.Hour
	}
	return &SegmentationHandler{
		service:        service,
		redisClient:    redisClient,
		idempotencyTTL: idempotencyTTL,
		mailReady:      mailReady,
		metrics:        metrics,
	}
}

// customerOut mirrors the feature row contract of the segmentation API.
type customerOut struct {
	CustomerID          int64   `json:"CustomerID"`
	Name                string  `json:"Name,omitempty"`
	Email               string  `json:"Email"`
	LastPurchase        string  `json:"Last_Purchase"`
	FavCategory         string  `json:"Fav_Category"`
	TotalSpent          float64 `json:"Total_Spent"`
	LastPurchaseDaysAgo int     `json:"Last_Purchase_Days_Ago"`
	Recency             int     `json:"Recency"`
	Frequency           int     `json:"Frequency"`
	Monetary            float64 `json:"Monetary"`
	Cluster             int     `json:"Cluster"`
	Segment             string  `json:"Segment"`
}

type segmentSummaryOut struct {
	Counts entities.SegmentSummary `json:"counts"`
}

type segmentResponse struct {
	RunID        string                   `json:"run_id"`
	SnapshotDate string                   `json:"snapshot_date"`
	Summary      segmentSummaryOut        `json:"summary"`
	Rows         []customerOut            `json:"rows"`
	Dispatch     *entities.DispatchReport `json:"dispatch,omitempty"`
}

// SegmentCustomers handles POST /api/segment
func (h *SegmentationHandler) SegmentCustomers(w http.ResponseWriter, r *http.Request) {
	if duplicate, key := h.isDuplicate(r.Context(), r); duplicate {
		respondWithJSON(w, http.StatusOK, map[string]string{
			"status":          "duplicate",
			"idempotency_key": key,
		})
		return
	}

	sendEmails := parseBoolParam(r, "send_emails")
	limit := parseIntParam(r, "limit")

	if sendEmails && !h.mailReady {
		respondWithError(w, http.StatusBadRequest, "EMAIL_USER/EMAIL_PASS not configured on server")
		return
	}

	table, err := readUpload(r)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	result, err := h.service.Run(r.Context(), table, services.SegmentationRequest{
		SendMessages: sendEmails,
		Limit:        limit,
	})
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	observability.RecordPipelineRun(r.Context(), h.metrics, len(result.Rows))
	if result.Dispatch != nil {
		observability.RecordDispatch(r.Context(), h.metrics, result.Dispatch.Sent, result.Dispatch.Failed)
	}

	respondWithJSON(w, http.StatusOK, buildSegmentResponse(result))
}

func buildSegmentResponse(result *services.SegmentationResult) segmentResponse {
	rows := make([]customerOut, 0, len(result.Rows))
	for _, row := range result.Rows {
		rows = append(rows, customerOut{
			CustomerID:          row.CustomerID,
			Name:                row.Name,
			Email:               row.Email,
			LastPurchase:        row.LastPurchase.Format("2006-01-02"),
			FavCategory:         row.FavCategory,
			TotalSpent:          row.TotalSpent.InexactFloat64(),
			LastPurchaseDaysAgo: row.LastPurchaseDaysAgo,
			Recency:             row.Recency,
			Frequency:           row.Frequency,
			Monetary:            row.Monetary.InexactFloat64(),
			Cluster:             row.Cluster,
			Segment:             row.Segment,
		})
	}

	return segmentResponse{
		RunID:        result.RunID,
		SnapshotDate: result.SnapshotDate.Format("2006-01-02"),
		Summary:      segmentSummaryOut{Counts: result.Summary},
		Rows:         rows,
		Dispatch:     result.Dispatch,
	}
}

func readUpload(r *http.Request) (*entities.TransactionTable, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, apperrors.NewValidationError("expected a multipart form with a 'file' field")
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, apperrors.NewValidationError("missing 'file' upload")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return nil, apperrors.NewInternalError("failed to read upload", err)
	}

	return tabular.ReadTransactionsCSV(data)
}

func (h *SegmentationHandler) isDuplicate(ctx context.Context, r *http.Request) (bool, string) {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" {
		key = strings.TrimSpace(r.Header.Get("X-Idempotency-Key"))
	}
	if key == "" || h.redisClient == nil {
		return false, ""
	}

	redisKey := "segment_idem:" + key
	ok, err := h.redisClient.SetNX(ctx, redisKey, time.Now().UTC().Format(time.RFC3339Nano), h.idempotencyTTL).Result()
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("idempotency check failed")
		return false, key
	}
	return !ok, key
}

func parseBoolParam(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}

func parseIntParam(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return v
}

// Helper functions
func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondWithAppError maps pipeline error types to HTTP status codes.
func respondWithAppError(w http.ResponseWriter, err error) {
	if appErr, ok := err.(*apperrors.AppError); ok {
		switch appErr.Type {
		case apperrors.ErrorTypeSchema, apperrors.ErrorTypeEmptyInput:
			respondWithError(w, http.StatusUnprocessableEntity, appErr.Message)
		case apperrors.ErrorTypeValidation:
			respondWithError(w, http.StatusBadRequest, appErr.Message)
		case apperrors.ErrorTypeModelUnavailable:
			respondWithError(w, http.StatusServiceUnavailable, appErr.Message)
		case apperrors.ErrorTypeNotFound:
			respondWithError(w, http.StatusNotFound, appErr.Message)
		default:
			respondWithError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}
	respondWithError(w, http.StatusInternalServerError, "internal server error")
}
