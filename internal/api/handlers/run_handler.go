package handlers

import (
	"net/http"
	"strconv"

	"github.com/retailiq/customer-segmentation/internal/domain/repositories"
)

// RunHandler serves the segmentation run archive.
type RunHandler struct {
	runRepo repositories.RunRepository
}

// NewRunHandler creates a new run archive handler.
func NewRunHandler(runRepo repositories.RunRepository) *RunHandler {
	return &RunHandler{runRepo: runRepo}
}

// ListRuns handles GET /api/runs
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter := repositories.RunFilter{Limit: 30}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		filter.Limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		filter.Offset = v
	}

	runs, err := h.runRepo.List(r.Context(), filter)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun handles GET /api/runs/{id}
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if runID == "" {
		respondWithError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	run, rows, err := h.runRepo.GetByID(r.Context(), runID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	out := make([]customerOut, 0, len(rows))
	for _, row := range rows {
		out = append(out, customerOut{
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

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"run":  run,
		"rows": out,
	})
}
