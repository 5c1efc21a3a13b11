package routes

import (
	"net/http"

	"github.com/retailiq/customer-segmentation/internal/api/handlers"
	"github.com/retailiq/customer-segmentation/internal/api/middleware"
	"github.com/retailiq/customer-segmentation/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	segmentationHandler *handlers.SegmentationHandler
	runHandler          *handlers.RunHandler

	metrics *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	segmentationHandler *handlers.SegmentationHandler,
	runHandler *handlers.RunHandler,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:                 http.NewServeMux(),
		segmentationHandler: segmentationHandler,
		runHandler:          runHandler,
		metrics:             metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Segmentation endpoint: upload a transactional CSV, compute RFM-based
	// segments, optionally dispatch messages
	r.mux.HandleFunc("POST /api/segment", r.segmentationHandler.SegmentCustomers)

	// Run archive endpoints
	if r.runHandler != nil {
		r.mux.HandleFunc("GET /api/runs", r.runHandler.ListRuns)
		r.mux.HandleFunc("GET /api/runs/{id}", r.runHandler.GetRun)
	}

	// Apply middleware in reverse order (last middleware wraps first).
	// CORS wraps everything so headers are set on every response.
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.CORSMiddleware(handler)

	return handler
}
