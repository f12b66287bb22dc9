package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Fuuurma/FinanceHub-sub000/internal/feed"
	"github.com/Fuuurma/FinanceHub-sub000/internal/service"
)

// HealthHandler serves the health-check and runtime-stats endpoints.
type HealthHandler struct {
	serviceStats func() service.Stats
	feedStats    func() feed.Stats
	logger       *slog.Logger
}

// NewHealthHandler creates a HealthHandler. feedStats may be nil when the
// process runs without a live feed (server mode).
func NewHealthHandler(serviceStats func() service.Stats, feedStats func() feed.Stats, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		serviceStats: serviceStats,
		feedStats:    feedStats,
		logger:       logger,
	}
}

// HealthCheck responds with a simple JSON status indicating the server is alive.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Stats reports message counters from the service core and, when present,
// the websocket feed.
// GET /api/stats
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"service": h.serviceStats(),
	}
	if h.feedStats != nil {
		resp["feed"] = h.feedStats()
	}
	writeJSON(w, http.StatusOK, resp)
}
