// Package handlers provides HTTP handlers for aggregate health.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/marketpulse/internal/modules/health"
	"github.com/rs/zerolog"
)

// Handler handles health HTTP requests
type Handler struct {
	reporter  *health.Reporter
	startedAt time.Time
	version   string
	now       func() time.Time
	log       zerolog.Logger
}

// NewHandler creates a new health handler
func NewHandler(reporter *health.Reporter, version string, log zerolog.Logger) *Handler {
	return &Handler{
		reporter:  reporter,
		startedAt: time.Now(),
		version:   version,
		now:       time.Now,
		log:       log.With().Str("handler", "health").Logger(),
	}
}

// HandleGetSummary handles GET /api/health
// Returns the priority status together with the market, auth and feed sections
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary := h.reporter.Summary(r.Context(), h.now())

	response := map[string]interface{}{
		"data": summary,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleLiveness handles GET /health
// Always 200 while the process serves requests; degraded trackers do not fail it
func (h *Handler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
