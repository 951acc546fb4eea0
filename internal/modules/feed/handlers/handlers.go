// Package handlers provides HTTP handlers for feed health.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/marketpulse/internal/modules/feed"
	"github.com/rs/zerolog"
)

// StreamStatus reports whether the tick stream socket is open
type StreamStatus interface {
	IsConnected() bool
}

// Handler handles feed HTTP requests
type Handler struct {
	watchdog *feed.Watchdog
	stream   StreamStatus
	now      func() time.Time
	log      zerolog.Logger
}

// NewHandler creates a new feed handler. stream may be nil when no tick
// stream is configured.
func NewHandler(watchdog *feed.Watchdog, stream StreamStatus, log zerolog.Logger) *Handler {
	return &Handler{
		watchdog: watchdog,
		stream:   stream,
		now:      time.Now,
		log:      log.With().Str("handler", "feed").Logger(),
	}
}

// HandleGetStatus handles GET /api/feed/status
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	metrics := h.watchdog.GetHealthMetrics(h.now())

	streamConfigured := h.stream != nil
	response := map[string]interface{}{
		"data": map[string]interface{}{
			"feed": metrics,
			"stream": map[string]interface{}{
				"configured": streamConfigured,
				"connected":  streamConfigured && h.stream.IsConnected(),
			},
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
