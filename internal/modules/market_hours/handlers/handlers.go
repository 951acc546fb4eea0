// Package handlers provides HTTP handlers for market session operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/marketpulse/internal/modules/market_hours"
	"github.com/rs/zerolog"
)

const defaultHolidayLimit = 10

// Handler handles market session HTTP requests
type Handler struct {
	service *market_hours.SessionService
	now     func() time.Time
	log     zerolog.Logger
}

// NewHandler creates a new market session handler
func NewHandler(service *market_hours.SessionService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		now:     time.Now,
		log:     log.With().Str("handler", "market_hours").Logger(),
	}
}

// HandleGetStatus handles GET /api/market/status
// Returns the current session phase and time to the next phase
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	status := h.service.GetStatus(h.now())

	response := map[string]interface{}{
		"data": status,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetHolidays handles GET /api/market/holidays
// Returns upcoming configured holidays (?limit=N, default 10)
func (h *Handler) HandleGetHolidays(w http.ResponseWriter, r *http.Request) {
	limit := defaultHolidayLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	holidays := h.service.UpcomingHolidays(h.now(), limit)

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"timezone": h.service.Session().Location.String(),
			"holidays": holidays,
			"count":    len(holidays),
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
