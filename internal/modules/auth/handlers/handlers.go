// Package handlers provides HTTP handlers for broker auth state.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/marketpulse/internal/modules/auth"
	"github.com/rs/zerolog"
)

// Handler handles auth state HTTP requests
type Handler struct {
	tracker *auth.Tracker
	log     zerolog.Logger
}

// NewHandler creates a new auth handler
func NewHandler(tracker *auth.Tracker, log zerolog.Logger) *Handler {
	return &Handler{
		tracker: tracker,
		log:     log.With().Str("handler", "auth").Logger(),
	}
}

// UpdateTokenRequest is the body of POST /api/auth/token
type UpdateTokenRequest struct {
	AccessToken string `json:"access_token"`
}

// HandleGetStatus handles GET /api/auth/status
// Reports the last known state. It never calls the broker.
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	h.writeState(w, http.StatusOK)
}

// HandleRecheck handles POST /api/auth/recheck
func (h *Handler) HandleRecheck(w http.ResponseWriter, r *http.Request) {
	h.tracker.ForceRecheck()
	h.tracker.IsValid(r.Context())
	h.writeState(w, http.StatusOK)
}

// HandleUpdateToken handles POST /api/auth/token
// Stores a freshly issued access token and verifies it immediately
func (h *Handler) HandleUpdateToken(w http.ResponseWriter, r *http.Request) {
	var req UpdateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.tracker.UpdateToken(r.Context(), req.AccessToken); err != nil {
		if errors.Is(err, auth.ErrEmptyToken) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Msg("Failed to update access token")
		http.Error(w, "Failed to update access token", http.StatusInternalServerError)
		return
	}

	h.tracker.IsValid(r.Context())
	h.writeState(w, http.StatusOK)
}

func (h *Handler) writeState(w http.ResponseWriter, status int) {
	h.writeJSON(w, status, map[string]interface{}{
		"data": h.tracker.GetStateInfo(),
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
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
