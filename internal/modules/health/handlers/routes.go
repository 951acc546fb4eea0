package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the aggregate health route under /api
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HandleGetSummary)
}

// RegisterLiveness registers the root liveness probe
func (h *Handler) RegisterLiveness(r chi.Router) {
	r.Get("/health", h.HandleLiveness)
}
