package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all auth routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Get("/status", h.HandleGetStatus)
		r.Post("/recheck", h.HandleRecheck)
		r.Post("/token", h.HandleUpdateToken)
	})
}
