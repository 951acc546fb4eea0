package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all market data routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/market-data", func(r chi.Router) {
		r.Get("/", h.HandleGetAll)
		r.Get("/{symbol}", h.HandleGetSymbol)
		r.Get("/{symbol}/candles", h.HandleGetCandles)
	})
}
