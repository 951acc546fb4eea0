// Package handlers provides HTTP handlers for cached market data.
package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/marketpulse/internal/modules/market_data"
)

// Handler handles market data HTTP requests
type Handler struct {
	service *market_data.Service
	log     zerolog.Logger
}

// NewHandler creates a new market data handler
func NewHandler(service *market_data.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "market_data").Logger(),
	}
}

// HandleGetAll handles GET /api/market-data
// Returns the last known payload for every symbol, live or backup-tagged
func (h *Handler) HandleGetAll(w http.ResponseWriter, r *http.Request) {
	all := h.service.GetAll()

	symbols := make([]string, 0, len(all))
	for s := range all {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"symbols": symbols,
			"quotes":  all,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"count":     len(all),
		},
	})
}

// HandleGetSymbol handles GET /api/market-data/{symbol}
func (h *Handler) HandleGetSymbol(w http.ResponseWriter, r *http.Request) {
	symbol, ok := h.symbolParam(w, r)
	if !ok {
		return
	}

	payload, found := h.service.Get(symbol)
	if !found {
		http.Error(w, "No data for symbol", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": payload,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetCandles handles GET /api/market-data/{symbol}/candles?limit=N
func (h *Handler) HandleGetCandles(w http.ResponseWriter, r *http.Request) {
	symbol, ok := h.symbolParam(w, r)
	if !ok {
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	candles := h.service.Candles(symbol, limit)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"symbol":  symbol,
			"candles": candles,
			"count":   len(candles),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// symbolParam decodes the {symbol} segment ("NSE:NIFTY%2050")
func (h *Handler) symbolParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	symbol, err := url.PathUnescape(chi.URLParam(r, "symbol"))
	if err != nil || symbol == "" {
		http.Error(w, "Invalid symbol", http.StatusBadRequest)
		return "", false
	}
	return symbol, true
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
