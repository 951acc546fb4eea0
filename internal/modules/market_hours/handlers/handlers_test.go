package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/marketpulse/internal/config"
	"github.com/aristath/marketpulse/internal/modules/market_hours"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(now time.Time) *Handler {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	session := config.DefaultMarketSession()
	session.Holidays = map[string]string{
		"2026-10-20": "Diwali Laxmi Pujan",
		"2026-11-05": "Guru Nanak Jayanti",
	}
	handler := NewHandler(market_hours.NewSessionService(session, logger), logger)
	handler.now = func() time.Time { return now }
	return handler
}

func TestHandleGetStatus(t *testing.T) {
	ist := config.DefaultMarketSession().Location

	tests := []struct {
		name      string
		now       time.Time
		wantPhase string
		trading   bool
	}{
		{"live", time.Date(2026, 10, 19, 11, 0, 0, 0, ist), "LIVE", true},
		{"pre-open", time.Date(2026, 10, 19, 9, 2, 0, 0, ist), "PRE_OPEN", true},
		{"holiday", time.Date(2026, 10, 20, 11, 0, 0, 0, ist), "CLOSED", false},
		{"weekend", time.Date(2026, 10, 24, 11, 0, 0, 0, ist), "WEEKEND", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler(tt.now)
			req := httptest.NewRequest("GET", "/api/market/status", nil)
			w := httptest.NewRecorder()

			handler.HandleGetStatus(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var response map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			data := response["data"].(map[string]interface{})
			assert.Equal(t, tt.wantPhase, data["phase"])
			assert.Equal(t, tt.trading, data["is_trading_hours"])
			assert.GreaterOrEqual(t, data["seconds_to_next_phase"].(float64), float64(1))
			assert.Equal(t, "Asia/Kolkata", data["timezone"])
			assert.NotNil(t, response["metadata"])
		})
	}
}

func TestHandleGetHolidays(t *testing.T) {
	ist := config.DefaultMarketSession().Location
	handler := newTestHandler(time.Date(2026, 10, 21, 10, 0, 0, 0, ist))

	req := httptest.NewRequest("GET", "/api/market/holidays", nil)
	w := httptest.NewRecorder()
	handler.HandleGetHolidays(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	data := response["data"].(map[string]interface{})
	holidays := data["holidays"].([]interface{})
	require.Len(t, holidays, 1)
	assert.Equal(t, "2026-11-05", holidays[0].(map[string]interface{})["date"])
}

func TestHandleGetHolidays_InvalidLimit(t *testing.T) {
	handler := newTestHandler(time.Now())

	req := httptest.NewRequest("GET", "/api/market/holidays?limit=abc", nil)
	w := httptest.NewRecorder()
	handler.HandleGetHolidays(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
