package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketpulse/internal/config"
	"github.com/aristath/marketpulse/internal/modules/feed"
)

type alwaysLive struct{}

func (alwaysLive) ExpectsDataFlow(time.Time) bool { return true }

type fakeStream bool

func (f fakeStream) IsConnected() bool { return bool(f) }

func TestHandleGetStatus(t *testing.T) {
	tests := []struct {
		name           string
		stream         StreamStatus
		offset         time.Duration
		wantState      string
		wantConfigured bool
		wantConnected  bool
	}{
		{"fresh tick, stream up", fakeStream(true), time.Second, "CONNECTED", true, true},
		{"silent feed, stream down", fakeStream(false), 2 * time.Minute, "DISCONNECTED", true, false},
		{"no stream configured", nil, 30 * time.Second, "STALE", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := zerolog.New(nil).Level(zerolog.Disabled)
			watchdog := feed.NewWatchdog(alwaysLive{}, config.FeedConfig{
				StaleAfter:        10 * time.Second,
				DisconnectedAfter: 60 * time.Second,
				QualityWindow:     60 * time.Second,
			}, log)
			watchdog.OnTick()

			handler := NewHandler(watchdog, tt.stream, log)
			handler.now = func() time.Time { return time.Now().Add(tt.offset) }

			router := chi.NewRouter()
			router.Route("/api", handler.RegisterRoutes)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("GET", "/api/feed/status", nil))
			require.Equal(t, http.StatusOK, w.Code)

			var response map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			data := response["data"].(map[string]interface{})
			metrics := data["feed"].(map[string]interface{})
			stream := data["stream"].(map[string]interface{})

			assert.Equal(t, tt.wantState, metrics["state"])
			assert.Equal(t, float64(1), metrics["total_ticks"])
			assert.Equal(t, tt.wantConfigured, stream["configured"])
			assert.Equal(t, tt.wantConnected, stream["connected"])
		})
	}
}
