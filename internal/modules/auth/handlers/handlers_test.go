package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketpulse/internal/clients/broker"
	"github.com/aristath/marketpulse/internal/modules/auth"
)

type countingVerifier struct {
	calls int32
	valid string
}

func (v *countingVerifier) VerifyToken(ctx context.Context, token string) error {
	atomic.AddInt32(&v.calls, 1)
	if token != v.valid {
		return broker.ErrUnauthorized
	}
	return nil
}

func setupRouter(initialToken string) (*chi.Mux, *countingVerifier) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	verifier := &countingVerifier{valid: "good"}
	source := auth.NewSettingsTokenSource(auth.TokenInfo{Token: initialToken}, nil, log)
	tracker := auth.NewTracker(verifier, source, 5*time.Minute, time.Second, log)
	tracker.SetTokenStore(source)

	router := chi.NewRouter()
	router.Route("/api", NewHandler(tracker, log).RegisterRoutes)
	return router, verifier
}

func decodeState(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response["data"].(map[string]interface{})
}

func TestHandleGetStatus_HasNoSideEffects(t *testing.T) {
	router, verifier := setupRouter("good")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/auth/status", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeState(t, w)
	assert.Equal(t, "UNKNOWN", data["state"])
	assert.Equal(t, true, data["has_token"])
	assert.Nil(t, data["token_age_hours"])
	assert.Equal(t, int32(0), atomic.LoadInt32(&verifier.calls))
}

func TestHandleRecheck(t *testing.T) {
	router, verifier := setupRouter("stale")

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/api/auth/recheck", nil))
		assert.Equal(t, http.StatusOK, w.Code)

		data := decodeState(t, w)
		assert.Equal(t, "EXPIRED", data["state"])
		assert.Equal(t, true, data["requires_login"])
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&verifier.calls))
}

func TestHandleUpdateToken(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantState  string
	}{
		{"valid token", `{"access_token":"good"}`, http.StatusOK, "VALID"},
		{"rejected token", `{"access_token":"bad"}`, http.StatusOK, "EXPIRED"},
		{"empty token", `{"access_token":""}`, http.StatusBadRequest, ""},
		{"malformed body", `{`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := setupRouter("")

			w := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/api/auth/token", strings.NewReader(tt.body))
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantState != "" {
				data := decodeState(t, w)
				assert.Equal(t, tt.wantState, data["state"])
				assert.Equal(t, true, data["has_token"])
			}
		})
	}
}
