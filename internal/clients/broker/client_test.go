package broker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketpulse/internal/config"
)

type staticToken string

func (s staticToken) AccessToken() string { return string(s) }

func newTestClient(serverURL string, token string) *Client {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	return NewClient(config.BrokerConfig{
		BaseURL:        serverURL,
		APIKey:         "test_api_key",
		RequestsPerSec: 100,
		Timeout:        2 * time.Second,
	}, staticToken(token), log)
}

func writeEnvelope(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestVerifyToken(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      map[string]interface{}
		wantErr   error
		wantCalls int32
		anyErr    bool
	}{
		{
			name:      "valid token",
			status:    http.StatusOK,
			body:      map[string]interface{}{"status": "success", "data": map[string]interface{}{"user_id": "AB1234"}},
			wantCalls: 1,
		},
		{
			name:      "403 is unauthorized and not retried",
			status:    http.StatusForbidden,
			body:      map[string]interface{}{"status": "error", "message": "Incorrect api_key or access_token.", "error_type": "TokenException"},
			wantErr:   ErrUnauthorized,
			wantCalls: 1,
		},
		{
			name:      "401 is unauthorized",
			status:    http.StatusUnauthorized,
			body:      map[string]interface{}{"status": "error"},
			wantErr:   ErrUnauthorized,
			wantCalls: 1,
		},
		{
			name:      "400 is permanent",
			status:    http.StatusBadRequest,
			body:      map[string]interface{}{"status": "error", "message": "bad input"},
			anyErr:    true,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				assert.Equal(t, "/user/profile", r.URL.Path)
				assert.Equal(t, "token test_api_key:tok", r.Header.Get("Authorization"))
				assert.Equal(t, "3", r.Header.Get("X-Kite-Version"))
				writeEnvelope(w, tt.status, tt.body)
			}))
			defer server.Close()

			client := newTestClient(server.URL, "")
			err := client.VerifyToken(context.Background(), "tok")

			switch {
			case tt.wantErr != nil:
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			case tt.anyErr:
				require.Error(t, err)
				var statusErr *StatusError
				assert.True(t, errors.As(err, &statusErr))
			default:
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
		})
	}
}

func TestVerifyToken_EmptyTokenMakesNoCall(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	client := newTestClient(server.URL, "")
	err := client.VerifyToken(context.Background(), "")

	assert.True(t, errors.Is(err, ErrNoToken))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			writeEnvelope(w, http.StatusBadGateway, map[string]interface{}{"status": "error"})
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"status": "success",
			"data": map[string]interface{}{
				"NSE:NIFTY 50": map[string]interface{}{
					"instrument_token": 256265,
					"last_price":       24812.35,
					"net_change":       -98.65,
					"ohlc":             map[string]interface{}{"open": 24900, "high": 24950.5, "low": 24780.1, "close": 24911},
				},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL, "tok")
	quotes, err := client.GetQuotes(context.Background(), []string{"NSE:NIFTY 50"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	q := quotes["NSE:NIFTY 50"]
	assert.Equal(t, "NSE:NIFTY 50", q.Symbol)
	assert.Equal(t, 24812.35, q.LastPrice)
	assert.InDelta(t, -0.396, q.ChangePct(), 0.001)
}

func TestGet_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeEnvelope(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "error"})
	}))
	defer server.Close()

	client := newTestClient(server.URL, "tok")
	_, err := client.GetQuotes(context.Background(), []string{"NSE:NIFTY 50"})

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, int32(maxRetries+1), atomic.LoadInt32(&calls))
}

func TestGetQuotes_EncodesInstruments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, []string{"NSE:NIFTY 50", "NSE:NIFTY BANK"}, r.URL.Query()["i"])
		writeEnvelope(w, http.StatusOK, map[string]interface{}{"status": "success", "data": map[string]interface{}{}})
	}))
	defer server.Close()

	client := newTestClient(server.URL, "tok")
	quotes, err := client.GetQuotes(context.Background(), []string{"NSE:NIFTY 50", "NSE:NIFTY BANK"})
	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestGetQuotes_NoSymbols(t *testing.T) {
	client := newTestClient("http://127.0.0.1:0", "tok")
	quotes, err := client.GetQuotes(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestGetOptionChain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/option-chain", r.URL.Path)
		assert.Equal(t, "NIFTY", r.URL.Query().Get("underlying"))
		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"status": "success",
			"data": map[string]interface{}{
				"expiry":     "2026-10-27",
				"spot_price": 24812.35,
				"strikes": []map[string]interface{}{
					{"strike": 24800, "call_oi": 120000, "put_oi": 150000},
					{"strike": 24900, "call_oi": 180000, "put_oi": 90000},
				},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL, "tok")
	chain, err := client.GetOptionChain(context.Background(), "NIFTY")
	require.NoError(t, err)
	assert.Equal(t, "NIFTY", chain.Underlying)
	require.Len(t, chain.Strikes, 2)
	assert.Equal(t, 150000.0, chain.Strikes[0].PutOI)
}

func TestGet_ContextCancelledIsNotRetried(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		writeEnvelope(w, http.StatusOK, map[string]interface{}{"status": "success", "data": map[string]interface{}{}})
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := newTestClient(server.URL, "tok")
	start := time.Now()
	err := client.VerifyToken(ctx, "tok")
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
