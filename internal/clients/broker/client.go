// Package broker provides client functionality for interacting with the broker REST and streaming APIs.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/aristath/marketpulse/internal/config"
)

var (
	// ErrUnauthorized is returned when the broker rejects the access token
	ErrUnauthorized = errors.New("broker rejected access token")
	// ErrNoToken is returned when no access token is configured
	ErrNoToken = errors.New("no broker access token configured")
)

const (
	apiVersion      = "3"
	maxBodyLogBytes = 500
	maxRetries      = 3
	maxRetryElapsed = 20 * time.Second
)

// TokenProvider supplies the current access token
type TokenProvider interface {
	AccessToken() string
}

// StatusError is a non-200 response from the broker
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("broker returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("broker returned status %d", e.StatusCode)
}

// envelope is the broker's response wrapper
type envelope struct {
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	ErrorType string          `json:"error_type"`
	Data      json.RawMessage `json:"data"`
}

// Client for the broker REST API.
// Requests are rate limited and transient failures (transport errors, 429, 5xx) are retried
// with exponential backoff. Auth failures are never retried.
type Client struct {
	baseURL    string
	apiKey     string
	tokens     TokenProvider
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// NewClient creates a new broker client
func NewClient(cfg config.BrokerConfig, tokens TokenProvider, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	perSec := cfg.RequestsPerSec
	if perSec <= 0 {
		perSec = 3
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(perSec), perSec),
		log:        log.With().Str("client", "broker").Logger(),
	}
}

// VerifyToken checks an access token against the profile endpoint.
// Returns ErrUnauthorized if the broker rejects it.
func (c *Client) VerifyToken(ctx context.Context, token string) error {
	var profile Profile
	if err := c.get(ctx, "/user/profile", nil, token, &profile); err != nil {
		return err
	}
	c.log.Debug().Str("user_id", profile.UserID).Msg("Access token verified")
	return nil
}

// GetQuotes fetches quotes for multiple symbols in a single batch call
func (c *Client) GetQuotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	if len(symbols) == 0 {
		return make(map[string]Quote), nil
	}

	query := url.Values{}
	for _, s := range symbols {
		query.Add("i", s)
	}

	var raw map[string]Quote
	if err := c.get(ctx, "/quote", query, c.currentToken(), &raw); err != nil {
		return nil, fmt.Errorf("failed to get quotes: %w", err)
	}

	quotes := make(map[string]Quote, len(raw))
	for symbol, q := range raw {
		q.Symbol = symbol
		quotes[symbol] = q
	}

	if missing := len(symbols) - len(quotes); missing > 0 {
		c.log.Warn().Int("missing", missing).Strs("symbols", symbols).Msg("Some quotes were not returned")
	}
	return quotes, nil
}

// GetOptionChain fetches the nearest-expiry option chain for an underlying
func (c *Client) GetOptionChain(ctx context.Context, underlying string) (*OptionChain, error) {
	var chain OptionChain
	query := url.Values{"underlying": []string{underlying}}
	if err := c.get(ctx, "/option-chain", query, c.currentToken(), &chain); err != nil {
		return nil, fmt.Errorf("failed to get option chain for %s: %w", underlying, err)
	}
	if chain.Underlying == "" {
		chain.Underlying = underlying
	}
	return &chain, nil
}

func (c *Client) currentToken() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.AccessToken()
}

// get performs an authorized GET and decodes the envelope's data into out
func (c *Client) get(ctx context.Context, path string, query url.Values, token string, out interface{}) error {
	if token == "" {
		return ErrNoToken
	}

	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	attempt := 0
	operation := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("X-Kite-Version", apiVersion)
		req.Header.Set("Authorization", fmt.Sprintf("token %s:%s", c.apiKey, token))

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.log.Debug().Err(err).Str("path", path).Int("attempt", attempt).Msg("Request failed, will retry")
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		var env envelope
		_ = json.Unmarshal(body, &env)

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden ||
			env.ErrorType == "TokenException":
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrUnauthorized, env.Message))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			c.log.Warn().
				Int("status_code", resp.StatusCode).
				Str("path", path).
				Int("attempt", attempt).
				Msg("Broker returned retryable status")
			return &StatusError{StatusCode: resp.StatusCode, Message: env.Message}
		case resp.StatusCode != http.StatusOK:
			c.log.Error().
				Int("status_code", resp.StatusCode).
				Str("response_body", truncate(string(body), maxBodyLogBytes)).
				Str("path", path).
				Msg("Broker returned non-200 status")
			return backoff.Permanent(&StatusError{StatusCode: resp.StatusCode, Message: env.Message})
		}

		if env.Status != "success" {
			return backoff.Permanent(fmt.Errorf("broker returned status %q: %s", env.Status, env.Message))
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to parse response data: %w (body: %s)",
				err, truncate(string(body), maxBodyLogBytes)))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = maxRetryElapsed

	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx))
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
