package auth

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketpulse/internal/clients/broker"
	"github.com/aristath/marketpulse/internal/events"
)

// Verifier checks a token against the broker (implemented by broker.Client)
type Verifier interface {
	VerifyToken(ctx context.Context, token string) error
}

// TokenSource supplies the configured token
type TokenSource interface {
	Token() (TokenInfo, bool)
}

// TokenStore persists a replacement token
type TokenStore interface {
	SaveToken(token string) error
}

// EventEmitter publishes state transitions (implemented by events.Manager)
type EventEmitter interface {
	EmitTyped(module string, data events.EventData)
}

// Tracker caches the result of token verification for CheckInterval.
//
// The check-then-verify path is not serialized: two callers arriving just after
// the interval elapses may both verify. Both converge on the same state.
type Tracker struct {
	verifier      Verifier
	tokens        TokenSource
	store         TokenStore
	emitter       EventEmitter
	checkInterval time.Duration
	verifyTimeout time.Duration
	now           func() time.Time
	log           zerolog.Logger

	mu          sync.RWMutex
	state       State
	lastCheck   time.Time
	lastSuccess time.Time
	failures    int
	lastErr     string
}

// NewTracker creates a new auth state tracker
func NewTracker(
	verifier Verifier,
	tokens TokenSource,
	checkInterval time.Duration,
	verifyTimeout time.Duration,
	log zerolog.Logger,
) *Tracker {
	return &Tracker{
		verifier:      verifier,
		tokens:        tokens,
		checkInterval: checkInterval,
		verifyTimeout: verifyTimeout,
		now:           time.Now,
		state:         StateUnknown,
		log:           log.With().Str("component", "auth_tracker").Logger(),
	}
}

// SetTokenStore enables UpdateToken
func (t *Tracker) SetTokenStore(store TokenStore) {
	t.store = store
}

// SetEventEmitter enables AUTH_STATE_CHANGED events
func (t *Tracker) SetEventEmitter(emitter EventEmitter) {
	t.emitter = emitter
}

// IsValid returns the cached result while the last check is younger than the
// check interval, and verifies against the broker otherwise. It never fails:
// verification errors degrade the state instead.
func (t *Tracker) IsValid(ctx context.Context) bool {
	t.mu.RLock()
	fresh := !t.lastCheck.IsZero() && t.now().Sub(t.lastCheck) < t.checkInterval
	valid := t.state == StateValid
	t.mu.RUnlock()

	if fresh {
		return valid
	}
	return t.verify(ctx)
}

// ForceRecheck makes the next IsValid call verify regardless of the interval
func (t *Tracker) ForceRecheck() {
	t.mu.Lock()
	t.lastCheck = time.Time{}
	t.mu.Unlock()
	t.log.Debug().Msg("Auth recheck forced")
}

// UpdateToken persists a new token and forces the next IsValid to verify it
func (t *Tracker) UpdateToken(ctx context.Context, token string) error {
	if t.store == nil {
		return errors.New("token updates are not enabled")
	}
	if err := t.store.SaveToken(token); err != nil {
		return err
	}
	t.ForceRecheck()
	return nil
}

// GetStateInfo returns the current state without verifying
func (t *Tracker) GetStateInfo() StateInfo {
	token, hasToken := t.tokens.Token()
	now := t.now()

	t.mu.RLock()
	defer t.mu.RUnlock()

	info := StateInfo{
		State:               t.state,
		IsValid:             t.state == StateValid,
		RequiresLogin:       t.state.RequiresLogin(),
		ConsecutiveFailures: t.failures,
		HasToken:            hasToken,
		LastError:           t.lastErr,
	}
	if !t.lastSuccess.IsZero() {
		ts := t.lastSuccess
		info.LastSuccess = &ts
	}
	if !t.lastCheck.IsZero() {
		ts := t.lastCheck
		info.LastCheck = &ts
	}
	if hasToken && !token.IssuedAt.IsZero() {
		hours := math.Round(now.Sub(token.IssuedAt).Hours()*100) / 100
		info.TokenAgeHours = &hours
	}
	return info
}

func (t *Tracker) verify(ctx context.Context) bool {
	token, ok := t.tokens.Token()
	if !ok {
		t.record(StateRequired, errors.New("no access token configured"))
		return false
	}

	// A caller going away must not be recorded as a rejected token
	verifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.verifyTimeout)
	defer cancel()

	err := t.verifier.VerifyToken(verifyCtx, token.Token)
	if err != nil {
		if errors.Is(err, broker.ErrUnauthorized) {
			t.log.Warn().Err(err).Msg("Broker rejected access token")
		} else {
			t.log.Error().Err(err).Msg("Token verification failed")
		}
		t.record(StateExpired, err)
		return false
	}

	t.record(StateValid, nil)
	return true
}

func (t *Tracker) record(state State, err error) {
	now := t.now()

	t.mu.Lock()
	previous := t.state
	t.state = state
	t.lastCheck = now
	if err == nil {
		t.failures = 0
		t.lastSuccess = now
		t.lastErr = ""
	} else {
		t.failures++
		t.lastErr = err.Error()
	}
	failures := t.failures
	t.mu.Unlock()

	if previous == state {
		return
	}

	t.log.Info().
		Str("state", string(state)).
		Str("previous_state", string(previous)).
		Int("consecutive_failures", failures).
		Msg("Auth state changed")

	if t.emitter != nil {
		t.emitter.EmitTyped("auth", &events.AuthStateChangedData{
			State:         string(state),
			PreviousState: string(previous),
			RequiresLogin: state.RequiresLogin(),
		})
	}
}
