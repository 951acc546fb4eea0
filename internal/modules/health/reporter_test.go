package health

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketpulse/internal/config"
	"github.com/aristath/marketpulse/internal/modules/auth"
	"github.com/aristath/marketpulse/internal/modules/feed"
	"github.com/aristath/marketpulse/internal/modules/market_hours"
)

func TestPrioritize_AuthDominates(t *testing.T) {
	phases := []market_hours.Phase{
		market_hours.PhasePreOpen, market_hours.PhaseFreeze, market_hours.PhaseLive,
		market_hours.PhaseClosed, market_hours.PhaseWeekend,
	}
	feedStates := []feed.State{feed.StateConnected, feed.StateStale, feed.StateDisconnected}
	authStates := []auth.State{auth.StateExpired, auth.StateRequired}

	for _, phase := range phases {
		for _, fs := range feedStates {
			for _, as := range authStates {
				t.Run(fmt.Sprintf("%s/%s/%s", phase, fs, as), func(t *testing.T) {
					status, message := Prioritize(marketStatus(phase), authInfo(as), feedMetrics(fs))
					assert.Equal(t, StatusAuthRequired, status)
					assert.NotEmpty(t, message)
				})
			}
		}
	}
}

func TestPrioritize_FeedOnlyMattersWhenDataExpected(t *testing.T) {
	tests := []struct {
		phase market_hours.Phase
		feed  feed.State
		want  PriorityStatus
	}{
		{market_hours.PhaseLive, feed.StateDisconnected, StatusFeedDisconnected},
		{market_hours.PhaseLive, feed.StateStale, StatusMarketSession},
		{market_hours.PhaseLive, feed.StateConnected, StatusMarketSession},
		{market_hours.PhasePreOpen, feed.StateDisconnected, StatusMarketSession},
		{market_hours.PhaseFreeze, feed.StateDisconnected, StatusMarketSession},
		{market_hours.PhaseClosed, feed.StateDisconnected, StatusMarketSession},
		{market_hours.PhaseWeekend, feed.StateDisconnected, StatusMarketSession},
	}

	for _, validState := range []auth.State{auth.StateValid, auth.StateUnknown} {
		for _, tt := range tests {
			t.Run(fmt.Sprintf("%s/%s/%s", validState, tt.phase, tt.feed), func(t *testing.T) {
				status, _ := Prioritize(marketStatus(tt.phase), authInfo(validState), feedMetrics(tt.feed))
				assert.Equal(t, tt.want, status)
			})
		}
	}
}

func TestPrioritize_Messages(t *testing.T) {
	_, msg := Prioritize(marketStatus(market_hours.PhaseLive), authInfo(auth.StateRequired), feedMetrics(feed.StateConnected))
	assert.Contains(t, msg, "no access token")

	_, msg = Prioritize(marketStatus(market_hours.PhaseLive), authInfo(auth.StateExpired), feedMetrics(feed.StateConnected))
	assert.Contains(t, msg, "expired")

	m := feedMetrics(feed.StateDisconnected)
	m.LastTickSecondsAgo = 75
	_, msg = Prioritize(marketStatus(market_hours.PhaseLive), authInfo(auth.StateValid), m)
	assert.Contains(t, msg, "75s ago")

	m.LastTickSecondsAgo = -1
	_, msg = Prioritize(marketStatus(market_hours.PhaseLive), authInfo(auth.StateValid), m)
	assert.Contains(t, msg, "first tick")

	_, msg = Prioritize(marketStatus(market_hours.PhaseLive), authInfo(auth.StateValid), feedMetrics(feed.StateConnected))
	assert.Equal(t, market_hours.PhaseLive.Description(), msg)

	_, msg = Prioritize(marketStatus(market_hours.PhaseWeekend), authInfo(auth.StateValid), feedMetrics(feed.StateConnected))
	assert.Contains(t, msg, "last session data")
}

func marketStatus(phase market_hours.Phase) market_hours.SessionStatus {
	return market_hours.SessionStatus{
		Phase:           phase,
		Description:     phase.Description(),
		IsTradingHours:  phase.IsTrading(),
		ExpectsDataFlow: phase == market_hours.PhaseLive,
	}
}

func authInfo(state auth.State) auth.StateInfo {
	return auth.StateInfo{
		State:         state,
		IsValid:       state == auth.StateValid,
		RequiresLogin: state.RequiresLogin(),
		HasToken:      state != auth.StateRequired,
	}
}

func feedMetrics(state feed.State) feed.HealthMetrics {
	return feed.HealthMetrics{
		State:              state,
		IsHealthy:          state == feed.StateConnected,
		IsStale:            state == feed.StateStale,
		RequiresReconnect:  state == feed.StateDisconnected,
		LastTickSecondsAgo: 5,
	}
}

// End-to-end: a weekday at 09:20 local with a tick 2s ago and a token
// verified a minute ago reports the live session.
type okVerifier struct{ calls int }

func (v *okVerifier) VerifyToken(context.Context, string) error {
	v.calls++
	return nil
}

type staticTokens struct{}

func (staticTokens) Token() (auth.TokenInfo, bool) { return auth.TokenInfo{Token: "tok"}, true }

func TestSummary_EndToEndLiveAt0920(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	session := config.DefaultMarketSession()
	session.PreOpenStart = config.ClockTime{Hour: 9, Minute: 0}
	session.PreOpenEnd = config.ClockTime{Hour: 9, Minute: 15}
	session.MarketOpen = config.ClockTime{Hour: 9, Minute: 15}
	session.MarketClose = config.ClockTime{Hour: 15, Minute: 30}
	sessions := market_hours.NewSessionService(session, log)

	// 2026-10-19 is a Monday
	now := time.Date(2026, 10, 19, 9, 20, 0, 0, session.Location)

	verifier := &okVerifier{}
	tracker := auth.NewTracker(verifier, staticTokens{}, 5*time.Minute, time.Second, log)
	require.True(t, tracker.IsValid(context.Background()))
	require.Equal(t, 1, verifier.calls)

	watchdog := feed.NewWatchdog(sessions, config.FeedConfig{
		StaleAfter:        10 * time.Second,
		DisconnectedAfter: 60 * time.Second,
		QualityWindow:     60 * time.Second,
	}, log, feed.WithClock(func() time.Time { return now.Add(-2 * time.Second) }))
	watchdog.OnTick()

	reporter := NewReporter(sessions, tracker, watchdog, log)
	summary := reporter.Summary(context.Background(), now)

	assert.Equal(t, market_hours.PhaseLive, summary.Market.Phase)
	assert.True(t, summary.Feed.IsHealthy)
	assert.True(t, summary.Auth.IsValid)
	assert.Equal(t, StatusMarketSession, summary.PriorityStatus)
	assert.Equal(t, "Market is live", summary.PriorityMessage)
	assert.Equal(t, 1, verifier.calls, "summary reuses the cached auth check")
}
