// Package health combines market session, auth and feed state into a single
// priority-ordered status for the dashboard.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketpulse/internal/modules/auth"
	"github.com/aristath/marketpulse/internal/modules/feed"
	"github.com/aristath/marketpulse/internal/modules/market_hours"
)

// PriorityStatus is the single status shown to the user
type PriorityStatus string

const (
	StatusAuthRequired     PriorityStatus = "AUTH_REQUIRED"
	StatusFeedDisconnected PriorityStatus = "FEED_DISCONNECTED"
	StatusMarketSession    PriorityStatus = "MARKET_SESSION"
)

// SessionSource is implemented by market_hours.SessionService
type SessionSource interface {
	GetStatus(now time.Time) market_hours.SessionStatus
}

// AuthSource is implemented by auth.Tracker
type AuthSource interface {
	IsValid(ctx context.Context) bool
	GetStateInfo() auth.StateInfo
}

// FeedSource is implemented by feed.Watchdog
type FeedSource interface {
	GetHealthMetrics(now time.Time) feed.HealthMetrics
}

// Summary is the aggregate health response
type Summary struct {
	PriorityStatus  PriorityStatus             `json:"priority_status"`
	PriorityMessage string                     `json:"priority_message"`
	Market          market_hours.SessionStatus `json:"market"`
	Auth            auth.StateInfo             `json:"auth"`
	Feed            feed.HealthMetrics         `json:"feed"`
	Timestamp       time.Time                  `json:"timestamp"`
}

// Reporter builds Summaries. It holds no state of its own.
type Reporter struct {
	session SessionSource
	auth    AuthSource
	feed    FeedSource
	log     zerolog.Logger
}

// NewReporter creates a new health reporter
func NewReporter(session SessionSource, authSource AuthSource, feedSource FeedSource, log zerolog.Logger) *Reporter {
	return &Reporter{
		session: session,
		auth:    authSource,
		feed:    feedSource,
		log:     log.With().Str("component", "health_reporter").Logger(),
	}
}

// Summary queries the three trackers at now. The auth check is the tracker's
// cached one, so this verifies against the broker at most once per interval.
func (r *Reporter) Summary(ctx context.Context, now time.Time) Summary {
	r.auth.IsValid(ctx)

	s := Summary{
		Market:    r.session.GetStatus(now),
		Auth:      r.auth.GetStateInfo(),
		Feed:      r.feed.GetHealthMetrics(now),
		Timestamp: now,
	}
	s.PriorityStatus, s.PriorityMessage = Prioritize(s.Market, s.Auth, s.Feed)
	return s
}

// Prioritize applies the fixed priority order:
// login required, then a dead feed while data is expected, then the session itself.
func Prioritize(market market_hours.SessionStatus, authInfo auth.StateInfo, feedMetrics feed.HealthMetrics) (PriorityStatus, string) {
	if authInfo.RequiresLogin {
		if authInfo.State == auth.StateRequired {
			return StatusAuthRequired, "Broker login required: no access token configured"
		}
		return StatusAuthRequired, "Broker session expired, please log in again"
	}

	if feedMetrics.RequiresReconnect && market.ExpectsDataFlow {
		if feedMetrics.LastTickSecondsAgo < 0 {
			return StatusFeedDisconnected, "Live feed disconnected, waiting for first tick"
		}
		return StatusFeedDisconnected, fmt.Sprintf("Live feed disconnected, reconnecting (last tick %.0fs ago)",
			feedMetrics.LastTickSecondsAgo)
	}

	message := market.Description
	if !market.IsTradingHours {
		message += ", showing last session data"
	}
	return StatusMarketSession, message
}
