package feed

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketpulse/internal/config"
)

// SessionGate reports whether ticks are expected at a given instant
// (implemented by market_hours.SessionService)
type SessionGate interface {
	ExpectsDataFlow(now time.Time) bool
}

// Watchdog classifies the feed as CONNECTED, STALE or DISCONNECTED.
// OnTick and OnReconnect are called by the tick producer; everything else is
// derived on read.
type Watchdog struct {
	session           SessionGate
	staleAfter        time.Duration
	disconnectedAfter time.Duration
	now               func() time.Time
	log               zerolog.Logger

	mu              sync.Mutex
	startedAt       time.Time
	lastTick        time.Time
	totalTicks      int64
	totalReconnects int64
	// seconds[i] holds the unix second of the last tick that fell in slot i
	seconds []int64
}

// Option configures a Watchdog at construction
type Option func(*Watchdog)

// WithClock sets the time source used for ticks and uptime
func WithClock(now func() time.Time) Option {
	return func(w *Watchdog) {
		w.now = now
	}
}

// NewWatchdog creates a new feed watchdog
func NewWatchdog(session SessionGate, cfg config.FeedConfig, log zerolog.Logger, opts ...Option) *Watchdog {
	window := int(cfg.QualityWindow / time.Second)
	if window <= 0 {
		window = 60
	}

	w := &Watchdog{
		session:           session,
		staleAfter:        cfg.StaleAfter,
		disconnectedAfter: cfg.DisconnectedAfter,
		now:               time.Now,
		log:               log.With().Str("component", "feed_watchdog").Logger(),
		seconds:           make([]int64, window),
	}
	for i := range w.seconds {
		w.seconds[i] = -1
	}
	for _, opt := range opts {
		opt(w)
	}
	w.startedAt = w.now()
	return w
}

// OnTick records one inbound tick
func (w *Watchdog) OnTick() {
	now := w.now()
	sec := now.Unix()

	w.mu.Lock()
	w.lastTick = now
	w.totalTicks++
	w.seconds[sec%int64(len(w.seconds))] = sec
	w.mu.Unlock()
}

// OnReconnect records one successful reconnect
func (w *Watchdog) OnReconnect() {
	w.mu.Lock()
	w.totalReconnects++
	total := w.totalReconnects
	w.mu.Unlock()

	w.log.Info().Int64("total_reconnects", total).Msg("Feed reconnected")
}

// GetHealthMetrics derives the feed state at now.
// Outside data-flow phases missing ticks are not unhealthy: the state is
// CONNECTED with MarketIdle set.
func (w *Watchdog) GetHealthMetrics(now time.Time) HealthMetrics {
	expecting := w.session.ExpectsDataFlow(now)

	w.mu.Lock()
	defer w.mu.Unlock()

	m := HealthMetrics{
		State:              StateConnected,
		MarketIdle:         !expecting,
		LastTickSecondsAgo: -1,
		UptimeMinutes:      round(now.Sub(w.startedAt).Minutes(), 1),
		TotalTicks:         w.totalTicks,
		TotalReconnects:    w.totalReconnects,
		ConnectionQuality:  100,
	}

	reference := w.startedAt
	if !w.lastTick.IsZero() {
		last := w.lastTick
		m.LastTickAt = &last
		m.LastTickSecondsAgo = round(now.Sub(last).Seconds(), 1)
		reference = last
	}

	if expecting {
		elapsed := now.Sub(reference)
		switch {
		case elapsed > w.disconnectedAfter:
			m.State = StateDisconnected
		case elapsed > w.staleAfter:
			m.State = StateStale
		}
		m.ConnectionQuality = w.qualityLocked(now)
	}

	m.IsHealthy = m.State == StateConnected
	m.IsStale = m.State == StateStale
	m.RequiresReconnect = m.State == StateDisconnected
	return m
}

// IsHealthy reports whether the feed is CONNECTED at now
func (w *Watchdog) IsHealthy(now time.Time) bool {
	return w.GetHealthMetrics(now).IsHealthy
}

// IsStale reports whether the feed is STALE at now
func (w *Watchdog) IsStale(now time.Time) bool {
	return w.GetHealthMetrics(now).IsStale
}

// RequiresReconnect reports whether the feed is DISCONNECTED at now
func (w *Watchdog) RequiresReconnect(now time.Time) bool {
	return w.GetHealthMetrics(now).RequiresReconnect
}

// qualityLocked is the percentage of completed seconds in the trailing window
// (capped at the watchdog's age) that carried at least one tick.
func (w *Watchdog) qualityLocked(now time.Time) float64 {
	nowSec := now.Unix()
	span := int64(len(w.seconds))
	if age := nowSec - w.startedAt.Unix(); age < span {
		span = age
	}
	if span <= 0 {
		if w.totalTicks > 0 {
			return 100
		}
		return 0
	}

	size := int64(len(w.seconds))
	hits := 0
	for s := nowSec - span; s < nowSec; s++ {
		if w.seconds[s%size] == s {
			hits++
		}
	}
	return round(float64(hits)/float64(span)*100, 1)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
