package health

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketpulse/internal/events"
	"github.com/aristath/marketpulse/internal/modules/feed"
)

// EventEmitter is implemented by events.Manager
type EventEmitter interface {
	EmitTyped(module string, data events.EventData)
}

// StatusMonitor periodically rebuilds the summary and emits events when the
// priority status or the feed state changes.
type StatusMonitor struct {
	reporter *Reporter
	emitter  EventEmitter
	interval time.Duration
	now      func() time.Time
	log      zerolog.Logger

	lastPriority PriorityStatus
	lastFeed     feed.State

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewStatusMonitor creates a new status monitor
func NewStatusMonitor(reporter *Reporter, emitter EventEmitter, interval time.Duration, log zerolog.Logger) *StatusMonitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &StatusMonitor{
		reporter: reporter,
		emitter:  emitter,
		interval: interval,
		now:      time.Now,
		log:      log.With().Str("component", "status_monitor").Logger(),
	}
}

// Start begins periodic status monitoring
func (m *StatusMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.monitor(ctx, m.done)
}

// Stop ends monitoring and waits for the loop to exit
func (m *StatusMonitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *StatusMonitor) monitor(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check builds one summary and emits on changes. It is not safe for
// concurrent use; the monitor loop is its only caller outside tests.
func (m *StatusMonitor) Check(ctx context.Context) Summary {
	summary := m.reporter.Summary(ctx, m.now())

	if summary.PriorityStatus != m.lastPriority {
		m.log.Info().
			Str("priority_status", string(summary.PriorityStatus)).
			Str("previous", string(m.lastPriority)).
			Msg("Health status changed")
		m.emitter.EmitTyped("health", &events.HealthStatusChangedData{
			PriorityStatus:   string(summary.PriorityStatus),
			PriorityMessage:  summary.PriorityMessage,
			PreviousPriority: string(m.lastPriority),
		})
		m.lastPriority = summary.PriorityStatus
	}

	if summary.Feed.State != m.lastFeed {
		if m.lastFeed != "" {
			m.log.Warn().
				Str("state", string(summary.Feed.State)).
				Str("previous", string(m.lastFeed)).
				Msg("Feed state changed")
		}
		m.emitter.EmitTyped("feed", &events.FeedStateChangedData{
			State:         string(summary.Feed.State),
			PreviousState: string(m.lastFeed),
		})
		m.lastFeed = summary.Feed.State
	}

	return summary
}
