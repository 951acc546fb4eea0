package health

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketpulse/internal/events"
	"github.com/aristath/marketpulse/internal/modules/auth"
	"github.com/aristath/marketpulse/internal/modules/feed"
	"github.com/aristath/marketpulse/internal/modules/market_hours"
)

type fakeSession struct{ phase market_hours.Phase }

func (f *fakeSession) GetStatus(time.Time) market_hours.SessionStatus { return marketStatus(f.phase) }

type fakeAuth struct{ state auth.State }

func (f *fakeAuth) IsValid(context.Context) bool { return f.state == auth.StateValid }
func (f *fakeAuth) GetStateInfo() auth.StateInfo { return authInfo(f.state) }

type fakeFeed struct{ state feed.State }

func (f *fakeFeed) GetHealthMetrics(time.Time) feed.HealthMetrics { return feedMetrics(f.state) }

type recordingEmitter struct {
	mu     sync.Mutex
	events []events.EventData
}

func (e *recordingEmitter) EmitTyped(module string, data events.EventData) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, data)
}

func (e *recordingEmitter) ofType(t events.EventType) []events.EventData {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []events.EventData
	for _, ev := range e.events {
		if ev.EventType() == t {
			out = append(out, ev)
		}
	}
	return out
}

func TestStatusMonitor_EmitsOnlyOnChange(t *testing.T) {
	session := &fakeSession{phase: market_hours.PhaseLive}
	authSource := &fakeAuth{state: auth.StateValid}
	feedSource := &fakeFeed{state: feed.StateConnected}
	emitter := &recordingEmitter{}
	log := zerolog.New(nil).Level(zerolog.Disabled)

	monitor := NewStatusMonitor(NewReporter(session, authSource, feedSource, log), emitter, time.Second, log)
	ctx := context.Background()

	monitor.Check(ctx)
	monitor.Check(ctx)
	require.Len(t, emitter.ofType(events.HealthStatusChanged), 1)
	require.Len(t, emitter.ofType(events.FeedStateChanged), 1)

	feedSource.state = feed.StateDisconnected
	summary := monitor.Check(ctx)
	assert.Equal(t, StatusFeedDisconnected, summary.PriorityStatus)

	authSource.state = auth.StateExpired
	monitor.Check(ctx)
	monitor.Check(ctx)

	health := emitter.ofType(events.HealthStatusChanged)
	require.Len(t, health, 3)
	last := health[2].(*events.HealthStatusChangedData)
	assert.Equal(t, "AUTH_REQUIRED", last.PriorityStatus)
	assert.Equal(t, "FEED_DISCONNECTED", last.PreviousPriority)

	feedChanges := emitter.ofType(events.FeedStateChanged)
	require.Len(t, feedChanges, 2)
	assert.Equal(t, "DISCONNECTED", feedChanges[1].(*events.FeedStateChangedData).State)
}

func TestStatusMonitor_StartStop(t *testing.T) {
	emitter := &recordingEmitter{}
	log := zerolog.New(nil).Level(zerolog.Disabled)
	reporter := NewReporter(&fakeSession{phase: market_hours.PhaseClosed}, &fakeAuth{state: auth.StateValid},
		&fakeFeed{state: feed.StateConnected}, log)
	monitor := NewStatusMonitor(reporter, emitter, 10*time.Millisecond, log)

	monitor.Start()
	monitor.Start()
	require.Eventually(t, func() bool {
		return len(emitter.ofType(events.HealthStatusChanged)) == 1
	}, time.Second, 5*time.Millisecond)
	monitor.Stop()
	monitor.Stop()
}
