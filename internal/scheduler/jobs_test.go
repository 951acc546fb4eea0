package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketpulse/internal/cache"
	"github.com/aristath/marketpulse/internal/modules/market_data"
	testingpkg "github.com/aristath/marketpulse/internal/testing"
)

type fakePoller struct {
	result      market_data.PollResult
	err         error
	calls       int
	hasDeadline bool
}

func (f *fakePoller) Poll(ctx context.Context) (market_data.PollResult, error) {
	f.calls++
	_, f.hasDeadline = ctx.Deadline()
	return f.result, f.err
}

func TestQuotePollJob_Run(t *testing.T) {
	tests := []struct {
		name    string
		result  market_data.PollResult
		err     error
		wantErr bool
	}{
		{"polled", market_data.PollResult{Symbols: []string{"NSE:NIFTY 50"}, OptionsOK: 1}, nil, false},
		{"skipped outside trading hours", market_data.PollResult{Skipped: true, Reason: "outside trading hours"}, nil, false},
		{"option chain failures are not job failures", market_data.PollResult{Symbols: []string{"NSE:NIFTY 50"}, OptionsErr: 2}, nil, false},
		{"quote failure fails the run", market_data.PollResult{}, errors.New("quote poll failed"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			poller := &fakePoller{result: tt.result, err: tt.err}
			job := NewQuotePollJob(poller)
			job.SetLogger(zerolog.New(nil).Level(zerolog.Disabled))

			err := job.Run()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, 1, poller.calls)
			assert.True(t, poller.hasDeadline)
		})
	}
	assert.Equal(t, "quote_poll", NewQuotePollJob(nil).Name())
}

type fakeChecker struct {
	calls int
}

func (f *fakeChecker) IsValid(ctx context.Context) bool {
	f.calls++
	return false
}

func TestAuthCheckJob_Run(t *testing.T) {
	checker := &fakeChecker{}
	job := NewAuthCheckJob(checker)

	// An invalid session is a state, not a job failure
	assert.NoError(t, job.Run())
	assert.Equal(t, 1, checker.calls)
	assert.Equal(t, "auth_check", job.Name())
}

func TestCacheBackupJob_Run(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "cache")
	defer cleanup()

	log := zerolog.New(nil).Level(zerolog.Disabled)
	store := cache.NewStore(time.Minute, time.Hour, log)
	require.NoError(t, store.SetMarketData("NSE:NIFTY 50", cache.Payload{"last_price": 24812.35}))

	repo := cache.NewBackupRepository(db.Conn(), log)
	job := NewCacheBackupJob(store, repo)
	job.SetLogger(log)
	require.NoError(t, job.Run())

	restored := cache.NewStore(time.Minute, time.Hour, log)
	n, err := repo.RestoreBackups(restored)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	payload, ok := restored.GetMarketData("NSE:NIFTY 50")
	require.True(t, ok)
	assert.Equal(t, 24812.35, payload["last_price"])
	assert.Equal(t, true, payload[cache.FieldIsCached])

	// Two hours later every row is past its TTL and gets pruned
	job.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	require.NoError(t, job.Run())
	var rows int
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM market_backup").Scan(&rows))
	assert.Equal(t, 0, rows)
}

type failingRepo struct{}

func (failingRepo) SaveBackups(*cache.Store) (int, error)  { return 0, errors.New("disk full") }
func (failingRepo) DeleteExpired(time.Time) (int64, error) { return 0, nil }

func TestCacheBackupJob_SaveFailure(t *testing.T) {
	store := cache.NewStore(time.Minute, time.Hour, zerolog.New(nil).Level(zerolog.Disabled))
	err := NewCacheBackupJob(store, failingRepo{}).Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

type fakeExporter struct {
	key string
	err error
}

func (f fakeExporter) Export(ctx context.Context) (string, error) { return f.key, f.err }

func TestSnapshotJob_Run(t *testing.T) {
	assert.NoError(t, NewSnapshotJob(fakeExporter{key: "snapshots/2026-10-19/1760851200.msgpack"}).Run())
	assert.NoError(t, NewSnapshotJob(fakeExporter{}).Run())
	assert.Error(t, NewSnapshotJob(fakeExporter{err: errors.New("access denied")}).Run())
	assert.Equal(t, "cache_snapshot", NewSnapshotJob(nil).Name())
}
