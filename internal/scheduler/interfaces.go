package scheduler

import (
	"context"
	"time"

	"github.com/aristath/marketpulse/internal/cache"
	"github.com/aristath/marketpulse/internal/modules/market_data"
)

// QuotePoller is implemented by market_data.Service
type QuotePoller interface {
	Poll(ctx context.Context) (market_data.PollResult, error)
}

// AuthChecker is implemented by auth.Tracker
type AuthChecker interface {
	IsValid(ctx context.Context) bool
}

// BackupRepository is implemented by cache.BackupRepository
type BackupRepository interface {
	SaveBackups(store *cache.Store) (int, error)
	DeleteExpired(now time.Time) (int64, error)
}

// SnapshotExporter is implemented by reliability.SnapshotExporter
type SnapshotExporter interface {
	Export(ctx context.Context) (string, error)
}
