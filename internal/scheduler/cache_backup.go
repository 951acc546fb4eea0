package scheduler

import (
	"fmt"
	"time"

	"github.com/aristath/marketpulse/internal/cache"
)

// CacheBackupJob persists backup slots to cache.db and prunes expired rows
type CacheBackupJob struct {
	JobBase
	store *cache.Store
	repo  BackupRepository
	now   func() time.Time
}

// NewCacheBackupJob creates a new CacheBackupJob
func NewCacheBackupJob(store *cache.Store, repo BackupRepository) *CacheBackupJob {
	return &CacheBackupJob{
		JobBase: newJobBase(),
		store:   store,
		repo:    repo,
		now:     time.Now,
	}
}

// Name returns the job name
func (j *CacheBackupJob) Name() string {
	return "cache_backup"
}

// Run executes the backup
func (j *CacheBackupJob) Run() error {
	saved, err := j.repo.SaveBackups(j.store)
	if err != nil {
		return fmt.Errorf("failed to save cache backups: %w", err)
	}

	deleted, err := j.repo.DeleteExpired(j.now())
	if err != nil {
		return fmt.Errorf("failed to prune cache backups: %w", err)
	}

	j.log.Debug().
		Int("saved", saved).
		Int64("deleted", deleted).
		Msg("Cache backup completed")
	return nil
}
