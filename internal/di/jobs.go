package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/marketpulse/internal/config"
	"github.com/aristath/marketpulse/internal/scheduler"
)

// walCheckSchedule runs the WAL check every 30 minutes
const walCheckSchedule = "0 */30 * * * *"

// loggedJob is a scheduler.Job that accepts a logger
type loggedJob interface {
	scheduler.Job
	SetLogger(log zerolog.Logger)
}

// RegisterJobs creates the scheduler and registers every background job.
// Jobs are also kept by name for manual triggering via the API.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.Scheduler = scheduler.New(log)
	container.Jobs = make(map[string]scheduler.Job)

	register := func(schedule string, job loggedJob) error {
		job.SetLogger(log.With().Str("job", job.Name()).Logger())
		if err := container.Scheduler.AddJob(schedule, job); err != nil {
			return fmt.Errorf("failed to register %s: %w", job.Name(), err)
		}
		container.Jobs[job.Name()] = job
		return nil
	}

	if err := register(cfg.Jobs.QuotePoll, scheduler.NewQuotePollJob(container.MarketDataService)); err != nil {
		return err
	}
	if err := register(cfg.Jobs.AuthCheck, scheduler.NewAuthCheckJob(container.AuthTracker)); err != nil {
		return err
	}
	if err := register(cfg.Jobs.CacheBackup, scheduler.NewCacheBackupJob(container.CacheStore, container.BackupRepo)); err != nil {
		return err
	}
	if err := register(walCheckSchedule, scheduler.NewCheckWALCheckpointsJob(container.CacheDB, container.ConfigDB)); err != nil {
		return err
	}
	if container.SnapshotExporter != nil {
		if err := register(cfg.Jobs.Snapshot, scheduler.NewSnapshotJob(container.SnapshotExporter)); err != nil {
			return err
		}
	}

	log.Info().Int("jobs", len(container.Jobs)).Msg("Jobs registered")
	return nil
}
