package scheduler

import (
	"sort"

	"github.com/aristath/marketpulse/internal/database"
)

// walFramesWarning is the WAL size (in frames) above which a checkpoint is overdue
const walFramesWarning = 1000

// CheckWALCheckpointsJob runs a passive WAL checkpoint on each database and warns when the WAL grows large
type CheckWALCheckpointsJob struct {
	JobBase
	databases []*database.DB
}

// NewCheckWALCheckpointsJob creates a new CheckWALCheckpointsJob.
// Nil databases are ignored.
func NewCheckWALCheckpointsJob(databases ...*database.DB) *CheckWALCheckpointsJob {
	dbs := make([]*database.DB, 0, len(databases))
	for _, db := range databases {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	sort.Slice(dbs, func(i, k int) bool { return dbs[i].Name() < dbs[k].Name() })

	return &CheckWALCheckpointsJob{
		JobBase:   newJobBase(),
		databases: dbs,
	}
}

// Name returns the job name
func (j *CheckWALCheckpointsJob) Name() string {
	return "check_wal_checkpoints"
}

// Run executes the check WAL checkpoints job
func (j *CheckWALCheckpointsJob) Run() error {
	checkedCount := 0
	for _, db := range j.databases {
		// PRAGMA wal_checkpoint returns: busy, log, checkpointed
		var busy, walFrames, checkpointed int
		err := db.Conn().QueryRow("PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &walFrames, &checkpointed)
		if err != nil {
			j.log.Warn().
				Err(err).
				Str("database", db.Name()).
				Msg("Failed to check WAL checkpoint")
			continue
		}

		if walFrames > walFramesWarning {
			j.log.Warn().
				Str("database", db.Name()).
				Int("wal_frames", walFrames).
				Int("checkpointed", checkpointed).
				Msg("WAL file is large, checkpoint may be needed")
		} else {
			j.log.Debug().
				Str("database", db.Name()).
				Int("wal_frames", walFrames).
				Msg("WAL checkpoint status OK")
		}

		checkedCount++
	}

	j.log.Debug().
		Int("checked", checkedCount).
		Msg("WAL checkpoint check completed")

	return nil
}
