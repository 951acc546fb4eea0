package scheduler

import "fmt"

// SnapshotJob uploads a point-in-time copy of the market data cache
type SnapshotJob struct {
	JobBase
	exporter SnapshotExporter
}

// NewSnapshotJob creates a new SnapshotJob
func NewSnapshotJob(exporter SnapshotExporter) *SnapshotJob {
	j := &SnapshotJob{
		JobBase:  newJobBase(),
		exporter: exporter,
	}
	j.SetTimeout(2 * defaultJobTimeout)
	return j
}

// Name returns the job name
func (j *SnapshotJob) Name() string {
	return "cache_snapshot"
}

// Run executes the export
func (j *SnapshotJob) Run() error {
	ctx, cancel := j.runContext()
	defer cancel()

	key, err := j.exporter.Export(ctx)
	if err != nil {
		return fmt.Errorf("failed to export cache snapshot: %w", err)
	}
	if key == "" {
		j.log.Debug().Msg("Cache empty, no snapshot uploaded")
		return nil
	}

	j.log.Info().Str("key", key).Msg("Cache snapshot uploaded")
	return nil
}
