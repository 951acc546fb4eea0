package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// defaultJobTimeout bounds a single run of jobs that talk to the network
const defaultJobTimeout = 30 * time.Second

// JobBase provides the logger and run timeout shared by all jobs.
// Jobs embed it and get SetLogger for free.
type JobBase struct {
	log     zerolog.Logger
	timeout time.Duration
}

// SetLogger sets the logger for the job
func (j *JobBase) SetLogger(log zerolog.Logger) {
	j.log = log
}

// SetTimeout overrides the per-run timeout
func (j *JobBase) SetTimeout(timeout time.Duration) {
	j.timeout = timeout
}

// runContext returns a context bounded by the job timeout
func (j *JobBase) runContext() (context.Context, context.CancelFunc) {
	timeout := j.timeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	return context.WithTimeout(context.Background(), timeout)
}

func newJobBase() JobBase {
	return JobBase{log: zerolog.Nop()}
}
