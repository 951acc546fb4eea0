package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name  string
	runs  int32
	block chan struct{}
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run() error {
	atomic.AddInt32(&j.runs, 1)
	if j.block != nil {
		<-j.block
	}
	return nil
}

type panickingJob struct {
	runs int32
}

func (j *panickingJob) Name() string { return "panics" }

func (j *panickingJob) Run() error {
	atomic.AddInt32(&j.runs, 1)
	panic("boom")
}

func newTestScheduler() *Scheduler {
	return New(zerolog.New(nil).Level(zerolog.Disabled))
}

func TestAddJob_RejectsInvalidSchedule(t *testing.T) {
	s := newTestScheduler()
	err := s.AddJob("every now and then", &countingJob{name: "bad"})
	assert.Error(t, err)
	assert.Empty(t, s.Jobs())
}

func TestAddJob_RejectsDuplicateName(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.AddJob("@every 1h", &countingJob{name: "quote_poll"}))
	assert.Error(t, s.AddJob("@every 1m", &countingJob{name: "quote_poll"}))
	assert.Equal(t, []string{"quote_poll"}, s.Jobs())
}

func TestScheduler_RunsJobsOnSchedule(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "tick"}
	require.NoError(t, s.AddJob("* * * * * *", job))

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&job.runs) >= 1
	}, 3*time.Second, 20*time.Millisecond)
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "slow", block: make(chan struct{})}
	require.NoError(t, s.AddJob("* * * * * *", job))

	s.Start()
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&job.runs) == 1
	}, 3*time.Second, 20*time.Millisecond)

	// Two more activations pass while the first run is blocked
	time.Sleep(2200 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&job.runs))

	close(job.block)
	s.Stop()
}

func TestScheduler_RecoversPanickingJob(t *testing.T) {
	s := newTestScheduler()
	job := &panickingJob{}
	require.NoError(t, s.AddJob("* * * * * *", job))

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&job.runs) >= 2
	}, 4*time.Second, 20*time.Millisecond)
}

func TestScheduler_StartStopIdempotent(t *testing.T) {
	s := newTestScheduler()
	s.Stop()
	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
}

func TestRunNow(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "manual"}
	require.NoError(t, s.RunNow(job))
	assert.Equal(t, int32(1), atomic.LoadInt32(&job.runs))
}
