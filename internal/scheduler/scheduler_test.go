package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/investscope/pkg/logger"
)

type countingJob struct {
	name     string
	schedule string
	failures int32
	calls    atomic.Int32
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return j.schedule }

func (j *countingJob) Run(ctx context.Context) error {
	n := j.calls.Add(1)
	if n <= j.failures {
		return errors.New("boom")
	}
	return nil
}

func newJob(name string, failures int32) *countingJob {
	return &countingJob{name: name, schedule: "0 0 6 * * *", failures: failures}
}

func waitIdle(t *testing.T, s *Scheduler, name string) JobStats {
	t.Helper()
	var out JobStats
	require.Eventually(t, func() bool {
		for _, st := range s.Stats() {
			if st.JobName == name && !st.Running && st.TotalRuns > 0 {
				out = st
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
	return out
}

func TestAddJob(t *testing.T) {
	s := New(logger.Nop())

	require.NoError(t, s.AddJob(newJob("a", 0)))
	assert.Error(t, s.AddJob(newJob("a", 0)), "duplicate name")

	bad := newJob("b", 0)
	bad.schedule = "every day"
	assert.Error(t, s.AddJob(bad))

	stats := s.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, "a", stats[0].JobName)
	assert.Zero(t, stats[0].TotalRuns)
}

func TestRunJobRetries(t *testing.T) {
	tests := []struct {
		name        string
		failures    int32
		wantSuccess bool
		wantCalls   int32
	}{
		{"first try", 0, true, 1},
		{"succeeds on retry", 2, true, 3},
		{"exhausted", 5, false, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(logger.Nop(), WithRetry(2, time.Millisecond))
			job := newJob("job", tt.failures)
			require.NoError(t, s.AddJob(job))

			require.NoError(t, s.RunJob("job"))
			st := waitIdle(t, s, "job")

			assert.Equal(t, tt.wantCalls, job.calls.Load())
			h, err := s.History("job")
			require.NoError(t, err)
			last, ok := h.Last()
			require.True(t, ok)
			assert.Equal(t, tt.wantSuccess, last.Success)
			assert.Equal(t, int(tt.wantCalls), last.Attempts)
			if tt.wantSuccess {
				assert.Empty(t, st.LastError)
				assert.Equal(t, 1.0, st.SuccessRate)
			} else {
				assert.Equal(t, "boom", st.LastError)
			}
		})
	}
}

func TestRunJobUnknown(t *testing.T) {
	s := New(logger.Nop())
	assert.Error(t, s.RunJob("missing"))
	_, err := s.History("missing")
	assert.Error(t, err)
}

type blockingJob struct {
	started chan struct{}
	calls   atomic.Int32
}

func (j *blockingJob) Name() string     { return "blocking" }
func (j *blockingJob) Schedule() string { return "0 0 * * * *" }

func (j *blockingJob) Run(ctx context.Context) error {
	j.calls.Add(1)
	close(j.started)
	<-ctx.Done()
	return ctx.Err()
}

func TestOverlappingRunSkippedAndStopCancels(t *testing.T) {
	s := New(logger.Nop(), WithRetry(0, 0))
	job := &blockingJob{started: make(chan struct{})}
	require.NoError(t, s.AddJob(job))
	s.Start()

	require.NoError(t, s.RunJob("blocking"))
	<-job.started
	require.NoError(t, s.RunJob("blocking"))

	s.Stop()
	assert.Equal(t, int32(1), job.calls.Load())

	h, err := s.History("blocking")
	require.NoError(t, err)
	require.Len(t, h.Results, 1)
	assert.False(t, h.Results[0].Success)
}

func TestJobHistoryBounded(t *testing.T) {
	var h JobHistory
	for i := 0; i < historyLimit+10; i++ {
		h.add(JobResult{Success: i%2 == 0})
	}
	assert.Len(t, h.Results, historyLimit)
	assert.InDelta(t, 0.5, h.SuccessRate(), 1e-9)

	var empty JobHistory
	_, ok := empty.Last()
	assert.False(t, ok)
	assert.Zero(t, empty.SuccessRate())
}
