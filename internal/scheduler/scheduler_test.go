package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansel67/stock-analyzer/pkg/logger"
)

type fakeJob struct {
	name     string
	schedule string
	failures int32 // 처음 N번 실패
	calls    int32
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return j.schedule }

func (j *fakeJob) Run(ctx context.Context) error {
	n := atomic.AddInt32(&j.calls, 1)
	if n <= atomic.LoadInt32(&j.failures) {
		return errors.New("transient")
	}
	return nil
}

type jobCounter struct {
	mu     sync.Mutex
	ok     int
	failed int
}

func (c *jobCounter) ObserveJob(job string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.failed++
		return
	}
	c.ok++
}

func newTestScheduler(opts ...Option) *Scheduler {
	opts = append([]Option{WithRetry(2, time.Millisecond)}, opts...)
	return New(logger.Nop(), opts...)
}

func TestAddJob(t *testing.T) {
	s := newTestScheduler()

	require.NoError(t, s.AddJob(&fakeJob{name: "b", schedule: "@every 1h"}))
	require.NoError(t, s.AddJob(&fakeJob{name: "a", schedule: "0 30 22 * * 1-5"}))

	err := s.AddJob(&fakeJob{name: "a", schedule: "@daily"})
	assert.Error(t, err, "duplicate names are rejected")

	err = s.AddJob(&fakeJob{name: "bad", schedule: "not a schedule"})
	assert.Error(t, err)

	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())
}

func TestRunJob_RetriesUntilSuccess(t *testing.T) {
	counter := &jobCounter{}
	s := newTestScheduler(WithObserver(counter))
	job := &fakeJob{name: "flaky", schedule: "@daily", failures: 2}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJob(context.Background(), "flaky")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, int32(3), atomic.LoadInt32(&job.calls))
	assert.Equal(t, 1, counter.ok)
	assert.Equal(t, 0, counter.failed)
}

func TestRunJob_FailsAfterRetries(t *testing.T) {
	counter := &jobCounter{}
	s := newTestScheduler(WithObserver(counter))
	require.NoError(t, s.AddJob(&fakeJob{name: "broken", schedule: "@daily", failures: 100}))

	result, err := s.RunJob(context.Background(), "broken")
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 3, result.Attempts, "one run plus two retries")
	assert.Equal(t, "transient", result.Error)
	assert.Equal(t, 1, counter.failed)

	history, err := s.GetJobHistory("broken")
	require.NoError(t, err)
	require.Len(t, history, 1)

	stats := s.GetJobStats()["broken"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.FailureCount)
	assert.Equal(t, 0.0, stats.SuccessRate)
	assert.NotNil(t, stats.LastFailure)
	assert.Nil(t, stats.LastSuccess)
}

func TestRunJob_CancelledContextStopsRetrying(t *testing.T) {
	s := New(logger.Nop(), WithRetry(5, time.Hour))
	job := &fakeJob{name: "slow", schedule: "@daily", failures: 100}
	require.NoError(t, s.AddJob(job))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := s.RunJob(ctx, "slow")
	require.Error(t, err)
	assert.Equal(t, 1, result.Attempts)
	assert.Contains(t, result.Error, context.Canceled.Error())
}

func TestRunJob_Unknown(t *testing.T) {
	s := newTestScheduler()
	_, err := s.RunJob(context.Background(), "missing")
	assert.Error(t, err)
}

func TestRemoveJob(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.AddJob(&fakeJob{name: "x", schedule: "@daily"}))

	require.NoError(t, s.RemoveJob("x"))
	assert.Empty(t, s.GetAllJobs())
	assert.Error(t, s.RemoveJob("x"))

	// 같은 이름으로 다시 등록 가능
	require.NoError(t, s.AddJob(&fakeJob{name: "x", schedule: "@daily"}))
}

func TestJobHistory_Bounded(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < maxHistory+20; i++ {
		h.AddResult(JobResult{JobName: "x", Success: i%2 == 0})
	}
	assert.Len(t, h.Results, maxHistory)
	assert.Len(t, h.GetLatestResults(5), 5)
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 1e-12)
	assert.Len(t, h.GetFailedResults(), maxHistory/2)
}

func TestStartStop(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.AddJob(&fakeJob{name: "x", schedule: "@every 1h"}))

	s.Start()
	stats := s.GetJobStats()["x"]
	s.Stop()

	require.NotNil(t, stats.NextRun)
	assert.True(t, stats.NextRun.After(time.Now()))
}
