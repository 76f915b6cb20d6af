package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumtrade/quorum/pkg/logger"
)

type stubJob struct {
	name     string
	schedule string
	ran      chan struct{}
}

func newStubJob(name string) *stubJob {
	return &stubJob{
		name:     name,
		schedule: "0 0 0 1 1 *",
		ran:      make(chan struct{}, 8),
	}
}

func (j *stubJob) Name() string     { return j.name }
func (j *stubJob) Schedule() string { return j.schedule }

func (j *stubJob) Run(ctx context.Context) error {
	j.ran <- struct{}{}
	return nil
}

func TestAddJobRejectsDuplicates(t *testing.T) {
	s := New(logger.NewNop())

	require.NoError(t, s.AddJob(newStubJob("collect")))
	err := s.AddJob(newStubJob("collect"))
	assert.ErrorContains(t, err, "already exists")
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := New(logger.NewNop())

	job := newStubJob("broken")
	job.schedule = "not a schedule"
	assert.Error(t, s.AddJob(job))
}

func TestRunJobExecutesImmediately(t *testing.T) {
	s := New(logger.NewNop())

	job := newStubJob("decision")
	require.NoError(t, s.AddJob(job))
	require.NoError(t, s.RunJob("decision"))

	select {
	case <-job.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestRunJobSyncReturnsResult(t *testing.T) {
	s := New(logger.NewNop())

	job := newStubJob("decision")
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJobSync("decision")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "decision", result.JobName)
}

type failingJob struct{ *stubJob }

func (j *failingJob) Run(ctx context.Context) error {
	return errors.New("provider down")
}

func TestRunJobSyncRetriesThenFails(t *testing.T) {
	s := New(logger.NewNop())
	s.retryDelay = 0

	job := &failingJob{newStubJob("flaky")}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJobSync("flaky")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "provider down", result.Error)

	stats := s.GetJobStats()
	assert.Equal(t, 1, stats["flaky"].FailureCount)
	assert.NotNil(t, stats["flaky"].LastFailure)
}

func TestRunJobUnknownName(t *testing.T) {
	s := New(logger.NewNop())

	assert.ErrorContains(t, s.RunJob("ghost"), "not found")
}

func TestJobHistoryRecordsResults(t *testing.T) {
	s := New(logger.NewNop())

	job := newStubJob("decision")
	require.NoError(t, s.AddJob(job))
	s.runJob(job)

	history, err := s.GetJobHistory("decision")
	require.NoError(t, err)
	require.Len(t, history.Results, 1)
	assert.True(t, history.Results[0].Success)
	assert.InDelta(t, 1.0, history.GetSuccessRate(), 1e-9)

	stats := s.GetJobStats()
	require.Contains(t, stats, "decision")
	assert.Equal(t, 1, stats["decision"].TotalRuns)
	assert.Equal(t, 1, stats["decision"].SuccessCount)
	assert.NotNil(t, stats["decision"].LastSuccess)
}

func TestJobHistoryCapsResults(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < 150; i++ {
		h.AddResult(JobResult{JobName: "decision", Success: true})
	}
	assert.Len(t, h.Results, 100)
	assert.Len(t, h.GetLatestResults(10), 10)
	assert.Empty(t, h.GetFailedResults())
}
