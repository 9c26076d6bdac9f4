package schedule

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runs atomic.Int32
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return nil
}

func TestAddJobValidatesSpec(t *testing.T) {
	s := NewCronScheduler()
	require.Error(t, s.AddJob(&countingJob{}, "not a cron spec"))
	require.NoError(t, s.AddJob(&countingJob{}, "0 3 * * *"))
	require.Error(t, s.AddJob(&countingJob{}, "0 4 * * *"))
}

func TestRunNow(t *testing.T) {
	s := NewCronScheduler()
	job := &countingJob{}
	require.NoError(t, s.AddJob(job, "0 3 * * *"))
	require.NoError(t, s.RunNow("counting"))
	require.Equal(t, int32(1), job.runs.Load())
	require.Error(t, s.RunNow("missing"))
}
