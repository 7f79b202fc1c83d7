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
	count atomic.Int32
	err   error
}

func (j *countingJob) Name() string { return j.name }
func (j *countingJob) Run() error {
	j.count.Add(1)
	return j.err
}

func TestScheduler_RunNow_ExecutesImmediately(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "test"}

	err := s.RunNow(job)
	require.NoError(t, err)
	assert.Equal(t, int32(1), job.count.Load())
}

func TestScheduler_AddJob_RunsOnSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "every-second"}

	require.NoError(t, s.AddJob("* * * * * *", job))
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return job.count.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_AddJob_RejectsInvalidSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "bad"}
	err := s.AddJob("not a schedule", job)
	assert.Error(t, err)
}
