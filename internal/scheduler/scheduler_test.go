package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/forexbot/internal/inference"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct{ runs atomic.Int32 }

func (j *countingJob) Run() error {
	j.runs.Add(1)
	return nil
}

func (j *countingJob) Name() string { return "counting" }

type panickingJob struct{ runs atomic.Int32 }

func (j *panickingJob) Run() error {
	j.runs.Add(1)
	panic("boom")
}

func (j *panickingJob) Name() string { return "panicking" }

func TestScheduler_AddJobRejectsBadSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	assert.Error(t, s.AddJob("not a schedule", &countingJob{}))
	assert.Error(t, s.AddJob("0 0 0 * * *", &countingJob{}), "seconds field is not accepted")
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{}
	require.NoError(t, s.AddJob("@every 1s", job))

	_, ok := s.NextRun()
	assert.False(t, ok, "entries have no next time until started")

	s.Start()
	defer s.Stop(time.Second)

	_, ok = s.NextRun()
	assert.True(t, ok)

	assert.Eventually(t, func() bool { return job.runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_NextRunOf(t *testing.T) {
	s := New(zerolog.Nop())
	require.NoError(t, s.AddJob("@every 1h", &countingJob{}))
	require.NoError(t, s.AddJob("@every 1m", &panickingJob{}))

	s.Start()
	defer s.Stop(time.Second)

	hourly, ok := s.NextRunOf("counting")
	require.True(t, ok)
	earliest, ok := s.NextRun()
	require.True(t, ok)
	assert.True(t, earliest.Before(hourly))

	_, ok = s.NextRunOf("missing")
	assert.False(t, ok)
}

func TestScheduler_RecoversPanickingJob(t *testing.T) {
	s := New(zerolog.Nop())
	job := &panickingJob{}
	require.NoError(t, s.AddJob("@every 1s", job))

	s.Start()
	defer s.Stop(time.Second)

	assert.Eventually(t, func() bool { return job.runs.Load() >= 2 }, 4*time.Second, 50*time.Millisecond)
}

func TestFuncJob(t *testing.T) {
	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "v")

	var got interface{}
	job := FuncJob(ctx, "wal_checkpoint", func(ctx context.Context) error {
		got = ctx.Value(ctxKey{})
		return nil
	})

	assert.Equal(t, "wal_checkpoint", job.Name())
	require.NoError(t, job.Run())
	assert.Equal(t, "v", got)
}

type fakeInferenceRunner struct {
	triggers []inference.Trigger
	result   inference.JobResult
	err      error
}

func (f *fakeInferenceRunner) Run(ctx context.Context, trig inference.Trigger) (inference.JobResult, error) {
	f.triggers = append(f.triggers, trig)
	return f.result, f.err
}

func TestPeriodicInferenceJob_UsesPeriodicTarget(t *testing.T) {
	runner := &fakeInferenceRunner{result: inference.Success("HOLD")}
	job := NewPeriodicInferenceJob(context.Background(), runner, "C-DEFAULT", "C-ADMIN", zerolog.Nop())

	require.NoError(t, job.Run())
	require.Len(t, runner.triggers, 1)

	trig := runner.triggers[0]
	assert.Equal(t, inference.Periodic, trig.Kind)
	assert.Equal(t, "C-DEFAULT", trig.Target.ChannelID)
	assert.Equal(t, "C-ADMIN", trig.Target.ErrorChannelID)
	assert.Empty(t, trig.Target.UserID)
	assert.Nil(t, trig.Reply)
	assert.Equal(t, "periodic_inference", job.Name())
	assert.Equal(t, trig.Target, job.Target())
}

func TestPeriodicInferenceJob_ContentionIsNotAnError(t *testing.T) {
	runner := &fakeInferenceRunner{err: inference.ErrJobRunning}
	job := NewPeriodicInferenceJob(context.Background(), runner, "C1", "C1", zerolog.Nop())

	assert.NoError(t, job.Run())
}

func TestPeriodicInferenceJob_PropagatesOtherErrors(t *testing.T) {
	runner := &fakeInferenceRunner{err: errors.New("orchestrator unavailable")}
	job := NewPeriodicInferenceJob(context.Background(), runner, "C1", "C1", zerolog.Nop())

	assert.Error(t, job.Run())
}
