// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages background jobs
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu      sync.RWMutex
	entries map[string]cron.EntryID
}

// New creates a new scheduler. Schedules use the standard five-field cron
// syntax plus descriptors such as "@hourly" and "@every 30m". A job whose
// previous run is still active is skipped.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:     log.With().Str("component", "scheduler").Logger(),
		entries: make(map[string]cron.EntryID),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop stops the scheduler and waits up to timeout for running jobs to finish.
func (s *Scheduler) Stop(timeout time.Duration) {
	ctx := s.cron.Stop()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		s.log.Info().Msg("Scheduler stopped")
	case <-timer.C:
		s.log.Warn().Dur("timeout", timeout).Msg("Scheduler stopped with jobs still running")
	}
}

// AddJob registers a new job with cron schedule
// Schedule examples:
//   - "*/30 * * * *"       - Every 30 minutes
//   - "@hourly"            - Every hour
//   - "0 9 * * MON-FRI"    - 9 AM weekdays
//   - "@every 4h"          - Every 4 hours
func (s *Scheduler) AddJob(schedule string, job Job) error {
	id, err := s.cron.AddFunc(schedule, func() {
		s.runJob(job)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.entries[job.Name()] = id
	s.mu.Unlock()

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// NextRun returns the next activation time of the earliest job.
func (s *Scheduler) NextRun() (time.Time, bool) {
	var next time.Time
	for _, entry := range s.cron.Entries() {
		if entry.Next.IsZero() {
			continue
		}
		if next.IsZero() || entry.Next.Before(next) {
			next = entry.Next
		}
	}
	return next, !next.IsZero()
}

// NextRunOf returns the next activation time of the named job. The time is
// only known once the scheduler has started.
func (s *Scheduler) NextRunOf(name string) (time.Time, bool) {
	s.mu.RLock()
	id, ok := s.entries[name]
	s.mu.RUnlock()
	if !ok {
		return time.Time{}, false
	}

	next := s.cron.Entry(id).Next
	return next, !next.IsZero()
}

func (s *Scheduler) runJob(job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("job", job.Name()).Msg("Job panicked")
		}
	}()

	s.log.Debug().Str("job", job.Name()).Msg("Running job")
	start := time.Now()

	if err := job.Run(); err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Msg("Job failed")
		return
	}
	s.log.Debug().Str("job", job.Name()).Dur("duration", time.Since(start)).Msg("Job completed")
}

// contextJob adapts a context-aware function to Job.
type contextJob struct {
	name string
	ctx  context.Context
	fn   func(ctx context.Context) error
}

func (j contextJob) Run() error   { return j.fn(j.ctx) }
func (j contextJob) Name() string { return j.name }

// FuncJob wraps fn as a Job bound to ctx.
func FuncJob(ctx context.Context, name string, fn func(ctx context.Context) error) Job {
	return contextJob{name: name, ctx: ctx, fn: fn}
}
