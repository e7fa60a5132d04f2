package di

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/forexbot/internal/config"
	"github.com/aristath/forexbot/internal/history"
	"github.com/aristath/forexbot/internal/scheduler"
)

// walCheckpointSchedule keeps the history WAL file from growing unbounded.
const walCheckpointSchedule = "@every 6h"

// RegisterJobs adds the background jobs to the container's scheduler. ctx
// bounds every scheduled run; cancelling it aborts a running periodic job.
func RegisterJobs(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	instances := &JobInstances{}

	if cfg.Schedule.Inference != "" {
		job := scheduler.NewPeriodicInferenceJob(ctx, container.Orchestrator,
			cfg.Slack.DefaultChannel, cfg.Slack.AdminChannel, log)
		if err := container.Scheduler.AddJob(cfg.Schedule.Inference, job); err != nil {
			return nil, fmt.Errorf("failed to register periodic inference job: %w", err)
		}
		instances.PeriodicInference = job
	} else {
		log.Info().Msg("SCHEDULE_INFERENCE not set, periodic inference disabled")
	}

	if cfg.Schedule.HistoryCleanup != "" && cfg.History.Retention > 0 {
		job := history.NewCleanupJob(container.HistoryRepo, cfg.History.Retention, log)
		if err := container.Scheduler.AddJob(cfg.Schedule.HistoryCleanup, job); err != nil {
			return nil, fmt.Errorf("failed to register history cleanup job: %w", err)
		}
		instances.HistoryCleanup = job
	}

	checkpoint := scheduler.FuncJob(ctx, "wal_checkpoint", func(ctx context.Context) error {
		return container.HistoryDB.WALCheckpoint("TRUNCATE")
	})
	if err := container.Scheduler.AddJob(walCheckpointSchedule, checkpoint); err != nil {
		return nil, fmt.Errorf("failed to register WAL checkpoint job: %w", err)
	}
	instances.WALCheckpoint = checkpoint

	return instances, nil
}

// InferenceSchedule reports the next periodic inference run.
type InferenceSchedule struct {
	Scheduler *scheduler.Scheduler
	JobName   string
}

// NextRun implements server.NextRunProvider.
func (s InferenceSchedule) NextRun() (time.Time, bool) {
	if s.Scheduler == nil {
		return time.Time{}, false
	}
	return s.Scheduler.NextRunOf(s.JobName)
}
