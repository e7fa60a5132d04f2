// Package di wires forexbot's components together.
package di

import (
	"github.com/aristath/forexbot/internal/archive"
	"github.com/aristath/forexbot/internal/database"
	"github.com/aristath/forexbot/internal/events"
	"github.com/aristath/forexbot/internal/history"
	"github.com/aristath/forexbot/internal/inference"
	"github.com/aristath/forexbot/internal/notify"
	"github.com/aristath/forexbot/internal/portfolio"
	"github.com/aristath/forexbot/internal/scheduler"
)

// Container holds all application dependencies. It is created by Wire.
type Container struct {
	// Databases
	HistoryDB *database.DB // Finished inference jobs

	// Repositories
	HistoryRepo *history.Repository

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Notification
	Catalog   *inference.Catalog
	Messenger notify.Messenger // Slack client, or a log-only messenger when Slack is not configured
	Router    *notify.Router

	// Inference
	Assets       portfolio.Source
	Runner       *inference.ProcessRunner
	Archive      *archive.Service // nil when archiving is disabled
	Orchestrator *inference.Orchestrator

	Scheduler *scheduler.Scheduler
}

// Close releases resources held by the container.
func (c *Container) Close() error {
	if c.HistoryDB != nil {
		return c.HistoryDB.Close()
	}
	return nil
}

// JobInstances holds the registered scheduler jobs. Disabled jobs are nil.
type JobInstances struct {
	PeriodicInference *scheduler.PeriodicInferenceJob
	HistoryCleanup    *history.CleanupJob
	WALCheckpoint     scheduler.Job
}
