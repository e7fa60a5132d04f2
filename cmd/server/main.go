// Package main is the entry point for forexbot.
//
// forexbot runs the forex inference executable on demand (Slack slash command
// or HTTP) and on a cron schedule, and posts each result back to Slack. Only
// one inference job runs at a time.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aristath/forexbot/internal/config"
	"github.com/aristath/forexbot/internal/di"
	"github.com/aristath/forexbot/internal/notify"
	"github.com/aristath/forexbot/internal/scheduler"
	"github.com/aristath/forexbot/internal/server"
	"github.com/aristath/forexbot/pkg/logger"
)

const (
	// Running jobs get this long to finish after a shutdown signal before
	// they are aborted.
	jobDrainTimeout = 30 * time.Second
	// An aborted job gets this long to kill its process tree and notify.
	jobAbortGrace         = 15 * time.Second
	serverShutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "forexbot",
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Strs("command", cfg.Inference.Command).
		Dur("timeout", cfg.Inference.Timeout).
		Str("output_dir", cfg.Inference.OutputDir).
		Bool("slack", cfg.Slack.Enabled()).
		Msg("Starting forexbot")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Scheduled jobs outlive the signal; the orchestrator aborts them after the drain.
	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	container, _, err := di.Wire(appCtx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	srv := server.New(server.Config{
		Log:       log,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		Inference: container.Orchestrator,
		History:   container.HistoryRepo,
		HistoryDB: container.HistoryDB,
		Schedule: di.InferenceSchedule{
			Scheduler: container.Scheduler,
			JobName:   scheduler.PeriodicInferenceJobName,
		},
		EventBus:           container.EventBus,
		DefaultTarget:      notify.Target{ChannelID: cfg.Slack.DefaultChannel},
		SlackSigningSecret: cfg.Slack.SigningSecret,
		Catalog:            container.Catalog,
	})

	container.Scheduler.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")

		schedulerStopped := make(chan struct{})
		go func() {
			defer close(schedulerStopped)
			container.Scheduler.Stop(jobDrainTimeout + jobAbortGrace)
		}()

		drainCtx, cancel := context.WithTimeout(context.Background(), jobDrainTimeout)
		defer cancel()
		if err := container.Orchestrator.Shutdown(drainCtx, jobAbortGrace); err != nil {
			log.Warn().Err(err).Msg("Inference job was aborted at shutdown")
		}
		<-schedulerStopped

		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Server exited with error")
		container.Close()
		os.Exit(1)
	}

	log.Info().Msg("Server stopped")
}
