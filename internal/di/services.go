package di

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aristath/forexbot/internal/archive"
	"github.com/aristath/forexbot/internal/config"
	"github.com/aristath/forexbot/internal/events"
	"github.com/aristath/forexbot/internal/inference"
	"github.com/aristath/forexbot/internal/notify"
	"github.com/aristath/forexbot/internal/notify/slack"
	"github.com/aristath/forexbot/internal/portfolio"
	"github.com/aristath/forexbot/internal/scheduler"
)

// InitializeServices creates the notification, inference and archive services.
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.EventBus = events.NewBus()
	container.EventManager = events.NewManager(container.EventBus, log)

	container.Catalog = inference.CatalogFor(cfg.Locale)

	if cfg.Slack.Enabled() {
		client, err := slack.NewClient(slack.Config{
			BotToken: cfg.Slack.BotToken,
			APIURL:   cfg.Slack.APIURL,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create slack client: %w", err)
		}
		container.Messenger = client
	} else {
		log.Warn().Msg("SLACK_BOT_TOKEN not set, notifications will only be logged")
		container.Messenger = notify.NewLogMessenger(log)
	}
	container.Router = notify.NewRouter(container.Messenger, container.Catalog.ChannelMissing, log)

	container.Assets = portfolio.NewFileSource(cfg.Portfolio.BalanceFile, log)

	container.Runner = inference.NewProcessRunner(inference.RunnerConfig{
		Command:   cfg.Inference.Command,
		WorkDir:   cfg.Inference.WorkDir,
		Timeout:   cfg.Inference.Timeout,
		KillGrace: cfg.Inference.KillGrace,
	}, log)

	deps := inference.Dependencies{
		Runner:   container.Runner,
		Notifier: container.Router,
		Assets:   container.Assets,
		Catalog:  container.Catalog,
		History:  container.HistoryRepo,
		Events:   container.EventManager,
	}

	if cfg.Archive.Enabled {
		store, err := archive.NewS3Store(ctx, archive.S3Config{
			Bucket:          cfg.Archive.Bucket,
			Region:          cfg.Archive.Region,
			Endpoint:        cfg.Archive.Endpoint,
			AccessKeyID:     cfg.Archive.AccessKeyID,
			SecretAccessKey: cfg.Archive.SecretAccessKey,
		})
		if err != nil {
			return fmt.Errorf("failed to create archive store: %w", err)
		}
		container.Archive = archive.NewService(store, cfg.Archive.Prefix,
			filepath.Join(cfg.DataDir, "archive-staging"), container.EventManager, log)
		deps.Archiver = container.Archive
		log.Info().Str("bucket", cfg.Archive.Bucket).Msg("Job output archiving enabled")
	}

	container.Orchestrator = inference.NewOrchestrator(inference.Config{
		TransactionLogPath: cfg.Portfolio.TransactionLogFile,
		OutputBaseDir:      cfg.Inference.OutputDir,
	}, deps, log)

	container.Scheduler = scheduler.New(log)

	return nil
}
