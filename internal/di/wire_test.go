package di

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/forexbot/internal/config"
	"github.com/aristath/forexbot/internal/history"
	"github.com/aristath/forexbot/internal/inference"
	"github.com/aristath/forexbot/internal/notify"
	"github.com/aristath/forexbot/internal/scheduler"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		DataDir: t.TempDir(),
		Port:    8080,
		Locale:  "en",
		Inference: config.InferenceConfig{
			Command: []string{"/bin/sh", "-c", `printf 'BUY USD/JPY' > "$4/response.txt"`, "inference"},
			Timeout: 10 * time.Second,
		},
		Schedule: config.ScheduleConfig{HistoryCleanup: "@daily"},
		History:  config.HistoryConfig{Retention: 24 * time.Hour},
	}
	require.NoError(t, cfg.Sanitize())
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestWire_Defaults(t *testing.T) {
	cfg := testConfig(t)

	container, jobs, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.NotNil(t, container.HistoryDB)
	assert.NotNil(t, container.HistoryRepo)
	assert.NotNil(t, container.Orchestrator)
	assert.NotNil(t, container.Scheduler)
	assert.Nil(t, container.Archive)
	assert.IsType(t, &notify.LogMessenger{}, container.Messenger)

	assert.Nil(t, jobs.PeriodicInference)
	assert.NotNil(t, jobs.HistoryCleanup)
	assert.NotNil(t, jobs.WALCheckpoint)

	_, err = os.Stat(filepath.Join(cfg.DataDir, "history.db"))
	assert.NoError(t, err)
}

func TestWire_PeriodicInference(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schedule.Inference = "0 * * * *"
	cfg.Slack.DefaultChannel = "C0DEFAULT"
	require.NoError(t, cfg.Sanitize())

	container, jobs, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	require.NotNil(t, jobs.PeriodicInference)
	assert.Equal(t, notify.Target{ChannelID: "C0DEFAULT", ErrorChannelID: "C0DEFAULT"}, jobs.PeriodicInference.Target())

	container.Scheduler.Start()
	defer container.Scheduler.Stop(time.Second)

	next, ok := InferenceSchedule{Scheduler: container.Scheduler, JobName: scheduler.PeriodicInferenceJobName}.NextRun()
	require.True(t, ok)
	assert.Zero(t, next.Minute())
}

func TestWire_RunsJobAndRecordsHistory(t *testing.T) {
	cfg := testConfig(t)
	cfg.Portfolio.TransactionLogFile = filepath.Join(cfg.DataDir, "transaction_log.json")

	container, _, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	result, err := container.Orchestrator.Run(context.Background(), inference.Trigger{
		Kind:   inference.Interactive,
		Target: notify.Target{ChannelID: "C0TEST"},
	})
	require.NoError(t, err)
	assert.Equal(t, inference.ResultSuccess, result.Kind)
	assert.Equal(t, "BUY USD/JPY", result.DecisionText)

	records, err := container.HistoryRepo.Recent(context.Background(), history.DefaultLimit)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "success", records[0].Result)
	assert.True(t, records[0].Delivered)
}

func TestInferenceSchedule_NilScheduler(t *testing.T) {
	_, ok := InferenceSchedule{}.NextRun()
	assert.False(t, ok)
}
