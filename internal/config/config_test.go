package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("DATA_DIR", dataDir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, []string{"python3", "inference.py"}, cfg.Inference.Command)
	assert.Equal(t, 600*time.Second, cfg.Inference.Timeout)
	assert.Equal(t, filepath.Join(dataDir, "real_out"), cfg.Inference.OutputDir)
	wantLog, err := filepath.Abs("data/log/transaction_log.json")
	require.NoError(t, err)
	assert.Equal(t, wantLog, cfg.Portfolio.TransactionLogFile)
	assert.Empty(t, cfg.Portfolio.BalanceFile)
	assert.False(t, cfg.LogPretty)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "en", cfg.Locale)
	assert.Equal(t, "@daily", cfg.Schedule.HistoryCleanup)
	assert.Empty(t, cfg.Schedule.Inference)
	assert.False(t, cfg.Slack.Enabled())
	assert.Equal(t, filepath.Join(dataDir, "history.db"), cfg.HistoryDBPath())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("INFERENCE_COMMAND", "/usr/bin/python3  /opt/llm/inference.py")
	t.Setenv("INFERENCE_TIMEOUT", "90s")
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-test")
	t.Setenv("SLACK_DEFAULT_CHANNEL", "C111")
	t.Setenv("SCHEDULE_INFERENCE", "0 */4 * * *")
	t.Setenv("LOCALE", " JA ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"/usr/bin/python3", "/opt/llm/inference.py"}, cfg.Inference.Command)
	assert.Equal(t, 90*time.Second, cfg.Inference.Timeout)
	assert.True(t, cfg.Slack.Enabled())
	assert.Equal(t, "C111", cfg.Slack.DefaultChannel)
	assert.Equal(t, "C111", cfg.Slack.AdminChannel, "admin channel falls back to default channel")
	assert.Equal(t, "ja", cfg.Locale)
}

func TestLoad_PortfolioPathsAreAbsolute(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("INFERENCE_WORKDIR", "/opt/ml")
	t.Setenv("INFERENCE_OUTPUT_DIR", "out/real")
	t.Setenv("TRANSACTION_LOG_FILE", "log/transaction_log.json")
	t.Setenv("BALANCE_FILE", "log/balances.json")

	cfg, err := Load()
	require.NoError(t, err)

	for name, path := range map[string]string{
		"output_dir":      cfg.Inference.OutputDir,
		"transaction_log": cfg.Portfolio.TransactionLogFile,
		"balance_file":    cfg.Portfolio.BalanceFile,
	} {
		assert.True(t, filepath.IsAbs(path), "%s should be absolute, got %q", name, path)
	}
	assert.True(t, strings.HasSuffix(cfg.Portfolio.TransactionLogFile, filepath.Join("log", "transaction_log.json")))
	assert.Equal(t, "/opt/ml", cfg.Inference.WorkDir)
}

func TestSanitize_KeepsAbsolutePaths(t *testing.T) {
	cfg := &Config{
		DataDir:   t.TempDir(),
		Inference: InferenceConfig{Command: []string{"python3"}},
		Portfolio: PortfolioConfig{TransactionLogFile: "/data/log/transaction_log.json"},
	}
	require.NoError(t, cfg.Sanitize())

	assert.Equal(t, "/data/log/transaction_log.json", cfg.Portfolio.TransactionLogFile)
	assert.Empty(t, cfg.Portfolio.BalanceFile)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DataDir:   "/tmp",
			Port:      8080,
			Inference: InferenceConfig{Command: []string{"python3"}, Timeout: time.Minute},
			Slack:     SlackConfig{DefaultChannel: "C1"},
			Schedule:  ScheduleConfig{Inference: "@hourly", HistoryCleanup: "@daily"},
		}
	}

	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"empty command", func(c *Config) { c.Inference.Command = nil }, "INFERENCE_COMMAND"},
		{"zero timeout", func(c *Config) { c.Inference.Timeout = 0 }, "INFERENCE_TIMEOUT"},
		{"bad port", func(c *Config) { c.Port = 70000 }, "PORT"},
		{"bad cron", func(c *Config) { c.Schedule.Inference = "every day" }, "SCHEDULE_INFERENCE"},
		{"schedule without channel", func(c *Config) { c.Slack.DefaultChannel = "" }, "SLACK_DEFAULT_CHANNEL"},
		{"archive without bucket", func(c *Config) { c.Archive.Enabled = true }, "ARCHIVE_BUCKET"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
