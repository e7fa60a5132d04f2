// Package config provides configuration management functionality.
//
// Configuration is read from the environment (optionally seeded from a .env file)
// into nested structs using github.com/caarlos0/env. Each sub-config owns a
// prefix so the variables group naturally:
//   - INFERENCE_*: the external inference executable and its limits
//   - SLACK_*: notification transport and slash command verification
//   - SCHEDULE_*: cron specs for the periodic triggers
//   - HISTORY_*: job history retention
//   - ARCHIVE_*: optional S3/R2 upload of job output directories
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds application configuration
type Config struct {
	DataDir   string `env:"DATA_DIR"   envDefault:"./data"` // Always absolute after Load
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"` // Console output for development
	Port      int    `env:"PORT"       envDefault:"8080"`
	DevMode   bool   `env:"DEV_MODE"   envDefault:"false"`
	Locale    string `env:"LOCALE"     envDefault:"en"`

	Inference InferenceConfig `envPrefix:"INFERENCE_"`
	Portfolio PortfolioConfig
	Slack     SlackConfig    `envPrefix:"SLACK_"`
	Schedule  ScheduleConfig `envPrefix:"SCHEDULE_"`
	History   HistoryConfig  `envPrefix:"HISTORY_"`
	Archive   ArchiveConfig  `envPrefix:"ARCHIVE_"`
}

// InferenceConfig describes how the external inference executable is launched.
type InferenceConfig struct {
	// Command is the argv prefix; the runner appends --transaction_file and --output_dir.
	Command   []string      `env:"COMMAND"    envDefault:"python3 inference.py" envSeparator:" "`
	Timeout   time.Duration `env:"TIMEOUT"    envDefault:"600s"`
	KillGrace time.Duration `env:"KILL_GRACE" envDefault:"5s"`
	OutputDir string        `env:"OUTPUT_DIR"` // Defaults to <DataDir>/real_out
	WorkDir   string        `env:"WORKDIR"`
}

// PortfolioConfig points at the bookkeeping files owned by the trading side.
type PortfolioConfig struct {
	TransactionLogFile string `env:"TRANSACTION_LOG_FILE" envDefault:"data/log/transaction_log.json"`
	BalanceFile        string `env:"BALANCE_FILE"`
}

// SlackConfig configures the Slack transport.
type SlackConfig struct {
	BotToken       string `env:"BOT_TOKEN"`
	SigningSecret  string `env:"SIGNING_SECRET"`
	DefaultChannel string `env:"DEFAULT_CHANNEL"` // Periodic success reports
	AdminChannel   string `env:"ADMIN_CHANNEL"`   // Periodic error reports
	APIURL         string `env:"API_URL"`         // Override for tests and proxies
}

// Enabled reports whether messages can actually be delivered to Slack.
func (c SlackConfig) Enabled() bool {
	return c.BotToken != ""
}

// ScheduleConfig holds cron specs. An empty spec disables the job.
type ScheduleConfig struct {
	Inference      string `env:"INFERENCE"`
	HistoryCleanup string `env:"HISTORY_CLEANUP" envDefault:"@daily"`
}

// HistoryConfig controls job history retention.
type HistoryConfig struct {
	Retention time.Duration `env:"RETENTION" envDefault:"2160h"`
}

// ArchiveConfig configures uploading finished job directories to S3-compatible storage.
type ArchiveConfig struct {
	Enabled         bool   `env:"ENABLED" envDefault:"false"`
	Bucket          string `env:"BUCKET"`
	Prefix          string `env:"PREFIX" envDefault:"inference"`
	Region          string `env:"REGION" envDefault:"auto"`
	Endpoint        string `env:"ENDPOINT"` // R2 or MinIO endpoint; empty uses AWS
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("load .env file: %w", err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Sanitize(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// Sanitize resolves paths and fills derived defaults.
func (c *Config) Sanitize() error {
	absDataDir, err := filepath.Abs(c.DataDir)
	if err != nil {
		return fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	c.DataDir = absDataDir

	if c.Inference.OutputDir == "" {
		c.Inference.OutputDir = filepath.Join(c.DataDir, "real_out")
	}

	// The executable may run in INFERENCE_WORKDIR, so every path handed to it
	// must be absolute.
	for _, p := range []*string{&c.Inference.OutputDir, &c.Portfolio.TransactionLogFile, &c.Portfolio.BalanceFile} {
		if *p == "" {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("failed to resolve path %q: %w", *p, err)
		}
		*p = abs
	}
	if c.Inference.KillGrace <= 0 {
		c.Inference.KillGrace = 5 * time.Second
	}

	args := c.Inference.Command[:0]
	for _, arg := range c.Inference.Command {
		if arg = strings.TrimSpace(arg); arg != "" {
			args = append(args, arg)
		}
	}
	c.Inference.Command = args

	c.Locale = strings.ToLower(strings.TrimSpace(c.Locale))
	c.Slack.DefaultChannel = strings.TrimSpace(c.Slack.DefaultChannel)
	c.Slack.AdminChannel = strings.TrimSpace(c.Slack.AdminChannel)
	if c.Slack.AdminChannel == "" {
		c.Slack.AdminChannel = c.Slack.DefaultChannel
	}

	c.Archive.Prefix = strings.Trim(c.Archive.Prefix, "/")
	return nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if len(c.Inference.Command) == 0 {
		return errors.New("INFERENCE_COMMAND must name an executable")
	}
	if c.Inference.Timeout <= 0 {
		return fmt.Errorf("INFERENCE_TIMEOUT must be positive, got %s", c.Inference.Timeout)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}

	if c.Schedule.Inference != "" {
		if _, err := cron.ParseStandard(c.Schedule.Inference); err != nil {
			return fmt.Errorf("invalid SCHEDULE_INFERENCE %q: %w", c.Schedule.Inference, err)
		}
		if c.Slack.DefaultChannel == "" {
			return errors.New("SLACK_DEFAULT_CHANNEL is required when SCHEDULE_INFERENCE is set")
		}
	}
	if c.Schedule.HistoryCleanup != "" {
		if _, err := cron.ParseStandard(c.Schedule.HistoryCleanup); err != nil {
			return fmt.Errorf("invalid SCHEDULE_HISTORY_CLEANUP %q: %w", c.Schedule.HistoryCleanup, err)
		}
	}

	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return errors.New("ARCHIVE_BUCKET is required when ARCHIVE_ENABLED is true")
	}

	return nil
}

// HistoryDBPath returns the location of the job history database.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.DataDir, "history.db")
}
