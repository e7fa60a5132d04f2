package inference

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scripts receive: $1=--transaction_file $2=<path> $3=--output_dir $4=<dir>.
func shellCommand(script string) []string {
	return []string{"/bin/sh", "-c", script, "inference"}
}

func newJobRequest(t *testing.T) JobRequest {
	t.Helper()
	return JobRequest{
		ID:                 "test-job",
		TransactionLogPath: filepath.Join(t.TempDir(), "transaction_log.json"),
		OutputDir:          t.TempDir(),
		StartedAt:          time.Now(),
	}
}

func TestProcessRunner_Args(t *testing.T) {
	r := NewProcessRunner(RunnerConfig{Command: []string{"python3", "inference.py"}}, zerolog.Nop())
	req := JobRequest{TransactionLogPath: "/data/log.json", OutputDir: "/data/out/20240101_000000"}

	assert.Equal(t, []string{
		"python3", "inference.py",
		"--transaction_file", "/data/log.json",
		"--output_dir", "/data/out/20240101_000000",
	}, r.Args(req))
}

func TestProcessRunner_SuccessWritesArtifact(t *testing.T) {
	r := NewProcessRunner(RunnerConfig{
		Command: shellCommand(`echo "BUY USDJPY 1000" > "$4/response.txt"; echo done`),
		Timeout: 10 * time.Second,
	}, zerolog.Nop())
	req := newJobRequest(t)

	outcome, err := r.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 0, outcome.ExitCode)
	assert.False(t, outcome.TimedOut)
	assert.Equal(t, "done\n", outcome.Stdout)
	assert.Equal(t, req.OutputDir, outcome.OutputDir)

	data, err := os.ReadFile(filepath.Join(req.OutputDir, ResultArtifact))
	require.NoError(t, err)
	assert.Equal(t, "BUY USDJPY 1000\n", string(data))
}

func TestProcessRunner_PassesTransactionFile(t *testing.T) {
	r := NewProcessRunner(RunnerConfig{
		Command: shellCommand(`printf '%s' "$2"`),
		Timeout: 10 * time.Second,
	}, zerolog.Nop())
	req := newJobRequest(t)

	outcome, err := r.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, req.TransactionLogPath, outcome.Stdout)
}

func TestProcessRunner_NonZeroExitCapturesStderr(t *testing.T) {
	r := NewProcessRunner(RunnerConfig{
		Command: shellCommand(`echo "CUDA out of memory" >&2; exit 1`),
		Timeout: 10 * time.Second,
	}, zerolog.Nop())

	outcome, err := r.Run(context.Background(), newJobRequest(t))
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.ExitCode)
	assert.False(t, outcome.TimedOut)
	assert.Contains(t, outcome.Stderr, "CUDA out of memory")
}

func TestProcessRunner_TimeoutKillsProcessTree(t *testing.T) {
	r := NewProcessRunner(RunnerConfig{
		Command:   shellCommand(`echo partial; sleep 30 & sleep 30; wait`),
		Timeout:   200 * time.Millisecond,
		KillGrace: 500 * time.Millisecond,
	}, zerolog.Nop())

	start := time.Now()
	outcome, err := r.Run(context.Background(), newJobRequest(t))
	require.NoError(t, err)

	assert.True(t, outcome.TimedOut)
	assert.NotEqual(t, 0, outcome.ExitCode)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Contains(t, outcome.Stdout, "partial")
}

func TestProcessRunner_MissingExecutable(t *testing.T) {
	r := NewProcessRunner(RunnerConfig{
		Command: []string{filepath.Join(t.TempDir(), "does-not-exist")},
	}, zerolog.Nop())

	_, err := r.Run(context.Background(), newJobRequest(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start inference process")
}

func TestProcessRunner_EmptyCommand(t *testing.T) {
	r := NewProcessRunner(RunnerConfig{}, zerolog.Nop())

	_, err := r.Run(context.Background(), newJobRequest(t))
	assert.Error(t, err)
}
