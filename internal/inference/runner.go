package inference

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
)

const (
	// DefaultTimeout bounds one inference run.
	DefaultTimeout = 600 * time.Second
	// DefaultKillGrace is how long Wait keeps draining output after the kill.
	DefaultKillGrace = 5 * time.Second

	logOutputLimit = 2000
)

// Runner executes the inference program for one job.
type Runner interface {
	Run(ctx context.Context, req JobRequest) (SubprocessOutcome, error)
}

// RunnerConfig configures ProcessRunner.
type RunnerConfig struct {
	Command   []string // Executable and leading arguments
	WorkDir   string
	Timeout   time.Duration
	KillGrace time.Duration
}

// ProcessRunner runs the inference executable as a child process.
type ProcessRunner struct {
	cfg RunnerConfig
	log zerolog.Logger
}

// NewProcessRunner creates a runner. Zero durations fall back to the defaults.
func NewProcessRunner(cfg RunnerConfig, log zerolog.Logger) *ProcessRunner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = DefaultKillGrace
	}
	return &ProcessRunner{
		cfg: cfg,
		log: log.With().Str("component", "subprocess_runner").Logger(),
	}
}

// Args returns the full argv for req.
func (r *ProcessRunner) Args(req JobRequest) []string {
	args := make([]string, 0, len(r.cfg.Command)+4)
	args = append(args, r.cfg.Command...)
	return append(args,
		"--transaction_file", req.TransactionLogPath,
		"--output_dir", req.OutputDir,
	)
}

// Run spawns the executable and waits for it to exit or hit the timeout. On
// timeout the whole process tree is killed and the outcome is marked TimedOut.
// The error return is reserved for failures to start the process.
func (r *ProcessRunner) Run(ctx context.Context, req JobRequest) (SubprocessOutcome, error) {
	if len(r.cfg.Command) == 0 {
		return SubprocessOutcome{}, errors.New("inference command is not configured")
	}

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	argv := r.Args(req)
	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = r.cfg.WorkDir
	cmd.Env = os.Environ()
	cmd.WaitDelay = r.cfg.KillGrace
	cmd.Cancel = func() error {
		return killProcessTree(cmd.Process.Pid)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log := r.log.With().
		Str("request_id", req.ID).
		Str("output_dir", req.OutputDir).
		Logger()
	log.Info().Strs("argv", argv).Dur("timeout", r.cfg.Timeout).Msg("Starting inference process")

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return SubprocessOutcome{}, fmt.Errorf("failed to start inference process: %w", err)
	}
	waitErr := cmd.Wait()

	outcome := SubprocessOutcome{
		ExitCode:  cmd.ProcessState.ExitCode(),
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		OutputDir: req.OutputDir,
		Duration:  time.Since(start),
	}

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		outcome.TimedOut = true
		log.Warn().Dur("duration", outcome.Duration).Msg("Inference process timed out and was killed")
	case ctx.Err() != nil:
		return outcome, fmt.Errorf("inference process interrupted: %w", ctx.Err())
	case waitErr != nil:
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return outcome, fmt.Errorf("failed waiting for inference process: %w", waitErr)
		}
	}

	log.Info().
		Int("exit_code", outcome.ExitCode).
		Bool("timed_out", outcome.TimedOut).
		Dur("duration", outcome.Duration).
		Msg("Inference process finished")
	log.Debug().
		Str("stdout", truncateRunes(outcome.Stdout, logOutputLimit)).
		Str("stderr", truncateRunes(outcome.Stderr, logOutputLimit)).
		Msg("Inference process output")

	return outcome, nil
}

// killProcessTree kills pid and all of its descendants, children first.
func killProcessTree(pid int) error {
	ctx := context.Background()
	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return err
	}
	killDescendants(ctx, proc)
	return proc.KillWithContext(ctx)
}

func killDescendants(ctx context.Context, proc *process.Process) {
	children, err := proc.ChildrenWithContext(ctx)
	if err != nil {
		return
	}
	for _, child := range children {
		killDescendants(ctx, child)
		_ = child.KillWithContext(ctx)
	}
}
