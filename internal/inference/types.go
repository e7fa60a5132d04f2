package inference

import (
	"time"

	"github.com/aristath/forexbot/internal/notify"
	"github.com/aristath/forexbot/internal/portfolio"
)

// ResultArtifact is the file the inference executable writes its decision text to.
const ResultArtifact = "response.txt"

// outputDirLayout names per-job output directories after the job start time.
const outputDirLayout = "20060102_150405"

// TriggerKind identifies where a job request came from.
type TriggerKind int

const (
	// Interactive is a user-issued command.
	Interactive TriggerKind = iota
	// Periodic is the cron timer.
	Periodic
)

// String returns a human-readable name for the trigger kind.
func (k TriggerKind) String() string {
	switch k {
	case Interactive:
		return "interactive"
	case Periodic:
		return "periodic"
	default:
		return "unknown"
	}
}

// ReplyFunc is the respond-style callback of a trigger. It carries the immediate
// acknowledgements ("started", "already running"); the terminal result goes
// through the notification router instead.
type ReplyFunc func(text string, ephemeral bool) error

// Trigger is one request to run a job.
type Trigger struct {
	Kind   TriggerKind
	Target notify.Target
	Text   string    // Free-form command text, logged only
	Reply  ReplyFunc // May be nil (periodic trigger, HTTP API)
}

// JobRequest is created once the lock is held and is immutable afterwards.
type JobRequest struct {
	ID                 string
	Trigger            TriggerKind
	TransactionLogPath string
	OutputDir          string
	StartedAt          time.Time
	Assets             portfolio.Assets
}

// SubprocessOutcome is what the runner observed about one process execution.
type SubprocessOutcome struct {
	ExitCode  int
	TimedOut  bool
	Stdout    string
	Stderr    string
	OutputDir string
	Duration  time.Duration
}

// ResultKind discriminates JobResult.
type ResultKind int

const (
	// ResultSuccess means exit 0 and a non-empty result artifact.
	ResultSuccess ResultKind = iota
	// ResultSuccessNoArtifact means exit 0 but nothing to report.
	ResultSuccessNoArtifact
	// ResultFailure means a non-zero exit status.
	ResultFailure
	// ResultTimeout means the process was killed at the deadline.
	ResultTimeout
	// ResultUnexpectedError means the orchestration itself failed.
	ResultUnexpectedError
)

// String returns the stable name stored in job history.
func (k ResultKind) String() string {
	switch k {
	case ResultSuccess:
		return "success"
	case ResultSuccessNoArtifact:
		return "success_no_artifact"
	case ResultFailure:
		return "failure"
	case ResultTimeout:
		return "timeout"
	case ResultUnexpectedError:
		return "unexpected_error"
	default:
		return "unknown"
	}
}

// JobResult is the terminal outcome of a job. Only the fields relevant to Kind are set.
type JobResult struct {
	Kind         ResultKind
	DecisionText string // ResultSuccess
	Stderr       string // ResultFailure
	ExitCode     int    // ResultFailure
	Message      string // ResultUnexpectedError
}

// IsError reports whether the result should be worded and routed as an error.
func (r JobResult) IsError() bool {
	switch r.Kind {
	case ResultFailure, ResultTimeout, ResultUnexpectedError:
		return true
	default:
		return false
	}
}

// Signal returns the diagnostic text fed to Classify for error results.
func (r JobResult) Signal() string {
	switch r.Kind {
	case ResultFailure:
		return r.Stderr
	case ResultUnexpectedError:
		return r.Message
	case ResultTimeout:
		return "timeout"
	default:
		return ""
	}
}

// Category classifies an error result. Non-error results return CategoryNone.
func (r JobResult) Category() ErrorCategory {
	switch r.Kind {
	case ResultTimeout:
		return CategorySystemLoad
	case ResultFailure, ResultUnexpectedError:
		return Classify(r.Signal())
	default:
		return CategoryNone
	}
}

// Success builds a ResultSuccess.
func Success(decisionText string) JobResult {
	return JobResult{Kind: ResultSuccess, DecisionText: decisionText}
}

// SuccessNoArtifact builds a ResultSuccessNoArtifact.
func SuccessNoArtifact() JobResult {
	return JobResult{Kind: ResultSuccessNoArtifact}
}

// Failure builds a ResultFailure.
func Failure(exitCode int, stderr string) JobResult {
	return JobResult{Kind: ResultFailure, ExitCode: exitCode, Stderr: stderr}
}

// Timeout builds a ResultTimeout.
func Timeout() JobResult {
	return JobResult{Kind: ResultTimeout}
}

// UnexpectedError builds a ResultUnexpectedError.
func UnexpectedError(message string) JobResult {
	return JobResult{Kind: ResultUnexpectedError, Message: message}
}
