package scheduler

import (
	"context"
	"errors"

	"github.com/aristath/forexbot/internal/inference"
	"github.com/aristath/forexbot/internal/notify"
	"github.com/rs/zerolog"
)

// PeriodicInferenceJobName is the scheduler name of the periodic inference job.
const PeriodicInferenceJobName = "periodic_inference"

// InferenceRunner runs one inference job synchronously.
type InferenceRunner interface {
	Run(ctx context.Context, trig inference.Trigger) (inference.JobResult, error)
}

// PeriodicInferenceJob is the timer trigger for inference. Results go to the
// default channel and errors to the admin channel.
type PeriodicInferenceJob struct {
	ctx    context.Context
	runner InferenceRunner
	target notify.Target
	log    zerolog.Logger
}

// NewPeriodicInferenceJob creates the periodic trigger. ctx bounds each run.
func NewPeriodicInferenceJob(ctx context.Context, runner InferenceRunner, defaultChannel, adminChannel string, log zerolog.Logger) *PeriodicInferenceJob {
	return &PeriodicInferenceJob{
		ctx:    ctx,
		runner: runner,
		target: notify.Target{ChannelID: defaultChannel, ErrorChannelID: adminChannel},
		log:    log.With().Str("job", PeriodicInferenceJobName).Logger(),
	}
}

// Run triggers one inference job. Finding a job already in progress is not an error.
func (j *PeriodicInferenceJob) Run() error {
	result, err := j.runner.Run(j.ctx, inference.Trigger{
		Kind:   inference.Periodic,
		Target: j.target,
		Text:   "scheduled",
	})
	if errors.Is(err, inference.ErrJobRunning) {
		j.log.Info().Msg("Inference already running, skipping scheduled run")
		return nil
	}
	if err != nil {
		return err
	}

	j.log.Info().Str("result", result.Kind.String()).Msg("Scheduled inference finished")
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *PeriodicInferenceJob) Name() string {
	return PeriodicInferenceJobName
}

// Target returns where the job's notifications go.
func (j *PeriodicInferenceJob) Target() notify.Target {
	return j.target
}
