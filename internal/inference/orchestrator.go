package inference

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/aristath/forexbot/internal/events"
	"github.com/aristath/forexbot/internal/history"
	"github.com/aristath/forexbot/internal/notify"
	"github.com/aristath/forexbot/internal/portfolio"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const eventModule = "inference"

// finishTimeout bounds notification and history writes once the job itself
// has ended, including after Abort.
const finishTimeout = 60 * time.Second

// ErrJobRunning is returned when a trigger arrives while another job holds the lock.
var ErrJobRunning = errors.New("inference job already running")

// Notifier delivers a composed message to a target.
type Notifier interface {
	Deliver(ctx context.Context, target notify.Target, msg notify.Message) (notify.Delivery, error)
}

// HistoryRecorder persists terminal job outcomes.
type HistoryRecorder interface {
	Record(ctx context.Context, rec history.Record) error
}

// Archiver uploads a finished job's output directory.
type Archiver interface {
	Archive(ctx context.Context, requestID, dir string) error
}

// EventEmitter publishes job lifecycle events.
type EventEmitter interface {
	EmitTyped(module string, data events.EventData)
}

// Config holds the orchestrator's file locations.
type Config struct {
	TransactionLogPath string
	OutputBaseDir      string
}

// Dependencies are the collaborators of an Orchestrator. History, Archiver and
// Events are optional.
type Dependencies struct {
	Lock     *JobLock
	Runner   Runner
	Notifier Notifier
	Assets   portfolio.Source
	Catalog  *Catalog
	History  HistoryRecorder
	Archiver Archiver
	Events   EventEmitter
}

// Status is a snapshot of the orchestrator for status endpoints.
type Status struct {
	State   LockState   `json:"-"`
	Current *JobRequest `json:"current,omitempty"`
}

// Orchestrator runs inference jobs one at a time and notifies their outcome.
type Orchestrator struct {
	cfg      Config
	lock     *JobLock
	runner   Runner
	notifier Notifier
	assets   portfolio.Source
	catalog  *Catalog
	history  HistoryRecorder
	archiver Archiver
	events   EventEmitter

	now   func() time.Time
	newID func() string

	// base is cancelled by Abort; every job context derives from it.
	base  context.Context
	abort context.CancelFunc

	inflight  sync.WaitGroup
	currentMu sync.RWMutex
	current   *JobRequest

	log zerolog.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(cfg Config, deps Dependencies, log zerolog.Logger) *Orchestrator {
	lock := deps.Lock
	if lock == nil {
		lock = NewJobLock()
	}
	catalog := deps.Catalog
	if catalog == nil {
		catalog = CatalogFor("en")
	}
	assets := deps.Assets
	if assets == nil {
		assets = portfolio.StaticSource(portfolio.InitialAssets())
	}

	base, abort := context.WithCancel(context.Background())

	return &Orchestrator{
		base:     base,
		abort:    abort,
		cfg:      cfg,
		lock:     lock,
		runner:   deps.Runner,
		notifier: deps.Notifier,
		assets:   assets,
		catalog:  catalog,
		history:  deps.History,
		archiver: deps.Archiver,
		events:   deps.Events,
		now:      time.Now,
		newID:    uuid.NewString,
		log:      log.With().Str("component", "inference_orchestrator").Logger(),
	}
}

// Run executes a job synchronously. It returns ErrJobRunning without side
// effects when another job is in progress.
func (o *Orchestrator) Run(ctx context.Context, trig Trigger) (JobResult, error) {
	if !o.lock.TryAcquire() {
		o.reject(trig)
		return JobResult{}, ErrJobRunning
	}

	o.inflight.Add(1)
	defer o.inflight.Done()

	jobCtx, cancel := o.jobContext(ctx)
	defer cancel()
	return o.execute(jobCtx, trig, o.newID()), nil
}

// Submit acquires the lock and runs the job in the background, returning the
// request ID. The job is detached from ctx cancellation.
func (o *Orchestrator) Submit(ctx context.Context, trig Trigger) (string, error) {
	if !o.lock.TryAcquire() {
		o.reject(trig)
		return "", ErrJobRunning
	}

	id := o.newID()
	jobCtx, cancel := o.jobContext(context.WithoutCancel(ctx))

	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()
		defer cancel()
		o.execute(jobCtx, trig, id)
	}()
	return id, nil
}

// Wait blocks until in-flight jobs finish or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Abort cancels every running job. The subprocess tree is killed and the job
// still sends its terminal notification.
func (o *Orchestrator) Abort() {
	o.abort()
}

// Shutdown waits for in-flight jobs until ctx is done. Jobs still running then
// are aborted and given up to abortGrace to deliver their terminal
// notification. It returns ctx.Err() when jobs had to be aborted.
func (o *Orchestrator) Shutdown(ctx context.Context, abortGrace time.Duration) error {
	if err := o.Wait(ctx); err == nil {
		return nil
	}

	o.log.Warn().Dur("abort_grace", abortGrace).Msg("Drain deadline reached, aborting running inference job")
	o.Abort()

	graceCtx, cancel := context.WithTimeout(context.Background(), abortGrace)
	defer cancel()
	if err := o.Wait(graceCtx); err != nil {
		o.log.Error().Err(err).Msg("Aborted inference job did not finish in time")
	}
	return ctx.Err()
}

// jobContext derives a context from parent that Abort also cancels.
func (o *Orchestrator) jobContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(o.base, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Status returns the lock state and the running request, if any.
func (o *Orchestrator) Status() Status {
	o.currentMu.RLock()
	defer o.currentMu.RUnlock()

	status := Status{State: o.lock.State()}
	if o.current != nil {
		req := *o.current
		status.Current = &req
	}
	return status
}

// setCurrent stores a copy of req, or clears it when req is nil.
func (o *Orchestrator) setCurrent(req *JobRequest) {
	o.currentMu.Lock()
	defer o.currentMu.Unlock()

	if req == nil {
		o.current = nil
		return
	}
	c := *req
	o.current = &c
}

func (o *Orchestrator) reject(trig Trigger) {
	o.log.Info().
		Str("trigger", trig.Kind.String()).
		Str("channel_id", trig.Target.ChannelID).
		Str("user_id", trig.Target.UserID).
		Msg("Inference already running, rejecting trigger")

	o.reply(trig, o.catalog.AlreadyRunning, true)
	o.emit(&events.JobRejectedData{
		Trigger:   trig.Kind.String(),
		ChannelID: trig.Target.ChannelID,
		UserID:    trig.Target.UserID,
	})
}

// execute runs a job whose lock is already held. The lock is released after
// the terminal notification; archiving happens after release.
func (o *Orchestrator) execute(ctx context.Context, trig Trigger, id string) JobResult {
	req, result, delivered := o.runLocked(ctx, trig, id)

	o.archive(ctx, req)

	o.emit(&events.JobFinishedData{
		RequestID:  req.ID,
		Trigger:    req.Trigger.String(),
		Result:     result.Kind.String(),
		Category:   result.Category().String(),
		ExitCode:   result.ExitCode,
		DurationMs: o.now().Sub(req.StartedAt).Milliseconds(),
		Delivered:  delivered,
	})
	return result
}

func (o *Orchestrator) runLocked(ctx context.Context, trig Trigger, id string) (req JobRequest, result JobResult, delivered bool) {
	defer o.lock.Release()
	defer o.setCurrent(nil)

	startedAt := o.now()
	req = JobRequest{
		ID:                 id,
		Trigger:            trig.Kind,
		TransactionLogPath: o.cfg.TransactionLogPath,
		StartedAt:          startedAt,
	}
	o.setCurrent(&req)

	log := o.log.With().
		Str("request_id", id).
		Str("trigger", trig.Kind.String()).
		Logger()
	log.Info().Str("text", trig.Text).Msg("Inference job accepted")

	o.reply(trig, o.catalog.Started, false)

	result = o.runJob(ctx, &req, log)

	// The terminal notification goes out even when ctx was cancelled.
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()

	delivered = o.notify(finishCtx, trig, req, result, log)
	o.record(finishCtx, trig, req, result, delivered, log)
	return req, result, delivered
}

// runJob covers Running and Resolving. Any error or panic becomes UnexpectedError.
func (o *Orchestrator) runJob(ctx context.Context, req *JobRequest, log zerolog.Logger) (result JobResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Inference job panicked")
			result = UnexpectedError(fmt.Sprint(r))
		}
	}()

	assets, err := o.assets.CurrentAssets(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load asset snapshot, continuing without it")
	}
	req.Assets = assets

	outputDir, err := createOutputDir(o.cfg.OutputBaseDir, req.StartedAt)
	if err != nil {
		return UnexpectedError(err.Error())
	}
	req.OutputDir = outputDir
	o.setCurrent(req)

	o.emit(&events.JobStartedData{
		RequestID: req.ID,
		Trigger:   req.Trigger.String(),
		OutputDir: req.OutputDir,
		StartedAt: req.StartedAt,
	})
	log.Info().
		Str("output_dir", req.OutputDir).
		Interface("assets", req.Assets).
		Msg("Running inference")

	if o.runner == nil {
		return UnexpectedError("inference runner is not configured")
	}
	outcome, err := o.runner.Run(ctx, *req)
	if err != nil {
		log.Error().Err(err).Msg("Inference process could not be run")
		return UnexpectedError(err.Error())
	}

	result, err = Resolve(outcome)
	if err != nil {
		log.Error().Err(err).Msg("Failed to resolve inference result")
		return UnexpectedError(err.Error())
	}

	log.Info().
		Str("result", result.Kind.String()).
		Int("exit_code", outcome.ExitCode).
		Dur("duration", outcome.Duration).
		Msg("Inference job resolved")
	return result
}

// notify sends the terminal message. A panic during delivery gets one fallback
// attempt with an UnexpectedError message.
func (o *Orchestrator) notify(ctx context.Context, trig Trigger, req JobRequest, result JobResult, log zerolog.Logger) bool {
	if result.IsError() {
		log.Warn().
			Str("result", result.Kind.String()).
			Str("category", result.Category().String()).
			Str("signal", truncateRunes(result.Signal(), logOutputLimit)).
			Msg("Inference job failed")
	}

	err := o.deliver(ctx, trig.Target, func() notify.Message { return o.compose(req, result) })
	if err == nil {
		return true
	}

	var panicErr *deliveryPanic
	if !errors.As(err, &panicErr) {
		log.Error().Err(err).Msg("Failed to deliver inference notification")
		return false
	}

	log.Error().Err(err).Msg("Notification panicked, sending fallback error message")
	fallback := UnexpectedError(panicErr.Error())
	if err := o.deliver(ctx, trig.Target, func() notify.Message { return o.compose(req, fallback) }); err != nil {
		log.Error().Err(err).Msg("Fallback notification failed")
		return false
	}
	return true
}

type deliveryPanic struct {
	value interface{}
}

func (p *deliveryPanic) Error() string {
	return fmt.Sprintf("notification panicked: %v", p.value)
}

func (o *Orchestrator) deliver(ctx context.Context, target notify.Target, compose func() notify.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &deliveryPanic{value: r}
		}
	}()

	if o.notifier == nil {
		return errors.New("notifier is not configured")
	}
	_, err = o.notifier.Deliver(ctx, target, compose())
	return err
}

// compose builds the terminal message for a result.
func (o *Orchestrator) compose(req JobRequest, result JobResult) notify.Message {
	msg := notify.Message{CreatedAt: o.now()}

	switch result.Kind {
	case ResultSuccess:
		msg.Lead = o.catalog.SuccessLead
		msg.Body = o.catalog.BuildReport(req, result.DecisionText)
		msg.Attachable = true
	case ResultSuccessNoArtifact:
		msg.Lead = o.catalog.NoArtifact
	default:
		msg.Lead = o.catalog.ErrorPrefix + o.catalog.ErrorText(result.Category(), result.Signal())
		msg.IsError = true
	}
	return msg
}

func (o *Orchestrator) record(ctx context.Context, trig Trigger, req JobRequest, result JobResult, delivered bool, log zerolog.Logger) {
	if o.history == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Job history recorder panicked")
		}
	}()

	rec := history.Record{
		ID:         req.ID,
		Trigger:    req.Trigger.String(),
		ChannelID:  trig.Target.ChannelID,
		UserID:     trig.Target.UserID,
		OutputDir:  req.OutputDir,
		StartedAt:  req.StartedAt,
		FinishedAt: o.now(),
		Result:     result.Kind.String(),
		Category:   result.Category().String(),
		ExitCode:   result.ExitCode,
		Detail:     truncateRunes(resultDetail(result), historyDetailLimit),
		Delivered:  delivered,
		Assets:     req.Assets,
	}
	if result.Kind == ResultTimeout {
		rec.ExitCode = -1
	}

	if err := o.history.Record(ctx, rec); err != nil {
		log.Error().Err(err).Msg("Failed to record job history")
	}
}

const historyDetailLimit = 4000

// archive uploads the output directory. Failures and panics are logged only.
func (o *Orchestrator) archive(ctx context.Context, req JobRequest) {
	if o.archiver == nil || req.OutputDir == "" {
		return
	}

	log := o.log.With().Str("request_id", req.ID).Logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Archiver panicked")
		}
	}()

	if err := o.archiver.Archive(ctx, req.ID, req.OutputDir); err != nil {
		log.Warn().Err(err).Msg("Failed to archive job output")
	}
}

func resultDetail(result JobResult) string {
	switch result.Kind {
	case ResultSuccess:
		return result.DecisionText
	case ResultFailure:
		return result.Stderr
	case ResultUnexpectedError:
		return result.Message
	default:
		return ""
	}
}

// reply sends an acknowledgement through the trigger's callback. Triggers
// without a callback only log it.
func (o *Orchestrator) reply(trig Trigger, text string, ephemeral bool) {
	if trig.Reply == nil {
		o.log.Info().Str("trigger", trig.Kind.String()).Str("text", text).Msg("Acknowledgement (no reply channel)")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			o.log.Error().Interface("panic", r).Msg("Reply callback panicked")
		}
	}()
	if err := trig.Reply(text, ephemeral); err != nil {
		o.log.Warn().Err(err).Str("trigger", trig.Kind.String()).Msg("Failed to send acknowledgement")
	}
}

func (o *Orchestrator) emit(data events.EventData) {
	if o.events == nil {
		return
	}
	o.events.EmitTyped(eventModule, data)
}

// createOutputDir creates <base>/<YYYYMMDD_HHMMSS> (UTC). A numeric suffix is
// appended when that directory already exists.
func createOutputDir(base string, startedAt time.Time) (string, error) {
	if base == "" {
		return "", errors.New("output base directory is not configured")
	}
	if err := os.MkdirAll(base, 0755); err != nil {
		return "", fmt.Errorf("failed to create output base directory: %w", err)
	}

	name := startedAt.UTC().Format(outputDirLayout)
	dir := filepath.Join(base, name)
	for i := 1; ; i++ {
		err := os.Mkdir(dir, 0755)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
		dir = filepath.Join(base, name+"_"+strconv.Itoa(i))
	}
}
