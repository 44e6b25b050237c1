package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ecommerce-etl/internal/models"
	"ecommerce-etl/internal/util"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	// ReportFile is the execution report name under the processed directory
	ReportFile = models.ExecutionReportFile
	// ErrorLogFile collects one line per failed attempt
	ErrorLogFile = "pipeline_errors.log"

	runIDLayout    = "20060102_150405"
	publishTimeout = 5 * time.Second
)

var (
	// ErrStepTimeout is returned when an attempt exceeds the step deadline
	ErrStepTimeout = errors.New("step timed out")
	// ErrStepPanic wraps a panic recovered from a step attempt
	ErrStepPanic = errors.New("step panicked")
)

// Publisher receives lifecycle events; delivery failures never affect a run
type Publisher interface {
	Publish(ctx context.Context, event *models.PipelineEvent) error
}

// Options configure retries, deadlines and where the orchestrator writes
type Options struct {
	MaxRetries  int
	Backoff     []time.Duration
	StepTimeout time.Duration
	ReportPath  string
	LogDir      string
}

// Orchestrator runs steps in order, retrying each with backoff and halting
// on the first step that exhausts its attempts
type Orchestrator struct {
	steps     []Step
	opts      Options
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

// New creates an orchestrator for the given ordered steps
func New(steps []Step, opts Options, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = util.GetLogger()
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	return &Orchestrator{
		steps:  steps,
		opts:   opts,
		logger: logger,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// WithPublisher attaches an event publisher
func (o *Orchestrator) WithPublisher(p Publisher) *Orchestrator {
	o.publisher = p
	return o
}

// RunID derives the run identifier from its start time
func RunID(start time.Time) string {
	return "PIPE_" + start.Format(runIDLayout)
}

// BackoffFor returns the delay before retry number retry (1-based); the last
// configured delay repeats once the schedule is exhausted
func BackoffFor(schedule []time.Duration, retry int) time.Duration {
	if len(schedule) == 0 || retry < 1 {
		return 0
	}
	i := retry - 1
	if i >= len(schedule) {
		i = len(schedule) - 1
	}
	return schedule[i]
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run executes every step and returns the execution report. The report is
// persisted after each step and once more at the end, whatever the outcome.
// The returned error is non-nil when a step failed or the report could not be written.
func (o *Orchestrator) Run(ctx context.Context) (*models.ExecutionReport, error) {
	start := o.now()
	report := &models.ExecutionReport{
		PipelineExecutionID: RunID(start),
		StartTime:           start,
		Status:              models.RunRunning,
		StepsExecuted:       models.StepResults{},
		Errors:              []string{},
		Warnings:            []string{},
	}

	logger := o.logger.With(zap.String("run_id", report.PipelineExecutionID))
	if o.opts.LogDir != "" {
		path := filepath.Join(o.opts.LogDir, fmt.Sprintf("pipeline_orchestrator_%s.log", report.PipelineExecutionID))
		teed, closeLog, err := util.TeeToFile(logger, path)
		if err != nil {
			logger.Warn("Run log file unavailable", zap.Error(err))
		} else {
			logger = teed
			defer closeLog()
		}
	}

	logger.Info("Pipeline started", zap.Int("steps", len(o.steps)))
	o.publish(ctx, logger, models.NewPipelineEvent(models.EventTypePipelineStarted, report.PipelineExecutionID, start))

	var runErr error
	for _, step := range o.steps {
		result := o.runStep(ctx, logger, report.PipelineExecutionID, step)
		report.StepsExecuted = append(report.StepsExecuted, result)

		if result.Status == models.StepFailed {
			report.Errors = append(report.Errors, fmt.Sprintf("%s failed: %s", step.Name(), result.ErrorMessage))
			runErr = fmt.Errorf("step %s failed after %d attempt(s): %s", step.Name(), len(result.Attempts), result.ErrorMessage)
			break
		}
		if err := o.writeReport(report); err != nil {
			logger.Warn("Failed to persist partial report", zap.Error(err))
		}
	}

	end := o.now()
	report.EndTime = &end
	report.TotalDurationSeconds = util.Round2(end.Sub(start).Seconds())
	report.Status = models.RunSuccess
	eventType := models.EventTypePipelineCompleted
	if runErr != nil {
		report.Status = models.RunFailed
		eventType = models.EventTypePipelineFailed
	}
	util.PipelineRunsTotal.WithLabelValues(report.Status).Inc()

	if err := o.writeReport(report); err != nil {
		runErr = multierr.Append(runErr, fmt.Errorf("failed to write execution report: %w", err))
	}

	ev := models.NewPipelineEvent(eventType, report.PipelineExecutionID, end)
	ev.Status = report.Status
	ev.DurationSeconds = report.TotalDurationSeconds
	if len(report.Errors) > 0 {
		ev.Error = report.Errors[0]
	}
	o.publish(ctx, logger, ev)

	logger.Info("Pipeline finished",
		zap.String("status", report.Status),
		zap.Float64("duration_seconds", report.TotalDurationSeconds))
	return report, runErr
}

func (o *Orchestrator) runStep(ctx context.Context, logger *zap.Logger, runID string, step Step) models.StepResult {
	name := step.Name()
	logger = logger.With(zap.String("step", name))
	result := models.StepResult{Name: name, Status: models.StepRunning}

	var lastErr error
	for attempt := 1; attempt <= o.opts.MaxRetries; attempt++ {
		if attempt > 1 {
			delay := BackoffFor(o.opts.Backoff, attempt-1)
			util.StepRetriesTotal.WithLabelValues(name).Inc()
			ev := models.NewPipelineEvent(models.EventTypeStepRetrying, runID, o.now())
			ev.Step, ev.Attempt, ev.Status = name, attempt, models.StepRunning
			o.publish(ctx, logger, ev)

			logger.Info("Retrying step", zap.Int("attempt", attempt), zap.Duration("backoff", delay))
			if err := o.sleep(ctx, delay); err != nil {
				lastErr = err
				break
			}
		}

		logger.Info("Starting step", zap.Int("attempt", attempt))
		started := o.now()
		err := o.attempt(ctx, step)
		elapsed := o.now().Sub(started)
		duration := util.Round2(elapsed.Seconds())

		rec := models.AttemptRecord{Attempt: attempt, DurationSeconds: duration}
		util.StepAttemptsTotal.WithLabelValues(name).Inc()

		if err == nil {
			result.Attempts = append(result.Attempts, rec)
			result.Status = models.StepSuccess
			result.DurationSeconds = duration
			result.RetryAttempts = attempt - 1
			util.StepDuration.WithLabelValues(name, models.StepSuccess).Observe(elapsed.Seconds())

			ev := models.NewPipelineEvent(models.EventTypeStepSucceeded, runID, o.now())
			ev.Step, ev.Attempt, ev.Status, ev.DurationSeconds = name, attempt, models.StepSuccess, duration
			o.publish(ctx, logger, ev)

			logger.Info("Completed step", zap.Int("attempt", attempt), zap.Duration("elapsed", elapsed))
			return result
		}

		rec.Error = err.Error()
		result.Attempts = append(result.Attempts, rec)
		result.DurationSeconds = duration
		lastErr = err
		util.StepDuration.WithLabelValues(name, models.StepFailed).Observe(elapsed.Seconds())

		logger.Error("Step attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", o.opts.MaxRetries),
			zap.Error(err))
		o.appendErrorLog(logger, name, err)

		if ctx.Err() != nil {
			break
		}
	}

	result.Status = models.StepFailed
	result.RetryAttempts = len(result.Attempts) - 1
	if result.RetryAttempts < 0 {
		result.RetryAttempts = 0
	}
	if lastErr != nil {
		result.ErrorMessage = lastErr.Error()
	}
	util.StepFailuresTotal.WithLabelValues(name, failureReason(lastErr)).Inc()

	ev := models.NewPipelineEvent(models.EventTypeStepFailed, runID, o.now())
	ev.Step, ev.Attempt, ev.Status, ev.Error = name, len(result.Attempts), models.StepFailed, result.ErrorMessage
	o.publish(ctx, logger, ev)
	return result
}

// attempt runs one try of step under the step deadline, converting a panic
// into an error. It never returns while the step is still running.
func (o *Orchestrator) attempt(parent context.Context, step Step) (err error) {
	ctx, span := util.StartSpan(parent, "pipeline.step."+step.Name())
	defer span.End()

	if o.opts.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.StepTimeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%w: %v", ErrStepPanic, r)
			}
		}()
		done <- step.Run(ctx)
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		// the attempt is over only once the step has returned
		<-done
		err = ctx.Err()
	}
	if err != nil && parent.Err() == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s", ErrStepTimeout, o.opts.StepTimeout)
	}
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (o *Orchestrator) writeReport(report *models.ExecutionReport) error {
	if o.opts.ReportPath == "" {
		return nil
	}
	return models.WriteJSON(o.opts.ReportPath, report)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrStepTimeout):
		return "timeout"
	case errors.Is(err, ErrStepPanic):
		return "panic"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "error"
	}
}

// appendErrorLog writes "timestamp | step | error" to the shared error log
func (o *Orchestrator) appendErrorLog(logger *zap.Logger, step string, stepErr error) {
	if o.opts.LogDir == "" {
		return
	}
	if err := os.MkdirAll(o.opts.LogDir, 0o755); err != nil {
		logger.Warn("Failed to create log directory", zap.Error(err))
		return
	}
	path := filepath.Join(o.opts.LogDir, ErrorLogFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.Warn("Failed to open error log", zap.String("path", path), zap.Error(err))
		return
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "%s | %s | %s\n", o.now().Format(time.RFC3339), step, stepErr); err != nil {
		logger.Warn("Failed to append error log", zap.Error(err))
	}
}

func (o *Orchestrator) publish(ctx context.Context, logger *zap.Logger, ev *models.PipelineEvent) {
	if o.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := o.publisher.Publish(ctx, ev); err != nil {
		logger.Warn("Failed to publish pipeline event", zap.String("type", ev.EventType), zap.Error(err))
	}
}
