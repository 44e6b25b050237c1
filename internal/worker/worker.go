package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ecommerce-etl/internal/broker"
	"ecommerce-etl/internal/models"
	"ecommerce-etl/internal/monitor"
	"ecommerce-etl/internal/util"

	"go.uber.org/zap"
)

const recentAlertsLimit = 50

// AlertWorker consumes pipeline events and raises alerts on failures
type AlertWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger

	mu     sync.Mutex
	recent []models.Alert
}

// NewAlertWorker creates a new alert worker
func NewAlertWorker(consumer *broker.Consumer) *AlertWorker {
	w := &AlertWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnStepFailed(w.HandleStepFailed)
	w.eventHandler.OnPipelineFailed(w.HandlePipelineFailed)
	w.eventHandler.OnPipelineCompleted(w.HandlePipelineCompleted)
	return w
}

// Start starts the worker
func (w *AlertWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting alert worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *AlertWorker) Stop() error {
	w.logger.Info("Stopping alert worker")
	return w.consumer.Close()
}

// HandleStepFailed raises a warning; the run may still be retried by an operator
func (w *AlertWorker) HandleStepFailed(_ context.Context, ev *models.PipelineEvent) error {
	w.raise(models.SeverityWarning, "step_failure", ev.Timestamp,
		fmt.Sprintf("Step %s of run %s failed after %d attempt(s): %s", ev.Step, ev.RunID, ev.Attempt, ev.Error))
	return nil
}

// HandlePipelineFailed raises a critical alert for a failed run
func (w *AlertWorker) HandlePipelineFailed(_ context.Context, ev *models.PipelineEvent) error {
	w.raise(models.SeverityCritical, "pipeline_run", ev.Timestamp,
		fmt.Sprintf("Pipeline run %s failed: %s", ev.RunID, ev.Error))
	return nil
}

// HandlePipelineCompleted records a successful run
func (w *AlertWorker) HandlePipelineCompleted(_ context.Context, ev *models.PipelineEvent) error {
	w.logger.Info("Pipeline run completed",
		zap.String("run_id", ev.RunID),
		zap.Float64("duration_seconds", ev.DurationSeconds))
	return nil
}

// RecentAlerts returns the most recent alerts, oldest first
func (w *AlertWorker) RecentAlerts() []models.Alert {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]models.Alert, len(w.recent))
	copy(out, w.recent)
	return out
}

func (w *AlertWorker) raise(severity, check string, at time.Time, msg string) {
	a := models.Alert{Severity: severity, Check: check, Message: msg, Timestamp: at}
	monitor.RaiseAlert(w.logger, a)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.recent = append(w.recent, a)
	if len(w.recent) > recentAlertsLimit {
		w.recent = w.recent[len(w.recent)-recentAlertsLimit:]
	}
}
