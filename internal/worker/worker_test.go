package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ecommerce-etl/internal/broker"
	"ecommerce-etl/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func message(t *testing.T, ev *models.PipelineEvent) kafka.Message {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	return kafka.Message{Key: []byte("run-" + ev.RunID), Value: data}
}

func TestFailedRunRaisesCriticalAlert(t *testing.T) {
	w := NewAlertWorker(broker.NewConsumer([]string{"localhost:9092"}, "pipeline-events", "test-group"))
	defer w.Stop()

	at := time.Date(2024, 6, 30, 2, 5, 0, 0, time.UTC)
	failed := models.NewPipelineEvent(models.EventTypePipelineFailed, "PIPE_20240630_020000", at)
	failed.Error = "warehouse_load failed: connection refused"

	step := models.NewPipelineEvent(models.EventTypeStepFailed, "PIPE_20240630_020000", at)
	step.Step, step.Attempt, step.Error = "warehouse_load", 3, "connection refused"

	done := models.NewPipelineEvent(models.EventTypePipelineCompleted, "PIPE_20240701_020000", at)
	retry := models.NewPipelineEvent(models.EventTypeStepRetrying, "PIPE_20240701_020000", at)

	ctx := context.Background()
	for _, ev := range []*models.PipelineEvent{step, failed, done, retry} {
		require.NoError(t, w.eventHandler.HandleMessage(ctx, message(t, ev)))
	}

	alerts := w.RecentAlerts()
	require.Len(t, alerts, 2)
	assert.Equal(t, models.SeverityWarning, alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "warehouse_load")
	assert.Equal(t, models.SeverityCritical, alerts[1].Severity)
	assert.Equal(t, "pipeline_run", alerts[1].Check)
	assert.Equal(t, at, alerts[1].Timestamp)
}

func TestMalformedMessageIsRejected(t *testing.T) {
	h := broker.NewEventHandler()
	err := h.HandleMessage(context.Background(), kafka.Message{Value: []byte("not json")})
	assert.Error(t, err)
}

func TestRecentAlertsAreBounded(t *testing.T) {
	w := NewAlertWorker(broker.NewConsumer([]string{"localhost:9092"}, "pipeline-events", "test-group"))
	defer w.Stop()

	for i := 0; i < recentAlertsLimit+10; i++ {
		require.NoError(t, w.HandlePipelineFailed(context.Background(),
			models.NewPipelineEvent(models.EventTypePipelineFailed, "PIPE", time.Now())))
	}
	assert.Len(t, w.RecentAlerts(), recentAlertsLimit)
}
