package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"ecommerce-etl/internal/models"
	"ecommerce-etl/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing pipeline lifecycle events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// Publish sends a pipeline event keyed by its run id, so one run stays on one partition
func (ep *EventPublisher) Publish(ctx context.Context, event *models.PipelineEvent) error {
	key := fmt.Sprintf("run-%s", event.RunID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes incoming pipeline events
type EventHandler struct {
	onStepFailed     func(context.Context, *models.PipelineEvent) error
	onPipelineFailed func(context.Context, *models.PipelineEvent) error
	onPipelineDone   func(context.Context, *models.PipelineEvent) error
	logger           *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnStepFailed registers a handler for STEP_FAILED events
func (eh *EventHandler) OnStepFailed(handler func(context.Context, *models.PipelineEvent) error) {
	eh.onStepFailed = handler
}

// OnPipelineFailed registers a handler for PIPELINE_FAILED events
func (eh *EventHandler) OnPipelineFailed(handler func(context.Context, *models.PipelineEvent) error) {
	eh.onPipelineFailed = handler
}

// OnPipelineCompleted registers a handler for PIPELINE_COMPLETED events
func (eh *EventHandler) OnPipelineCompleted(handler func(context.Context, *models.PipelineEvent) error) {
	eh.onPipelineDone = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	var handler func(context.Context, *models.PipelineEvent) error
	switch baseEvent.EventType {
	case models.EventTypeStepFailed:
		handler = eh.onStepFailed
	case models.EventTypePipelineFailed:
		handler = eh.onPipelineFailed
	case models.EventTypePipelineCompleted:
		handler = eh.onPipelineDone
	}
	if handler == nil {
		return nil
	}

	var event models.PipelineEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal %s event: %w", baseEvent.EventType, err)
	}
	return handler(ctx, &event)
}
