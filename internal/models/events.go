package models

import (
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventTypePipelineStarted   = "PIPELINE_STARTED"
	EventTypeStepSucceeded     = "STEP_SUCCEEDED"
	EventTypeStepRetrying      = "STEP_RETRYING"
	EventTypeStepFailed        = "STEP_FAILED"
	EventTypePipelineCompleted = "PIPELINE_COMPLETED"
	EventTypePipelineFailed    = "PIPELINE_FAILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// PipelineEvent describes a lifecycle transition of a run or one of its steps
type PipelineEvent struct {
	BaseEvent
	RunID           string  `json:"run_id"`
	Step            string  `json:"step,omitempty"`
	Status          string  `json:"status"`
	Attempt         int     `json:"attempt,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// NewPipelineEvent stamps a new event with a fresh id
func NewPipelineEvent(eventType, runID string, at time.Time) *PipelineEvent {
	return &PipelineEvent{
		BaseEvent: BaseEvent{
			EventID:   uuid.NewString(),
			EventType: eventType,
			Timestamp: at,
		},
		RunID: runID,
	}
}
