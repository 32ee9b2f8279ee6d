// Package events defines event types and structures for job lifecycle notifications.
package events

import (
	"time"

	"github.com/dukex/leadflow/pkg/models"
)

type EventType string

const Topic = "leadflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	JobStartedEvent    EventType = "job.started"
	JobCompletedEvent  EventType = "job.completed"
	JobFailedEvent     EventType = "job.failed"
	JobCancelledEvent  EventType = "job.cancelled"
	BlockFinishedEvent EventType = "job.block.finished"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	JobID      string    `json:"job_id"`
	WorkflowID string    `json:"workflow_id"`
}

type JobStarted struct {
	BaseEvent

	TotalBlocks int `json:"total_blocks"`
}

func (e JobStarted) GetType() EventType { return JobStartedEvent }

type JobCompleted struct {
	BaseEvent

	CompletedBlocks int           `json:"completed_blocks"`
	Duration        time.Duration `json:"duration"`
	OutputPath      *string       `json:"output_path,omitempty"`
}

func (e JobCompleted) GetType() EventType { return JobCompletedEvent }

type JobFailed struct {
	BaseEvent

	FailedBlockID string `json:"failed_block_id,omitempty"`
	Error         string `json:"error"`
}

func (e JobFailed) GetType() EventType { return JobFailedEvent }

type JobCancelled struct {
	BaseEvent

	CompletedBlocks int `json:"completed_blocks"`
}

func (e JobCancelled) GetType() EventType { return JobCancelledEvent }

type BlockFinished struct {
	BaseEvent

	BlockID   string           `json:"block_id"`
	BlockType models.BlockType `json:"block_type"`
	Status    models.JobStatus `json:"status"`
	RowCount  int              `json:"row_count"`
}

func (e BlockFinished) GetType() EventType { return BlockFinishedEvent }
