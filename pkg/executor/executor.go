// Package executor drives a job through its workflow's blocks sequentially,
// maintaining the job state machine and honouring cancel requests promptly,
// including mid-block for the network-bound runners.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/leadflow/pkg/blocks"
	"github.com/dukex/leadflow/pkg/dataset"
	"github.com/dukex/leadflow/pkg/eventbus"
	"github.com/dukex/leadflow/pkg/events"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/otelhelper"
	"github.com/dukex/leadflow/pkg/persistence"
)

const (
	defaultCancelPollInterval = time.Second
	previewRows               = 5
)

// errJobCancelled signals that a cancel request was observed while a block
// was in flight. Cancellation is a status, not a failure.
var errJobCancelled = errors.New("job cancelled")

type Executor struct {
	persistence persistence.Persistence
	runner      *blocks.Runner
	eventBus    eventbus.EventPublisher
	tracer      trace.Tracer
	logger      *slog.Logger

	// CancelPollInterval is how often an in-flight network-bound block is
	// checked against a cancel request. Injectable for tests.
	CancelPollInterval time.Duration
}

func NewExecutor(
	persistence persistence.Persistence,
	runner *blocks.Runner,
	eventBus eventbus.EventPublisher,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		persistence:        persistence,
		runner:             runner,
		eventBus:           eventBus,
		tracer:             tracer,
		logger:             logger,
		CancelPollInterval: defaultCancelPollInterval,
	}
}

// Execute runs the whole job to a terminal state. It never returns an error
// and never panics through: nothing downstream awaits it synchronously, so
// every fault has to land on the job record instead.
func (e *Executor) Execute(ctx context.Context, jobID string) {
	logger := e.logger.With("module", "executor", "job_id", jobID)

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "Executor panicked", "panic", r)
			e.markUnexpectedFailure(ctx, jobID, fmt.Sprintf("%v", r))
		}
	}()

	if err := e.execute(ctx, jobID, logger); err != nil {
		logger.ErrorContext(ctx, "Executor failed unexpectedly", "error", err)
		e.markUnexpectedFailure(ctx, jobID, err.Error())
	}
}

func (e *Executor) execute(ctx context.Context, jobID string, logger *slog.Logger) error {
	job, err := e.persistence.JobByID(ctx, jobID)
	if err != nil {
		if persistence.IsJobNotFound(err) {
			return nil
		}

		return err
	}

	if job.Status == models.JobStatusCancelled {
		logger.InfoContext(ctx, "Job was cancelled before execution started")

		return nil
	}

	workflow, err := e.persistence.WorkflowByID(ctx, job.WorkflowID)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			_, updateErr := e.persistence.UpdateJob(ctx, jobID, func(job *models.Job) {
				if job.Status.IsTerminal() {
					return
				}

				now := time.Now().UTC()
				job.Status = models.JobStatusFailed
				job.ErrorMessage = "Workflow not found"
				job.FinishedAt = &now
			})

			return updateErr
		}

		return err
	}

	logger = logger.With("workflow_id", workflow.ID)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "job.execute",
		attribute.String(otelhelper.JobIDKey, jobID),
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
	)
	defer span.End()

	startedAt := time.Now().UTC()

	if _, err := e.persistence.UpdateJob(ctx, jobID, func(job *models.Job) {
		if job.Status.IsTerminal() {
			return
		}

		job.Status = models.JobStatusRunning
		job.StartedAt = &startedAt
	}); err != nil {
		return err
	}

	logger.InfoContext(ctx, "Starting job execution", "total_blocks", len(workflow.Blocks))
	e.publish(ctx, events.JobStarted{
		BaseEvent:   e.baseEvent(events.JobStartedEvent, jobID, workflow.ID),
		TotalBlocks: len(workflow.Blocks),
	})

	var ds *dataset.Dataset

	for _, block := range workflow.Blocks {
		current, err := e.persistence.JobByID(ctx, jobID)
		if err != nil || current.Status == models.JobStatusCancelled {
			logger.InfoContext(ctx, "Job cancelled between blocks")
			e.publishCancelled(ctx, jobID, workflow.ID, current)

			return nil
		}

		if _, err := e.persistence.UpdateJob(ctx, jobID, func(job *models.Job) {
			if job.Status.IsTerminal() {
				return
			}

			blockID := block.ID
			job.CurrentBlockID = &blockID
			job.BlockStates[block.ID] = models.JobStatusRunning
		}); err != nil {
			return err
		}

		blockLogger := logger.With("block_id", block.ID, "block_type", block.Type)
		blockLogger.InfoContext(ctx, "Executing block")

		result, err := e.dispatch(ctx, jobID, block, ds)

		switch {
		case errors.Is(err, errJobCancelled):
			blockLogger.InfoContext(ctx, "Block cancelled mid-flight")

			updated, updateErr := e.persistence.UpdateJob(ctx, jobID, func(job *models.Job) {
				job.CurrentBlockID = nil
			})
			if updateErr != nil {
				return updateErr
			}

			e.publishCancelled(ctx, jobID, workflow.ID, updated)

			return nil

		case err != nil:
			blockLogger.ErrorContext(ctx, "Block failed", "error", err)
			otelhelper.SetError(span, err)

			if _, updateErr := e.persistence.UpdateJob(ctx, jobID, func(job *models.Job) {
				if job.Status.IsTerminal() {
					return
				}

				now := time.Now().UTC()
				failedID := block.ID
				job.Status = models.JobStatusFailed
				job.FailedBlockID = &failedID
				job.CurrentBlockID = nil
				job.ErrorMessage = errorMessage(err)
				job.ErrorDetails = map[string]any{
					"block_id":   block.ID,
					"block_type": string(block.Type),
					"error":      err.Error(),
				}
				job.BlockStates[block.ID] = models.JobStatusFailed
				job.FinishedAt = &now
			}); updateErr != nil {
				return updateErr
			}

			e.publish(ctx, events.JobFailed{
				BaseEvent:     e.baseEvent(events.JobFailedEvent, jobID, workflow.ID),
				FailedBlockID: block.ID,
				Error:         err.Error(),
			})

			return nil
		}

		ds = result

		if _, err := e.persistence.UpdateJob(ctx, jobID, func(job *models.Job) {
			if job.Status.IsTerminal() {
				return
			}

			job.CompletedBlocks++
			job.CurrentBlockID = nil
			job.BlockStates[block.ID] = models.JobStatusCompleted

			if ds != nil && ds.Len() > 0 {
				if job.BlockPreviews == nil {
					job.BlockPreviews = make(map[string]models.Preview)
				}

				job.BlockPreviews[block.ID] = preview(ds)
			}
		}); err != nil {
			return err
		}

		rowCount := 0
		if ds != nil {
			rowCount = ds.Len()
		}

		blockLogger.InfoContext(ctx, "Block completed", "rows", rowCount)
		e.publish(ctx, events.BlockFinished{
			BaseEvent: e.baseEvent(events.BlockFinishedEvent, jobID, workflow.ID),
			BlockID:   block.ID,
			BlockType: block.Type,
			Status:    models.JobStatusCompleted,
			RowCount:  rowCount,
		})
	}

	outputPath := resolveOutputPath(workflow.Blocks)
	finishedAt := time.Now().UTC()

	updated, err := e.persistence.UpdateJob(ctx, jobID, func(job *models.Job) {
		if job.Status.IsTerminal() {
			return
		}

		job.Status = models.JobStatusCompleted
		job.CurrentBlockID = nil
		job.FinishedAt = &finishedAt
		job.OutputPath = outputPath

		if ds != nil && ds.Len() > 0 {
			resultPreview := preview(ds)
			job.ResultPreview = &resultPreview
		}
	})
	if err != nil {
		return err
	}

	// A cancel that won the race right before the final update leaves the
	// job CANCELLED; report what actually happened.
	if updated.Status == models.JobStatusCancelled {
		e.publishCancelled(ctx, jobID, workflow.ID, updated)

		return nil
	}

	logger.InfoContext(ctx, "Job completed", "completed_blocks", updated.CompletedBlocks)
	e.publish(ctx, events.JobCompleted{
		BaseEvent:       e.baseEvent(events.JobCompletedEvent, jobID, workflow.ID),
		CompletedBlocks: updated.CompletedBlocks,
		Duration:        finishedAt.Sub(startedAt),
		OutputPath:      updated.OutputPath,
	})

	return nil
}

// dispatch runs one block. Network-bound runners get the supervisory
// cancellation wrapper; the CPU-bound ones run inline since each job already
// has its own goroutine.
func (e *Executor) dispatch(ctx context.Context, jobID string, block *models.Block, ds *dataset.Dataset) (*dataset.Dataset, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "block.run",
		attribute.String(otelhelper.BlockIDKey, block.ID),
		attribute.String(otelhelper.BlockTypeKey, string(block.Type)),
	)
	defer span.End()

	switch block.Type {
	case models.BlockTypeEnrichLead, models.BlockTypeFindEmail:
		return e.runCancellable(ctx, jobID, block, ds)
	default:
		return e.runner.Run(ctx, block, ds)
	}
}

// runCancellable runs the block in its own goroutine while a supervisory loop
// polls the job at a fixed cadence. If a cancel request lands first, the
// block's context is cancelled and the block is abandoned without waiting for
// it to drain naturally. The runner worked on its own dataset copy and never
// published it, so nothing partial is ever committed.
func (e *Executor) runCancellable(ctx context.Context, jobID string, block *models.Block, ds *dataset.Dataset) (*dataset.Dataset, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		ds  *dataset.Dataset
		err error
	}

	done := make(chan outcome, 1)

	go func() {
		result, err := e.runner.Run(runCtx, block, ds)
		done <- outcome{ds: result, err: err}
	}()

	ticker := time.NewTicker(e.CancelPollInterval)
	defer ticker.Stop()

	for {
		select {
		case result := <-done:
			if result.err != nil && errors.Is(result.err, context.Canceled) {
				return nil, errJobCancelled
			}

			return result.ds, result.err
		case <-ticker.C:
			job, err := e.persistence.JobByID(ctx, jobID)
			if err != nil || job.Status == models.JobStatusCancelled {
				cancel()

				return nil, errJobCancelled
			}
		}
	}
}

func (e *Executor) markUnexpectedFailure(ctx context.Context, jobID, message string) {
	_, err := e.persistence.UpdateJob(ctx, jobID, func(job *models.Job) {
		if job.Status.IsTerminal() {
			return
		}

		now := time.Now().UTC()
		job.Status = models.JobStatusFailed
		job.CurrentBlockID = nil
		job.ErrorMessage = "Unexpected executor error: " + message
		job.ErrorDetails = map[string]any{"error": message}
		job.FinishedAt = &now
	})
	if err != nil && !persistence.IsJobNotFound(err) {
		e.logger.ErrorContext(ctx, "Failed to record unexpected executor error", "job_id", jobID, "error", err)
	}
}

func (e *Executor) publishCancelled(ctx context.Context, jobID, workflowID string, job *models.Job) {
	completedBlocks := 0
	if job != nil {
		completedBlocks = job.CompletedBlocks
	}

	e.publish(ctx, events.JobCancelled{
		BaseEvent:       e.baseEvent(events.JobCancelledEvent, jobID, workflowID),
		CompletedBlocks: completedBlocks,
	})
}

// publish is best-effort: a broken event bus must never fail a job.
func (e *Executor) publish(ctx context.Context, event eventbus.Event) {
	if e.eventBus == nil {
		return
	}

	if err := e.eventBus.Publish(ctx, "leadflow-executor", event); err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func (e *Executor) baseEvent(eventType events.EventType, jobID, workflowID string) events.BaseEvent {
	return events.BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		JobID:      jobID,
		WorkflowID: workflowID,
	}
}

func preview(ds *dataset.Dataset) models.Preview {
	return models.Preview{
		Columns: ds.Columns(),
		Rows:    ds.PreviewRows(previewRows),
	}
}

// resolveOutputPath reports the final save block's resolved file name, if the
// workflow ends with one.
func resolveOutputPath(workflowBlocks []*models.Block) *string {
	if len(workflowBlocks) == 0 {
		return nil
	}

	last := workflowBlocks[len(workflowBlocks)-1]

	params, ok := last.Params.(models.SaveCSVParams)
	if !ok {
		return nil
	}

	name, err := blocks.ResolveSaveFilename(params)
	if err != nil {
		return nil
	}

	return &name
}

func errorMessage(err error) string {
	message := err.Error()
	if message == "" {
		message = fmt.Sprintf("%T: (no message)", err)
	}

	return message
}
