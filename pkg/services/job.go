package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
)

// Job implements the job store: execution-state records with an idempotent
// cancel transition.
type Job struct {
	persistence persistence.Persistence
}

func NewJob(persistence persistence.Persistence) *Job {
	return &Job{persistence: persistence}
}

func (s *Job) List(ctx context.Context) ([]*models.Job, error) {
	return s.persistence.Jobs(ctx)
}

func (s *Job) FetchByID(ctx context.Context, id string) (*models.Job, error) {
	return s.persistence.JobByID(ctx, id)
}

// Create snapshots the workflow's block ids at this instant: the job's
// block_states stay keyed by these ids even if the workflow is edited later.
func (s *Job) Create(ctx context.Context, workflowID string) (*models.Job, error) {
	workflow, err := s.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	blockStates := make(map[string]models.JobStatus, len(workflow.Blocks))
	for _, block := range workflow.Blocks {
		blockStates[block.ID] = models.JobStatusPending
	}

	job := &models.Job{
		ID:          uuid.New().String(),
		WorkflowID:  workflowID,
		Status:      models.JobStatusPending,
		TotalBlocks: len(workflow.Blocks),
		BlockStates: blockStates,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.persistence.SaveJob(ctx, job); err != nil {
		return nil, err
	}

	return job, nil
}

// Cancel transitions a job to CANCELLED. Cancelling an already-terminal job
// is a no-op success; only an unknown id fails. Blocks still pending or
// running flip to CANCELLED, completed/failed blocks keep their history.
// finished_at is only set when the job actually started: cancelling a job
// that never ran leaves it nil.
func (s *Job) Cancel(ctx context.Context, id string) (*models.Job, error) {
	return s.persistence.UpdateJob(ctx, id, func(job *models.Job) {
		if job.Status.IsTerminal() {
			return
		}

		job.Status = models.JobStatusCancelled
		job.CurrentBlockID = nil

		for blockID, state := range job.BlockStates {
			if state == models.JobStatusPending || state == models.JobStatusRunning {
				job.BlockStates[blockID] = models.JobStatusCancelled
			}
		}

		if job.StartedAt != nil {
			now := time.Now().UTC()
			job.FinishedAt = &now
		}
	})
}
