package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
)

func TestJob_Create_SnapshotsBlockStates(t *testing.T) {
	t.Parallel()

	workflowService, store := newWorkflowService()
	jobService := NewJob(store)

	workflow, err := workflowService.Create(t.Context(), CreateWorkflowInput{Blocks: validBlocks()})
	require.NoError(t, err)

	job, err := jobService.Create(t.Context(), workflow.ID)
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, 3, job.TotalBlocks)
	assert.Equal(t, 0, job.CompletedBlocks)
	assert.Nil(t, job.StartedAt)
	assert.Nil(t, job.FinishedAt)
	require.Len(t, job.BlockStates, 3)

	for _, block := range workflow.Blocks {
		assert.Equal(t, models.JobStatusPending, job.BlockStates[block.ID])
	}
}

func TestJob_Create_SnapshotSurvivesWorkflowEdit(t *testing.T) {
	t.Parallel()

	workflowService, store := newWorkflowService()
	jobService := NewJob(store)

	workflow, err := workflowService.Create(t.Context(), CreateWorkflowInput{Blocks: validBlocks()})
	require.NoError(t, err)

	job, err := jobService.Create(t.Context(), workflow.ID)
	require.NoError(t, err)

	// Replacing the blocks reassigns ids, but the job keeps its snapshot.
	newBlocks := validBlocks()
	_, err = workflowService.Update(t.Context(), workflow.ID, UpdateWorkflowInput{Blocks: &newBlocks})
	require.NoError(t, err)

	fetched, err := jobService.FetchByID(t.Context(), job.ID)
	require.NoError(t, err)

	for _, block := range workflow.Blocks {
		_, ok := fetched.BlockStates[block.ID]
		assert.True(t, ok)
	}
}

func TestJob_Create_WorkflowNotFound(t *testing.T) {
	t.Parallel()

	_, store := newWorkflowService()
	jobService := NewJob(store)

	_, err := jobService.Create(t.Context(), "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestJob_Cancel_PendingJob(t *testing.T) {
	t.Parallel()

	workflowService, store := newWorkflowService()
	jobService := NewJob(store)

	workflow, err := workflowService.Create(t.Context(), CreateWorkflowInput{Blocks: validBlocks()})
	require.NoError(t, err)

	job, err := jobService.Create(t.Context(), workflow.ID)
	require.NoError(t, err)

	cancelled, err := jobService.Cancel(t.Context(), job.ID)
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusCancelled, cancelled.Status)

	// Never started, so there is nothing to time: finished_at stays unset.
	assert.Nil(t, cancelled.StartedAt)
	assert.Nil(t, cancelled.FinishedAt)

	for _, state := range cancelled.BlockStates {
		assert.Equal(t, models.JobStatusCancelled, state)
	}
}

func TestJob_Cancel_RunningJobFlipsOnlyActiveBlocks(t *testing.T) {
	t.Parallel()

	workflowService, store := newWorkflowService()
	jobService := NewJob(store)

	workflow, err := workflowService.Create(t.Context(), CreateWorkflowInput{Blocks: validBlocks()})
	require.NoError(t, err)

	job, err := jobService.Create(t.Context(), workflow.ID)
	require.NoError(t, err)

	firstBlock := workflow.Blocks[0].ID
	secondBlock := workflow.Blocks[1].ID

	started := time.Now().UTC()
	_, err = store.UpdateJob(t.Context(), job.ID, func(j *models.Job) {
		j.Status = models.JobStatusRunning
		j.StartedAt = &started
		j.BlockStates[firstBlock] = models.JobStatusCompleted
		j.BlockStates[secondBlock] = models.JobStatusRunning
		j.CompletedBlocks = 1
	})
	require.NoError(t, err)

	cancelled, err := jobService.Cancel(t.Context(), job.ID)
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.FinishedAt)

	// Completed history is preserved; pending and running flip.
	assert.Equal(t, models.JobStatusCompleted, cancelled.BlockStates[firstBlock])
	assert.Equal(t, models.JobStatusCancelled, cancelled.BlockStates[secondBlock])
	assert.Equal(t, models.JobStatusCancelled, cancelled.BlockStates[workflow.Blocks[2].ID])
	assert.Equal(t, 1, cancelled.CompletedBlocks)
}

func TestJob_Cancel_Idempotent(t *testing.T) {
	t.Parallel()

	workflowService, store := newWorkflowService()
	jobService := NewJob(store)

	workflow, err := workflowService.Create(t.Context(), CreateWorkflowInput{Blocks: validBlocks()})
	require.NoError(t, err)

	job, err := jobService.Create(t.Context(), workflow.ID)
	require.NoError(t, err)

	first, err := jobService.Cancel(t.Context(), job.ID)
	require.NoError(t, err)

	second, err := jobService.Cancel(t.Context(), job.ID)
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.FinishedAt, second.FinishedAt)
}

func TestJob_Cancel_TerminalJobsUntouched(t *testing.T) {
	t.Parallel()

	workflowService, store := newWorkflowService()
	jobService := NewJob(store)

	workflow, err := workflowService.Create(t.Context(), CreateWorkflowInput{Blocks: validBlocks()})
	require.NoError(t, err)

	job, err := jobService.Create(t.Context(), workflow.ID)
	require.NoError(t, err)

	finished := time.Now().UTC()
	_, err = store.UpdateJob(t.Context(), job.ID, func(j *models.Job) {
		j.Status = models.JobStatusCompleted
		j.FinishedAt = &finished
	})
	require.NoError(t, err)

	cancelled, err := jobService.Cancel(t.Context(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, cancelled.Status)
}

func TestJob_Cancel_NotFound(t *testing.T) {
	t.Parallel()

	_, store := newWorkflowService()
	jobService := NewJob(store)

	_, err := jobService.Cancel(t.Context(), "missing")
	assert.True(t, persistence.IsJobNotFound(err))
}
