package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
)

func TestWorkflowCRUD(t *testing.T) {
	t.Parallel()

	store := NewMemoryPersistence()

	workflow := &models.Workflow{ID: "w1", Name: "Leads"}
	require.NoError(t, store.SaveWorkflow(t.Context(), workflow))

	fetched, err := store.WorkflowByID(t.Context(), "w1")
	require.NoError(t, err)
	assert.Equal(t, "Leads", fetched.Name)

	all, err := store.Workflows(t.Context())
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, store.DeleteWorkflow(t.Context(), "w1"))

	_, err = store.WorkflowByID(t.Context(), "w1")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestWorkflowByID_NotFound(t *testing.T) {
	t.Parallel()

	store := NewMemoryPersistence()

	_, err := store.WorkflowByID(t.Context(), "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))

	err = store.DeleteWorkflow(t.Context(), "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestReadsReturnCopies(t *testing.T) {
	t.Parallel()

	store := NewMemoryPersistence()

	workflow := &models.Workflow{
		ID:   "w1",
		Name: "Leads",
		Blocks: []*models.Block{
			{ID: "b1", Type: models.BlockTypeReadCSV, Params: models.ReadCSVParams{Path: "in.csv"}},
		},
	}
	require.NoError(t, store.SaveWorkflow(t.Context(), workflow))

	// Mutating the fetched copy must not leak into the store.
	fetched, err := store.WorkflowByID(t.Context(), "w1")
	require.NoError(t, err)
	fetched.Name = "mutated"
	fetched.Blocks[0].ID = "mutated"

	again, err := store.WorkflowByID(t.Context(), "w1")
	require.NoError(t, err)
	assert.Equal(t, "Leads", again.Name)
	assert.Equal(t, "b1", again.Blocks[0].ID)
}

func TestUpdateJob_AppliesAtomically(t *testing.T) {
	t.Parallel()

	store := NewMemoryPersistence()

	job := &models.Job{
		ID:          "j1",
		Status:      models.JobStatusPending,
		BlockStates: map[string]models.JobStatus{"b1": models.JobStatusPending},
	}
	require.NoError(t, store.SaveJob(t.Context(), job))

	updated, err := store.UpdateJob(t.Context(), "j1", func(j *models.Job) {
		j.Status = models.JobStatusRunning
		j.BlockStates["b1"] = models.JobStatusRunning
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, updated.Status)

	stored, err := store.JobByID(t.Context(), "j1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, stored.Status)
	assert.Equal(t, models.JobStatusRunning, stored.BlockStates["b1"])
}

func TestUpdateJob_NotFound(t *testing.T) {
	t.Parallel()

	store := NewMemoryPersistence()

	_, err := store.UpdateJob(t.Context(), "missing", func(j *models.Job) {})
	assert.True(t, persistence.IsJobNotFound(err))
}

func TestUpdateJob_ConcurrentIncrements(t *testing.T) {
	t.Parallel()

	store := NewMemoryPersistence()

	require.NoError(t, store.SaveJob(t.Context(), &models.Job{ID: "j1"}))

	const workers = 50

	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := store.UpdateJob(t.Context(), "j1", func(j *models.Job) {
				j.CompletedBlocks++
			})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	job, err := store.JobByID(t.Context(), "j1")
	require.NoError(t, err)
	assert.Equal(t, workers, job.CompletedBlocks)
}
