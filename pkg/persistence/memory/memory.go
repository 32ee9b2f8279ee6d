// Package memory provides the in-memory persistence backend. All state lives
// in mutex-guarded maps for the process lifetime, matching the engine's
// volatile-state contract.
package memory

import (
	"context"
	"sync"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
)

type MemoryPersistence struct {
	mu        sync.RWMutex
	workflows map[string]*models.Workflow
	jobs      map[string]*models.Job
}

func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{
		workflows: make(map[string]*models.Workflow),
		jobs:      make(map[string]*models.Job),
	}
}

func (m *MemoryPersistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	workflows := make([]*models.Workflow, 0, len(m.workflows))
	for _, workflow := range m.workflows {
		workflows = append(workflows, workflow.Clone())
	}

	return workflows, nil
}

func (m *MemoryPersistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	workflow, ok := m.workflows[id]
	if !ok {
		return nil, persistence.ErrWorkflowNotFound
	}

	return workflow.Clone(), nil
}

func (m *MemoryPersistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.workflows[workflow.ID] = workflow.Clone()

	return nil
}

func (m *MemoryPersistence) DeleteWorkflow(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.workflows[id]; !ok {
		return persistence.ErrWorkflowNotFound
	}

	delete(m.workflows, id)

	return nil
}

func (m *MemoryPersistence) Jobs(ctx context.Context) ([]*models.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*models.Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job.Clone())
	}

	return jobs, nil
}

func (m *MemoryPersistence) JobByID(ctx context.Context, id string) (*models.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, persistence.ErrJobNotFound
	}

	return job.Clone(), nil
}

func (m *MemoryPersistence) SaveJob(ctx context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.jobs[job.ID] = job.Clone()

	return nil
}

// UpdateJob runs fn on a private copy under the write lock and swaps the
// whole record in one step. This is the serialization point that keeps an
// executor progress write from racing a concurrent cancel.
func (m *MemoryPersistence) UpdateJob(ctx context.Context, id string, fn func(job *models.Job)) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.jobs[id]
	if !ok {
		return nil, persistence.ErrJobNotFound
	}

	updated := stored.Clone()
	fn(updated)
	m.jobs[id] = updated

	return updated.Clone(), nil
}

func (m *MemoryPersistence) HealthCheck(ctx context.Context) error {
	return nil
}

func (m *MemoryPersistence) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.workflows = make(map[string]*models.Workflow)
	m.jobs = make(map[string]*models.Job)

	return nil
}
