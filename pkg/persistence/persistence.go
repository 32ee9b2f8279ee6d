// Package persistence provides the storage abstraction for workflows and jobs.
// State is held for the process lifetime only; restart loses everything.
package persistence

import (
	"context"

	"github.com/dukex/leadflow/pkg/models"
)

// Persistence is the storage contract shared by all backends. Implementations
// must hand out defensive copies and make UpdateJob an atomic
// read-modify-write per job id, so a concurrent cancel is never lost between
// an executor's read and its write.
type Persistence interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	DeleteWorkflow(ctx context.Context, id string) error

	Jobs(ctx context.Context) ([]*models.Job, error)
	JobByID(ctx context.Context, id string) (*models.Job, error)
	SaveJob(ctx context.Context, job *models.Job) error

	// UpdateJob applies fn to the stored job under the store's lock and
	// returns a copy of the result. fn receives a private copy it may mutate.
	UpdateJob(ctx context.Context, id string, fn func(job *models.Job)) (*models.Job, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
