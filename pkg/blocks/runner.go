// Package blocks implements the five workflow block runners. Each runner is a
// pure function of (previous dataset, validated params) to a new dataset; the
// enrich and find-email runners fan out per-row calls to the remote
// lead-data service under a shared concurrency bound.
package blocks

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/leadflow/pkg/dataset"
	"github.com/dukex/leadflow/pkg/files"
	"github.com/dukex/leadflow/pkg/models"
)

var (
	ErrEmptyDataset   = errors.New("block requires a non-empty input dataset")
	ErrColumnNotFound = errors.New("column not found")
)

// EnrichmentClient is the remote lead-data service surface the API runners
// need. Satisfied by *sixtyfour.Client; mocked in tests.
type EnrichmentClient interface {
	EnrichLead(ctx context.Context, leadInfo map[string]any, structFields map[string]string, researchPlan string) (string, error)
	PollTask(ctx context.Context, taskID string) (map[string]any, error)
	FindEmail(ctx context.Context, lead map[string]any, mode string) (map[string]any, error)
}

// Runner dispatches a block to its implementation.
type Runner struct {
	storage       *files.Storage
	client        EnrichmentClient
	maxConcurrent int64
}

// NewRunner wires the shared collaborators. maxConcurrent caps simultaneous
// outbound submissions across the rows of one block.
func NewRunner(storage *files.Storage, client EnrichmentClient, maxConcurrent int) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}

	return &Runner{
		storage:       storage,
		client:        client,
		maxConcurrent: int64(maxConcurrent),
	}
}

// Run executes one block against the dataset produced by the previous block
// (nil for the first block) and returns a new dataset. The input dataset is
// never mutated.
func (r *Runner) Run(ctx context.Context, block *models.Block, ds *dataset.Dataset) (*dataset.Dataset, error) {
	switch params := block.Params.(type) {
	case models.ReadCSVParams:
		return r.runReadCSV(params)
	case models.FilterParams:
		if err := requireRows(ds); err != nil {
			return nil, err
		}

		return runFilter(params, ds)
	case models.EnrichLeadParams:
		if err := requireRows(ds); err != nil {
			return nil, err
		}

		return r.runEnrichLead(ctx, params, ds)
	case models.FindEmailParams:
		if err := requireRows(ds); err != nil {
			return nil, err
		}

		return r.runFindEmail(ctx, params, ds)
	case models.SaveCSVParams:
		if err := requireRows(ds); err != nil {
			return nil, err
		}

		return r.runSaveCSV(params, ds)
	default:
		return nil, fmt.Errorf("unknown block type: %q", block.Type)
	}
}

func requireRows(ds *dataset.Dataset) error {
	if ds == nil || ds.Len() == 0 {
		return ErrEmptyDataset
	}

	return nil
}
