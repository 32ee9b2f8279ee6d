package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
)

const defaultNamePrefix = "Workflow "

// Workflow implements the workflow store: validated CRUD over the block chain.
type Workflow struct {
	persistence persistence.Persistence
	validate    *validator.Validate

	// nameMu serializes the list-then-save window of default naming so two
	// concurrent unnamed creates cannot be assigned the same number.
	nameMu sync.Mutex
}

func NewWorkflow(persistence persistence.Persistence, validate *validator.Validate) *Workflow {
	return &Workflow{
		persistence: persistence,
		validate:    validate,
	}
}

// CreateWorkflowInput carries the caller-supplied definition. Blocks arrive
// with typed params already decoded; ids are assigned here.
type CreateWorkflowInput struct {
	Name        *string
	Description string
	Blocks      []*models.Block
}

// UpdateWorkflowInput applies PATCH semantics: nil means "leave unchanged".
type UpdateWorkflowInput struct {
	Name        *string
	Description *string
	Blocks      *[]*models.Block
}

func (s *Workflow) List(ctx context.Context) ([]*models.Workflow, error) {
	return s.persistence.Workflows(ctx)
}

func (s *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return s.persistence.WorkflowByID(ctx, id)
}

func (s *Workflow) Create(ctx context.Context, input CreateWorkflowInput) (*models.Workflow, error) {
	blocks, err := s.prepareBlocks(input.Blocks)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	workflow := &models.Workflow{
		ID:          uuid.New().String(),
		Description: input.Description,
		Blocks:      blocks,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if input.Name != nil && *input.Name != "" {
		workflow.Name = *input.Name

		if err := s.persistence.SaveWorkflow(ctx, workflow); err != nil {
			return nil, err
		}

		return workflow, nil
	}

	s.nameMu.Lock()
	defer s.nameMu.Unlock()

	existing, err := s.persistence.Workflows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows for default naming: %w", err)
	}

	workflow.Name = generateDefaultName(existing)

	if err := s.persistence.SaveWorkflow(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

// Update applies only the supplied fields. A new blocks list is re-validated
// and every block gets a fresh id; jobs created against the old ids keep
// their original per-block snapshot.
func (s *Workflow) Update(ctx context.Context, id string, input UpdateWorkflowInput) (*models.Workflow, error) {
	workflow, err := s.persistence.WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name == nil && input.Description == nil && input.Blocks == nil {
		return workflow, nil
	}

	if input.Name != nil {
		workflow.Name = *input.Name
	}

	if input.Description != nil {
		workflow.Description = *input.Description
	}

	if input.Blocks != nil {
		blocks, err := s.prepareBlocks(*input.Blocks)
		if err != nil {
			return nil, err
		}

		workflow.Blocks = blocks
	}

	workflow.UpdatedAt = time.Now().UTC()

	if err := s.persistence.SaveWorkflow(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

// Delete refuses to remove a workflow that still has a pending or running job.
func (s *Workflow) Delete(ctx context.Context, id string) error {
	if _, err := s.persistence.WorkflowByID(ctx, id); err != nil {
		return err
	}

	jobs, err := s.persistence.Jobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to check jobs for workflow %s: %w", id, err)
	}

	for _, job := range jobs {
		if job.WorkflowID != id {
			continue
		}

		if job.Status == models.JobStatusPending || job.Status == models.JobStatusRunning {
			return fmt.Errorf("%w: job %s is %s", ErrWorkflowInUse, job.ID, job.Status)
		}
	}

	return s.persistence.DeleteWorkflow(ctx, id)
}

func (s *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	if err := s.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// prepareBlocks validates the chain invariant and the typed params, then
// assigns a fresh unique id to every block.
func (s *Workflow) prepareBlocks(blocks []*models.Block) ([]*models.Block, error) {
	if err := validateChain(blocks); err != nil {
		return nil, err
	}

	prepared := make([]*models.Block, len(blocks))

	for i, block := range blocks {
		if block.Params == nil || block.Params.BlockType() != block.Type {
			return nil, fmt.Errorf("%w: block %d params do not match type %q", ErrInvalidBlockParams, i, block.Type)
		}

		if err := s.validate.Struct(block.Params); err != nil {
			return nil, fmt.Errorf("%w: block %d (%s): %v", ErrInvalidBlockParams, i, block.Type, err)
		}

		clone := block.Clone()
		clone.ID = uuid.New().String()
		prepared[i] = clone
	}

	return prepared, nil
}

// validateChain enforces that a non-empty chain starts with read_csv and that
// no later block re-reads: a mid-chain read would silently discard all
// upstream work.
func validateChain(blocks []*models.Block) error {
	for i, block := range blocks {
		if i == 0 && block.Type != models.BlockTypeReadCSV {
			return fmt.Errorf("%w: got %q", ErrFirstBlockMustBeRead, block.Type)
		}

		if i > 0 && block.Type == models.BlockTypeReadCSV {
			return fmt.Errorf("%w: position %d", ErrReadBlockNotFirst, i)
		}
	}

	return nil
}

// generateDefaultName returns "Workflow {n}" with the smallest positive n not
// already used as a numeric suffix of an exactly-default-pattern name. Gaps
// from deletion are reused; non-default names never reserve a number.
func generateDefaultName(existing []*models.Workflow) string {
	allocated := make(map[int]bool)

	for _, workflow := range existing {
		suffix, ok := strings.CutPrefix(workflow.Name, defaultNamePrefix)
		if !ok {
			continue
		}

		if n, err := strconv.Atoi(suffix); err == nil && n > 0 && suffix == strconv.Itoa(n) {
			allocated[n] = true
		}
	}

	for n := 1; ; n++ {
		if !allocated[n] {
			return defaultNamePrefix + strconv.Itoa(n)
		}
	}
}
