// Package models defines the core domain models for the leadflow workflow engine.
package models

import "time"

// Workflow is an ordered, validated chain of blocks. The first block (if any)
// must be a read_csv block and no later block may be one; the workflow service
// enforces this at creation and update time.
type Workflow struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"        validate:"required"`
	Description string    `json:"description,omitempty"`
	Blocks      []*Block  `json:"blocks"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers can never mutate stored state.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}

	clone := *w
	clone.Blocks = make([]*Block, len(w.Blocks))

	for i, b := range w.Blocks {
		clone.Blocks[i] = b.Clone()
	}

	return &clone
}
