package models

import "time"

// JobStatus is the lifecycle state of a job. The same values are used for the
// per-block states inside Job.BlockStates.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Preview is a truncated snapshot of a dataset's shape (column names plus the
// first rows), kept on the job for UI/progress display.
type Preview struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// Job is one execution attempt of a workflow. BlockStates is keyed by the
// block ids the referenced workflow had at job-creation time; a later
// workflow update re-assigns block ids and deliberately does not touch
// existing jobs.
type Job struct {
	ID         string    `json:"id"`
	WorkflowID string    `json:"workflow_id"`
	Status     JobStatus `json:"status"`

	TotalBlocks     int                  `json:"total_blocks"`
	CompletedBlocks int                  `json:"completed_blocks"`
	CurrentBlockID  *string              `json:"current_block_id,omitempty"`
	FailedBlockID   *string              `json:"failed_block_id,omitempty"`
	BlockStates     map[string]JobStatus `json:"block_states"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	ErrorMessage string         `json:"error_message,omitempty"`
	ErrorDetails map[string]any `json:"error_details,omitempty"`

	BlockPreviews map[string]Preview `json:"block_previews,omitempty"`
	ResultPreview *Preview           `json:"result_preview,omitempty"`
	OutputPath    *string            `json:"output_path,omitempty"`
}

// Clone returns a deep copy so the store never hands out aliased state.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}

	clone := *j

	if j.BlockStates != nil {
		clone.BlockStates = make(map[string]JobStatus, len(j.BlockStates))
		for k, v := range j.BlockStates {
			clone.BlockStates[k] = v
		}
	}

	if j.BlockPreviews != nil {
		clone.BlockPreviews = make(map[string]Preview, len(j.BlockPreviews))
		for k, v := range j.BlockPreviews {
			clone.BlockPreviews[k] = v.Clone()
		}
	}

	if j.ErrorDetails != nil {
		clone.ErrorDetails = make(map[string]any, len(j.ErrorDetails))
		for k, v := range j.ErrorDetails {
			clone.ErrorDetails[k] = v
		}
	}

	if j.ResultPreview != nil {
		preview := j.ResultPreview.Clone()
		clone.ResultPreview = &preview
	}

	clone.CurrentBlockID = cloneStringPtr(j.CurrentBlockID)
	clone.FailedBlockID = cloneStringPtr(j.FailedBlockID)
	clone.OutputPath = cloneStringPtr(j.OutputPath)
	clone.StartedAt = cloneTimePtr(j.StartedAt)
	clone.FinishedAt = cloneTimePtr(j.FinishedAt)

	return &clone
}

// Clone deep-copies the preview rows.
func (p Preview) Clone() Preview {
	clone := Preview{
		Columns: append([]string(nil), p.Columns...),
		Rows:    make([]map[string]any, len(p.Rows)),
	}

	for i, row := range p.Rows {
		rowCopy := make(map[string]any, len(row))
		for k, v := range row {
			rowCopy[k] = v
		}

		clone.Rows[i] = rowCopy
	}

	return clone
}

func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}

	v := *s

	return &v
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	v := *t

	return &v
}
