// Package web provides HTTP request and response types for the workflow API.
package web

import "github.com/dukex/leadflow/pkg/models"

// CreateWorkflowRequest represents the request body for creating a new workflow.
// Name is optional: a missing name gets a generated "Workflow {n}" default.
type CreateWorkflowRequest struct {
	Name        *string         `json:"name,omitempty"        validate:"omitempty,min=1"`
	Description string          `json:"description,omitempty"`
	Blocks      []*models.Block `json:"blocks"`
}

// UpdateWorkflowRequest represents the request body for updating an existing
// workflow. All fields are optional to support partial updates; supplying
// blocks replaces the whole chain.
type UpdateWorkflowRequest struct {
	Name        *string         `json:"name,omitempty"        validate:"omitempty,min=1"`
	Description *string         `json:"description,omitempty"`
	Blocks      []*models.Block `json:"blocks,omitempty"`
}

// CreateJobRequest represents the request body for launching a workflow run.
type CreateJobRequest struct {
	WorkflowID string `json:"workflow_id" validate:"required"`
}

// FileListResponse lists the CSV files under one of the storage roots.
type FileListResponse struct {
	Files []string `json:"files"`
}

// UploadResponse reports the stored name of an uploaded CSV.
type UploadResponse struct {
	Filename string `json:"filename"`
}
