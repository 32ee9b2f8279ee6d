// Package web provides HTTP handlers and REST API endpoints for workflow
// and job management.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/dukex/leadflow/pkg/files"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/dukex/leadflow/pkg/services"
)

// JobExecutor runs a job to a terminal state in the background.
type JobExecutor interface {
	Execute(ctx context.Context, jobID string)
}

type APIHandlers struct {
	workflowService *services.Workflow
	jobService      *services.Job
	executor        JobExecutor
	storage         *files.Storage
	validator       *validator.Validate
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	jobService *services.Job,
	executor JobExecutor,
	storage *files.Storage,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workflowService: workflowService,
		jobService:      jobService,
		executor:        executor,
		storage:         storage,
		validator:       validator,
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.workflowService.List(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":   workflows,
		"total_count": len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.workflowService.FetchByID(c.Context(), id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.workflowService.Create(c.Context(), services.CreateWorkflowInput{
		Name:        req.Name,
		Description: req.Description,
		Blocks:      req.Blocks,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	input := services.UpdateWorkflowInput{
		Name:        req.Name,
		Description: req.Description,
	}
	if req.Blocks != nil {
		input.Blocks = &req.Blocks
	}

	updated, err := h.workflowService.Update(c.Context(), id, input)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.workflowService.Delete(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// CreateJob launches a run of a workflow. The job record is returned
// immediately; execution proceeds in the background.
func (h *APIHandlers) CreateJob(c fiber.Ctx) error {
	var req CreateJobRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	job, err := h.jobService.Create(c.Context(), req.WorkflowID)
	if err != nil {
		return handleServiceError(c, err)
	}

	// Detached from the request context so a closed connection cannot
	// abort the run; cancellation goes through the cancel endpoint.
	go h.executor.Execute(context.WithoutCancel(c.Context()), job.ID)

	return c.Status(fiber.StatusCreated).JSON(job)
}

func (h *APIHandlers) GetJobs(c fiber.Ctx) error {
	jobs, err := h.jobService.List(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"jobs":        jobs,
		"total_count": len(jobs),
	})
}

func (h *APIHandlers) GetJob(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Job ID is required")
	}

	job, err := h.jobService.FetchByID(c.Context(), id)
	if err != nil {
		if persistence.IsJobNotFound(err) {
			return notFound(c, "Job not found")
		}

		return internalError(c, err)
	}

	return c.JSON(job)
}

// CancelJob requests cancellation. Jobs that already finished on their own
// cannot be cancelled; cancelling an already-cancelled job succeeds.
func (h *APIHandlers) CancelJob(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Job ID is required")
	}

	job, err := h.jobService.FetchByID(c.Context(), id)
	if err != nil {
		if persistence.IsJobNotFound(err) {
			return notFound(c, "Job not found")
		}

		return internalError(c, err)
	}

	if job.Status == models.JobStatusCompleted || job.Status == models.JobStatusFailed {
		return conflict(c, "Job already finished with status "+string(job.Status))
	}

	cancelled, err := h.jobService.Cancel(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(cancelled)
}

func (h *APIHandlers) ListUploads(c fiber.Ctx) error {
	names, err := h.storage.ListUploads()
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(FileListResponse{Files: names})
}

func (h *APIHandlers) ListOutputs(c fiber.Ctx) error {
	names, err := h.storage.ListOutputs()
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(FileListResponse{Files: names})
}

func (h *APIHandlers) UploadFile(c fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "A CSV file is required in the 'file' field")
	}

	file, err := header.Open()
	if err != nil {
		return internalError(c, err)
	}
	defer file.Close()

	name, err := h.storage.SaveUpload(header.Filename, file)
	if err != nil {
		return handleFileError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(UploadResponse{Filename: name})
}

func (h *APIHandlers) DownloadOutput(c fiber.Ctx) error {
	name := c.Params("filename")

	path, err := h.storage.ResolveOutput(name)
	if err != nil {
		return handleFileError(c, err)
	}

	return c.Download(path, name)
}

func (h *APIHandlers) DeleteUpload(c fiber.Ctx) error {
	if err := h.storage.DeleteUpload(c.Params("filename")); err != nil {
		return handleFileError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) DeleteOutput(c fiber.Ctx) error {
	if err := h.storage.DeleteOutput(c.Params("filename")); err != nil {
		return handleFileError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Leadflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Leadflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
