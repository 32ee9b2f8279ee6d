// Package main provides the Leadflow API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/dukex/leadflow/pkg/blocks"
	"github.com/dukex/leadflow/pkg/cmd"
	"github.com/dukex/leadflow/pkg/eventbus"
	"github.com/dukex/leadflow/pkg/events"
	"github.com/dukex/leadflow/pkg/executor"
	"github.com/dukex/leadflow/pkg/files"
	"github.com/dukex/leadflow/pkg/otelhelper"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/dukex/leadflow/pkg/persistence/memory"
	"github.com/dukex/leadflow/pkg/services"
	"github.com/dukex/leadflow/pkg/sixtyfour"
	"github.com/dukex/leadflow/pkg/web"
)

type Config struct {
	APIKey        string
	APIURL        string
	UploadsDir    string
	OutputsDir    string
	MaxConcurrent int
	EventBus      string
}

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	executor    *executor.Executor
	storage     *files.Storage
	eventBus    eventbus.EventBus
	validate    *validator.Validate
}

// NewAPI assembles the whole service. The returned cleanup closes the
// enrichment client and the event bus.
func NewAPI(ctx context.Context, logger *slog.Logger, config Config) (*API, func()) {
	persistence := memory.NewMemoryPersistence()
	storage := files.NewStorage(config.UploadsDir, config.OutputsDir)
	client := sixtyfour.NewClient(config.APIURL, config.APIKey)
	runner := blocks.NewRunner(storage, client, config.MaxConcurrent)
	eventBus := cmd.NewEventBus(config.EventBus, logger)

	tracer, err := otelhelper.NewTracer(ctx, "leadflow-api")
	if err != nil {
		logger.WarnContext(ctx, "Tracing disabled", "error", err)

		tracer = noop.NewTracerProvider().Tracer("leadflow-api")
	}

	api := &API{
		logger:      logger,
		persistence: persistence,
		storage:     storage,
		eventBus:    eventBus,
		executor:    executor.NewExecutor(persistence, runner, eventBus, tracer, logger),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}

	api.subscribeEventLogging(ctx)

	cleanup := func() {
		client.Close()

		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}

		if err := persistence.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}

	return api, cleanup
}

// subscribeEventLogging mirrors job lifecycle events into the log so a run
// can be followed without polling the job endpoint.
func (a *API) subscribeEventLogging(ctx context.Context) {
	eventLogger := a.logger.With("module", "events")

	logEvent := func(ctx context.Context, event any) error {
		eventLogger.InfoContext(ctx, "Job lifecycle event", "event", event)

		return nil
	}

	for _, eventType := range []events.EventType{
		events.JobStartedEvent,
		events.JobCompletedEvent,
		events.JobFailedEvent,
		events.JobCancelledEvent,
		events.BlockFinishedEvent,
	} {
		if err := a.eventBus.Handle(eventType, logEvent); err != nil {
			eventLogger.ErrorContext(ctx, "Failed to register event handler", "event_type", eventType, "error", err)
		}
	}

	if err := a.eventBus.Subscribe(ctx); err != nil {
		eventLogger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)
	}
}

func (a *API) App() *fiber.App {
	workflowService := services.NewWorkflow(a.persistence, a.validate)
	jobService := services.NewJob(a.persistence)

	handlers := web.NewAPIHandlers(workflowService, jobService, a.executor, a.storage, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Leadflow API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)

	j := app.Group("/jobs")
	j.Get("/", handlers.GetJobs)
	j.Post("/", handlers.CreateJob)
	j.Get("/:id", handlers.GetJob)
	j.Post("/:id/cancel", handlers.CancelJob)

	f := app.Group("/files")
	f.Get("/uploads", handlers.ListUploads)
	f.Get("/outputs", handlers.ListOutputs)
	f.Post("/upload", handlers.UploadFile)
	f.Get("/download/:filename", handlers.DownloadOutput)
	f.Delete("/uploads/:filename", handlers.DeleteUpload)
	f.Delete("/outputs/:filename", handlers.DeleteOutput)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
