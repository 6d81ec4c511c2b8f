package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apierrors "prepcli/internal/errors"
	"prepcli/internal/infrastructure"
	"prepcli/internal/middleware"
	"prepcli/internal/pipeline"
	"prepcli/internal/services"
)

// Hub interface defines WebSocket hub operations
type Hub interface {
	BroadcastUpdate(updateType, subtype, action string, data interface{})
}

// stepFullPipeline is the pseudo step the frontend uses to request a
// run of every registered step.
const stepFullPipeline = "full_pipeline"

// RunHandler handles pipeline run HTTP requests
type RunHandler struct {
	service RunServiceInterface
	wsHub   Hub
	logger  *slog.Logger
	metrics *infrastructure.RunMetrics
}

// NewRunHandler creates a new run handler
func NewRunHandler(service RunServiceInterface, wsHub Hub, logger *slog.Logger) *RunHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if wsHub == nil {
		panic("wsHub cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RunHandler{
		service: service,
		wsHub:   wsHub,
		logger:  logger.With(slog.String("handler", "runs")),
		metrics: nil, // Will be set via SetMetrics method
	}
}

// SetMetrics sets the run metrics for the handler
func (h *RunHandler) SetMetrics(metrics *infrastructure.RunMetrics) {
	h.metrics = metrics
}

// RunStartRequest represents the request to start a pipeline run
type RunStartRequest struct {
	Pipeline   string                 `json:"pipeline,omitempty"`
	Source     string                 `json:"source,omitempty"`
	OutputDir  string                 `json:"output_dir,omitempty"`
	Step       string                 `json:"step,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Wait       bool                   `json:"wait,omitempty"`
	Timeout    string                 `json:"timeout,omitempty"`
}

// Bind implements the render.Binder interface for request validation
func (r *RunStartRequest) Bind(req *http.Request) error {
	// Validate the requested step against the built-in step IDs. The
	// pipeline name is validated by the service, which knows the
	// registered specs.
	if r.Step != "" && r.Step != stepFullPipeline {
		validSteps := map[string]bool{
			pipeline.StepIDLoad:    true,
			pipeline.StepIDClean:   true,
			pipeline.StepIDProfile: true,
			pipeline.StepIDExport:  true,
		}

		if !validSteps[r.Step] {
			return fmt.Errorf("invalid step: %s", r.Step)
		}
	}

	// Validate timeout format if provided
	if r.Timeout != "" {
		if _, err := time.ParseDuration(r.Timeout); err != nil {
			return fmt.Errorf("invalid timeout format: %s", r.Timeout)
		}
	}

	return nil
}

// Routes returns a chi router for run endpoints
func (h *RunHandler) Routes() chi.Router {
	r := chi.NewRouter()

	// Apply timeout middleware to all run routes
	r.Use(middleware.Timeout(60*time.Second, h.logger))

	// Run endpoints
	r.Get("/steps", h.GetPipelineSteps)
	r.Post("/start", h.StartRun)
	r.Post("/{id}/stop", h.StopRun)
	r.Get("/{id}/status", h.GetRunStatus)
	r.Get("/{id}/manifest", h.GetManifest)
	r.Get("/", h.ListRuns)
	r.Delete("/{id}", h.DeleteRun)

	// Pipeline spec endpoints
	r.Get("/pipelines", h.ListPipelines)
	r.Post("/pipelines", h.RegisterPipeline)
	r.Get("/pipelines/{name}", h.GetPipeline)

	// Async job endpoints
	r.Get("/jobs/{id}", h.GetJobStatus)
	r.Get("/jobs", h.ListJobs)

	return r
}

// StartRun handles POST /api/runs/start
func (h *RunHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("runs-handler")

	// Start OpenTelemetry span
	ctx, span := tracer.Start(ctx, "runs_handler.start_run",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/runs/start"),
			attribute.String("request_id", reqID),
			attribute.String("component", "runs_handler"),
		),
	)
	defer span.End()

	// Log request start
	h.logger.InfoContext(ctx, "run start request",
		slog.String("request_id", reqID),
		slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)),
		slog.String("operation", "start_run"),
	)

	// Decode and validate request
	data := &RunStartRequest{}
	if err := render.Bind(r, data); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", "request_validation"))

		h.logger.ErrorContext(ctx, "failed to bind run request",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		problem := apierrors.NewProblemDetails(
			http.StatusBadRequest,
			"/errors/validation_failed",
			"validation_failed",
			err.Error(),
			r.URL.Path+"#"+reqID,
		).WithExtension("trace_id", infrastructure.TraceIDFromContext(ctx))

		render.Render(w, r, problem)
		return
	}

	// Run IDs name manifest files on disk, so they get a UUID rather
	// than the request ID.
	request := &pipeline.RunRequest{
		ID:         uuid.New().String(),
		Pipeline:   data.Pipeline,
		Source:     data.Source,
		OutputDir:  data.OutputDir,
		Step:       data.Step,
		Parameters: data.Parameters,
	}
	if request.Step == stepFullPipeline {
		request.Step = ""
	}

	// Add span attributes
	span.SetAttributes(
		attribute.String("run.id", request.ID),
		attribute.String("run.pipeline", request.Pipeline),
		attribute.String("run.step", request.Step),
		attribute.Bool("run.wait", data.Wait),
	)

	// Queue the run unless the caller asked to wait for the result
	if !data.Wait {
		job, err := h.service.StartRun(ctx, request)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "run enqueue failed")

			h.logger.ErrorContext(ctx, "failed to enqueue run",
				slog.String("run_id", request.ID),
				slog.String("error", err.Error()),
				slog.String("request_id", reqID))

			switch {
			case errors.Is(err, pipeline.ErrPipelineNotFound):
				h.handleError(w, r, err, map[string]interface{}{
					"pipeline": request.Pipeline,
				})

			case errors.Is(err, services.ErrInvalidInput):
				problem := apierrors.NewProblemDetails(
					http.StatusBadRequest,
					"/errors/validation_failed",
					"validation_failed",
					err.Error(),
					r.URL.Path+"#"+reqID,
				).WithExtension("trace_id", infrastructure.TraceIDFromContext(ctx))

				render.Render(w, r, problem)

			default:
				problem := apierrors.NewProblemDetails(
					http.StatusServiceUnavailable,
					"/errors/queue_full",
					"queue_full",
					"Run queue is full. Please try again later.",
					r.URL.Path+"#"+reqID,
				).WithExtension("trace_id", infrastructure.TraceIDFromContext(ctx)).
					WithExtension("run_id", request.ID)

				render.Render(w, r, problem)
			}
			return
		}

		// Log successful enqueue
		h.logger.InfoContext(ctx, "run job enqueued",
			slog.String("job_id", job.ID),
			slog.String("run_id", job.RunID),
			slog.String("pipeline", job.Pipeline),
			slog.String("request_id", reqID))

		// Send WebSocket notification
		h.wsHub.BroadcastUpdate("run_update", "queued", "pending", map[string]interface{}{
			"job_id":    job.ID,
			"run_id":    job.RunID,
			"pipeline":  job.Pipeline,
			"timestamp": time.Now().UTC(),
		})

		// Return 202 Accepted with job ID
		response := map[string]interface{}{
			"job_id":   job.ID,
			"run_id":   job.RunID,
			"pipeline": job.Pipeline,
			"status":   "pending",
			"message":  "Run queued for processing",
			"poll_url": "/api/runs/jobs/" + job.ID,
		}

		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, response)
		return
	}

	// Synchronous execution, bounded by the requested timeout
	waitTimeout := 5 * time.Minute
	if data.Timeout != "" {
		if d, err := time.ParseDuration(data.Timeout); err == nil {
			waitTimeout = d
		}
	}

	startCtx, cancel := context.WithTimeout(ctx, waitTimeout)
	defer cancel()

	h.logger.DebugContext(ctx, "executing run synchronously",
		slog.String("run_id", request.ID),
		slog.String("pipeline", request.Pipeline),
		slog.Duration("timeout", waitTimeout))

	// Record active run increase
	if h.metrics != nil {
		infrastructure.RecordActiveRunChange(ctx, h.metrics, 1, request.Pipeline)
		defer infrastructure.RecordActiveRunChange(ctx, h.metrics, -1, request.Pipeline)
	}

	executionStart := time.Now()
	result, err := h.service.ExecuteRun(startCtx, *request)
	executionDuration := time.Since(executionStart)

	// Record run metrics
	if h.metrics != nil {
		infrastructure.RecordRunMetrics(ctx, h.metrics, request.ID, request.Pipeline, executionDuration, err == nil, err)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run execution failed")

		h.logger.ErrorContext(ctx, "run execution failed",
			slog.String("run_id", request.ID),
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		// Unknown pipelines are the caller's mistake, not an execution
		// failure
		if errors.Is(err, pipeline.ErrPipelineNotFound) {
			h.handleError(w, r, err, map[string]interface{}{
				"run_id":   request.ID,
				"pipeline": request.Pipeline,
			})
			return
		}

		problem := apierrors.NewProblemDetails(
			http.StatusInternalServerError,
			"/errors/run_failed",
			"run_failed",
			"Failed to execute run: "+err.Error(),
			r.URL.Path+"#"+reqID,
		).WithExtension("trace_id", infrastructure.TraceIDFromContext(ctx)).
			WithExtension("run_id", request.ID)

		render.Render(w, r, problem)
		return
	}

	// Success response for synchronous execution
	span.SetAttributes(
		attribute.Bool("run.success", result.Status == pipeline.RunStatusCompleted),
		attribute.Float64("run.duration_ms", float64(result.Duration.Milliseconds())),
	)

	h.logger.InfoContext(ctx, "run completed synchronously",
		slog.String("run_id", request.ID),
		slog.Bool("success", result.Status == pipeline.RunStatusCompleted),
		slog.Duration("duration", result.Duration),
		slog.String("request_id", reqID))

	// Send WebSocket notification
	h.wsHub.BroadcastUpdate("run_update", "completed", "completed", map[string]interface{}{
		"run_id":    request.ID,
		"pipeline":  request.Pipeline,
		"timestamp": time.Now().UTC(),
	})

	// Return result with run ID
	response := map[string]interface{}{
		"id":       result.ID,
		"success":  result.Status == pipeline.RunStatusCompleted,
		"duration": result.Duration.String(),
		"steps":    result.Steps,
	}

	if result.Error != "" {
		response["error"] = result.Error
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response)
}

// StopRun handles POST /api/runs/{id}/stop
func (h *RunHandler) StopRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := chi.URLParam(r, "id")
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("runs-handler")

	// Start OpenTelemetry span
	ctx, span := tracer.Start(ctx, "runs_handler.stop_run",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/runs/{id}/stop"),
			attribute.String("run.id", runID),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	h.logger.InfoContext(ctx, "run stop request",
		slog.String("run_id", runID),
		slog.String("request_id", reqID),
		slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)))

	// Cancel run
	cancelCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cancelStart := time.Now()
	err := h.service.CancelRun(cancelCtx, runID)
	cancelDuration := time.Since(cancelStart)

	// Add cancellation duration to span
	span.SetAttributes(
		attribute.Float64("cancellation.duration_ms", float64(cancelDuration.Milliseconds())),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run cancellation failed")

		h.logger.ErrorContext(ctx, "failed to cancel run",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		// Check specific error types
		if errors.Is(err, pipeline.ErrRunNotFound) {
			problem := apierrors.NewProblemDetails(
				http.StatusNotFound,
				"/errors/not_found",
				"not_found",
				"Run not found",
				r.URL.Path+"#"+reqID,
			).WithExtension("trace_id", infrastructure.TraceIDFromContext(ctx)).
				WithExtension("run_id", runID)

			render.Render(w, r, problem)
			return
		}

		if errors.Is(err, pipeline.ErrRunCompleted) || errors.Is(err, services.ErrRunNotRunning) {
			problem := apierrors.NewProblemDetails(
				http.StatusConflict,
				"/errors/invalid_state",
				"invalid_state",
				"Run has already finished and cannot be cancelled",
				r.URL.Path+"#"+reqID,
			).WithExtension("trace_id", infrastructure.TraceIDFromContext(ctx)).
				WithExtension("run_id", runID)

			render.Render(w, r, problem)
			return
		}

		// Generic error
		problem := apierrors.NewProblemDetails(
			http.StatusInternalServerError,
			"/errors/cancellation_failed",
			"cancellation_failed",
			"Failed to cancel run",
			r.URL.Path+"#"+reqID,
		).WithExtension("trace_id", infrastructure.TraceIDFromContext(ctx)).
			WithExtension("run_id", runID)

		render.Render(w, r, problem)
		return
	}

	// Success
	h.logger.InfoContext(ctx, "run cancelled successfully",
		slog.String("run_id", runID),
		slog.String("request_id", reqID))

	// Send WebSocket notification
	h.wsHub.BroadcastUpdate("run_update", "cancelled", "cancelled", map[string]interface{}{
		"run_id":    runID,
		"timestamp": time.Now().UTC(),
	})

	render.JSON(w, r, map[string]string{
		"message": "Run cancelled successfully",
	})
}

// GetRunStatus handles GET /api/runs/{id}/status
func (h *RunHandler) GetRunStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := chi.URLParam(r, "id")
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("runs-handler")

	// Start OpenTelemetry span
	ctx, span := tracer.Start(ctx, "runs_handler.get_status",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/runs/{id}/status"),
			attribute.String("run.id", runID),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	h.logger.DebugContext(ctx, "run status request",
		slog.String("run_id", runID),
		slog.String("request_id", reqID))

	// Get status
	statusCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	snapshot, err := h.service.GetRunStatus(statusCtx, runID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "status retrieval failed")

		h.logger.ErrorContext(ctx, "failed to get run status",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		h.handleError(w, r, err, map[string]interface{}{
			"run_id": runID,
		})
		return
	}

	// Add span attributes
	span.SetAttributes(
		attribute.String("run.status", snapshot.Status),
		attribute.Int("run.steps_count", len(snapshot.Steps)),
	)

	// Convert to response format
	response := map[string]interface{}{
		"run_id":       snapshot.RunID,
		"pipeline":     snapshot.Pipeline,
		"status":       snapshot.Status,
		"progress":     snapshot.Progress,
		"current_step": snapshot.CurrentStep,
		"steps":        snapshot.Steps,
		"started_at":   snapshot.StartedAt,
		"updated_at":   snapshot.UpdatedAt,
	}

	if snapshot.CompletedAt != nil {
		response["completed_at"] = snapshot.CompletedAt
		response["duration"] = snapshot.CompletedAt.Sub(snapshot.StartedAt).String()
	}

	if snapshot.Error != "" {
		response["error"] = snapshot.Error
	}

	if snapshot.Message != "" {
		response["message"] = snapshot.Message
	}

	render.JSON(w, r, response)
}

// ListRuns handles GET /api/runs
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("runs-handler")

	// Start OpenTelemetry span
	ctx, span := tracer.Start(ctx, "runs_handler.list_runs",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/runs"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	// Check for status filter
	statusFilter := r.URL.Query().Get("status")

	h.logger.DebugContext(ctx, "listing runs",
		slog.String("status_filter", statusFilter),
		slog.String("request_id", reqID))

	var snapshots []*pipeline.RunSnapshot

	if statusFilter != "" {
		// Validate status filter
		validStatuses := map[string]bool{
			"pending":   true,
			"running":   true,
			"completed": true,
			"failed":    true,
			"cancelled": true,
		}

		if !validStatuses[statusFilter] {
			problem := apierrors.NewProblemDetails(
				http.StatusBadRequest,
				"/errors/validation_failed",
				"validation_failed",
				fmt.Sprintf("Invalid status filter: %s", statusFilter),
				r.URL.Path+"#"+reqID,
			).WithExtension("trace_id", infrastructure.TraceIDFromContext(ctx)).
				WithExtension("valid_statuses", []string{"pending", "running", "completed", "failed", "cancelled"})

			render.Render(w, r, problem)
			return
		}

		snapshots = h.service.ListRunsByStatus(ctx, statusFilter)
		span.SetAttributes(attribute.String("filter.status", statusFilter))
	} else {
		snapshots = h.service.ListRuns(ctx)
	}

	// Add span attributes
	span.SetAttributes(attribute.Int("runs.count", len(snapshots)))

	// Convert to response format
	runs := make([]map[string]interface{}, len(snapshots))
	for i, snapshot := range snapshots {
		runs[i] = map[string]interface{}{
			"run_id":      snapshot.RunID,
			"pipeline":    snapshot.Pipeline,
			"status":      snapshot.Status,
			"progress":    snapshot.Progress,
			"started_at":  snapshot.StartedAt,
			"steps_count": len(snapshot.Steps),
		}

		if snapshot.CompletedAt != nil {
			runs[i]["completed_at"] = snapshot.CompletedAt
			runs[i]["duration"] = snapshot.CompletedAt.Sub(snapshot.StartedAt).String()
		}

		if snapshot.Error != "" {
			runs[i]["error"] = snapshot.Error
		}
	}

	render.JSON(w, r, runs)
}

// DeleteRun handles DELETE /api/runs/{id}
func (h *RunHandler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := chi.URLParam(r, "id")
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("runs-handler")

	// Start OpenTelemetry span
	ctx, span := tracer.Start(ctx, "runs_handler.delete_run",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/runs/{id}"),
			attribute.String("run.id", runID),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	h.logger.InfoContext(ctx, "run delete request",
		slog.String("run_id", runID),
		slog.String("request_id", reqID))

	// Finished snapshots age out of the broadcaster on their own, so
	// deletion only acknowledges that the run exists

	// Check if run exists
	statusCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := h.service.GetRunStatus(statusCtx, runID)
	if err != nil {
		h.handleError(w, r, err, map[string]interface{}{
			"run_id": runID,
		})
		return
	}

	h.logger.InfoContext(ctx, "run deletion acknowledged",
		slog.String("run_id", runID),
		slog.String("request_id", reqID))

	w.WriteHeader(http.StatusNoContent)
}

// GetPipelineSteps handles GET /api/runs/steps
func (h *RunHandler) GetPipelineSteps(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("runs-handler")

	// Start OpenTelemetry span
	ctx, span := tracer.Start(ctx, "runs_handler.get_pipeline_steps",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/runs/steps"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	h.logger.DebugContext(ctx, "getting pipeline steps",
		slog.String("request_id", reqID))

	steps := h.service.GetPipelineSteps(ctx)

	// Add span attributes
	span.SetAttributes(attribute.Int("steps.count", len(steps)))

	h.logger.InfoContext(ctx, "pipeline steps retrieved",
		slog.Int("count", len(steps)),
		slog.String("request_id", reqID))

	render.JSON(w, r, steps)
}

// ListPipelines handles GET /api/runs/pipelines
func (h *RunHandler) ListPipelines(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("runs-handler")

	// Start OpenTelemetry span
	ctx, span := tracer.Start(ctx, "runs_handler.list_pipelines",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/runs/pipelines"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	h.logger.DebugContext(ctx, "listing pipelines",
		slog.String("request_id", reqID))

	specs := h.service.ListPipelines(ctx)

	// Add span attributes
	span.SetAttributes(attribute.Int("pipelines.count", len(specs)))

	render.JSON(w, r, specs)
}

// GetPipeline handles GET /api/runs/pipelines/{name}
func (h *RunHandler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("runs-handler")

	// Start OpenTelemetry span
	ctx, span := tracer.Start(ctx, "runs_handler.get_pipeline",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/runs/pipelines/{name}"),
			attribute.String("pipeline.name", name),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	h.logger.DebugContext(ctx, "pipeline request",
		slog.String("pipeline", name),
		slog.String("request_id", reqID))

	spec, err := h.service.GetPipeline(ctx, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline retrieval failed")

		h.logger.ErrorContext(ctx, "failed to get pipeline",
			slog.String("pipeline", name),
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		h.handleError(w, r, err, map[string]interface{}{
			"pipeline": name,
		})
		return
	}

	// Add span attributes
	span.SetAttributes(attribute.Int("pipeline.steps_count", len(spec.Steps)))

	render.JSON(w, r, spec)
}

// RegisterPipeline handles POST /api/runs/pipelines
func (h *RunHandler) RegisterPipeline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("runs-handler")

	// Start OpenTelemetry span
	ctx, span := tracer.Start(ctx, "runs_handler.register_pipeline",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/runs/pipelines"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	h.logger.InfoContext(ctx, "pipeline register request",
		slog.String("request_id", reqID),
		slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)))

	// The body is a YAML pipeline spec, read raw
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", "request_read"))

		problem := apierrors.NewProblemDetails(
			http.StatusBadRequest,
			"/errors/validation_failed",
			"validation_failed",
			"Failed to read request body",
			r.URL.Path+"#"+reqID,
		).WithExtension("trace_id", infrastructure.TraceIDFromContext(ctx))

		render.Render(w, r, problem)
		return
	}

	spec, err := h.service.RegisterPipeline(ctx, body)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", "spec_validation"))

		h.logger.ErrorContext(ctx, "failed to register pipeline",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		problem := apierrors.NewProblemDetails(
			http.StatusBadRequest,
			"/errors/validation_failed",
			"validation_failed",
			err.Error(),
			r.URL.Path+"#"+reqID,
		).WithExtension("trace_id", infrastructure.TraceIDFromContext(ctx))

		render.Render(w, r, problem)
		return
	}

	// Add span attributes
	span.SetAttributes(
		attribute.String("pipeline.name", spec.Name),
		attribute.Int("pipeline.steps_count", len(spec.Steps)),
	)

	h.logger.InfoContext(ctx, "pipeline registered",
		slog.String("pipeline", spec.Name),
		slog.Int("steps", len(spec.Steps)),
		slog.String("request_id", reqID))

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, spec)
}

// GetManifest handles GET /api/runs/{id}/manifest
func (h *RunHandler) GetManifest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := chi.URLParam(r, "id")
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("runs-handler")

	// Start OpenTelemetry span
	ctx, span := tracer.Start(ctx, "runs_handler.get_manifest",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/runs/{id}/manifest"),
			attribute.String("run.id", runID),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	h.logger.DebugContext(ctx, "run manifest request",
		slog.String("run_id", runID),
		slog.String("request_id", reqID))

	manifest, err := h.service.GetManifest(ctx, runID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "manifest retrieval failed")

		h.logger.ErrorContext(ctx, "failed to get run manifest",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		h.handleError(w, r, err, map[string]interface{}{
			"run_id": runID,
		})
		return
	}

	// Add span attributes
	span.SetAttributes(attribute.String("run.status", manifest.Status))

	render.JSON(w, r, manifest)
}

// handleError centralizes error handling for the handler
func (h *RunHandler) handleError(w http.ResponseWriter, r *http.Request, err error, extensions map[string]interface{}) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	traceID := infrastructure.TraceIDFromContext(ctx)

	// Log error
	h.logger.ErrorContext(ctx, "request failed",
		slog.String("error", err.Error()),
		slog.String("request_id", reqID),
		slog.String("trace_id", traceID),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method))

	// Determine status code and error type
	var problem *apierrors.ProblemDetails

	switch {
	case errors.Is(err, pipeline.ErrRunNotFound):
		problem = apierrors.NewProblemDetails(
			http.StatusNotFound,
			"/errors/not_found",
			"not_found",
			"Run not found",
			r.URL.Path+"#"+reqID,
		)

	case errors.Is(err, pipeline.ErrPipelineNotFound):
		problem = apierrors.NewProblemDetails(
			http.StatusNotFound,
			"/errors/not_found",
			"not_found",
			"Pipeline not found",
			r.URL.Path+"#"+reqID,
		)

	case errors.Is(err, pipeline.ErrRunCompleted), errors.Is(err, services.ErrRunNotRunning):
		problem = apierrors.NewProblemDetails(
			http.StatusConflict,
			"/errors/invalid_state",
			"invalid_state",
			"Run has already finished and cannot be cancelled",
			r.URL.Path+"#"+reqID,
		)

	case errors.Is(err, context.DeadlineExceeded):
		problem = apierrors.NewProblemDetails(
			http.StatusGatewayTimeout,
			"/errors/timeout",
			"Request Timeout",
			"The request timed out while processing",
			r.URL.Path+"#"+reqID,
		)

	case errors.Is(err, context.Canceled):
		problem = apierrors.NewProblemDetails(
			http.StatusRequestTimeout,
			"/errors/request_canceled",
			"Request Canceled",
			"The request was canceled",
			r.URL.Path+"#"+reqID,
		)

	default:
		problem = apierrors.NewProblemDetails(
			http.StatusInternalServerError,
			"/errors/internal_error",
			"Internal Server Error",
			"An unexpected error occurred",
			r.URL.Path+"#"+reqID,
		)
	}

	// Add standard extensions
	problem.WithExtension("trace_id", traceID).
		WithExtension("timestamp", time.Now().UTC()).
		WithExtension("request_id", reqID)

	// Add custom extensions
	if extensions != nil {
		for k, v := range extensions {
			problem.WithExtension(k, v)
		}
	}

	render.Render(w, r, problem)
}

// jobResponse flattens a job into the wire format shared by the job
// endpoints.
func jobResponse(job *pipeline.Job) map[string]interface{} {
	data := map[string]interface{}{
		"job_id":     job.ID,
		"run_id":     job.RunID,
		"pipeline":   job.Pipeline,
		"status":     job.Status,
		"progress":   job.Progress,
		"created_at": job.CreatedAt,
	}

	if job.StartedAt != nil {
		data["started_at"] = job.StartedAt
	}

	if job.CompletedAt != nil {
		data["completed_at"] = job.CompletedAt

		if job.StartedAt != nil {
			data["duration"] = job.CompletedAt.Sub(*job.StartedAt).String()
		}
	}

	if job.Message != "" {
		data["message"] = job.Message
	}

	if job.Error != "" {
		data["error"] = job.Error
	}

	if job.Metadata != nil {
		data["metadata"] = job.Metadata
	}

	return data
}

// GetJobStatus handles GET /api/runs/jobs/{id}
func (h *RunHandler) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "id")
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("runs-handler")

	// Start OpenTelemetry span
	ctx, span := tracer.Start(ctx, "runs_handler.get_job_status",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/runs/jobs/{id}"),
			attribute.String("job.id", jobID),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	h.logger.DebugContext(ctx, "job status request",
		slog.String("job_id", jobID),
		slog.String("request_id", reqID))

	// Get job status
	job, err := h.service.GetJob(ctx, jobID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "job retrieval failed")

		h.logger.ErrorContext(ctx, "failed to get job status",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		problem := apierrors.NewProblemDetails(
			http.StatusNotFound,
			"/errors/not_found",
			"not_found",
			"Job not found",
			r.URL.Path+"#"+reqID,
		).WithExtension("trace_id", infrastructure.TraceIDFromContext(ctx)).
			WithExtension("job_id", jobID)

		render.Render(w, r, problem)
		return
	}

	// Add span attributes
	span.SetAttributes(
		attribute.String("job.status", string(job.Status)),
		attribute.Int("job.progress", job.Progress),
	)

	response := jobResponse(job)

	// Add polling hints
	switch job.Status {
	case pipeline.JobStatusPending, pipeline.JobStatusRunning:
		response["poll_after"] = "2s" // Suggest polling interval
		response["is_complete"] = false
	case pipeline.JobStatusCompleted, pipeline.JobStatusFailed, pipeline.JobStatusCancelled:
		response["is_complete"] = true
	}

	render.JSON(w, r, response)
}

// ListJobs handles GET /api/runs/jobs
func (h *RunHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("runs-handler")

	// Start OpenTelemetry span
	ctx, span := tracer.Start(ctx, "runs_handler.list_jobs",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/runs/jobs"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	// Parse query parameters
	filter := pipeline.JobFilter{}

	// Status filter
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = pipeline.JobStatus(status)
		span.SetAttributes(attribute.String("filter.status", status))
	}

	// Run ID filter
	if runID := r.URL.Query().Get("run_id"); runID != "" {
		filter.RunID = runID
		span.SetAttributes(attribute.String("filter.run_id", runID))
	}

	// Pipeline filter
	if name := r.URL.Query().Get("pipeline"); name != "" {
		filter.Pipeline = name
		span.SetAttributes(attribute.String("filter.pipeline", name))
	}

	// Limit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
			span.SetAttributes(attribute.Int("filter.limit", limit))
		}
	}

	h.logger.DebugContext(ctx, "listing jobs",
		slog.String("status_filter", string(filter.Status)),
		slog.String("run_filter", filter.RunID),
		slog.String("pipeline_filter", filter.Pipeline),
		slog.Int("limit", filter.Limit),
		slog.String("request_id", reqID))

	// List jobs
	jobs, err := h.service.ListJobs(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list jobs failed")

		h.logger.ErrorContext(ctx, "failed to list jobs",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		problem := apierrors.NewProblemDetails(
			http.StatusInternalServerError,
			"/errors/list_failed",
			"list_failed",
			"Failed to list jobs",
			r.URL.Path+"#"+reqID,
		).WithExtension("trace_id", infrastructure.TraceIDFromContext(ctx))

		render.Render(w, r, problem)
		return
	}

	// Add span attributes
	span.SetAttributes(attribute.Int("jobs.count", len(jobs)))

	// Convert to response format
	jobList := make([]map[string]interface{}, len(jobs))
	for i, job := range jobs {
		jobList[i] = jobResponse(job)
	}

	render.JSON(w, r, jobList)
}
