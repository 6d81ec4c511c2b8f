package http

import (
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"prepcli/internal/infrastructure"
	"prepcli/internal/pipeline"
)

// RunMetricsHandler handles run-specific metrics endpoints
type RunMetricsHandler struct {
	service RunServiceInterface
	logger  *slog.Logger
	tracer  trace.Tracer
	meter   metric.Meter

	// Metrics collectors
	httpRequestDuration metric.Float64Histogram
	httpRequestsTotal   metric.Int64Counter
	httpActiveRequests  metric.Int64UpDownCounter
}

// NewRunMetricsHandler creates a new run metrics handler
func NewRunMetricsHandler(service RunServiceInterface, logger *slog.Logger) (*RunMetricsHandler, error) {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	tracer := otel.Tracer("run-metrics-handler")
	meter := otel.Meter("run-metrics-handler")

	// Create metrics
	httpRequestDuration, err := meter.Float64Histogram(
		"run_handler_request_duration_seconds",
		metric.WithDescription("HTTP request duration for run endpoints in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	httpRequestsTotal, err := meter.Int64Counter(
		"run_handler_requests_total",
		metric.WithDescription("Total number of HTTP requests to run endpoints"),
	)
	if err != nil {
		return nil, err
	}

	httpActiveRequests, err := meter.Int64UpDownCounter(
		"run_handler_active_requests",
		metric.WithDescription("Number of active HTTP requests to run endpoints"),
	)
	if err != nil {
		return nil, err
	}

	return &RunMetricsHandler{
		service:             service,
		logger:              logger.With(slog.String("handler", "run_metrics")),
		tracer:              tracer,
		meter:               meter,
		httpRequestDuration: httpRequestDuration,
		httpRequestsTotal:   httpRequestsTotal,
		httpActiveRequests:  httpActiveRequests,
	}, nil
}

// Routes returns a chi router for run metrics endpoints
func (h *RunMetricsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	// Apply middleware with instrumentation
	r.Use(h.instrumentMiddleware)

	// Metrics endpoints
	r.Get("/summary", h.GetRunsSummary)
	r.Get("/performance", h.GetPerformanceMetrics)
	r.Get("/health", h.GetRunsHealth)

	return r
}

// instrumentMiddleware adds OpenTelemetry instrumentation to requests
func (h *RunMetricsHandler) instrumentMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		route := chi.RouteContext(ctx).RoutePattern()

		// Record request start
		h.httpActiveRequests.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("method", r.Method),
				attribute.String("route", route),
			),
		)
		defer h.httpActiveRequests.Add(ctx, -1,
			metric.WithAttributes(
				attribute.String("method", r.Method),
				attribute.String("route", route),
			),
		)

		// Track request duration
		startTime := time.Now()

		// Wrap response writer to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		// Call next handler
		next.ServeHTTP(ww, r)

		duration := time.Since(startTime)

		// Record metrics
		h.httpRequestsTotal.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("method", r.Method),
				attribute.String("route", route),
				attribute.Int("status", ww.Status()),
			),
		)

		h.httpRequestDuration.Record(ctx, duration.Seconds(),
			metric.WithAttributes(
				attribute.String("method", r.Method),
				attribute.String("route", route),
				attribute.Int("status", ww.Status()),
			),
		)
	})
}

// GetRunsSummary returns a summary of all pipeline runs
func (h *RunMetricsHandler) GetRunsSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	// Start span
	ctx, span := h.tracer.Start(ctx, "metrics.get_runs_summary",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/runs/metrics/summary"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	h.logger.DebugContext(ctx, "retrieving runs summary",
		slog.String("request_id", reqID),
		slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)))

	// Jobs outlive snapshots, so metrics read the job store
	jobs, err := h.service.ListJobs(ctx, pipeline.JobFilter{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list jobs")

		h.logger.ErrorContext(ctx, "failed to list jobs",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{
			"error": "Failed to retrieve runs",
		})
		return
	}

	// Calculate summary statistics
	summary := h.calculateSummary(jobs)

	span.SetAttributes(
		attribute.Int("runs.total", summary["total"].(int)),
		attribute.Int("runs.active", summary["active"].(int)),
		attribute.Int("runs.completed", summary["completed"].(int)),
		attribute.Int("runs.failed", summary["failed"].(int)),
	)

	render.JSON(w, r, summary)
}

// GetPerformanceMetrics returns performance metrics for runs
func (h *RunMetricsHandler) GetPerformanceMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	// Start span
	ctx, span := h.tracer.Start(ctx, "metrics.get_performance_metrics",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/runs/metrics/performance"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	h.logger.DebugContext(ctx, "retrieving performance metrics",
		slog.String("request_id", reqID),
		slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)))

	jobs, err := h.service.ListJobs(ctx, pipeline.JobFilter{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list jobs")

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{
			"error": "Failed to retrieve runs",
		})
		return
	}

	// Calculate performance metrics
	metrics := h.calculatePerformanceMetrics(jobs)

	span.SetAttributes(
		attribute.Float64("performance.avg_duration_seconds", metrics["avg_duration_seconds"].(float64)),
		attribute.Float64("performance.success_rate", metrics["success_rate"].(float64)),
	)

	render.JSON(w, r, metrics)
}

// GetRunsHealth returns health status of the run system
func (h *RunMetricsHandler) GetRunsHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	// Start span
	ctx, span := h.tracer.Start(ctx, "metrics.get_runs_health",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/runs/metrics/health"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	h.logger.DebugContext(ctx, "checking run system health",
		slog.String("request_id", reqID),
		slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)))

	jobs, err := h.service.ListJobs(ctx, pipeline.JobFilter{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list jobs")

		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, map[string]interface{}{
			"status": "unhealthy",
			"error":  "Cannot retrieve run status",
		})
		return
	}

	// Check health criteria
	health := h.calculateHealth(jobs)

	span.SetAttributes(
		attribute.String("health.status", health["status"].(string)),
		attribute.Bool("health.is_healthy", health["status"].(string) == "healthy"),
	)

	statusCode := http.StatusOK
	if health["status"] != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	render.Status(r, statusCode)
	render.JSON(w, r, health)
}

// calculateSummary calculates summary statistics for run jobs
func (h *RunMetricsHandler) calculateSummary(jobs []*pipeline.Job) map[string]interface{} {
	summary := map[string]interface{}{
		"total":     len(jobs),
		"active":    0,
		"pending":   0,
		"running":   0,
		"completed": 0,
		"failed":    0,
		"cancelled": 0,
		"timestamp": time.Now().UTC(),
	}

	statusCounts := make(map[string]int)
	for _, job := range jobs {
		statusCounts[string(job.Status)]++

		// Count active jobs (pending or running)
		if job.Status == pipeline.JobStatusPending || job.Status == pipeline.JobStatusRunning {
			summary["active"] = summary["active"].(int) + 1
		}
	}

	// Update individual status counts
	summary["pending"] = statusCounts[string(pipeline.JobStatusPending)]
	summary["running"] = statusCounts[string(pipeline.JobStatusRunning)]
	summary["completed"] = statusCounts[string(pipeline.JobStatusCompleted)]
	summary["failed"] = statusCounts[string(pipeline.JobStatusFailed)]
	summary["cancelled"] = statusCounts[string(pipeline.JobStatusCancelled)]

	// Break the counts down by pipeline
	pipelineBreakdown := make(map[string]map[string]int)
	for _, job := range jobs {
		name := job.Pipeline
		if name == "" {
			name = "unknown"
		}

		if _, exists := pipelineBreakdown[name]; !exists {
			pipelineBreakdown[name] = make(map[string]int)
		}
		pipelineBreakdown[name][string(job.Status)]++
	}

	summary["by_pipeline"] = pipelineBreakdown

	return summary
}

// calculatePerformanceMetrics calculates performance metrics
func (h *RunMetricsHandler) calculatePerformanceMetrics(jobs []*pipeline.Job) map[string]interface{} {
	metrics := map[string]interface{}{
		"total_runs":           len(jobs),
		"avg_duration_seconds": 0.0,
		"min_duration_seconds": 0.0,
		"max_duration_seconds": 0.0,
		"success_rate":         0.0,
		"failure_rate":         0.0,
		"cancellation_rate":    0.0,
		"timestamp":            time.Now().UTC(),
	}

	if len(jobs) == 0 {
		return metrics
	}

	var totalDuration time.Duration
	var minDuration, maxDuration time.Duration
	var finishedCount, successCount, failedCount, cancelledCount int

	for _, job := range jobs {
		// Only calculate duration for jobs that actually ran to an end
		if d, ok := jobDuration(job); ok {
			totalDuration += d
			finishedCount++

			if minDuration == 0 || d < minDuration {
				minDuration = d
			}
			if d > maxDuration {
				maxDuration = d
			}
		}

		// Count outcomes
		switch job.Status {
		case pipeline.JobStatusCompleted:
			successCount++
		case pipeline.JobStatusFailed:
			failedCount++
		case pipeline.JobStatusCancelled:
			cancelledCount++
		}
	}

	// Calculate averages and rates
	if finishedCount > 0 {
		metrics["avg_duration_seconds"] = totalDuration.Seconds() / float64(finishedCount)
		metrics["min_duration_seconds"] = minDuration.Seconds()
		metrics["max_duration_seconds"] = maxDuration.Seconds()
	}

	totalFinished := successCount + failedCount + cancelledCount
	if totalFinished > 0 {
		metrics["success_rate"] = float64(successCount) / float64(totalFinished)
		metrics["failure_rate"] = float64(failedCount) / float64(totalFinished)
		metrics["cancellation_rate"] = float64(cancelledCount) / float64(totalFinished)
	}

	// Add percentiles if we have enough data
	if finishedCount >= 10 {
		durations := make([]time.Duration, 0, finishedCount)
		for _, job := range jobs {
			if d, ok := jobDuration(job); ok {
				durations = append(durations, d)
			}
		}
		sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

		metrics["p50_duration_seconds"] = durations[len(durations)/2].Seconds()
		metrics["p95_duration_seconds"] = percentileAt(durations, 0.95).Seconds()
		metrics["p99_duration_seconds"] = percentileAt(durations, 0.99).Seconds()
	}

	return metrics
}

// calculateHealth determines the health status of the run system
func (h *RunMetricsHandler) calculateHealth(jobs []*pipeline.Job) map[string]interface{} {
	health := map[string]interface{}{
		"status":    "healthy",
		"checks":    make(map[string]interface{}),
		"timestamp": time.Now().UTC(),
	}

	checks := health["checks"].(map[string]interface{})

	// Check 1: Queue backlog. The worker runs one job at a time, so a
	// growing pending count means the queue is not draining.
	backlog := 0
	for _, job := range jobs {
		if job.Status == pipeline.JobStatusPending {
			backlog++
		}
	}

	backlogHealthy := backlog < 8
	checks["queue_backlog"] = map[string]interface{}{
		"status":    conditionalStatus(backlogHealthy),
		"count":     backlog,
		"threshold": 8,
	}

	// Check 2: Recent failure rate
	recentJobs := filterRecentJobs(jobs, 1*time.Hour)
	failureRate := jobFailureRate(recentJobs)

	failureRateHealthy := failureRate < 0.1
	checks["failure_rate"] = map[string]interface{}{
		"status":    conditionalStatus(failureRateHealthy),
		"rate":      failureRate,
		"threshold": 0.1,
		"window":    "1h",
	}

	// Check 3: Stuck runs (running for too long)
	stuckCount := 0
	for _, job := range jobs {
		if job.Status == pipeline.JobStatusRunning && job.StartedAt != nil && job.StartedAt.Before(time.Now().Add(-30*time.Minute)) {
			stuckCount++
		}
	}

	noStuckRuns := stuckCount == 0
	checks["stuck_runs"] = map[string]interface{}{
		"status":    conditionalStatus(noStuckRuns),
		"count":     stuckCount,
		"threshold": "30m",
	}

	// Overall health determination
	if !backlogHealthy || !failureRateHealthy || !noStuckRuns {
		health["status"] = "unhealthy"
	}

	return health
}

// Helper functions

func jobDuration(job *pipeline.Job) (time.Duration, bool) {
	if job.StartedAt == nil || job.CompletedAt == nil {
		return 0, false
	}
	return job.CompletedAt.Sub(*job.StartedAt), true
}

func percentileAt(sorted []time.Duration, q float64) time.Duration {
	idx := int(float64(len(sorted)) * q)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func conditionalStatus(healthy bool) string {
	if healthy {
		return "healthy"
	}
	return "unhealthy"
}

func filterRecentJobs(jobs []*pipeline.Job, window time.Duration) []*pipeline.Job {
	cutoff := time.Now().Add(-window)
	recent := make([]*pipeline.Job, 0)

	for _, job := range jobs {
		if job.CreatedAt.After(cutoff) {
			recent = append(recent, job)
		}
	}

	return recent
}

func jobFailureRate(jobs []*pipeline.Job) float64 {
	if len(jobs) == 0 {
		return 0.0
	}

	failedCount := 0
	finishedCount := 0

	for _, job := range jobs {
		if job.Status == pipeline.JobStatusFailed {
			failedCount++
			finishedCount++
		} else if job.Status == pipeline.JobStatusCompleted {
			finishedCount++
		}
	}

	if finishedCount == 0 {
		return 0.0
	}

	return float64(failedCount) / float64(finishedCount)
}
