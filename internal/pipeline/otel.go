package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"prepcli/internal/infrastructure"
)

const (
	TracerName = "prepcli.run"
)

// RunTracer provides OpenTelemetry instrumentation for pipeline runs
type RunTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.RunMetrics
}

// NewRunTracer creates a run tracer backed by the given providers
func NewRunTracer(providers *infrastructure.OTelProviders) (*RunTracer, error) {
	metrics, err := infrastructure.CreateRunMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create run metrics: %w", err)
	}

	return &RunTracer{
		tracer:  otel.Tracer(TracerName),
		metrics: metrics,
	}, nil
}

// TraceRunExecution starts a span covering a whole run
func (rt *RunTracer) TraceRunExecution(ctx context.Context, req RunRequest) (context.Context, trace.Span) {
	ctx, span := rt.tracer.Start(ctx, "run.execute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", req.ID),
			attribute.String("run.pipeline", req.Pipeline),
			attribute.String("run.source", req.Source),
		),
	)

	rt.metrics.RunActiveRuns.Add(ctx, 1)

	return ctx, span
}

// TraceStepExecution starts a span for one step of a run
func (rt *RunTracer) TraceStepExecution(ctx context.Context, runID, stepID string) (context.Context, trace.Span) {
	spanName := fmt.Sprintf("run.step.%s", stepID)
	ctx, span := rt.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("step.id", stepID),
		),
	)

	return ctx, span
}

// RecordRunCompletion closes out a run span and records the run metrics
func (rt *RunTracer) RecordRunCompletion(ctx context.Context, span trace.Span, req RunRequest, duration time.Duration, runErr error) {
	status := "success"
	if runErr != nil {
		status = "failure"
	}

	span.SetAttributes(
		attribute.String("run.status", status),
		attribute.Float64("run.duration_seconds", duration.Seconds()),
	)

	infrastructure.RecordRunMetrics(ctx, rt.metrics, req.ID, req.Pipeline, duration, runErr == nil, runErr)
	rt.metrics.RunActiveRuns.Add(ctx, -1)

	infrastructure.AddSpanEvent(ctx, "run.completed", map[string]interface{}{
		"run_id":   req.ID,
		"status":   status,
		"duration": duration.Seconds(),
	})

	if runErr == nil {
		span.SetStatus(codes.Ok, "run completed")
	} else {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	}
}

// RecordStepCompletion closes out a step span and records the step
// metrics, including how many rows came out of the step
func (rt *RunTracer) RecordStepCompletion(ctx context.Context, span trace.Span, runID, stepID string, duration time.Duration, rowsOut int, stepErr error) {
	status := "success"
	if stepErr != nil {
		status = "failure"
	}

	span.SetAttributes(
		attribute.String("step.status", status),
		attribute.Float64("step.duration_seconds", duration.Seconds()),
		attribute.Int("step.rows_out", rowsOut),
	)

	infrastructure.RecordStepMetrics(ctx, rt.metrics, runID, stepID, duration, rowsOut, stepErr == nil)

	infrastructure.AddSpanEvent(ctx, "step.completed", map[string]interface{}{
		"step_id":  stepID,
		"status":   status,
		"duration": duration.Seconds(),
		"rows_out": rowsOut,
	})

	if stepErr == nil {
		span.SetStatus(codes.Ok, "step completed")
	} else {
		infrastructure.RecordError(ctx, stepErr, trace.WithAttributes(
			attribute.String("step.id", stepID),
		))
	}
}

// RecordStepProgress attaches a progress event to the active span
func (rt *RunTracer) RecordStepProgress(ctx context.Context, stepID string, progress int, message string) {
	infrastructure.AddSpanEvent(ctx, "step.progress", map[string]interface{}{
		"step_id":  stepID,
		"progress": progress,
		"message":  message,
	})

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(
			attribute.Int("step.progress_percent", progress),
			attribute.String("step.progress_message", message),
		)
	}
}

// TraceDatasetLoad starts a span for reading a source file
func (rt *RunTracer) TraceDatasetLoad(ctx context.Context, source string) (context.Context, trace.Span) {
	ctx, span := rt.tracer.Start(ctx, "run.dataset.load",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("dataset.source", source),
		),
	)

	rt.metrics.DatasetLoadsTotal.Add(ctx, 1)

	return ctx, span
}

// RecordDatasetLoadCompletion closes out a load span with the shape of
// the loaded dataset
func (rt *RunTracer) RecordDatasetLoadCompletion(ctx context.Context, span trace.Span, rows, cols int, duration time.Duration, loadErr error) {
	span.SetAttributes(
		attribute.Int("dataset.rows", rows),
		attribute.Int("dataset.cols", cols),
		attribute.Float64("dataset.load_seconds", duration.Seconds()),
	)

	rt.metrics.DatasetLoadDuration.Record(ctx, duration.Seconds())

	if loadErr == nil {
		span.SetStatus(codes.Ok, fmt.Sprintf("loaded %d rows", rows))
	} else {
		span.RecordError(loadErr)
		span.SetStatus(codes.Error, loadErr.Error())
	}
}
