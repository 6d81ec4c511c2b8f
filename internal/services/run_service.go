package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"prepcli/internal/config"
	"prepcli/internal/dataset"
	"prepcli/internal/exporter"
	"prepcli/internal/infrastructure"
	"prepcli/internal/pipeline"
	"prepcli/internal/profile"
)

// RunService coordinates pipeline runs: it owns the manager that executes
// steps, the queue that serializes submissions and the spec store that
// resolves pipeline definitions.
type RunService struct {
	manager *pipeline.Manager
	queue   *pipeline.RunQueue
	store   *pipeline.MemoryJobStore
	specs   *pipeline.SpecStore
	paths   *config.Paths
	logger  *slog.Logger
}

// StepInfo describes a registered pipeline step for API consumers
type StepInfo struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Description  string                `json:"description"`
	Dependencies []string              `json:"dependencies"`
	CanRunAlone  bool                  `json:"can_run_alone"`
	Parameters   []ParameterDefinition `json:"parameters,omitempty"`
}

// ParameterDefinition describes a step parameter for API consumers
type ParameterDefinition struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Default     string `json:"default,omitempty"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// NewRunService builds the run service and wires the pipeline manager,
// the built in steps and the run queue. The tracer may be nil when
// OpenTelemetry is disabled.
func NewRunService(cfg *config.Config, hub pipeline.WebSocketHub, tracer *pipeline.RunTracer, logger *slog.Logger) (*RunService, error) {
	if logger == nil {
		logger = slog.Default()
	}

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}

	runConfig := pipeline.NewConfig()
	runConfig.ManifestDir = filepath.Join(paths.ReportsDir, "runs")

	manager := pipeline.NewManager(hub, pipeline.NewRegistry(), runConfig)

	store := pipeline.NewMemoryJobStore()
	manager.SetManifestStore(store)

	if tracer != nil {
		manager.SetTracer(tracer)
	}

	specs := pipeline.NewSpecStore()
	specsDir := filepath.Join(paths.WorkingDir, "pipelines")
	if _, err := os.Stat(specsDir); err == nil {
		count, err := specs.LoadDir(specsDir)
		if err != nil {
			logger.Warn("failed to load pipeline specs",
				slog.String("dir", specsDir),
				slog.String("error", err.Error()))
		} else if count > 0 {
			logger.Info("loaded pipeline specs",
				slog.String("dir", specsDir),
				slog.Int("count", count))
		}
	}

	deps := pipeline.StepDeps{
		Loader:   dataset.NewLoader(cfg.Loader, logger),
		Profiler: profile.NewProfiler(logger),
		Exporter: exporter.NewDatasetExporter(paths),
		Reports:  exporter.NewReportExporter(paths),
		Specs:    specs,
		Options: pipeline.StepOptions{
			Broadcaster: manager.GetBroadcaster(),
			Tracer:      tracer,
		},
	}
	if err := pipeline.RegisterPipelineSteps(manager, deps); err != nil {
		return nil, fmt.Errorf("failed to register pipeline steps: %w", err)
	}

	service := &RunService{
		manager: manager,
		queue:   pipeline.NewRunQueue(0, store, manager, logger),
		store:   store,
		specs:   specs,
		paths:   paths,
		logger:  logger,
	}

	logger.Info("RunService initialized",
		slog.String("manifest_dir", runConfig.ManifestDir),
		slog.Int("registered_steps", manager.GetRegistry().Count()))
	return service, nil
}

// Start launches the queue worker. It returns once the worker goroutine
// is running.
func (s *RunService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the queue, waiting up to timeout for the active run
func (s *RunService) Stop(timeout time.Duration) error {
	return s.queue.Stop(timeout)
}

// StartRun enqueues a run for asynchronous execution and returns the
// queued job. The job's RunID identifies the run for status polling and
// WebSocket updates.
func (s *RunService) StartRun(ctx context.Context, req *pipeline.RunRequest) (*pipeline.Job, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: missing run request", ErrInvalidInput)
	}
	if req.Pipeline == "" {
		req.Pipeline = pipeline.DefaultPipelineName
	}

	// Fail fast on unknown pipelines instead of queueing a doomed job.
	if _, err := s.specs.Resolve(req.Pipeline); err != nil {
		return nil, err
	}

	job := &pipeline.Job{
		RunID:    req.ID,
		Pipeline: req.Pipeline,
		Request:  req,
		Metadata: map[string]interface{}{},
	}
	if traceID := infrastructure.TraceIDFromContext(ctx); traceID != "" {
		job.Metadata["trace_id"] = traceID
	}

	if err := s.queue.Enqueue(job); err != nil {
		s.logger.ErrorContext(ctx, "failed to enqueue run",
			slog.String("pipeline", req.Pipeline),
			slog.String("error", err.Error()))
		return nil, err
	}

	s.logger.InfoContext(ctx, "run enqueued",
		slog.String("job_id", job.ID),
		slog.String("run_id", job.RunID),
		slog.String("pipeline", job.Pipeline))
	return job, nil
}

// ExecuteRun runs a pipeline synchronously and blocks until it finishes
func (s *RunService) ExecuteRun(ctx context.Context, req pipeline.RunRequest) (*pipeline.RunResponse, error) {
	if req.Pipeline == "" {
		req.Pipeline = pipeline.DefaultPipelineName
	}
	if _, err := s.specs.Resolve(req.Pipeline); err != nil {
		return nil, err
	}
	return s.manager.Execute(ctx, req)
}

// GetRunStatus returns the latest snapshot for a run. Finished runs are
// served from their snapshot as long as the broadcaster retains them,
// afterwards from the persisted manifest.
func (s *RunService) GetRunStatus(ctx context.Context, runID string) (*pipeline.RunSnapshot, error) {
	if snapshot, ok := s.manager.GetBroadcaster().GetSnapshot(runID); ok {
		return snapshot, nil
	}

	manifest, err := s.store.GetManifestByRunID(runID)
	if err != nil {
		return nil, pipeline.ErrRunNotFound
	}
	return snapshotFromManifest(manifest), nil
}

// snapshotFromManifest rebuilds a run snapshot from a persisted manifest
func snapshotFromManifest(manifest *pipeline.RunManifest) *pipeline.RunSnapshot {
	snapshot := &pipeline.RunSnapshot{
		RunID:     manifest.RunID,
		Pipeline:  manifest.Pipeline,
		Status:    manifest.Status,
		StartedAt: manifest.StartAt,
		UpdatedAt: manifest.LastUpdated,
		Error:     manifest.Error,
	}
	switch manifest.Status {
	case "completed":
		snapshot.Progress = 100
		completedAt := manifest.LastUpdated
		snapshot.CompletedAt = &completedAt
	case "failed", "cancelled":
		completedAt := manifest.LastUpdated
		snapshot.CompletedAt = &completedAt
	}

	snapshot.Steps = make([]pipeline.StepSnapshot, len(manifest.StepExecutions))
	for i, execution := range manifest.StepExecutions {
		snapshot.Steps[i] = pipeline.StepSnapshot{
			ID:       execution.StepID,
			Name:     execution.StepName,
			Status:   execution.Status,
			Error:    execution.Error,
			Metadata: execution.Metadata,
		}
		if execution.Status == "completed" {
			snapshot.Steps[i].Progress = 100
		}
	}
	return snapshot
}

// ListRuns returns snapshots of all known runs, newest first
func (s *RunService) ListRuns(ctx context.Context) []*pipeline.RunSnapshot {
	snapshots := s.manager.GetBroadcaster().GetAllSnapshots()
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].StartedAt.After(snapshots[j].StartedAt)
	})
	return snapshots
}

// ListRunsByStatus returns snapshots filtered to one status, newest first
func (s *RunService) ListRunsByStatus(ctx context.Context, status string) []*pipeline.RunSnapshot {
	all := s.ListRuns(ctx)
	filtered := make([]*pipeline.RunSnapshot, 0, len(all))
	for _, snapshot := range all {
		if snapshot.Status == status {
			filtered = append(filtered, snapshot)
		}
	}
	return filtered
}

// CancelRun cancels an active run, or the pending job that would start
// it. Finished runs report ErrRunNotRunning.
func (s *RunService) CancelRun(ctx context.Context, runID string) error {
	err := s.manager.CancelRun(runID)
	if err == nil {
		s.logger.InfoContext(ctx, "run cancelled", slog.String("run_id", runID))
		return nil
	}
	if !errors.Is(err, pipeline.ErrRunNotFound) {
		return err
	}

	// Not active. It may still be waiting in the queue.
	jobs, listErr := s.store.ListJobs(pipeline.JobFilter{RunID: runID})
	if listErr != nil || len(jobs) == 0 {
		return pipeline.ErrRunNotFound
	}

	job := jobs[0]
	switch job.Status {
	case pipeline.JobStatusPending:
		return s.queue.CancelJob(job.ID)
	case pipeline.JobStatusRunning:
		return s.manager.CancelRun(runID)
	default:
		return fmt.Errorf("%w: run %s already %s", ErrRunNotRunning, runID, job.Status)
	}
}

// CancelAll cancels every active and pending run and returns how many
// cancellations were issued
func (s *RunService) CancelAll(ctx context.Context) int {
	cancelled := 0
	for _, snapshot := range s.manager.GetBroadcaster().GetAllSnapshots() {
		if snapshot.Status != "running" && snapshot.Status != "pending" {
			continue
		}
		if err := s.CancelRun(ctx, snapshot.RunID); err == nil {
			cancelled++
		}
	}
	return cancelled
}

// GetJob returns a queued or finished job by job ID
func (s *RunService) GetJob(ctx context.Context, jobID string) (*pipeline.Job, error) {
	return s.queue.GetJob(jobID)
}

// ListJobs returns jobs matching the filter
func (s *RunService) ListJobs(ctx context.Context, filter pipeline.JobFilter) ([]*pipeline.Job, error) {
	return s.queue.ListJobs(filter)
}

// QueueStats reports job counts by status plus the number of active runs
func (s *RunService) QueueStats() map[string]int {
	stats := s.store.Stats()
	stats["active"] = s.queue.ActiveCount()
	return stats
}

// GetManifest returns the persisted manifest for a finished run
func (s *RunService) GetManifest(ctx context.Context, runID string) (*pipeline.RunManifest, error) {
	manifest, err := s.store.GetManifestByRunID(runID)
	if err != nil {
		return nil, pipeline.ErrRunNotFound
	}
	return manifest, nil
}

// ListPipelines returns the registered pipeline specs
func (s *RunService) ListPipelines(ctx context.Context) []*pipeline.Spec {
	return s.specs.List()
}

// GetPipeline resolves a pipeline spec by name
func (s *RunService) GetPipeline(ctx context.Context, name string) (*pipeline.Spec, error) {
	return s.specs.Resolve(name)
}

// RegisterPipeline parses a YAML spec and registers it for subsequent
// runs
func (s *RunService) RegisterPipeline(ctx context.Context, data []byte) (*pipeline.Spec, error) {
	spec, err := pipeline.ParseSpec(data)
	if err != nil {
		return nil, err
	}
	if err := s.specs.Register(spec); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "pipeline registered",
		slog.String("pipeline", spec.Name),
		slog.Int("steps", len(spec.Steps)))
	return spec, nil
}

// GetPipelineSteps describes the registered steps for API consumers,
// plus the synthetic full_pipeline entry that runs all of them
func (s *RunService) GetPipelineSteps(ctx context.Context) []StepInfo {
	steps := s.manager.GetRegistry().List()

	infos := make([]StepInfo, 0, len(steps)+1)
	for _, step := range steps {
		infos = append(infos, StepInfo{
			ID:           step.ID(),
			Name:         step.Name(),
			Description:  getStepDescription(step.ID()),
			Dependencies: step.Dependencies(),
			CanRunAlone:  len(step.Dependencies()) == 0,
			Parameters:   getStepParameters(step.ID()),
		})
	}

	infos = append(infos, StepInfo{
		ID:          "full_pipeline",
		Name:        "Full Pipeline",
		Description: "Load, clean, profile and export in one run",
		CanRunAlone: true,
		Parameters: []ParameterDefinition{
			{Name: "pipeline", Type: "string", Default: pipeline.DefaultPipelineName, Description: "Pipeline spec to execute", Required: false},
			{Name: "source", Type: "string", Description: "Dataset file to process", Required: true},
		},
	})

	return infos
}

// getStepDescription returns a human readable description for a step
func getStepDescription(stepID string) string {
	descriptions := map[string]string{
		pipeline.StepIDLoad:    "Read the source file and infer column types",
		pipeline.StepIDClean:   "Apply the pipeline's cleaning transforms in order",
		pipeline.StepIDProfile: "Compute per-column statistics and write the profile report",
		pipeline.StepIDExport:  "Write the processed dataset to the output directory",
	}
	if description, ok := descriptions[stepID]; ok {
		return description
	}
	return "Pipeline step"
}

// getStepParameters returns the parameter definitions for a step
func getStepParameters(stepID string) []ParameterDefinition {
	parameters := map[string][]ParameterDefinition{
		pipeline.StepIDLoad: {
			{Name: "source", Type: "string", Description: "Path to the dataset file", Required: true},
		},
		pipeline.StepIDProfile: {
			{Name: "correlations", Type: "bool", Default: "false", Description: "Also compute the correlation matrix", Required: false},
		},
		pipeline.StepIDExport: {
			{Name: "output", Type: "string", Description: "Output path, defaults to <name>_cleaned.csv", Required: false},
		},
	}
	return parameters[stepID]
}

// GetRunMetrics aggregates run counts by status along with queue
// statistics
func (s *RunService) GetRunMetrics(ctx context.Context) map[string]interface{} {
	counts := map[string]int{
		"pending":   0,
		"running":   0,
		"completed": 0,
		"failed":    0,
		"cancelled": 0,
	}
	snapshots := s.manager.GetBroadcaster().GetAllSnapshots()
	for _, snapshot := range snapshots {
		counts[snapshot.Status]++
	}

	return map[string]interface{}{
		"total_runs": len(snapshots),
		"by_status":  counts,
		"queue":      s.QueueStats(),
		"timestamp":  time.Now().Format(time.RFC3339),
	}
}
