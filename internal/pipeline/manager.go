package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Manager orchestrates run execution. Steps run strictly one at a
// time, in order, and are never retried: the first failure fails the
// run and every remaining step is skipped.
type Manager struct {
	registry      *Registry
	config        *Config
	hub           WebSocketHub
	broadcaster   *StatusBroadcaster
	manifestStore JobStore
	tracer        *RunTracer

	// Active runs
	mu   sync.RWMutex
	runs map[string]*RunState
}

// NewManager creates a run manager.
func NewManager(hub WebSocketHub, registry *Registry, config *Config) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	if config == nil {
		config = NewConfig()
	}

	broadcaster := NewStatusBroadcaster(hub, slog.Default())

	return &Manager{
		registry:    registry,
		config:      config,
		hub:         hub,
		broadcaster: broadcaster,
		runs:        make(map[string]*RunState),
	}
}

// RegisterStep registers a step with the manager's registry.
func (m *Manager) RegisterStep(step Step) error {
	return m.registry.Register(step)
}

// SetConfig replaces the run configuration.
func (m *Manager) SetConfig(config *Config) {
	if config != nil {
		m.config = config
	}
}

// GetConfig returns the current configuration.
func (m *Manager) GetConfig() *Config {
	return m.config
}

// GetRegistry returns the step registry.
func (m *Manager) GetRegistry() *Registry {
	return m.registry
}

// GetBroadcaster returns the status broadcaster.
func (m *Manager) GetBroadcaster() *StatusBroadcaster {
	return m.broadcaster
}

// SetManifestStore makes the manager persist run manifests to the
// given store, so they outlive the run.
func (m *Manager) SetManifestStore(store JobStore) {
	m.manifestStore = store
}

// SetTracer enables OpenTelemetry spans and metrics for runs.
func (m *Manager) SetTracer(tracer *RunTracer) {
	m.tracer = tracer
}

// Execute runs a pipeline for the given request and blocks until it
// finishes or fails.
func (m *Manager) Execute(ctx context.Context, req RunRequest) (*RunResponse, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	runStart := time.Now()
	var runSpan trace.Span
	if m.tracer != nil {
		ctx, runSpan = m.tracer.TraceRunExecution(ctx, req)
	}

	state := NewRunState(req.ID)
	state.Pipeline = req.Pipeline

	if req.Source != "" {
		state.SetConfig(ContextKeySourcePath, req.Source)
	}
	if req.OutputDir != "" {
		state.SetConfig(ContextKeyOutputDir, req.OutputDir)
	}
	if req.Pipeline != "" {
		state.SetConfig(ContextKeyPipeline, req.Pipeline)
	}
	for k, v := range req.Parameters {
		state.SetConfig(k, v)
	}

	m.storeRun(state)
	defer m.removeRun(req.ID)

	steps, err := m.resolveSteps(ctx, req)
	if err != nil {
		m.logRunError(ctx, req.ID, err)
		state.Fail(err)
		m.finishRunSpan(ctx, runSpan, req, time.Since(runStart), err)
		return m.createResponse(state), err
	}

	// Initialize step states. The broadcaster snapshot uses step IDs so
	// that later progress updates match.
	stepIDs := make([]string, len(steps))
	for i, step := range steps {
		state.SetStep(step.ID(), NewStepState(step.ID(), step.Name()))
		stepIDs[i] = step.ID()
	}

	manifest := NewRunManifest(req.ID, req.Pipeline)
	state.SetManifest(manifest)
	if m.manifestStore != nil {
		if storeErr := m.manifestStore.CreateManifest(manifest); storeErr != nil {
			slog.WarnContext(ctx, "failed to store manifest",
				slog.String("run_id", req.ID),
				slog.String("error", storeErr.Error()))
		}
	}

	m.broadcaster.CreateRun(req.ID, req.Pipeline, stepIDs)

	m.logRunStart(ctx, req.ID, req)
	state.Start()
	m.broadcaster.StartRun(req.ID)

	err = m.executeSequential(ctx, state, steps)

	switch {
	case err != nil && GetErrorType(err) == ErrorTypeCancellation:
		state.Cancel()
		manifest.Fail(err)
		m.broadcaster.CancelRun(req.ID)
	case err != nil:
		state.Fail(err)
		manifest.Fail(err)
		m.broadcaster.FailRun(req.ID, err)
	default:
		state.Complete()
		manifest.Complete()
		m.broadcaster.CompleteRun(req.ID, "Run completed")
	}
	m.persistManifest(ctx, manifest)
	m.finishRunSpan(ctx, runSpan, req, time.Since(runStart), err)
	m.logRunComplete(ctx, req.ID, state.Duration(), string(state.Status))

	return m.createResponse(state), err
}

// finishRunSpan records the run outcome on its span, when tracing is
// enabled.
func (m *Manager) finishRunSpan(ctx context.Context, span trace.Span, req RunRequest, duration time.Duration, err error) {
	if m.tracer == nil {
		return
	}
	m.tracer.RecordRunCompletion(ctx, span, req, duration, err)
	span.End()
}

// persistManifest writes the manifest to the store and, when a
// manifest directory is configured, to disk. Persistence problems are
// logged rather than failing the run, which already finished.
func (m *Manager) persistManifest(ctx context.Context, manifest *RunManifest) {
	if m.manifestStore != nil {
		if err := m.manifestStore.UpdateManifest(manifest); err != nil {
			slog.WarnContext(ctx, "failed to update manifest",
				slog.String("run_id", manifest.RunID),
				slog.String("error", err.Error()))
		}
	}

	if dir := m.config.ManifestDir; dir != "" {
		path := filepath.Join(dir, manifest.RunID+".json")
		if err := manifest.SaveToFile(path); err != nil {
			slog.WarnContext(ctx, "failed to write manifest file",
				slog.String("run_id", manifest.RunID),
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	}
}

// resolveSteps picks the steps to run: a single requested step, or the
// full registry in dependency order.
func (m *Manager) resolveSteps(ctx context.Context, req RunRequest) ([]Step, error) {
	if req.Step != "" {
		step, err := m.registry.Get(req.Step)
		if err != nil {
			return nil, fmt.Errorf("requested step not found: %s", req.Step)
		}

		slog.InfoContext(ctx, "executing single step",
			slog.String("step_id", req.Step),
			slog.String("run_id", req.ID))
		return []Step{step}, nil
	}

	steps, err := m.registry.ExecutionOrder()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve step order: %w", err)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("no steps registered")
	}

	slog.InfoContext(ctx, "executing full pipeline",
		slog.Int("step_count", len(steps)),
		slog.String("run_id", req.ID))
	return steps, nil
}

// executeSequential runs the steps one by one. The first error stops
// the run: the failing step is marked failed, every step after it is
// marked skipped, and the error is returned.
func (m *Manager) executeSequential(ctx context.Context, state *RunState, steps []Step) error {
	for i, step := range steps {
		cancelled := state.IsCancelled()
		select {
		case <-ctx.Done():
			cancelled = true
		default:
		}
		if cancelled {
			slog.WarnContext(ctx, "run cancelled",
				slog.String("run_id", state.ID),
				slog.String("step", step.ID()))
			m.skipRemaining(state, steps, i, "run cancelled")
			return NewCancellationError(step.ID())
		}

		slog.InfoContext(ctx, "executing step",
			slog.String("run_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("step_number", i+1),
			slog.Int("total_steps", len(steps)))

		if err := m.executeStep(ctx, state, step); err != nil {
			m.logStepError(ctx, state.ID, step.ID(), err)
			m.skipRemaining(state, steps, i+1, fmt.Sprintf("step %s failed", step.ID()))
			return err
		}
	}

	slog.InfoContext(ctx, "all steps completed",
		slog.String("run_id", state.ID))
	return nil
}

// executeStep runs a single step exactly once.
func (m *Manager) executeStep(ctx context.Context, state *RunState, step Step) error {
	m.logStepStart(ctx, state.ID, step.ID())

	stepState := state.GetStep(step.ID())
	if stepState == nil {
		return NewFatalError("step state not found", nil)
	}

	if err := m.checkDependencies(state, step); err != nil {
		stepState.Skip(fmt.Sprintf("dependencies not met: %v", err))
		m.broadcaster.SkipStep(state.ID, step.ID(), stepState.Message)
		return err
	}

	if err := step.Validate(state); err != nil {
		stepState.Skip(fmt.Sprintf("validation failed: %v", err))
		m.broadcaster.SkipStep(state.ID, step.ID(), stepState.Message)
		return NewStepValidationError(step.ID(), err.Error())
	}

	timeout := m.config.GetStepTimeout(step.ID())
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stepSpan trace.Span
	if m.tracer != nil {
		stepCtx, stepSpan = m.tracer.TraceStepExecution(stepCtx, state.ID, step.ID())
	}

	stepState.Start()
	m.broadcaster.UpdateStepProgress(state.ID, step.ID(), 1, "Step started")

	err := step.Execute(stepCtx, state)

	if err != nil && stepCtx.Err() == context.DeadlineExceeded {
		err = NewTimeoutError(step.ID(), timeout.String())
	} else if err != nil && ctx.Err() == context.Canceled {
		err = NewCancellationError(step.ID())
	}

	if err != nil {
		stepState.Fail(err)
	} else {
		stepState.Complete()
	}

	if m.tracer != nil {
		m.tracer.RecordStepCompletion(stepCtx, stepSpan, state.ID, step.ID(),
			stepState.Duration(), datasetRows(state), err)
		stepSpan.End()
	}

	if err != nil {
		m.broadcaster.FailStep(state.ID, step.ID(), err)
		return WrapError(err, step.ID(), "step execution failed")
	}

	m.broadcaster.CompleteStep(state.ID, step.ID(), "Step completed")
	m.logStepComplete(ctx, state.ID, step.ID(), stepState.Duration())

	return nil
}

// datasetRows reports the size of the working dataset, if one is set.
func datasetRows(state *RunState) int {
	if ds := state.Dataset(); ds != nil {
		return ds.Rows()
	}
	return 0
}

// skipRemaining marks every step from index on as skipped, unless it
// already reached a terminal status.
func (m *Manager) skipRemaining(state *RunState, steps []Step, from int, reason string) {
	for i := from; i < len(steps); i++ {
		stepState := state.GetStep(steps[i].ID())
		if stepState == nil || stepState.GetStatus() != StepStatusPending {
			continue
		}
		stepState.Skip(reason)
		m.broadcaster.SkipStep(state.ID, steps[i].ID(), reason)
	}
}

// checkDependencies verifies that every dependency completed.
func (m *Manager) checkDependencies(state *RunState, step Step) error {
	for _, dep := range step.Dependencies() {
		depState := state.GetStep(dep)
		if depState == nil {
			return NewDependencyError(step.ID(), dep,
				fmt.Sprintf("dependency %s not found", dep))
		}
		if status := depState.GetStatus(); status != StepStatusCompleted {
			return NewDependencyError(step.ID(), dep,
				fmt.Sprintf("dependency %s not completed (status: %s)", dep, status))
		}
	}
	return nil
}

// createResponse builds a response from the final run state.
func (m *Manager) createResponse(state *RunState) *RunResponse {
	resp := &RunResponse{
		ID:       state.ID,
		Status:   state.Status,
		Duration: state.Duration(),
		Steps:    state.Steps,
	}

	if state.Error != nil {
		resp.Error = state.Error.Error()
	}

	return resp
}

// GetRun returns a copy of the state of an active run.
func (m *Manager) GetRun(id string) (*RunState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, exists := m.runs[id]
	if !exists {
		return nil, ErrRunNotFound
	}

	return state.Clone(), nil
}

// ListRuns returns copies of every active run state.
func (m *Manager) ListRuns() []*RunState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	runs := make([]*RunState, 0, len(m.runs))
	for _, state := range m.runs {
		runs = append(runs, state.Clone())
	}

	return runs
}

// CancelRun cancels an active run.
func (m *Manager) CancelRun(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, exists := m.runs[id]
	if !exists {
		return ErrRunNotFound
	}

	state.Cancel()
	m.broadcaster.CancelRun(id)
	return nil
}

func (m *Manager) storeRun(state *RunState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[state.ID] = state
}

func (m *Manager) removeRun(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.runs, id)
}
