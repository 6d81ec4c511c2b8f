package pipeline

import (
	"sync"
	"time"

	"prepcli/internal/dataset"
)

// RunStatus is the overall status of a run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// RunState is the complete state of one pipeline run. The working
// dataset moves through it from step to step.
type RunState struct {
	mu sync.RWMutex

	ID        string     `json:"id"`
	Pipeline  string     `json:"pipeline"`
	Status    RunStatus  `json:"status"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	Steps map[string]*StepState `json:"steps"`

	// Context carries values between steps
	Context map[string]interface{} `json:"context"`

	// Config holds request parameters
	Config map[string]interface{} `json:"config"`

	Error error `json:"error,omitempty"`

	ds       *dataset.Dataset
	manifest *RunManifest
}

// NewRunState creates a pending run state.
func NewRunState(id string) *RunState {
	return &RunState{
		ID:        id,
		Status:    RunStatusPending,
		StartTime: time.Now(),
		Steps:     make(map[string]*StepState),
		Context:   make(map[string]interface{}),
		Config:    make(map[string]interface{}),
	}
}

// Start marks the run as running.
func (r *RunState) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = RunStatusRunning
	r.StartTime = time.Now()
}

// Complete marks the run as completed.
func (r *RunState) Complete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.EndTime = &now
	r.Status = RunStatusCompleted
}

// Fail marks the run as failed.
func (r *RunState) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.EndTime = &now
	r.Status = RunStatusFailed
	r.Error = err
}

// Cancel marks the run as cancelled.
func (r *RunState) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.EndTime = &now
	r.Status = RunStatusCancelled
}

// IsCancelled reports whether the run was cancelled.
func (r *RunState) IsCancelled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Status == RunStatusCancelled
}

// SetDataset stores the working dataset for the next step.
func (r *RunState) SetDataset(ds *dataset.Dataset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ds = ds
}

// Dataset returns the working dataset, or nil before the load step ran.
func (r *RunState) Dataset() *dataset.Dataset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ds
}

// SetManifest attaches the manifest that records this run.
func (r *RunState) SetManifest(m *RunManifest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.manifest = m
}

// Manifest returns the manifest for this run, or nil when the run is
// not being recorded.
func (r *RunState) Manifest() *RunManifest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.manifest
}

// GetStep returns the state of a specific step.
func (r *RunState) GetStep(stepID string) *StepState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Steps[stepID]
}

// SetStep records the state of a specific step.
func (r *RunState) SetStep(stepID string, state *StepState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Steps[stepID] = state
}

// GetContext retrieves a value from the run context.
func (r *RunState) GetContext(key string) (interface{}, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	val, ok := r.Context[key]
	return val, ok
}

// SetContext sets a value in the run context.
func (r *RunState) SetContext(key string, value interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Context[key] = value
}

// GetConfig retrieves a request parameter.
func (r *RunState) GetConfig(key string) (interface{}, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	val, ok := r.Config[key]
	return val, ok
}

// SetConfig sets a request parameter.
func (r *RunState) SetConfig(key string, value interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Config[key] = value
}

// Duration returns how long the run took, or has been running.
func (r *RunState) Duration() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.EndTime != nil {
		return r.EndTime.Sub(r.StartTime)
	}
	return time.Since(r.StartTime)
}

// CompletedSteps returns all completed step states.
func (r *RunState) CompletedSteps() []*StepState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var completed []*StepState
	for _, step := range r.Steps {
		if step.GetStatus() == StepStatusCompleted {
			completed = append(completed, step)
		}
	}
	return completed
}

// FailedSteps returns all failed step states.
func (r *RunState) FailedSteps() []*StepState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var failed []*StepState
	for _, step := range r.Steps {
		if step.GetStatus() == StepStatusFailed {
			failed = append(failed, step)
		}
	}
	return failed
}

// IsComplete reports whether every step reached a terminal status.
func (r *RunState) IsComplete() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, step := range r.Steps {
		status := step.GetStatus()
		if status == StepStatusPending || status == StepStatusActive {
			return false
		}
	}
	return true
}

// HasFailures reports whether any step failed.
func (r *RunState) HasFailures() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, step := range r.Steps {
		if step.GetStatus() == StepStatusFailed {
			return true
		}
	}
	return false
}

// Clone creates a deep copy of the run state, minus the working
// dataset, for safe hand off to readers.
func (r *RunState) Clone() *RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clone := &RunState{
		ID:        r.ID,
		Pipeline:  r.Pipeline,
		Status:    r.Status,
		StartTime: r.StartTime,
		Steps:     make(map[string]*StepState),
		Context:   make(map[string]interface{}),
		Config:    make(map[string]interface{}),
		Error:     r.Error,
	}

	if r.EndTime != nil {
		endTime := *r.EndTime
		clone.EndTime = &endTime
	}

	for k, v := range r.Steps {
		v.mu.RLock()
		stepCopy := &StepState{
			ID:        v.ID,
			Name:      v.Name,
			Status:    v.Status,
			StartTime: v.StartTime,
			EndTime:   v.EndTime,
			Progress:  v.Progress,
			Message:   v.Message,
			Error:     v.Error,
			Metadata:  make(map[string]interface{}),
		}
		for mk, mv := range v.Metadata {
			stepCopy.Metadata[mk] = mv
		}
		v.mu.RUnlock()
		clone.Steps[k] = stepCopy
	}

	for k, v := range r.Context {
		clone.Context[k] = v
	}
	for k, v := range r.Config {
		clone.Config[k] = v
	}

	return clone
}
