package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// RunManifest is the durable record of a run: where the data came
// from, what each step did to its shape, and which files came out. It
// is written as JSON next to the run outputs.
type RunManifest struct {
	mu sync.RWMutex

	ID       string    `json:"id"`
	RunID    string    `json:"run_id"`
	Pipeline string    `json:"pipeline"`
	StartAt  time.Time `json:"start_at"`

	// Source dataset
	Source            string `json:"source"`
	SourceFingerprint string `json:"source_fingerprint"`
	SourceRows        int    `json:"source_rows"`
	SourceCols        int    `json:"source_cols"`

	// Execution tracking
	StepExecutions []StepExecution `json:"step_executions"`

	// Produced files
	Outputs []OutputInfo `json:"outputs"`

	Status      string    `json:"status"` // pending, running, completed, failed
	LastUpdated time.Time `json:"last_updated"`
	Error       string    `json:"error,omitempty"`
}

// StepExecution records one step of a run, including how it changed
// the dataset shape.
type StepExecution struct {
	StepID     string                 `json:"step_id"`
	StepName   string                 `json:"step_name"`
	StartTime  time.Time              `json:"start_time"`
	EndTime    time.Time              `json:"end_time"`
	Duration   string                 `json:"duration"`
	Status     string                 `json:"status"` // running, completed, failed, skipped
	RowsBefore int                    `json:"rows_before"`
	RowsAfter  int                    `json:"rows_after"`
	ColsBefore int                    `json:"cols_before"`
	ColsAfter  int                    `json:"cols_after"`
	Error      string                 `json:"error,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// OutputInfo records one file produced by a run.
type OutputInfo struct {
	Path        string    `json:"path"`
	Format      string    `json:"format"`
	Rows        int       `json:"rows"`
	Cols        int       `json:"cols"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedBy   string    `json:"created_by"`
}

// NewRunManifest creates a manifest for a run.
func NewRunManifest(runID, pipeline string) *RunManifest {
	return &RunManifest{
		ID:             "manifest-" + runID,
		RunID:          runID,
		Pipeline:       pipeline,
		StartAt:        time.Now(),
		StepExecutions: []StepExecution{},
		Outputs:        []OutputInfo{},
		Status:         "pending",
		LastUpdated:    time.Now(),
	}
}

// RecordSource records the loaded dataset.
func (m *RunManifest) RecordSource(source, fingerprint string, rows, cols int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Source = source
	m.SourceFingerprint = fingerprint
	m.SourceRows = rows
	m.SourceCols = cols
	m.Status = "running"
	m.LastUpdated = time.Now()
}

// RecordStepStart records the start of a step execution.
func (m *RunManifest) RecordStepStart(stepID, stepName string, rows, cols int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, step := range m.StepExecutions {
		if step.StepID == stepID {
			m.StepExecutions[i].StartTime = time.Now()
			m.StepExecutions[i].Status = "running"
			m.StepExecutions[i].RowsBefore = rows
			m.StepExecutions[i].ColsBefore = cols
			m.LastUpdated = time.Now()
			return
		}
	}

	m.StepExecutions = append(m.StepExecutions, StepExecution{
		StepID:     stepID,
		StepName:   stepName,
		StartTime:  time.Now(),
		Status:     "running",
		RowsBefore: rows,
		ColsBefore: cols,
	})
	m.LastUpdated = time.Now()
}

// RecordStepCompletion records a completed step and the resulting shape.
func (m *RunManifest) RecordStepCompletion(stepID string, rows, cols int, metadata map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, step := range m.StepExecutions {
		if step.StepID == stepID {
			m.StepExecutions[i].EndTime = time.Now()
			m.StepExecutions[i].Duration = time.Since(step.StartTime).String()
			m.StepExecutions[i].Status = "completed"
			m.StepExecutions[i].RowsAfter = rows
			m.StepExecutions[i].ColsAfter = cols
			m.StepExecutions[i].Metadata = metadata
			break
		}
	}
	m.LastUpdated = time.Now()
}

// RecordStepFailure records a failed step and fails the manifest.
func (m *RunManifest) RecordStepFailure(stepID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, step := range m.StepExecutions {
		if step.StepID == stepID {
			m.StepExecutions[i].EndTime = time.Now()
			m.StepExecutions[i].Duration = time.Since(step.StartTime).String()
			m.StepExecutions[i].Status = "failed"
			m.StepExecutions[i].Error = err.Error()
			break
		}
	}
	m.Status = "failed"
	m.Error = fmt.Sprintf("step %s failed: %v", stepID, err)
	m.LastUpdated = time.Now()
}

// RecordStepSkipped records a step that never ran.
func (m *RunManifest) RecordStepSkipped(stepID, stepName, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StepExecutions = append(m.StepExecutions, StepExecution{
		StepID:   stepID,
		StepName: stepName,
		Status:   "skipped",
		Error:    reason,
	})
	m.LastUpdated = time.Now()
}

// RecordOutput records a file produced by a step.
func (m *RunManifest) RecordOutput(info OutputInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info.CreatedAt = time.Now()
	m.Outputs = append(m.Outputs, info)
	m.LastUpdated = time.Now()
}

// Complete marks the manifest as completed.
func (m *RunManifest) Complete() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Status = "completed"
	m.LastUpdated = time.Now()
}

// Fail marks the manifest failed when the run stops outside a step,
// for example on cancellation. A step failure already recorded keeps
// its error message.
func (m *RunManifest) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Status = "failed"
	if err != nil && m.Error == "" {
		m.Error = err.Error()
	}
	m.LastUpdated = time.Now()
}

// IsStepCompleted checks whether a step completed.
func (m *RunManifest) IsStepCompleted(stepID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, step := range m.StepExecutions {
		if step.StepID == stepID && step.Status == "completed" {
			return true
		}
	}
	return false
}

// Progress returns the share of completed steps as a percentage.
func (m *RunManifest) Progress() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.StepExecutions) == 0 {
		return 0
	}

	completed := 0
	for _, step := range m.StepExecutions {
		if step.Status == "completed" {
			completed++
		}
	}

	return (completed * 100) / len(m.StepExecutions)
}

// SaveToFile writes the manifest to a JSON file.
func (m *RunManifest) SaveToFile(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest file: %w", err)
	}

	return nil
}

// LoadManifestFromFile reads a manifest from a JSON file.
func LoadManifestFromFile(path string) (*RunManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	var manifest RunManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest file: %w", err)
	}

	return &manifest, nil
}

// Clone creates a deep copy of the manifest.
func (m *RunManifest) Clone() *RunManifest {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, _ := json.Marshal(m)
	var clone RunManifest
	json.Unmarshal(data, &clone)

	return &clone
}
