package pipeline

import (
	"time"
)

// Built-in step identifiers
const (
	StepIDLoad    = "load"
	StepIDClean   = "clean"
	StepIDProfile = "profile"
	StepIDExport  = "export"
)

// Built-in step names
const (
	StepNameLoad    = "Dataset Load"
	StepNameClean   = "Dataset Clean"
	StepNameProfile = "Dataset Profile"
	StepNameExport  = "Dataset Export"
)

// Keys for run scoped values passed between steps
const (
	ContextKeyDataset    = "dataset"
	ContextKeySourcePath = "source_path"
	ContextKeyOutputDir  = "output_dir"
	ContextKeyPipeline   = "pipeline"
	ContextKeyExportPath = "export_path"
)

// WebSocket event types, matching the frontend protocol
const (
	EventTypeRunSnapshot = "run:snapshot"
	EventTypeRunStatus   = "run:status"
	EventTypeRunProgress = "run:progress"
	EventTypeRunComplete = "run:complete"
	EventTypeRunError    = "run:error"
)

// Default timeouts
const (
	DefaultStepTimeout   = 10 * time.Minute
	DefaultLoadTimeout   = 5 * time.Minute
	DefaultExportTimeout = 5 * time.Minute
)

// RunRequest asks the manager to execute a pipeline.
type RunRequest struct {
	ID         string                 `json:"id"`
	Pipeline   string                 `json:"pipeline"`
	Source     string                 `json:"source,omitempty"`
	OutputDir  string                 `json:"output_dir,omitempty"`
	Step       string                 `json:"step,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// RunResponse reports the outcome of a run.
type RunResponse struct {
	ID       string                `json:"id"`
	Status   RunStatus             `json:"status"`
	Duration time.Duration         `json:"duration"`
	Steps    map[string]*StepState `json:"steps"`
	Error    string                `json:"error,omitempty"`
}

// ProgressUpdate is emitted by steps while they work.
type ProgressUpdate struct {
	StepID   string                 `json:"step_id"`
	Progress float64                `json:"progress"`
	Message  string                 `json:"message"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
