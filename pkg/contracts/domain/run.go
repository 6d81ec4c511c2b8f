package domain

import (
	"time"
)

// Run represents a complete preprocessing workflow consisting of multiple
// sequential steps over a single dataset.

// Run represents a pipeline run
type Run struct {
	ID          string                 `json:"id" validate:"required"`
	Pipeline    string                 `json:"pipeline" validate:"required,min=1,max=100"`
	Source      string                 `json:"source,omitempty"`
	Status      RunStatus              `json:"status"`
	Steps       []RunStep              `json:"steps"`
	CreatedAt   time.Time              `json:"created_at"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Metrics     RunMetrics             `json:"metrics,omitempty"`
}

// RunStatus represents the status of a run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal reports whether the status is a final state.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// ValidRunStatuses lists every status accepted by list filters.
func ValidRunStatuses() []RunStatus {
	return []RunStatus{
		RunStatusPending,
		RunStatusRunning,
		RunStatusCompleted,
		RunStatusFailed,
		RunStatusCancelled,
	}
}

// RunStep represents a single step inside a run
type RunStep struct {
	ID           string                 `json:"id" validate:"required"`
	Name         string                 `json:"name" validate:"required"`
	Status       StepStatus             `json:"status"`
	Order        int                    `json:"order" validate:"min=0"`
	Config       map[string]interface{} `json:"config,omitempty"`
	Dependencies []string               `json:"dependencies,omitempty"`
	StartedAt    *time.Time             `json:"started_at,omitempty"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
	Duration     *time.Duration         `json:"duration,omitempty"`
	State        StepState              `json:"state,omitempty"`
	Error        string                 `json:"error,omitempty"`
}

// StepStatus represents the status of a step
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// StepState represents the internal state of a step
type StepState struct {
	Progress      float64                `json:"progress"` // 0-100
	CurrentItem   string                 `json:"current_item,omitempty"`
	RowsProcessed int64                  `json:"rows_processed"`
	RowsTotal     int64                  `json:"rows_total,omitempty"`
	LastError     string                 `json:"last_error,omitempty"`
	Checkpoints   map[string]interface{} `json:"checkpoints,omitempty"`
}

// RunMetrics represents run execution metrics
type RunMetrics struct {
	TotalDuration  time.Duration `json:"total_duration"`
	StepsCompleted int           `json:"steps_completed"`
	StepsFailed    int           `json:"steps_failed"`
	StepsSkipped   int           `json:"steps_skipped"`
	RowsIn         int64         `json:"rows_in"`
	RowsOut        int64         `json:"rows_out"`
	CellsImputed   int64         `json:"cells_imputed"`
	RowsDropped    int64         `json:"rows_dropped"`
	AvgStepTime    time.Duration `json:"avg_step_time"`
}

// RunProgressUpdate represents a progress update for a run or step
type RunProgressUpdate struct {
	RunID         string                 `json:"run_id"`
	StepID        string                 `json:"step_id,omitempty"`
	Progress      float64                `json:"progress"` // 0-100
	Message       string                 `json:"message,omitempty"`
	RowsProcessed int64                  `json:"rows_processed,omitempty"`
	RowsTotal     int64                  `json:"rows_total,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
}

// RunRequest represents a request to start a run
type RunRequest struct {
	Pipeline string                 `json:"pipeline" validate:"required"`
	Mode     string                 `json:"mode" validate:"required,oneof=full partial resume"`
	Source   string                 `json:"source,omitempty"`
	Config   map[string]interface{} `json:"config,omitempty"`
}

// RunResponse represents a run execution response
type RunResponse struct {
	RunID        string    `json:"run_id"`
	Status       RunStatus `json:"status"`
	Message      string    `json:"message"`
	StartedAt    time.Time `json:"started_at"`
	WebSocketURL string    `json:"websocket_url,omitempty"`
}

// RunFilter represents filters for querying runs
type RunFilter struct {
	Statuses []RunStatus `json:"statuses,omitempty"`
	Pipeline string      `json:"pipeline,omitempty"`
	Since    *time.Time  `json:"since,omitempty"`
	Limit    int         `json:"limit,omitempty"`
}

// Run modes
const (
	RunModeFull    = "full"
	RunModePartial = "partial"
	RunModeResume  = "resume"
)
