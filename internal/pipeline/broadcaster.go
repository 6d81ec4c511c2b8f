package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// StatusBroadcaster is the single authority for run status updates. It
// keeps a snapshot per run and pushes the whole snapshot on every
// change, so clients never have to stitch partial events together.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	runs    map[string]*RunSnapshot
	hub     WebSocketHub
	logger  *slog.Logger
	updates chan updateRequest
	stop    chan struct{}
}

// RunSnapshot is the complete state of a run at a point in time. It is
// the only structure sent to the frontend.
type RunSnapshot struct {
	RunID       string         `json:"run_id"`
	Pipeline    string         `json:"pipeline,omitempty"`
	Status      string         `json:"status"`       // pending|running|completed|failed|cancelled
	Progress    int            `json:"progress"`     // 0-100
	CurrentStep string         `json:"current_step"` // active step name
	Steps       []StepSnapshot `json:"steps"`
	StartedAt   time.Time      `json:"started_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
	Message     string         `json:"message,omitempty"`
}

// StepSnapshot is the state of a single step inside a snapshot.
type StepSnapshot struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Status   string                 `json:"status"`   // pending|running|completed|failed|skipped
	Progress int                    `json:"progress"` // 0-100
	Message  string                 `json:"message,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type updateRequest struct {
	runID      string
	updateFunc func(*RunSnapshot)
	done       chan struct{}
}

// NewStatusBroadcaster creates a broadcaster and starts its update
// goroutine.
func NewStatusBroadcaster(hub WebSocketHub, logger *slog.Logger) *StatusBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}

	sb := &StatusBroadcaster{
		runs:    make(map[string]*RunSnapshot),
		hub:     hub,
		logger:  logger,
		updates: make(chan updateRequest, 100),
		stop:    make(chan struct{}),
	}

	go sb.processUpdates()

	return sb
}

// processUpdates applies updates one at a time to avoid races.
func (sb *StatusBroadcaster) processUpdates() {
	for {
		select {
		case <-sb.stop:
			return
		case req := <-sb.updates:
			sb.handleUpdate(req)
		}
	}
}

func (sb *StatusBroadcaster) handleUpdate(req updateRequest) {
	defer close(req.done)

	sb.mu.Lock()
	defer sb.mu.Unlock()

	snapshot, exists := sb.runs[req.runID]
	if !exists {
		snapshot = &RunSnapshot{
			RunID:     req.runID,
			Status:    "pending",
			StartedAt: time.Now(),
			UpdatedAt: time.Now(),
			Steps:     []StepSnapshot{},
		}
		sb.runs[req.runID] = snapshot
	}

	req.updateFunc(snapshot)
	snapshot.UpdatedAt = time.Now()

	// Overall progress is the mean of the step progresses
	if len(snapshot.Steps) > 0 {
		totalProgress := 0
		for _, step := range snapshot.Steps {
			totalProgress += step.Progress
		}
		snapshot.Progress = totalProgress / len(snapshot.Steps)
	}

	if snapshot.Status == "completed" || snapshot.Status == "failed" || snapshot.Status == "cancelled" {
		if snapshot.CompletedAt == nil {
			now := time.Now()
			snapshot.CompletedAt = &now
		}
	}

	sb.broadcast(snapshot)
}

func (sb *StatusBroadcaster) broadcast(snapshot *RunSnapshot) {
	if sb.hub == nil {
		return
	}

	sb.logger.Debug("broadcasting run snapshot",
		slog.String("run_id", snapshot.RunID),
		slog.String("status", snapshot.Status),
		slog.Int("progress", snapshot.Progress),
		slog.String("current_step", snapshot.CurrentStep),
		slog.Int("steps", len(snapshot.Steps)),
	)

	sb.hub.BroadcastUpdate(EventTypeRunSnapshot, snapshot.RunID, "update", snapshot)
}

// UpdateStatus applies an update to a run snapshot and broadcasts the
// result. All status changes go through here.
func (sb *StatusBroadcaster) UpdateStatus(runID string, updateFunc func(*RunSnapshot)) {
	req := updateRequest{
		runID:      runID,
		updateFunc: updateFunc,
		done:       make(chan struct{}),
	}

	sb.updates <- req
	<-req.done
}

// CreateRun initializes a run snapshot with the given step IDs. The
// slice must hold stable step IDs so later updates match.
func (sb *StatusBroadcaster) CreateRun(runID, pipeline string, stepIDs []string) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		snapshot.Pipeline = pipeline
		snapshot.Status = "pending"
		snapshot.Progress = 0
		snapshot.Steps = make([]StepSnapshot, len(stepIDs))
		for i, id := range stepIDs {
			snapshot.Steps[i] = StepSnapshot{
				ID:     id,
				Name:   id,
				Status: "pending",
			}
		}
		snapshot.Message = "Run created"
	})
}

// StartRun marks a run as running.
func (sb *StatusBroadcaster) StartRun(runID string) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		snapshot.Status = "running"
		snapshot.Message = "Run started"
	})
}

// UpdateStepProgress updates one step's progress.
func (sb *StatusBroadcaster) UpdateStepProgress(runID, stepID string, progress int, message string) {
	sb.UpdateStepWithMetadata(runID, stepID, progress, message, nil)
}

// UpdateStepWithMetadata updates one step's progress with metadata.
func (sb *StatusBroadcaster) UpdateStepWithMetadata(runID, stepID string, progress int, message string, metadata map[string]interface{}) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		for i := range snapshot.Steps {
			if snapshot.Steps[i].ID != stepID {
				continue
			}
			// Keep progress monotonic while the step runs
			if progress >= snapshot.Steps[i].Progress || snapshot.Steps[i].Status != "running" {
				snapshot.Steps[i].Progress = clampProgress(progress)
			}
			snapshot.Steps[i].Message = message
			if metadata != nil {
				snapshot.Steps[i].Metadata = metadata
			}
			if progress > 0 && progress < 100 {
				snapshot.Steps[i].Status = "running"
				snapshot.CurrentStep = snapshot.Steps[i].Name
			} else if progress >= 100 {
				snapshot.Steps[i].Status = "completed"
				snapshot.Steps[i].Progress = 100
			}
			return
		}

		// Unknown step ID, append a minimal entry so progress keeps moving
		status := "running"
		if progress >= 100 {
			status = "completed"
		}
		snapshot.Steps = append(snapshot.Steps, StepSnapshot{
			ID:       stepID,
			Name:     stepID,
			Status:   status,
			Progress: clampProgress(progress),
			Message:  message,
			Metadata: metadata,
		})
		if progress > 0 && progress < 100 {
			snapshot.CurrentStep = stepID
		}
	})
}

func clampProgress(progress int) int {
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}

// CompleteStep marks a step as completed.
func (sb *StatusBroadcaster) CompleteStep(runID, stepID string, message string) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		for i := range snapshot.Steps {
			if snapshot.Steps[i].ID == stepID {
				snapshot.Steps[i].Status = "completed"
				snapshot.Steps[i].Progress = 100
				snapshot.Steps[i].Message = message
				break
			}
		}
	})
}

// FailStep marks a step as failed.
func (sb *StatusBroadcaster) FailStep(runID, stepID string, err error) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		for i := range snapshot.Steps {
			if snapshot.Steps[i].ID == stepID {
				snapshot.Steps[i].Status = "failed"
				snapshot.Steps[i].Error = err.Error()
				break
			}
		}
	})
}

// SkipStep marks a step as skipped.
func (sb *StatusBroadcaster) SkipStep(runID, stepID, reason string) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		for i := range snapshot.Steps {
			if snapshot.Steps[i].ID == stepID {
				snapshot.Steps[i].Status = "skipped"
				snapshot.Steps[i].Message = reason
				break
			}
		}
	})
}

// CompleteRun marks a run as completed.
func (sb *StatusBroadcaster) CompleteRun(runID string, message string) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		snapshot.Status = "completed"
		snapshot.Progress = 100
		snapshot.CurrentStep = ""
		snapshot.Message = message
		for i := range snapshot.Steps {
			if snapshot.Steps[i].Status == "running" || snapshot.Steps[i].Status == "pending" {
				snapshot.Steps[i].Status = "completed"
				snapshot.Steps[i].Progress = 100
			}
		}
	})
}

// FailRun marks a run as failed.
func (sb *StatusBroadcaster) FailRun(runID string, err error) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		snapshot.Status = "failed"
		snapshot.Error = err.Error()
		snapshot.CurrentStep = ""
	})
}

// CancelRun marks a run as cancelled.
func (sb *StatusBroadcaster) CancelRun(runID string) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		snapshot.Status = "cancelled"
		snapshot.CurrentStep = ""
		snapshot.Message = "Run cancelled by user"
	})
}

// GetSnapshot returns a copy of the current snapshot for a run.
func (sb *StatusBroadcaster) GetSnapshot(runID string) (*RunSnapshot, bool) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	snapshot, exists := sb.runs[runID]
	if !exists {
		return nil, false
	}

	snap := *snapshot
	return &snap, true
}

// GetAllSnapshots returns copies of every run snapshot.
func (sb *StatusBroadcaster) GetAllSnapshots() []*RunSnapshot {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	snapshots := make([]*RunSnapshot, 0, len(sb.runs))
	for _, snapshot := range sb.runs {
		snap := *snapshot
		snapshots = append(snapshots, &snap)
	}

	return snapshots
}

// CleanupOldRuns drops finished runs older than maxAge.
func (sb *StatusBroadcaster) CleanupOldRuns(ctx context.Context, maxAge time.Duration) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	now := time.Now()
	for id, snapshot := range sb.runs {
		if snapshot.Status != "completed" && snapshot.Status != "failed" && snapshot.Status != "cancelled" {
			continue
		}
		if snapshot.CompletedAt != nil && now.Sub(*snapshot.CompletedAt) > maxAge {
			delete(sb.runs, id)
			sb.logger.Info("cleaned up old run",
				slog.String("run_id", id),
				slog.String("status", snapshot.Status),
				slog.Duration("age", now.Sub(*snapshot.CompletedAt)),
			)
		}
	}
}

// Stop shuts down the broadcaster.
func (sb *StatusBroadcaster) Stop() {
	close(sb.stop)
}
