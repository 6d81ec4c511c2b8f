package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a queued job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job is an asynchronous run submission.
type Job struct {
	ID          string                 `json:"id"`
	RunID       string                 `json:"run_id"`
	Pipeline    string                 `json:"pipeline"`
	Status      JobStatus              `json:"status"`
	Progress    int                    `json:"progress"`
	Message     string                 `json:"message,omitempty"`
	Error       string                 `json:"error,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Request     *RunRequest            `json:"request,omitempty"`
}

// JobStore persists jobs and run manifests.
type JobStore interface {
	CreateJob(job *Job) error
	GetJob(id string) (*Job, error)
	UpdateJob(job *Job) error
	ListJobs(filter JobFilter) ([]*Job, error)
	DeleteJob(id string) error

	CreateManifest(manifest *RunManifest) error
	GetManifest(id string) (*RunManifest, error)
	UpdateManifest(manifest *RunManifest) error
	GetManifestByRunID(runID string) (*RunManifest, error)
}

// JobFilter narrows ListJobs results.
type JobFilter struct {
	Status   JobStatus
	RunID    string
	Pipeline string
	Since    time.Time
	Limit    int
}

// RunQueue accepts run submissions and executes them one at a time
// with a single worker, so two runs never interleave.
type RunQueue struct {
	mu       sync.RWMutex
	jobs     chan *Job
	store    JobStore
	manager  *Manager
	logger   *slog.Logger
	wg       sync.WaitGroup
	shutdown chan struct{}
	active   map[string]*Job
}

// NewRunQueue creates a run queue backed by the given store and
// manager. The buffer bounds how many submissions can wait.
func NewRunQueue(buffer int, store JobStore, manager *Manager, logger *slog.Logger) *RunQueue {
	if buffer <= 0 {
		buffer = 8
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RunQueue{
		jobs:     make(chan *Job, buffer),
		store:    store,
		manager:  manager,
		logger:   logger.With(slog.String("component", "runqueue")),
		shutdown: make(chan struct{}),
		active:   make(map[string]*Job),
	}
}

// Start begins processing jobs with a single worker.
func (q *RunQueue) Start(ctx context.Context) {
	q.logger.Info("starting run queue")

	q.wg.Add(1)
	go q.worker(ctx)
}

// Stop drains the worker, waiting up to timeout.
func (q *RunQueue) Stop(timeout time.Duration) error {
	q.logger.Info("stopping run queue")

	close(q.shutdown)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("run queue stopped")
		return nil
	case <-time.After(timeout):
		q.logger.Warn("run queue stop timeout exceeded")
		return fmt.Errorf("timeout waiting for worker to finish")
	}
}

// Enqueue adds a job to the queue.
func (q *RunQueue) Enqueue(job *Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.RunID == "" {
		job.RunID = uuid.New().String()
	}
	job.Status = JobStatusPending
	job.CreatedAt = time.Now()

	if err := q.store.CreateJob(job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}

	select {
	case q.jobs <- job:
		q.logger.Info("job enqueued",
			slog.String("job_id", job.ID),
			slog.String("run_id", job.RunID),
			slog.String("pipeline", job.Pipeline))
		return nil
	default:
		job.Status = JobStatusFailed
		job.Error = "run queue is full"
		q.store.UpdateJob(job)
		return fmt.Errorf("run queue is full")
	}
}

// GetJob retrieves a job by ID.
func (q *RunQueue) GetJob(id string) (*Job, error) {
	q.mu.RLock()
	if activeJob, ok := q.active[id]; ok {
		q.mu.RUnlock()
		return activeJob, nil
	}
	q.mu.RUnlock()

	return q.store.GetJob(id)
}

// CancelJob cancels a pending or running job.
func (q *RunQueue) CancelJob(id string) error {
	job, err := q.GetJob(id)
	if err != nil {
		return err
	}

	if job.Status != JobStatusRunning && job.Status != JobStatusPending {
		return fmt.Errorf("job %s cannot be cancelled (status: %s)", id, job.Status)
	}

	if job.Status == JobStatusRunning {
		if err := q.manager.CancelRun(job.RunID); err != nil && err != ErrRunNotFound {
			return err
		}
	}

	job.Status = JobStatusCancelled
	now := time.Now()
	job.CompletedAt = &now

	return q.store.UpdateJob(job)
}

// ListJobs returns jobs matching the filter.
func (q *RunQueue) ListJobs(filter JobFilter) ([]*Job, error) {
	return q.store.ListJobs(filter)
}

// worker processes jobs from the queue one at a time.
func (q *RunQueue) worker(ctx context.Context) {
	defer q.wg.Done()

	q.logger.Debug("worker started")

	for {
		select {
		case <-ctx.Done():
			q.logger.Debug("worker stopped by context")
			return
		case <-q.shutdown:
			q.logger.Debug("worker stopped by shutdown")
			return
		case job := <-q.jobs:
			q.processJob(ctx, job)
		}
	}
}

// processJob executes a single job through the manager.
func (q *RunQueue) processJob(ctx context.Context, job *Job) {
	if job.Metadata != nil {
		if traceID, ok := job.Metadata["trace_id"].(string); ok {
			ctx = context.WithValue(ctx, middleware.RequestIDKey, traceID)
		}
	}

	logger := q.logger.With(
		slog.String("job_id", job.ID),
		slog.String("run_id", job.RunID),
		slog.String("pipeline", job.Pipeline),
	)

	logger.Info("processing job started")

	q.mu.Lock()
	q.active[job.ID] = job
	q.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("job processing panicked",
				slog.Any("panic", r))

			job.Status = JobStatusFailed
			job.Error = fmt.Sprintf("job processing panicked: %v", r)
			job.Message = "Internal error occurred"
			completedAt := time.Now()
			job.CompletedAt = &completedAt

			if err := q.store.UpdateJob(job); err != nil {
				logger.Error("failed to update job after panic", slog.String("error", err.Error()))
			}
		}

		q.mu.Lock()
		delete(q.active, job.ID)
		q.mu.Unlock()
	}()

	// Skip jobs cancelled while they waited in the queue
	if stored, err := q.store.GetJob(job.ID); err == nil && stored.Status == JobStatusCancelled {
		logger.Info("skipping cancelled job")
		return
	}

	job.Status = JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	job.Message = "Run started"

	if err := q.store.UpdateJob(job); err != nil {
		logger.Error("failed to update job status", slog.String("error", err.Error()))
	}

	req := RunRequest{ID: job.RunID, Pipeline: job.Pipeline}
	if job.Request != nil {
		req = *job.Request
		req.ID = job.RunID
	}

	resp, err := q.manager.Execute(ctx, req)
	completedAt := time.Now()
	job.CompletedAt = &completedAt

	if err != nil {
		job.Status = JobStatusFailed
		job.Error = err.Error()
		job.Message = "Run failed"
		logger.Error("processing job failed", slog.String("error", err.Error()))
	} else {
		job.Status = JobStatusCompleted
		job.Progress = 100
		job.Message = "Run completed"
		logger.Info("processing job completed",
			slog.Duration("duration", resp.Duration))
	}

	if err := q.store.UpdateJob(job); err != nil {
		logger.Error("failed to update job completion", slog.String("error", err.Error()))
	}
}

// ActiveCount returns how many jobs are executing right now.
func (q *RunQueue) ActiveCount() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.active)
}
