package http

import (
	"context"

	"prepcli/internal/pipeline"
	"prepcli/internal/services"
)

// RunServiceInterface defines the interface for pipeline run operations
type RunServiceInterface interface {
	StartRun(ctx context.Context, req *pipeline.RunRequest) (*pipeline.Job, error)
	ExecuteRun(ctx context.Context, req pipeline.RunRequest) (*pipeline.RunResponse, error)
	GetRunStatus(ctx context.Context, runID string) (*pipeline.RunSnapshot, error)
	ListRuns(ctx context.Context) []*pipeline.RunSnapshot
	ListRunsByStatus(ctx context.Context, status string) []*pipeline.RunSnapshot
	CancelRun(ctx context.Context, runID string) error
	GetJob(ctx context.Context, jobID string) (*pipeline.Job, error)
	ListJobs(ctx context.Context, filter pipeline.JobFilter) ([]*pipeline.Job, error)
	QueueStats() map[string]int
	GetManifest(ctx context.Context, runID string) (*pipeline.RunManifest, error)
	ListPipelines(ctx context.Context) []*pipeline.Spec
	GetPipeline(ctx context.Context, name string) (*pipeline.Spec, error)
	RegisterPipeline(ctx context.Context, data []byte) (*pipeline.Spec, error)
	GetPipelineSteps(ctx context.Context) []services.StepInfo
	GetRunMetrics(ctx context.Context) map[string]interface{}
}
