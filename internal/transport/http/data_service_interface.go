package http

import (
	"context"
	"net/http"

	"prepcli/internal/exporter"
	"prepcli/internal/profile"
	"prepcli/pkg/contracts/domain"
)

// DataServiceInterface defines the interface for dataset operations
type DataServiceInterface interface {
	ListDatasets(ctx context.Context, filter *domain.DatasetFilter) ([]domain.DatasetSummary, error)
	GetDataset(ctx context.Context, name string, previewRows int) (*domain.DatasetDetail, error)
	ListOutputs(ctx context.Context) ([]domain.DatasetSummary, error)
	GetProfileReport(ctx context.Context, name string) (*profile.Profile, error)
	GetCorrelation(ctx context.Context, name string) (*profile.Correlation, error)
	GetFiles(ctx context.Context) (map[string]interface{}, error)
	DownloadFile(ctx context.Context, w http.ResponseWriter, r *http.Request, fileType, filename string) error
	ArchiveDataset(ctx context.Context, name string) (string, error)
	ConvertDataset(ctx context.Context, name, target string) (*exporter.ExportResult, error)
}
