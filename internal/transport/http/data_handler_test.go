package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"prepcli/internal/dataset"
	apierrors "prepcli/internal/errors"
	"prepcli/internal/exporter"
	"prepcli/internal/profile"
	"prepcli/internal/services"
	"prepcli/pkg/contracts/domain"
)

// MockDataService is a mock implementation of DataServiceInterface
type MockDataService struct {
	mock.Mock
}

func (m *MockDataService) ListDatasets(ctx context.Context, filter *domain.DatasetFilter) ([]domain.DatasetSummary, error) {
	args := m.Called(filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DatasetSummary), args.Error(1)
}

func (m *MockDataService) GetDataset(ctx context.Context, name string, previewRows int) (*domain.DatasetDetail, error) {
	args := m.Called(name, previewRows)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DatasetDetail), args.Error(1)
}

func (m *MockDataService) ListOutputs(ctx context.Context) ([]domain.DatasetSummary, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DatasetSummary), args.Error(1)
}

func (m *MockDataService) GetProfileReport(ctx context.Context, name string) (*profile.Profile, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*profile.Profile), args.Error(1)
}

func (m *MockDataService) GetCorrelation(ctx context.Context, name string) (*profile.Correlation, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*profile.Correlation), args.Error(1)
}

func (m *MockDataService) GetFiles(ctx context.Context) (map[string]interface{}, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]interface{}), args.Error(1)
}

func (m *MockDataService) DownloadFile(ctx context.Context, w http.ResponseWriter, r *http.Request, fileType, filename string) error {
	args := m.Called(w, r, fileType, filename)
	return args.Error(0)
}

func (m *MockDataService) ArchiveDataset(ctx context.Context, name string) (string, error) {
	args := m.Called(name)
	return args.String(0), args.Error(1)
}

func (m *MockDataService) ConvertDataset(ctx context.Context, name, target string) (*exporter.ExportResult, error) {
	args := m.Called(name, target)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*exporter.ExportResult), args.Error(1)
}

func floatPtr(v float64) *float64 {
	return &v
}

func testDatasetSummaries() []domain.DatasetSummary {
	return []domain.DatasetSummary{
		{
			Name:      "sales_2024",
			Path:      "sales_2024.csv",
			Format:    "csv",
			SizeBytes: 2048,
		},
		{
			Name:        "ages",
			Path:        "ages.xlsx",
			Format:      "xlsx",
			SizeBytes:   4096,
			Cleaned:     true,
			CleanedPath: "outputs/ages_cleaned.csv",
		},
	}
}

func TestDataHandler_ListDatasets(t *testing.T) {
	tests := []struct {
		name           string
		queryParams    map[string]string
		setupMock      func(*MockDataService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:        "successful list with default filter",
			queryParams: map[string]string{},
			setupMock: func(m *MockDataService) {
				m.On("ListDatasets", &domain.DatasetFilter{}).Return(testDatasetSummaries(), nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"count":2,"data":[{"name":"sales_2024"`,
		},
		{
			name: "filter built from query parameters",
			queryParams: map[string]string{
				"name":   "sal",
				"format": "csv",
				"sort":   "size",
				"order":  "desc",
				"limit":  "10",
			},
			setupMock: func(m *MockDataService) {
				filter := &domain.DatasetFilter{
					NamePattern: "sal",
					Formats:     []string{"csv"},
					SortBy:      "size",
					SortDesc:    true,
					Limit:       10,
				}
				m.On("ListDatasets", filter).Return(testDatasetSummaries()[:1], nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"count":1`,
		},
		{
			name:        "no datasets found",
			queryParams: map[string]string{},
			setupMock: func(m *MockDataService) {
				m.On("ListDatasets", &domain.DatasetFilter{}).Return(nil, services.ErrNoDatasetsFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"NO_DATASETS_FOUND"`,
		},
		{
			name:        "internal error",
			queryParams: map[string]string{},
			setupMock: func(m *MockDataService) {
				m.On("ListDatasets", &domain.DatasetFilter{}).Return(nil, errors.New("disk read failure"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"Internal Server Error"`,
		},
		{
			name: "invalid format",
			queryParams: map[string]string{
				"format": "json",
			},
			setupMock:      func(m *MockDataService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"Invalid format. Must be one of: csv, tsv, xlsx"`,
		},
		{
			name: "invalid cleaned flag",
			queryParams: map[string]string{
				"cleaned": "maybe",
			},
			setupMock:      func(m *MockDataService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"Cleaned must be true or false"`,
		},
		{
			name: "invalid limit",
			queryParams: map[string]string{
				"limit": "abc",
			},
			setupMock:      func(m *MockDataService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"Limit must be a number between 1 and 500"`,
		},
		{
			name: "limit too high",
			queryParams: map[string]string{
				"limit": "1000",
			},
			setupMock:      func(m *MockDataService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"Limit must be a number between 1 and 500"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			mockService := new(MockDataService)
			tt.setupMock(mockService)

			logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
			errorHandler := apierrors.NewErrorHandler(logger, false)
			handler := NewDataHandler(mockService, logger, errorHandler)

			// Create request with query params
			req := httptest.NewRequest("GET", "/api/data/datasets", nil)
			q := req.URL.Query()
			for k, v := range tt.queryParams {
				q.Add(k, v)
			}
			req.URL.RawQuery = q.Encode()
			rec := httptest.NewRecorder()

			// Execute
			handler.ListDatasets(rec, req)

			// Assert
			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}

func TestDataHandler_GetDataset(t *testing.T) {
	tests := []struct {
		name           string
		dataset        string
		queryParams    map[string]string
		setupMock      func(*MockDataService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:        "successful get dataset",
			dataset:     "sales_2024",
			queryParams: map[string]string{},
			setupMock: func(m *MockDataService) {
				detail := &domain.DatasetDetail{
					DatasetSummary: testDatasetSummaries()[0],
					Columns: []domain.ColumnInfo{
						{Name: "age", Type: "int", Position: 0},
						{Name: "name", Type: "string", Position: 1},
					},
				}
				detail.Rows = 120
				detail.Cols = 2
				m.On("GetDataset", "sales_2024", 0).Return(detail, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"columns":[{"name":"age","type":"int","position":0}`,
		},
		{
			name:    "preview rows included",
			dataset: "sales_2024",
			queryParams: map[string]string{
				"preview": "2",
			},
			setupMock: func(m *MockDataService) {
				detail := &domain.DatasetDetail{
					DatasetSummary: testDatasetSummaries()[0],
					Columns: []domain.ColumnInfo{
						{Name: "age", Type: "int", Position: 0},
						{Name: "name", Type: "string", Position: 1},
					},
					Preview: [][]string{{"34", "alice"}, {"29", "bob"}},
				}
				m.On("GetDataset", "sales_2024", 2).Return(detail, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"preview":[["34","alice"],["29","bob"]]`,
		},
		{
			name:        "dataset not found",
			dataset:     "ghost",
			queryParams: map[string]string{},
			setupMock: func(m *MockDataService) {
				m.On("GetDataset", "ghost", 0).Return(nil, services.ErrDatasetNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"DATASET_NOT_FOUND"`,
		},
		{
			name:    "invalid preview",
			dataset: "sales_2024",
			queryParams: map[string]string{
				"preview": "abc",
			},
			setupMock:      func(m *MockDataService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"Preview must be a number between 1 and 100"`,
		},
		{
			name:    "preview too large",
			dataset: "sales_2024",
			queryParams: map[string]string{
				"preview": "500",
			},
			setupMock:      func(m *MockDataService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"Preview must be a number between 1 and 100"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			mockService := new(MockDataService)
			tt.setupMock(mockService)

			logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
			errorHandler := apierrors.NewErrorHandler(logger, false)
			handler := NewDataHandler(mockService, logger, errorHandler)

			// Create router with context
			r := chi.NewRouter()
			r.Route("/datasets/{name}", func(r chi.Router) {
				r.Get("/", handler.GetDataset)
			})

			// Create request with query params
			req := httptest.NewRequest("GET", "/datasets/"+tt.dataset, nil)
			q := req.URL.Query()
			for k, v := range tt.queryParams {
				q.Add(k, v)
			}
			req.URL.RawQuery = q.Encode()
			rec := httptest.NewRecorder()

			// Execute
			r.ServeHTTP(rec, req)

			// Assert
			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}

func TestDataHandler_ListOutputs(t *testing.T) {
	tests := []struct {
		name           string
		setupMock      func(*MockDataService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "successful list outputs",
			setupMock: func(m *MockDataService) {
				outputs := []domain.DatasetSummary{
					{Name: "ages_cleaned", Path: "outputs/ages_cleaned.csv", Format: "csv", SizeBytes: 1024},
				}
				m.On("ListOutputs").Return(outputs, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"count":1,"data":[{"name":"ages_cleaned"`,
		},
		{
			name: "no outputs yet",
			setupMock: func(m *MockDataService) {
				m.On("ListOutputs").Return([]domain.DatasetSummary{}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"count":0,"data":[]`,
		},
		{
			name: "internal error",
			setupMock: func(m *MockDataService) {
				m.On("ListOutputs").Return(nil, errors.New("disk read failure"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"Internal Server Error"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			mockService := new(MockDataService)
			tt.setupMock(mockService)

			logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
			errorHandler := apierrors.NewErrorHandler(logger, false)
			handler := NewDataHandler(mockService, logger, errorHandler)

			// Create request
			req := httptest.NewRequest("GET", "/api/data/outputs", nil)
			rec := httptest.NewRecorder()

			// Execute
			handler.ListOutputs(rec, req)

			// Assert
			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}

func TestDataHandler_GetProfileReport(t *testing.T) {
	tests := []struct {
		name           string
		dataset        string
		setupMock      func(*MockDataService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:    "successful get profile",
			dataset: "sales_2024",
			setupMock: func(m *MockDataService) {
				report := &profile.Profile{
					Dataset: "sales_2024",
					Rows:    120,
					Cols:    2,
					Columns: []profile.ColumnStats{
						{
							Name:   "age",
							Type:   "int",
							Count:  118,
							Nulls:  2,
							Unique: 40,
							Mean:   floatPtr(41.5),
							Std:    floatPtr(12.3),
							Min:    floatPtr(18),
							Q25:    floatPtr(31),
							Median: floatPtr(40),
							Q75:    floatPtr(52),
							Max:    floatPtr(75),
						},
						{Name: "name", Type: "string", Count: 120, Unique: 117},
					},
				}
				m.On("GetProfileReport", "sales_2024").Return(report, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"mean":41.5`,
		},
		{
			name:    "no profile report",
			dataset: "sales_2024",
			setupMock: func(m *MockDataService) {
				m.On("GetProfileReport", "sales_2024").Return(nil, services.ErrNoProfileFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"Run the profile step first"`,
		},
		{
			name:    "dataset not found",
			dataset: "ghost",
			setupMock: func(m *MockDataService) {
				m.On("GetProfileReport", "ghost").Return(nil, services.ErrDatasetNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"DATASET_NOT_FOUND"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			mockService := new(MockDataService)
			tt.setupMock(mockService)

			logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
			errorHandler := apierrors.NewErrorHandler(logger, false)
			handler := NewDataHandler(mockService, logger, errorHandler)

			// Create router with context
			r := chi.NewRouter()
			r.Route("/datasets/{name}", func(r chi.Router) {
				r.Get("/profile", handler.GetProfileReport)
			})

			// Create request
			req := httptest.NewRequest("GET", "/datasets/"+tt.dataset+"/profile", nil)
			rec := httptest.NewRecorder()

			// Execute
			r.ServeHTTP(rec, req)

			// Assert
			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}

func TestDataHandler_GetCorrelation(t *testing.T) {
	tests := []struct {
		name           string
		dataset        string
		setupMock      func(*MockDataService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:    "successful correlation matrix",
			dataset: "sales_2024",
			setupMock: func(m *MockDataService) {
				correlation := &profile.Correlation{
					Columns: []string{"age", "income"},
					Matrix:  [][]float64{{1, 0.82}, {0.82, 1}},
				}
				m.On("GetCorrelation", "sales_2024").Return(correlation, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"matrix":[[1,0.82],[0.82,1]]`,
		},
		{
			name:    "dataset not found",
			dataset: "ghost",
			setupMock: func(m *MockDataService) {
				m.On("GetCorrelation", "ghost").Return(nil, services.ErrDatasetNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"DATASET_NOT_FOUND"`,
		},
		{
			name:    "internal error",
			dataset: "sales_2024",
			setupMock: func(m *MockDataService) {
				m.On("GetCorrelation", "sales_2024").Return(nil, errors.New("correlation failed"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"Internal Server Error"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			mockService := new(MockDataService)
			tt.setupMock(mockService)

			logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
			errorHandler := apierrors.NewErrorHandler(logger, false)
			handler := NewDataHandler(mockService, logger, errorHandler)

			// Create router with context
			r := chi.NewRouter()
			r.Route("/datasets/{name}", func(r chi.Router) {
				r.Get("/correlation", handler.GetCorrelation)
			})

			// Create request
			req := httptest.NewRequest("GET", "/datasets/"+tt.dataset+"/correlation", nil)
			rec := httptest.NewRecorder()

			// Execute
			r.ServeHTTP(rec, req)

			// Assert
			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}

func TestDataHandler_GetFiles(t *testing.T) {
	tests := []struct {
		name           string
		setupMock      func(*MockDataService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "successful get files",
			setupMock: func(m *MockDataService) {
				files := map[string]interface{}{
					"data": []map[string]interface{}{
						{"name": "ages.csv", "size": 1024},
					},
					"outputs": []map[string]interface{}{},
					"reports": []map[string]interface{}{
						{"name": "ages_profile.json"},
						{"name": "ages_summary.csv"},
					},
				}
				m.On("GetFiles").Return(files, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"count":3,"data":{"data":[{"name":"ages.csv","size":1024}],"outputs":[],"reports":[{"name":"ages_profile.json"},{"name":"ages_summary.csv"}]},"status":"success"}`,
		},
		{
			name: "no files found",
			setupMock: func(m *MockDataService) {
				m.On("GetFiles").Return(nil, services.ErrNoFilesFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"NO_FILES_FOUND"`,
		},
		{
			name: "internal error",
			setupMock: func(m *MockDataService) {
				m.On("GetFiles").Return(nil, errors.New("walk failed"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"Internal Server Error"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			mockService := new(MockDataService)
			tt.setupMock(mockService)

			logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
			errorHandler := apierrors.NewErrorHandler(logger, false)
			handler := NewDataHandler(mockService, logger, errorHandler)

			// Create request
			req := httptest.NewRequest("GET", "/api/data/files", nil)
			rec := httptest.NewRecorder()

			// Execute
			handler.GetFiles(rec, req)

			// Assert
			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}

func TestDataHandler_ArchiveDataset(t *testing.T) {
	tests := []struct {
		name           string
		dataset        string
		setupMock      func(*MockDataService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:    "successful archive",
			dataset: "old_data",
			setupMock: func(m *MockDataService) {
				m.On("ArchiveDataset", "old_data").Return("archive/old_data.csv", nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"archived_path":"archive/old_data.csv"`,
		},
		{
			name:    "dataset not found",
			dataset: "ghost",
			setupMock: func(m *MockDataService) {
				m.On("ArchiveDataset", "ghost").Return("", services.ErrDatasetNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"DATASET_NOT_FOUND"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			mockService := new(MockDataService)
			tt.setupMock(mockService)

			logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
			errorHandler := apierrors.NewErrorHandler(logger, false)
			handler := NewDataHandler(mockService, logger, errorHandler)

			// Create router with context
			r := chi.NewRouter()
			r.Route("/datasets/{name}", func(r chi.Router) {
				r.Post("/archive", handler.ArchiveDataset)
			})

			// Create request
			req := httptest.NewRequest("POST", "/datasets/"+tt.dataset+"/archive", nil)
			rec := httptest.NewRecorder()

			// Execute
			r.ServeHTTP(rec, req)

			// Assert
			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}

func TestDataHandler_ConvertDataset(t *testing.T) {
	tests := []struct {
		name           string
		dataset        string
		body           string
		setupMock      func(*MockDataService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:    "successful conversion",
			dataset: "sales_2024",
			body:    `{"target": "xlsx"}`,
			setupMock: func(m *MockDataService) {
				result := &exporter.ExportResult{
					Path:        "outputs/sales_2024.xlsx",
					Format:      dataset.FormatExcel,
					Rows:        120,
					Cols:        5,
					Fingerprint: "4f2a9c",
				}
				m.On("ConvertDataset", "sales_2024", "xlsx").Return(result, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"outputs/sales_2024.xlsx"`,
		},
		{
			name:           "invalid target format",
			dataset:        "sales_2024",
			body:           `{"target": "json"}`,
			setupMock:      func(m *MockDataService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"Invalid target. Must be one of: csv, tsv, xlsx"`,
		},
		{
			name:           "malformed body",
			dataset:        "sales_2024",
			body:           `{not json`,
			setupMock:      func(m *MockDataService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"INVALID_REQUEST"`,
		},
		{
			name:    "unsupported source format",
			dataset: "legacy",
			body:    `{"target": "csv"}`,
			setupMock: func(m *MockDataService) {
				m.On("ConvertDataset", "legacy", "csv").Return(nil, services.ErrInvalidFileType)
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"Unsupported file format"`,
		},
		{
			name:    "dataset not found",
			dataset: "ghost",
			body:    `{"target": "csv"}`,
			setupMock: func(m *MockDataService) {
				m.On("ConvertDataset", "ghost", "csv").Return(nil, services.ErrDatasetNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"DATASET_NOT_FOUND"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			mockService := new(MockDataService)
			tt.setupMock(mockService)

			logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
			errorHandler := apierrors.NewErrorHandler(logger, false)
			handler := NewDataHandler(mockService, logger, errorHandler)

			// Create router with context
			r := chi.NewRouter()
			r.Route("/datasets/{name}", func(r chi.Router) {
				r.Post("/convert", handler.ConvertDataset)
			})

			// Create request
			req := httptest.NewRequest("POST", "/datasets/"+tt.dataset+"/convert", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			// Execute
			r.ServeHTTP(rec, req)

			// Assert
			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}

func TestDataHandler_DownloadFile(t *testing.T) {
	tests := []struct {
		name           string
		fileType       string
		filename       string
		setupMock      func(*MockDataService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:     "successful download",
			fileType: "data",
			filename: "ages.csv",
			setupMock: func(m *MockDataService) {
				m.On("DownloadFile", mock.Anything, mock.Anything, "data", "ages.csv").Return(nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   "",
		},
		{
			name:     "file not found",
			fileType: "output",
			filename: "missing.csv",
			setupMock: func(m *MockDataService) {
				m.On("DownloadFile", mock.Anything, mock.Anything, "output", "missing.csv").Return(services.ErrFileNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"FILE_NOT_FOUND"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			mockService := new(MockDataService)
			tt.setupMock(mockService)

			logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
			errorHandler := apierrors.NewErrorHandler(logger, false)
			handler := NewDataHandler(mockService, logger, errorHandler)

			// Create router with context
			r := chi.NewRouter()
			r.Route("/download/{type}/{filename}", func(r chi.Router) {
				r.Get("/", handler.DownloadFile)
			})

			// Create request
			req := httptest.NewRequest("GET", "/download/"+tt.fileType+"/"+tt.filename, nil)
			rec := httptest.NewRecorder()

			// Execute
			r.ServeHTTP(rec, req)

			// Assert
			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}

func TestDataHandler_DownloadReportFile(t *testing.T) {
	tests := []struct {
		name           string
		filepath       string
		setupMock      func(*MockDataService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:     "top level report",
			filepath: "summary.json",
			setupMock: func(m *MockDataService) {
				m.On("DownloadFile", mock.Anything, mock.Anything, "reports", "summary.json").Return(nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   "",
		},
		{
			name:     "nested path with encoded slashes",
			filepath: "runs%2Frun-1%2Fmanifest.json",
			setupMock: func(m *MockDataService) {
				m.On("DownloadFile", mock.Anything, mock.Anything, "reports", "runs/run-1/manifest.json").Return(nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   "",
		},
		{
			name:     "report not found",
			filepath: "missing.json",
			setupMock: func(m *MockDataService) {
				m.On("DownloadFile", mock.Anything, mock.Anything, "reports", "missing.json").Return(services.ErrFileNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"FILE_NOT_FOUND"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			mockService := new(MockDataService)
			tt.setupMock(mockService)

			logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
			errorHandler := apierrors.NewErrorHandler(logger, false)
			handler := NewDataHandler(mockService, logger, errorHandler)

			// Create router with wildcard filepath param
			r := chi.NewRouter()
			r.Get("/download/reports/{filepath:.*}", handler.DownloadReportFile)

			// Create request
			req := httptest.NewRequest("GET", "/download/reports/"+tt.filepath, nil)
			rec := httptest.NewRecorder()

			// Execute
			r.ServeHTTP(rec, req)

			// Assert
			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}

func TestDataHandler_DatasetCtx(t *testing.T) {
	tests := []struct {
		name           string
		dataset        string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "valid dataset name",
			dataset:        "sales_2024",
			expectedStatus: http.StatusOK,
			expectedBody:   "OK",
		},
		{
			name:           "name starting with hyphen",
			dataset:        "-temp",
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Invalid dataset name format",
		},
		{
			name:           "name starting with dot",
			dataset:        "..config",
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Invalid dataset name format",
		},
		{
			name:           "name too long",
			dataset:        strings.Repeat("a", 129),
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Invalid dataset name format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
			errorHandler := apierrors.NewErrorHandler(logger, false)
			handler := NewDataHandler(&services.DataService{}, logger, errorHandler)

			// Create test handler
			testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("OK"))
			})

			// Create router with middleware
			r := chi.NewRouter()
			r.Route("/datasets/{name}", func(r chi.Router) {
				r.Use(handler.DatasetCtx)
				r.Get("/", testHandler)
			})

			// Create request
			req := httptest.NewRequest("GET", "/datasets/"+tt.dataset+"/", nil)
			rec := httptest.NewRecorder()

			// Execute
			r.ServeHTTP(rec, req)

			// Assert
			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
		})
	}
}

func TestDataHandler_DownloadCtx(t *testing.T) {
	tests := []struct {
		name           string
		fileType       string
		filename       string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "valid download",
			fileType:       "data",
			filename:       "ages.csv",
			expectedStatus: http.StatusOK,
			expectedBody:   "OK",
		},
		{
			name:           "outputs alias accepted",
			fileType:       "outputs",
			filename:       "ages_cleaned.csv",
			expectedStatus: http.StatusOK,
			expectedBody:   "OK",
		},
		{
			name:           "invalid file type",
			fileType:       "invalid",
			filename:       "test.txt",
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Invalid file type: invalid",
		},
		{
			name:           "empty filename",
			fileType:       "output",
			filename:       "",
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Filename is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
			errorHandler := apierrors.NewErrorHandler(logger, false)
			handler := NewDataHandler(&services.DataService{}, logger, errorHandler)

			// Create test handler
			testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("OK"))
			})

			// Create router with middleware
			r := chi.NewRouter()
			r.Route("/download/{type}/{filename}", func(r chi.Router) {
				r.Use(handler.DownloadCtx)
				r.Get("/", testHandler)
			})
			// Also handle the case where filename might be missing
			r.Route("/download/{type}/", func(r chi.Router) {
				r.Use(handler.DownloadCtx)
				r.Get("/", testHandler)
			})

			// Create request
			path := "/download/" + tt.fileType + "/" + tt.filename
			if tt.filename == "" {
				path = "/download/" + tt.fileType + "/"
			}
			req := httptest.NewRequest("GET", path, nil)
			rec := httptest.NewRecorder()

			// Execute
			r.ServeHTTP(rec, req)

			// Assert
			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
		})
	}
}
