package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "prepcli/internal/errors"
	"prepcli/internal/services"
	"prepcli/pkg/contracts/domain"
)

// DataHandler handles dataset HTTP requests with RFC 7807 compliance
type DataHandler struct {
	service      DataServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDataHandler creates a new data handler with RFC 7807 error handling
func NewDataHandler(service DataServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DataHandler {
	return &DataHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "data_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the data routes with proper Chi patterns
func (h *DataHandler) Routes() chi.Router {
	r := chi.NewRouter()

	// Use render for consistent JSON responses
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// Resource routes following REST patterns
	r.Get("/datasets", h.ListDatasets)
	r.Get("/outputs", h.ListOutputs)
	r.Get("/files", h.GetFiles)

	// Sub-resource routes
	r.Route("/datasets/{name}", func(r chi.Router) {
		r.Use(h.DatasetCtx) // Validate dataset name
		r.Get("/", h.GetDataset)
		r.Get("/profile", h.GetProfileReport)
		r.Get("/correlation", h.GetCorrelation)
		r.Post("/archive", h.ArchiveDataset)
		r.Post("/convert", h.ConvertDataset)
	})

	// Download routes
	r.Route("/download/{type}/{filename}", func(r chi.Router) {
		r.Use(h.DownloadCtx) // Validate download parameters
		r.Get("/", h.DownloadFile)
	})

	// Reports download route - supports nested paths
	r.Get("/download/reports/{filepath:.*}", h.DownloadReportFile)

	return r
}

// DatasetCtx middleware validates the dataset name parameter
func (h *DataHandler) DatasetCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if name == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("name", "Dataset name is required"))
			return
		}

		if !domain.IsValidDatasetName(name) {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("name", "Invalid dataset name format"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// DownloadCtx middleware validates download parameters
func (h *DataHandler) DownloadCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fileType := chi.URLParam(r, "type")
		filename := chi.URLParam(r, "filename")

		// Validate file type
		validTypes := map[string]bool{
			"data":    true,
			"output":  true,
			"outputs": true, // Support both aliases for cleaned exports
			"report":  true,
			"reports": true,
		}

		if !validTypes[fileType] {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("type", fmt.Sprintf("Invalid file type: %s", fileType)))
			return
		}

		if filename == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("filename", "Filename is required"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ListDatasets handles GET /api/data/datasets with RFC 7807 errors
func (h *DataHandler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	filter, err := h.parseDatasetFilter(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "listing datasets",
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	datasets, err := h.service.ListDatasets(r.Context(), filter)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list datasets",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)

		// Map service errors to API errors
		if errors.Is(err, services.ErrNoDatasetsFound) {
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusNotFound,
				"NO_DATASETS_FOUND",
				"No datasets available",
			))
			return
		}

		h.errorHandler.HandleError(w, r, err)
		return
	}

	// Success response
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   datasets,
		"count":  len(datasets),
	})
}

// parseDatasetFilter builds a dataset filter from query parameters
func (h *DataHandler) parseDatasetFilter(r *http.Request) (*domain.DatasetFilter, error) {
	query := r.URL.Query()
	filter := &domain.DatasetFilter{
		NamePattern: query.Get("name"),
	}

	if format := query.Get("format"); format != "" {
		valid := map[string]bool{"csv": true, "tsv": true, "xlsx": true}
		if !valid[format] {
			return nil, apierrors.ErrValidation("format", "Invalid format. Must be one of: csv, tsv, xlsx")
		}
		filter.Formats = []string{format}
	}

	if cleaned := query.Get("cleaned"); cleaned != "" {
		value, err := strconv.ParseBool(cleaned)
		if err != nil {
			return nil, apierrors.ErrValidation("cleaned", "Cleaned must be true or false")
		}
		filter.Cleaned = &value
	}

	if sortBy := query.Get("sort"); sortBy != "" {
		valid := map[string]bool{"name": true, "size": true, "modified": true}
		if !valid[sortBy] {
			return nil, apierrors.ErrValidation("sort", "Invalid sort. Must be one of: name, size, modified")
		}
		filter.SortBy = sortBy
		filter.SortDesc = query.Get("order") == "desc"
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > 500 {
			return nil, apierrors.ErrValidation("limit", "Limit must be a number between 1 and 500")
		}
		filter.Limit = limit
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return nil, apierrors.ErrValidation("offset", "Offset must be a non-negative number")
		}
		filter.Offset = offset
	}

	return filter, nil
}

// GetDataset handles GET /api/data/datasets/{name} with RFC 7807 errors
func (h *DataHandler) GetDataset(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())
	name := chi.URLParam(r, "name")

	previewRows := 0
	if previewStr := r.URL.Query().Get("preview"); previewStr != "" {
		rows, err := strconv.Atoi(previewStr)
		if err != nil || rows < 1 || rows > 100 {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("preview", "Preview must be a number between 1 and 100"))
			return
		}
		previewRows = rows
	}

	h.logger.InfoContext(r.Context(), "fetching dataset",
		slog.String("request_id", reqID),
		slog.String("dataset", name),
		slog.Int("preview_rows", previewRows),
	)

	detail, err := h.service.GetDataset(r.Context(), name, previewRows)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to get dataset",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
			slog.String("dataset", name),
		)
		h.handleDatasetError(w, r, err, name)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   detail,
	})
}

// ListOutputs handles GET /api/data/outputs with RFC 7807 errors
func (h *DataHandler) ListOutputs(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.InfoContext(r.Context(), "listing cleaned outputs",
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	outputs, err := h.service.ListOutputs(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list outputs",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   outputs,
		"count":  len(outputs),
	})
}

// GetProfileReport handles GET /api/data/datasets/{name}/profile with RFC 7807 errors
func (h *DataHandler) GetProfileReport(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())
	name := chi.URLParam(r, "name")

	h.logger.InfoContext(r.Context(), "fetching profile report",
		slog.String("request_id", reqID),
		slog.String("dataset", name),
	)

	report, err := h.service.GetProfileReport(r.Context(), name)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to get profile report",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
			slog.String("dataset", name),
		)

		if errors.Is(err, services.ErrNoProfileFound) {
			h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
				http.StatusNotFound,
				"NO_PROFILE_FOUND",
				fmt.Sprintf("No profile report for dataset '%s'", name),
				map[string]interface{}{
					"dataset": name,
					"hint":    "Run the profile step first",
				},
			))
			return
		}

		h.handleDatasetError(w, r, err, name)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status":  "success",
		"data":    report,
		"dataset": name,
	})
}

// GetCorrelation handles GET /api/data/datasets/{name}/correlation with RFC 7807 errors
func (h *DataHandler) GetCorrelation(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())
	name := chi.URLParam(r, "name")

	h.logger.InfoContext(r.Context(), "computing correlation matrix",
		slog.String("request_id", reqID),
		slog.String("dataset", name),
	)

	correlation, err := h.service.GetCorrelation(r.Context(), name)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to compute correlation",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
			slog.String("dataset", name),
		)
		h.handleDatasetError(w, r, err, name)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status":  "success",
		"data":    correlation,
		"dataset": name,
		"count":   len(correlation.Columns),
	})
}

// GetFiles handles GET /api/data/files with RFC 7807 errors
func (h *DataHandler) GetFiles(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.InfoContext(r.Context(), "fetching files",
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	files, err := h.service.GetFiles(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to get files",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)

		if errors.Is(err, services.ErrNoFilesFound) {
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusNotFound,
				"NO_FILES_FOUND",
				"No files available",
			))
			return
		}

		h.errorHandler.HandleError(w, r, err)
		return
	}

	// Files is a map with one listing per managed directory
	count := 0
	for _, key := range []string{"data", "outputs", "reports"} {
		if listing, ok := files[key].([]map[string]interface{}); ok {
			count += len(listing)
		}
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   files,
		"count":  count,
	})
}

// ArchiveDataset handles POST /api/data/datasets/{name}/archive with RFC 7807 errors
func (h *DataHandler) ArchiveDataset(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())
	name := chi.URLParam(r, "name")

	h.logger.InfoContext(r.Context(), "archiving dataset",
		slog.String("request_id", reqID),
		slog.String("dataset", name),
	)

	archived, err := h.service.ArchiveDataset(r.Context(), name)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to archive dataset",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
			slog.String("dataset", name),
		)
		h.handleDatasetError(w, r, err, name)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"dataset":       name,
			"archived_path": archived,
			"archived_at":   time.Now().Format(time.RFC3339),
		},
	})
}

// ConvertDataset handles POST /api/data/datasets/{name}/convert with RFC 7807 errors
func (h *DataHandler) ConvertDataset(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())
	name := chi.URLParam(r, "name")

	// Parse request body
	var req struct {
		Target string `json:"target"`
	}

	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusBadRequest,
			"INVALID_REQUEST",
			"Invalid request body",
			map[string]interface{}{
				"error": err.Error(),
			},
		))
		return
	}

	validTargets := map[string]bool{"csv": true, "tsv": true, "xlsx": true}
	if !validTargets[req.Target] {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("target", "Invalid target. Must be one of: csv, tsv, xlsx"))
		return
	}

	h.logger.InfoContext(r.Context(), "converting dataset",
		slog.String("request_id", reqID),
		slog.String("dataset", name),
		slog.String("target", req.Target),
	)

	result, err := h.service.ConvertDataset(r.Context(), name, req.Target)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to convert dataset",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
			slog.String("dataset", name),
		)
		h.handleDatasetError(w, r, err, name)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   result,
	})
}

// handleDatasetError maps the shared dataset error cases to API errors
func (h *DataHandler) handleDatasetError(w http.ResponseWriter, r *http.Request, err error, name string) {
	switch {
	case errors.Is(err, services.ErrDatasetNotFound):
		h.errorHandler.HandleError(w, r, apierrors.DatasetNotFoundError(name))
	case errors.Is(err, services.ErrInvalidDataset):
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("name", "Invalid dataset name format"))
	case errors.Is(err, services.ErrInvalidFileType):
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("target", "Unsupported file format"))
	default:
		h.errorHandler.HandleError(w, r, err)
	}
}

// DownloadFile handles GET /api/data/download/{type}/{filename} with RFC 7807 errors
func (h *DataHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())
	fileType := chi.URLParam(r, "type")
	filename := chi.URLParam(r, "filename")

	h.logger.InfoContext(r.Context(), "downloading file",
		slog.String("request_id", reqID),
		slog.String("file_type", fileType),
		slog.String("filename", filename),
	)

	// Let service handle the download (it writes directly to response)
	if err := h.service.DownloadFile(r.Context(), w, r, fileType, filename); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to download file",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
			slog.String("file_type", fileType),
			slog.String("filename", filename),
		)

		// Only handle error if response not yet written
		if !isResponseWritten(w) {
			if errors.Is(err, services.ErrFileNotFound) {
				h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
					http.StatusNotFound,
					"FILE_NOT_FOUND",
					fmt.Sprintf("File '%s' not found", filename),
					map[string]interface{}{
						"type":     fileType,
						"filename": filename,
					},
				))
				return
			}

			if errors.Is(err, services.ErrInvalidFileType) {
				h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
					http.StatusBadRequest,
					"INVALID_FILE_TYPE",
					fmt.Sprintf("Invalid file type: %s", fileType),
					map[string]interface{}{
						"type":     fileType,
						"filename": filename,
					},
				))
				return
			}

			h.errorHandler.HandleError(w, r, err)
		}
	}
}

// isResponseWritten checks if response has already been written
func isResponseWritten(w http.ResponseWriter) bool {
	// Check if writer is a wrapped response writer with status
	if ww, ok := w.(interface{ Status() int }); ok {
		return ww.Status() != 0
	}
	return false
}

// DownloadReportFile handles GET /api/data/download/reports/{filepath} with nested path support
func (h *DataHandler) DownloadReportFile(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())
	filepath := chi.URLParam(r, "filepath")

	// URL decode the filepath to handle encoded slashes (%2F -> /)
	decodedPath, err := url.QueryUnescape(filepath)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to decode filepath",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
			slog.String("filepath", filepath),
		)
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusBadRequest,
			"INVALID_PATH",
			"Invalid file path encoding",
			map[string]interface{}{
				"filepath": filepath,
				"error":    err.Error(),
			},
		))
		return
	}

	h.logger.InfoContext(r.Context(), "downloading report file",
		slog.String("request_id", reqID),
		slog.String("filepath", filepath),
		slog.String("decoded_path", decodedPath),
	)

	// Use "reports" as the file type for the service
	if err := h.service.DownloadFile(r.Context(), w, r, "reports", decodedPath); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to download report file",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
			slog.String("filepath", filepath),
			slog.String("decoded_path", decodedPath),
		)

		// Only handle error if response not yet written
		if !isResponseWritten(w) {
			if errors.Is(err, services.ErrFileNotFound) {
				h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
					http.StatusNotFound,
					"FILE_NOT_FOUND",
					fmt.Sprintf("Report file '%s' not found", decodedPath),
					map[string]interface{}{
						"filepath": decodedPath,
					},
				))
				return
			}

			h.errorHandler.HandleError(w, r, err)
		}
	}
}
