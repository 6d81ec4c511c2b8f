package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"prepcli/internal/config"
	"prepcli/internal/dataset"
	"prepcli/internal/exporter"
	"prepcli/internal/files"
	"prepcli/internal/profile"
	"prepcli/pkg/contracts/domain"
)

// DataService provides read access to datasets, cleaned outputs and
// profiling reports on disk
type DataService struct {
	config    *config.Config
	paths     *config.Paths
	loader    *dataset.Loader
	profiler  *profile.Profiler
	exporter  *exporter.DatasetExporter
	discovery *files.Discovery
	manager   *files.Manager
	logger    *slog.Logger
}

// NewDataService creates a new data service using default logger
func NewDataService(cfg *config.Config) (*DataService, error) {
	return NewDataServiceWithLogger(cfg, slog.Default())
}

// NewDataServiceWithLogger creates a new data service with a specific logger
func NewDataServiceWithLogger(cfg *config.Config, logger *slog.Logger) (*DataService, error) {
	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}

	// Ensure we have a logger
	if logger == nil {
		logger = slog.Default()
	}

	// Log startup paths for visibility using injected logger
	logger.Info("DataService initialized with paths",
		slog.String("data_dir", paths.DataDir),
		slog.String("output_dir", paths.OutputDir),
		slog.String("reports_dir", paths.ReportsDir))

	return &DataService{
		config:    cfg,
		paths:     paths,
		loader:    dataset.NewLoader(cfg.Loader, logger),
		profiler:  profile.NewProfiler(logger),
		exporter:  exporter.NewDatasetExporter(paths),
		discovery: files.NewDiscovery(paths.WorkingDir),
		manager:   files.NewManager(paths),
		logger:    logger,
	}, nil
}

// ListDatasets returns the datasets found in the data directory, merged
// with cleaning status from the output directory
func (ds *DataService) ListDatasets(ctx context.Context, filter *domain.DatasetFilter) ([]domain.DatasetSummary, error) {
	ds.logger.Debug("ListDatasets: scanning directory",
		slog.String("data_dir", ds.paths.DataDir))

	raw, err := ds.discovery.FindDatasetFiles(ds.paths.DataDir)
	if err != nil {
		logDataError(ctx, "list_datasets", "failed to scan data directory",
			slog.String("data_dir", ds.paths.DataDir),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to scan data directory: %w", err)
	}

	cleaned, err := ds.discovery.FindCleanedFiles(ds.paths.OutputDir)
	if err != nil {
		// A missing or unreadable output directory only loses the
		// cleaning status, the raw listing still works.
		ds.logger.Debug("ListDatasets: output directory not readable",
			slog.String("output_dir", ds.paths.OutputDir),
			slog.String("error", err.Error()))
		cleaned = map[string]files.FileInfo{}
	}

	summaries := make([]domain.DatasetSummary, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, file := range raw {
		summary := ds.summaryForFile(file)
		if clean, ok := cleaned[summary.Name]; ok {
			summary.Cleaned = true
			summary.CleanedPath = clean.Path
		}
		summaries = append(summaries, summary)
		seen[summary.Name] = true
	}

	// Cleaned outputs whose raw source has been archived still show up,
	// flagged as cleaned-only entries.
	orphans := make([]string, 0)
	for name := range cleaned {
		if !seen[name] {
			orphans = append(orphans, name)
		}
	}
	sort.Strings(orphans)
	for _, name := range orphans {
		clean := cleaned[name]
		summary := ds.summaryForFile(clean)
		summary.Name = name
		summary.Cleaned = true
		summary.CleanedPath = clean.Path
		summaries = append(summaries, summary)
	}

	return domain.ApplyDatasetFilter(summaries, filter), nil
}

// summaryForFile builds a dataset summary from a discovered file
func (ds *DataService) summaryForFile(file files.FileInfo) domain.DatasetSummary {
	format, err := dataset.FormatForPath(file.Path)
	if err != nil {
		format = dataset.FormatCSV
	}

	return domain.DatasetSummary{
		Name:        dataset.NameForPath(file.Path),
		Path:        file.Path,
		Format:      string(format),
		SizeBytes:   file.Size,
		Modified:    file.ModTime,
		GeneratedAt: time.Now(),
		DataSource:  "discovery",
		Version:     "1.0",
	}
}

// GetDataset loads a dataset by name and returns its shape, column types
// and a preview of the first rows
func (ds *DataService) GetDataset(ctx context.Context, name string, previewRows int) (*domain.DatasetDetail, error) {
	if !domain.IsValidDatasetName(name) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDataset, name)
	}

	file, err := ds.findDatasetFile(ctx, name)
	if err != nil {
		return nil, err
	}

	loaded, err := ds.loader.Load(ctx, file.Path)
	if err != nil {
		logDataError(ctx, "get_dataset", "failed to load dataset",
			slog.String("dataset", name),
			slog.String("path", file.Path),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to load dataset %s: %w", name, err)
	}

	if previewRows <= 0 {
		previewRows = ds.config.Loader.PreviewRows
	}

	detail := &domain.DatasetDetail{
		DatasetSummary: ds.summaryForFile(file),
		Columns:        columnInfo(loaded),
		Preview:        loaded.Preview(previewRows),
	}
	detail.Rows = loaded.Rows()
	detail.Cols = loaded.Cols()

	if clean, err := ds.discovery.FindCleanedFiles(ds.paths.OutputDir); err == nil {
		if file, ok := clean[name]; ok {
			detail.Cleaned = true
			detail.CleanedPath = file.Path
		}
	}

	return detail, nil
}

// columnInfo converts loader column metadata into the domain contract
func columnInfo(loaded *dataset.Dataset) []domain.ColumnInfo {
	types := loaded.ColumnTypes()
	columns := loaded.Columns()

	info := make([]domain.ColumnInfo, len(columns))
	for i, name := range columns {
		info[i] = domain.ColumnInfo{
			Name:     name,
			Type:     types[name],
			Position: i,
		}
	}
	return info
}

// ListOutputs returns the cleaned exports found in the output directory
func (ds *DataService) ListOutputs(ctx context.Context) ([]domain.DatasetSummary, error) {
	found, err := ds.discovery.FindDatasetFiles(ds.paths.OutputDir)
	if err != nil {
		logDataError(ctx, "list_outputs", "failed to scan output directory",
			slog.String("output_dir", ds.paths.OutputDir),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to scan output directory: %w", err)
	}

	summaries := make([]domain.DatasetSummary, 0, len(found))
	for _, file := range found {
		summary := ds.summaryForFile(file)
		summary.Cleaned = true
		summary.CleanedPath = file.Path
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// GetProfileReport reads the stored profile report for a dataset.
// The report is produced by the profile step of a run.
func (ds *DataService) GetProfileReport(ctx context.Context, name string) (*profile.Profile, error) {
	if !domain.IsValidDatasetName(name) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDataset, name)
	}

	reportPath := filepath.Join(ds.paths.ReportsDir, name+"_profile.json")

	data, err := os.ReadFile(reportPath)
	if err != nil {
		if os.IsNotExist(err) {
			ds.logger.Debug("GetProfileReport: report not found",
				slog.String("dataset", name),
				slog.String("path", reportPath))
			return nil, fmt.Errorf("%w for dataset %s", ErrNoProfileFound, name)
		}
		logDataError(ctx, "get_profile", "failed to read profile report",
			slog.String("dataset", name),
			slog.String("path", reportPath),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to read profile report: %w", err)
	}

	var report profile.Profile
	if err := json.Unmarshal(data, &report); err != nil {
		logDataError(ctx, "get_profile", "failed to parse profile report",
			slog.String("dataset", name),
			slog.String("path", reportPath),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to parse profile report: %w", err)
	}

	return &report, nil
}

// GetCorrelation loads a dataset and computes the correlation matrix of
// its numeric columns on demand
func (ds *DataService) GetCorrelation(ctx context.Context, name string) (*profile.Correlation, error) {
	if !domain.IsValidDatasetName(name) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDataset, name)
	}

	file, err := ds.findDatasetFile(ctx, name)
	if err != nil {
		return nil, err
	}

	loaded, err := ds.loader.Load(ctx, file.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %s: %w", name, err)
	}

	correlation, err := ds.profiler.Correlation(ctx, loaded)
	if err != nil {
		logDataError(ctx, "get_correlation", "failed to compute correlation",
			slog.String("dataset", name),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to compute correlation for %s: %w", name, err)
	}
	return correlation, nil
}

// GetFiles returns the files available in the data, output and reports
// directories along with aggregate size information
func (ds *DataService) GetFiles(ctx context.Context) (map[string]interface{}, error) {
	result := map[string]interface{}{
		"data":    []map[string]interface{}{},
		"outputs": []map[string]interface{}{},
		"reports": []map[string]interface{}{},
	}

	var totalSize int64
	var lastModified time.Time

	sections := []struct {
		key string
		dir string
	}{
		{"data", ds.paths.DataDir},
		{"outputs", ds.paths.OutputDir},
		{"reports", ds.paths.ReportsDir},
	}

	for _, section := range sections {
		listing, size, modified := ds.listFiles(section.dir)
		result[section.key] = listing
		totalSize += size
		if modified.After(lastModified) {
			lastModified = modified
		}
	}

	result["total_size"] = totalSize
	if !lastModified.IsZero() {
		result["last_modified"] = lastModified.Format(time.RFC3339)
	}

	return result, nil
}

// listFiles lists the regular files in a directory, newest first
func (ds *DataService) listFiles(dir string) ([]map[string]interface{}, int64, time.Time) {
	listing := []map[string]interface{}{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		ds.logger.Debug("listFiles: directory not readable",
			slog.String("dir", dir),
			slog.String("error", err.Error()))
		return listing, 0, time.Time{}
	}

	var totalSize int64
	var lastModified time.Time
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		listing = append(listing, map[string]interface{}{
			"name":     entry.Name(),
			"size":     info.Size(),
			"modified": info.ModTime().Format(time.RFC3339),
		})
		totalSize += info.Size()
		if info.ModTime().After(lastModified) {
			lastModified = info.ModTime()
		}
	}

	sort.Slice(listing, func(i, j int) bool {
		return listing[i]["modified"].(string) > listing[j]["modified"].(string)
	})

	return listing, totalSize, lastModified
}

// DownloadFile serves a file from one of the managed directories.
// The filename may contain subdirectories relative to the chosen root.
func (ds *DataService) DownloadFile(ctx context.Context, w http.ResponseWriter, r *http.Request, fileType, filename string) error {
	var dir string
	switch fileType {
	case "data":
		dir = ds.paths.DataDir
	case "output", "outputs": // Support both aliases for cleaned exports
		dir = ds.paths.OutputDir
	case "reports", "report":
		dir = ds.paths.ReportsDir
	default:
		return fmt.Errorf("%w: %s", ErrInvalidFileType, fileType)
	}

	ds.logger.Debug("DownloadFile: serving file",
		slog.String("file_type", fileType),
		slog.String("filename", filename),
		slog.String("directory", dir))

	// The filename can be a relative path with subdirectories.
	// Clean the path to prevent directory traversal attacks.
	cleanedFilename := filepath.Clean(filename)

	// Convert forward slashes to OS-specific separator
	cleanedFilename = filepath.FromSlash(cleanedFilename)

	// Security check - ensure the file is within the expected directory
	filePath := filepath.Join(dir, cleanedFilename)
	absFilePath, err := filepath.Abs(filePath)
	if err != nil {
		ds.logger.Error("Failed to resolve absolute path",
			slog.String("error", err.Error()),
			slog.String("file_path", filePath))
		return fmt.Errorf("invalid file path")
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		ds.logger.Error("Failed to resolve directory path",
			slog.String("error", err.Error()),
			slog.String("dir", dir))
		return fmt.Errorf("invalid directory path")
	}

	// Normalize paths for comparison (important on Windows)
	absFilePath = filepath.Clean(absFilePath)
	absDir = filepath.Clean(absDir)

	// Ensure the resolved path is within the allowed directory
	if !strings.HasPrefix(absFilePath, absDir+string(os.PathSeparator)) && absFilePath != absDir {
		ds.logger.Warn("Attempted directory traversal",
			slog.String("requested_path", filename),
			slog.String("resolved_path", absFilePath),
			slog.String("base_dir", absDir))
		return fmt.Errorf("invalid file path")
	}

	// Check if file exists
	if _, err := os.Stat(absFilePath); os.IsNotExist(err) {
		ds.logger.Warn("File not found",
			slog.String("requested_file", filename),
			slog.String("full_path", absFilePath),
			slog.String("base_dir", dir))
		return fmt.Errorf("%w: %s", ErrFileNotFound, filename)
	}

	// Set headers for download.
	// Use just the filename (not the full path) in the header.
	baseFilename := filepath.Base(cleanedFilename)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", baseFilename))
	w.Header().Set("Content-Type", "application/octet-stream")

	http.ServeFile(w, r, absFilePath)
	return nil
}

// ArchiveDataset moves a raw dataset file into the archive subdirectory
// and returns the archived path
func (ds *DataService) ArchiveDataset(ctx context.Context, name string) (string, error) {
	if !domain.IsValidDatasetName(name) {
		return "", fmt.Errorf("%w: %s", ErrInvalidDataset, name)
	}

	file, err := ds.findDatasetFile(ctx, name)
	if err != nil {
		return "", err
	}

	archived, err := ds.manager.ArchiveFile(file.Path)
	if err != nil {
		logDataError(ctx, "archive_dataset", "failed to archive dataset",
			slog.String("dataset", name),
			slog.String("path", file.Path),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("failed to archive dataset %s: %w", name, err)
	}

	ds.logger.InfoContext(ctx, "dataset archived",
		slog.String("dataset", name),
		slog.String("archived_path", archived))
	return archived, nil
}

// ConvertDataset loads a dataset and writes it to the output directory in
// the target format
func (ds *DataService) ConvertDataset(ctx context.Context, name, target string) (*exporter.ExportResult, error) {
	if !domain.IsValidDatasetName(name) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDataset, name)
	}

	if _, err := dataset.FormatForPath("x." + target); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFileType, target)
	}

	file, err := ds.findDatasetFile(ctx, name)
	if err != nil {
		return nil, err
	}

	loaded, err := ds.loader.Load(ctx, file.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %s: %w", name, err)
	}

	outputPath := filepath.Join(ds.paths.OutputDir, name+"."+target)
	result, err := ds.exporter.Export(loaded, outputPath)
	if err != nil {
		logDataError(ctx, "convert_dataset", "failed to export dataset",
			slog.String("dataset", name),
			slog.String("target", target),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to convert dataset %s to %s: %w", name, target, err)
	}

	ds.logger.InfoContext(ctx, "dataset converted",
		slog.String("dataset", name),
		slog.String("target", target),
		slog.String("output_path", result.Path))
	return result, nil
}

// findDatasetFile locates the raw file for a dataset name in the data
// directory
func (ds *DataService) findDatasetFile(ctx context.Context, name string) (files.FileInfo, error) {
	found, err := ds.discovery.FindDatasetFiles(ds.paths.DataDir)
	if err != nil {
		return files.FileInfo{}, fmt.Errorf("failed to scan data directory: %w", err)
	}

	for _, file := range found {
		if dataset.NameForPath(file.Path) == name {
			return file, nil
		}
	}

	ds.logger.Debug("findDatasetFile: dataset not found",
		slog.String("dataset", name),
		slog.String("data_dir", ds.paths.DataDir))
	return files.FileInfo{}, fmt.Errorf("%w: %s", ErrDatasetNotFound, name)
}
