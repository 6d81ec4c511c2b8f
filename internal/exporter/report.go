package exporter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"prepcli/internal/config"
	"prepcli/internal/profile"
)

// ReportExporter writes profiling artifacts to the reports directory
type ReportExporter struct {
	csvWriter *CSVWriter
}

// NewReportExporter creates a new report exporter
func NewReportExporter(paths *config.Paths) *ReportExporter {
	return &ReportExporter{
		csvWriter: NewCSVWriter(paths),
	}
}

// ArtifactPath reports where a relative artifact path will land on
// disk, without writing anything
func (r *ReportExporter) ArtifactPath(outputPath string) string {
	return r.csvWriter.resolvePath(artifactRel(outputPath))
}

// artifactRel routes bare artifact names into the reports directory.
// Absolute paths and paths already under reports/ pass through, so the
// readers that look artifacts up by name find what was written here.
func artifactRel(outputPath string) string {
	if filepath.IsAbs(outputPath) || strings.HasPrefix(outputPath, "reports/") {
		return outputPath
	}
	return "reports/" + outputPath
}

// ExportProfileCSV writes the per-column summary statistics as a CSV
// table, one row per column of the profiled dataset
func (r *ReportExporter) ExportProfileCSV(p *profile.Profile, outputPath string) error {
	headers := []string{
		"Column", "Type", "Count", "Nulls", "Unique",
		"Mean", "Std", "Min", "Q25", "Median", "Q75", "Max",
	}

	var records [][]string
	for _, stats := range p.Columns {
		records = append(records, statsToCSVRow(stats))
	}

	return r.csvWriter.WriteSimpleCSV(artifactRel(outputPath), headers, records)
}

// ExportProfileJSON writes the full profile report as indented JSON
func (r *ReportExporter) ExportProfileJSON(p *profile.Profile, outputPath string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	return r.writeJSON(outputPath, data)
}

// ExportCorrelationCSV writes the correlation matrix as a CSV table
// with column names on both axes
func (r *ReportExporter) ExportCorrelationCSV(c *profile.Correlation, outputPath string) error {
	headers := append([]string{"Column"}, c.Columns...)

	var records [][]string
	for i, name := range c.Columns {
		row := make([]string, 0, len(c.Columns)+1)
		row = append(row, name)
		for _, value := range c.Matrix[i] {
			row = append(row, formatFloat(value))
		}
		records = append(records, row)
	}

	return r.csvWriter.WriteSimpleCSV(artifactRel(outputPath), headers, records)
}

// ExportCorrelationJSON writes the correlation matrix as indented JSON
func (r *ReportExporter) ExportCorrelationJSON(c *profile.Correlation, outputPath string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal correlation: %w", err)
	}
	return r.writeJSON(outputPath, data)
}

// writeJSON writes an artifact through a temp file rename, matching the
// CSV writer's non-clobbering behavior.
func (r *ReportExporter) writeJSON(outputPath string, data []byte) error {
	fullPath := r.csvWriter.resolvePath(artifactRel(outputPath))

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(fullPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move report into place: %w", err)
	}
	return nil
}

// statsToCSVRow converts column statistics to a CSV row
func statsToCSVRow(stats profile.ColumnStats) []string {
	return []string{
		stats.Name,
		stats.Type,
		formatInt(int64(stats.Count)),
		formatInt(int64(stats.Nulls)),
		formatInt(int64(stats.Unique)),
		formatFloatPtr(stats.Mean),
		formatFloatPtr(stats.Std),
		formatFloatPtr(stats.Min),
		formatFloatPtr(stats.Q25),
		formatFloatPtr(stats.Median),
		formatFloatPtr(stats.Q75),
		formatFloatPtr(stats.Max),
	}
}
