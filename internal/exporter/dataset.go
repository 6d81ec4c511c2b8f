package exporter

import (
	"fmt"
	"time"

	"prepcli/internal/config"
	"prepcli/internal/dataset"
)

// DatasetExporter writes cleaned datasets to their handoff formats
type DatasetExporter struct {
	csvWriter   *CSVWriter
	excelWriter *ExcelWriter
}

// NewDatasetExporter creates a new dataset exporter
func NewDatasetExporter(paths *config.Paths) *DatasetExporter {
	return &DatasetExporter{
		csvWriter:   NewCSVWriter(paths),
		excelWriter: NewExcelWriter(paths),
	}
}

// ExportResult describes a written artifact
type ExportResult struct {
	Path        string
	Format      dataset.Format
	Rows        int
	Cols        int
	Fingerprint string
	WrittenAt   time.Time
}

// Export writes the dataset to outputPath in the format implied by the
// file extension
func (e *DatasetExporter) Export(ds *dataset.Dataset, outputPath string) (*ExportResult, error) {
	format, err := dataset.FormatForPath(outputPath)
	if err != nil {
		return nil, err
	}

	switch format {
	case dataset.FormatCSV:
		return e.ExportCSV(ds, outputPath)
	case dataset.FormatTSV:
		return e.ExportTSV(ds, outputPath)
	case dataset.FormatExcel:
		return e.ExportExcel(ds, outputPath)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// ExportCSV writes the dataset as comma-separated values. No BOM is
// written so the file loads back byte-for-byte through the loader.
func (e *DatasetExporter) ExportCSV(ds *dataset.Dataset, outputPath string) (*ExportResult, error) {
	records := ds.Records()
	if err := e.csvWriter.WriteCSV(outputPath, writeOptionsFor(records, 0)); err != nil {
		return nil, fmt.Errorf("failed to export %s: %w", ds.Name, err)
	}
	return e.result(ds, outputPath, dataset.FormatCSV, records), nil
}

// ExportTSV writes the dataset as tab-separated values.
func (e *DatasetExporter) ExportTSV(ds *dataset.Dataset, outputPath string) (*ExportResult, error) {
	records := ds.Records()
	if err := e.csvWriter.WriteCSV(outputPath, writeOptionsFor(records, '\t')); err != nil {
		return nil, fmt.Errorf("failed to export %s: %w", ds.Name, err)
	}
	return e.result(ds, outputPath, dataset.FormatTSV, records), nil
}

// ExportExcel writes the dataset as a single-sheet workbook.
func (e *DatasetExporter) ExportExcel(ds *dataset.Dataset, outputPath string) (*ExportResult, error) {
	records := ds.Records()
	headers, rows := splitHeader(records)
	if err := e.excelWriter.WriteExcel(outputPath, headers, rows); err != nil {
		return nil, fmt.Errorf("failed to export %s: %w", ds.Name, err)
	}
	return e.result(ds, outputPath, dataset.FormatExcel, records), nil
}

func writeOptionsFor(records [][]string, delimiter rune) WriteOptions {
	headers, rows := splitHeader(records)
	return WriteOptions{
		Headers:   headers,
		Records:   rows,
		Append:    false,
		BOMPrefix: false,
		Delimiter: delimiter,
	}
}

// splitHeader separates the header row from the data rows.
func splitHeader(records [][]string) ([]string, [][]string) {
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], records[1:]
}

func (e *DatasetExporter) result(ds *dataset.Dataset, outputPath string, format dataset.Format, records [][]string) *ExportResult {
	return &ExportResult{
		Path:        e.csvWriter.resolvePath(outputPath),
		Format:      format,
		Rows:        ds.Rows(),
		Cols:        ds.Cols(),
		Fingerprint: dataset.FingerprintRecords(records),
		WrittenAt:   time.Now(),
	}
}
