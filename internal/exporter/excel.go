package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"prepcli/internal/config"
)

// ExcelWriter writes tabular records into xlsx workbooks
type ExcelWriter struct {
	paths *config.Paths
}

// NewExcelWriter creates a new Excel writer instance
func NewExcelWriter(paths *config.Paths) *ExcelWriter {
	return &ExcelWriter{paths: paths}
}

// WriteExcel writes headers and records to a single-sheet workbook.
// Numeric-looking cells are written as numbers so the sheet sorts and
// aggregates correctly; null markers become empty cells.
func (w *ExcelWriter) WriteExcel(filePath string, headers []string, records [][]string) error {
	fullPath := w.resolvePath(filePath)

	slog.Info("Writing Excel workbook",
		slog.String("file_path", filePath),
		slog.String("full_path", fullPath),
		slog.Int("record_count", len(records)))

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	if err := writeSheetRow(f, sheet, 1, headerCells(headers)); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	if err := styleHeaderRow(f, sheet, len(headers)); err != nil {
		return fmt.Errorf("failed to style headers: %w", err)
	}

	for i, record := range records {
		if err := writeSheetRow(f, sheet, i+2, recordCells(record)); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	if err := f.SaveAs(fullPath); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// writeSheetRow places cells starting at column A of the given row.
func writeSheetRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

// styleHeaderRow makes the header row bold.
func styleHeaderRow(f *excelize.File, sheet string, width int) error {
	if width == 0 {
		return nil
	}
	styleID, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return err
	}
	endCell, err := excelize.CoordinatesToCellName(width, 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", endCell, styleID)
}

func headerCells(headers []string) []interface{} {
	cells := make([]interface{}, len(headers))
	for i, h := range headers {
		cells[i] = h
	}
	return cells
}

// recordCells converts record strings to typed cells. Null markers map
// to empty cells, which load back as nulls.
func recordCells(record []string) []interface{} {
	cells := make([]interface{}, len(record))
	for i, value := range record {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" || trimmed == "NaN" {
			cells[i] = nil
			continue
		}
		if number, err := strconv.ParseFloat(trimmed, 64); err == nil {
			cells[i] = number
			continue
		}
		cells[i] = value
	}
	return cells
}

// resolvePath resolves a path to the appropriate directory
func (w *ExcelWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) {
		return filePath
	}
	if w.paths == nil {
		return filePath
	}
	if strings.HasPrefix(filePath, "reports/") {
		return filepath.Join(w.paths.ReportsDir, strings.TrimPrefix(filePath, "reports/"))
	}
	return filepath.Join(w.paths.OutputDir, filePath)
}
