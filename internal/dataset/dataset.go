package dataset

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/google/uuid"
)

// Format identifies the source format of a dataset.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatTSV   Format = "tsv"
	FormatExcel Format = "xlsx"
	FormatSheet Format = "gsheet"
)

// Dataset wraps a loaded data frame together with its provenance.
type Dataset struct {
	ID          string
	Name        string
	Source      string
	Format      Format
	Fingerprint string
	LoadedAt    time.Time
	Frame       dataframe.DataFrame
}

// New creates a dataset envelope around a data frame.
func New(name string, frame dataframe.DataFrame) *Dataset {
	return &Dataset{
		ID:       uuid.New().String(),
		Name:     name,
		LoadedAt: time.Now(),
		Frame:    frame,
	}
}

// Rows returns the number of data rows, excluding the header.
func (d *Dataset) Rows() int {
	return d.Frame.Nrow()
}

// Cols returns the number of columns.
func (d *Dataset) Cols() int {
	return d.Frame.Ncol()
}

// Columns returns the column names in frame order.
func (d *Dataset) Columns() []string {
	return d.Frame.Names()
}

// ColumnTypes maps each column name to its detected type.
func (d *Dataset) ColumnTypes() map[string]string {
	names := d.Frame.Names()
	types := d.Frame.Types()

	out := make(map[string]string, len(names))
	for i, name := range names {
		out[name] = string(types[i])
	}
	return out
}

// Records returns the full frame as string records, header row first.
func (d *Dataset) Records() [][]string {
	return d.Frame.Records()
}

// Preview returns the header row plus up to n data rows.
func (d *Dataset) Preview(n int) [][]string {
	records := d.Frame.Records()
	if len(records) == 0 || n < 0 {
		return records
	}
	if n+1 < len(records) {
		return records[:n+1]
	}
	return records
}

// FormatForPath determines the dataset format from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".tsv":
		return FormatTSV, nil
	case ".xlsx":
		return FormatExcel, nil
	default:
		return "", fmt.Errorf("unsupported file extension: %s", filepath.Ext(path))
	}
}

// NameForPath derives the dataset name from a file path by stripping
// the directory and extension.
func NameForPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
