package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// DatasetSummary represents the Single Source of Truth (SSOT) for dataset
// listing data. This structure defines the authoritative format for dataset
// metadata across the entire prepcli system. All consumers, exporters, APIs,
// and pipeline steps must use this structure when describing a dataset file.
//
// Design Principles:
// - Single Source of Truth for all dataset metadata
// - Support both CSV and JSON serialization with proper field mapping
// - Extensible for future metadata without breaking changes
// - Clear field documentation and validation rules
//
// Usage:
//
//	summary := &DatasetSummary{
//	    Name: "sales_2024",
//	    Path: "data/sales_2024.csv",
//	    Format: "csv",
//	    SizeBytes: 52480,
//	    Modified: modTime,
//	}
type DatasetSummary struct {
	// === CORE FIELDS (always required) ===

	// Name is the dataset identifier derived from the file name without its
	// extension (e.g., "sales_2024"). It is used in URLs, report file names
	// and run parameters, so it must contain only letters, digits, dots,
	// underscores and hyphens.
	Name string `json:"name" csv:"Name" validate:"required,min=1,max=128"`

	// Path is the dataset file location relative to the data directory
	Path string `json:"path" csv:"Path" validate:"required"`

	// Format is the source file format
	// Valid values: "csv", "tsv", "xlsx", "gsheet"
	Format string `json:"format" csv:"Format" validate:"required,oneof=csv tsv xlsx gsheet"`

	// SizeBytes is the file size on disk
	SizeBytes int64 `json:"size_bytes" csv:"SizeBytes" validate:"min=0"`

	// Modified is the file modification timestamp
	Modified time.Time `json:"modified" csv:"Modified"`

	// === SHAPE FIELDS (populated after the dataset has been loaded) ===

	// Rows is the number of data rows, excluding the header.
	// Zero until the file has been loaded or profiled at least once.
	Rows int `json:"rows,omitempty" csv:"Rows,omitempty" validate:"min=0"`

	// Cols is the number of columns.
	// Zero until the file has been loaded or profiled at least once.
	Cols int `json:"cols,omitempty" csv:"Cols,omitempty" validate:"min=0"`

	// === CLEANING FIELDS (populated when a cleaned copy exists) ===

	// Cleaned indicates whether a cleaned export exists for this dataset
	Cleaned bool `json:"cleaned" csv:"Cleaned"`

	// CleanedPath is the location of the cleaned export, when Cleaned is true
	CleanedPath string `json:"cleaned_path,omitempty" csv:"CleanedPath,omitempty"`

	// === METADATA FIELDS (system information) ===

	// GeneratedAt is the timestamp when this summary was created
	GeneratedAt time.Time `json:"generated_at,omitempty" csv:"GeneratedAt,omitempty"`

	// DataSource indicates where the summary came from
	// Examples: "discovery", "profile", "manual"
	DataSource string `json:"data_source,omitempty" csv:"DataSource,omitempty"`

	// Version tracks the structure version for backward compatibility
	// Current version: "1.0"
	Version string `json:"version,omitempty" csv:"Version,omitempty"`
}

// ColumnInfo describes a single column of a loaded dataset.
// Type uses the series type vocabulary of the loader: "string", "int",
// "float" or "bool".
type ColumnInfo struct {
	Name     string `json:"name" validate:"required"`
	Type     string `json:"type" validate:"required,oneof=string int float bool"`
	Position int    `json:"position" validate:"min=0"`
}

// DatasetDetail extends a summary with column and preview information for
// the dataset detail endpoint.
type DatasetDetail struct {
	DatasetSummary
	Columns []ColumnInfo `json:"columns"`
	Preview [][]string   `json:"preview,omitempty"`
}

// DatasetValidationRules defines validation constraints for DatasetSummary
// fields. These rules ensure the name stays safe for use in file paths and
// URLs.
var DatasetValidationRules = struct {
	NamePattern   *regexp.Regexp
	MinNameLength int
	MaxNameLength int
	ValidFormats  []string
}{
	NamePattern:   regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`),
	MinNameLength: 1,
	MaxNameLength: 128,
	ValidFormats:  []string{"csv", "tsv", "xlsx", "gsheet"},
}

// ValidateDatasetSummary performs validation on a DatasetSummary instance.
//
// Validation Rules:
// - Name: 1-128 characters, letters/digits/dots/underscores/hyphens, must
//   not start with a separator
// - Path: not empty
// - Format: one of the supported formats
// - SizeBytes, Rows, Cols: >= 0
//
// Returns nil if validation passes, or an error describing the first
// violation.
func ValidateDatasetSummary(summary *DatasetSummary) error {
	if summary == nil {
		return fmt.Errorf("dataset summary cannot be nil")
	}

	if summary.Name == "" {
		return fmt.Errorf("dataset name is required")
	}
	if len(summary.Name) > DatasetValidationRules.MaxNameLength {
		return fmt.Errorf("dataset name must not exceed %d characters", DatasetValidationRules.MaxNameLength)
	}
	if !DatasetValidationRules.NamePattern.MatchString(summary.Name) {
		return fmt.Errorf("dataset name '%s' may only contain letters, digits, dots, underscores and hyphens", summary.Name)
	}

	if summary.Path == "" {
		return fmt.Errorf("dataset path is required")
	}

	validFormat := false
	for _, format := range DatasetValidationRules.ValidFormats {
		if summary.Format == format {
			validFormat = true
			break
		}
	}
	if !validFormat {
		return fmt.Errorf("dataset format '%s' must be one of: %s",
			summary.Format, strings.Join(DatasetValidationRules.ValidFormats, ", "))
	}

	if summary.SizeBytes < 0 {
		return fmt.Errorf("size cannot be negative: %d", summary.SizeBytes)
	}
	if summary.Rows < 0 {
		return fmt.Errorf("row count cannot be negative: %d", summary.Rows)
	}
	if summary.Cols < 0 {
		return fmt.Errorf("column count cannot be negative: %d", summary.Cols)
	}

	return nil
}

// FormatColumnsForCSV formats a column list as a comma-separated string of
// "name:type" pairs for CSV export.
//
// Format: "id:int,name:string,price:float"
// Empty slice returns empty string.
func FormatColumnsForCSV(columns []ColumnInfo) string {
	if len(columns) == 0 {
		return ""
	}

	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = fmt.Sprintf("%s:%s", col.Name, col.Type)
	}
	return strings.Join(parts, ",")
}

// ParseColumnsFromCSV parses a comma-separated string of "name:type" pairs
// into a column list. Positions are assigned from the pair order.
//
// Input format: "id:int,name:string,price:float"
// Handles empty strings gracefully; malformed pairs return an error.
func ParseColumnsFromCSV(csvString string) ([]ColumnInfo, error) {
	csvString = strings.TrimSpace(csvString)
	if csvString == "" {
		return []ColumnInfo{}, nil
	}

	parts := strings.Split(csvString, ",")
	columns := make([]ColumnInfo, 0, len(parts))
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, colType, found := strings.Cut(part, ":")
		if !found || name == "" || colType == "" {
			return nil, fmt.Errorf("invalid column pair at position %d: '%s'", i, part)
		}

		columns = append(columns, ColumnInfo{
			Name:     name,
			Type:     colType,
			Position: len(columns),
		})
	}

	return columns, nil
}

// IsValidDatasetName checks if a dataset name meets the validation
// requirements. This is a convenience function for validating names taken
// from URLs before touching the filesystem.
func IsValidDatasetName(name string) bool {
	if len(name) < DatasetValidationRules.MinNameLength || len(name) > DatasetValidationRules.MaxNameLength {
		return false
	}
	return DatasetValidationRules.NamePattern.MatchString(name)
}

// NewDatasetSummary creates a new DatasetSummary with required fields and
// validation. This is the recommended way to create summaries to ensure
// proper initialization and data consistency.
func NewDatasetSummary(name, path, format string, sizeBytes int64, modified time.Time) (*DatasetSummary, error) {
	summary := &DatasetSummary{
		Name:        strings.TrimSpace(name),
		Path:        strings.TrimSpace(path),
		Format:      strings.ToLower(strings.TrimSpace(format)),
		SizeBytes:   sizeBytes,
		Modified:    modified,
		GeneratedAt: time.Now(),
		DataSource:  "discovery",
		Version:     "1.0",
	}

	if err := ValidateDatasetSummary(summary); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return summary, nil
}

// DatasetFilter represents filters for querying dataset listings.
type DatasetFilter struct {
	// Names filters by specific dataset names
	// Empty slice means no name filtering
	Names []string `json:"names,omitempty"`

	// NamePattern filters by name using case-insensitive substring matching
	NamePattern string `json:"name_pattern,omitempty"`

	// Formats filters by source format
	Formats []string `json:"formats,omitempty"`

	// Cleaned filters by cleaning status when non-nil
	Cleaned *bool `json:"cleaned,omitempty"`

	// ModifiedFrom filters datasets modified at or after this time
	ModifiedFrom *time.Time `json:"modified_from,omitempty"`

	// ModifiedTo filters datasets modified at or before this time
	ModifiedTo *time.Time `json:"modified_to,omitempty"`

	// SortBy specifies the field to sort results by
	// Valid values: "name", "size", "modified"
	SortBy string `json:"sort_by,omitempty"`

	// SortDesc specifies sort direction (true = descending)
	SortDesc bool `json:"sort_desc,omitempty"`

	// Limit specifies maximum number of results to return
	Limit int `json:"limit,omitempty"`

	// Offset specifies number of results to skip (for pagination)
	Offset int `json:"offset,omitempty"`
}

// Matches reports whether a summary passes the filter's predicate fields.
// Sorting and pagination fields are ignored here; they are applied by
// ApplyDatasetFilter.
func (f *DatasetFilter) Matches(summary *DatasetSummary) bool {
	if f == nil || summary == nil {
		return summary != nil
	}

	if len(f.Names) > 0 {
		found := false
		for _, name := range f.Names {
			if name == summary.Name {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if f.NamePattern != "" &&
		!strings.Contains(strings.ToLower(summary.Name), strings.ToLower(f.NamePattern)) {
		return false
	}

	if len(f.Formats) > 0 {
		found := false
		for _, format := range f.Formats {
			if format == summary.Format {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if f.Cleaned != nil && summary.Cleaned != *f.Cleaned {
		return false
	}

	if f.ModifiedFrom != nil && summary.Modified.Before(*f.ModifiedFrom) {
		return false
	}
	if f.ModifiedTo != nil && summary.Modified.After(*f.ModifiedTo) {
		return false
	}

	return true
}

// ApplyDatasetFilter filters, sorts and paginates a summary slice according
// to the filter. A nil filter returns the input unchanged.
func ApplyDatasetFilter(summaries []DatasetSummary, filter *DatasetFilter) []DatasetSummary {
	if filter == nil {
		return summaries
	}

	filtered := make([]DatasetSummary, 0, len(summaries))
	for i := range summaries {
		if filter.Matches(&summaries[i]) {
			filtered = append(filtered, summaries[i])
		}
	}

	switch filter.SortBy {
	case "size":
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].SizeBytes < filtered[j].SizeBytes
		})
	case "modified":
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].Modified.Before(filtered[j].Modified)
		})
	case "name", "":
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].Name < filtered[j].Name
		})
	}
	if filter.SortDesc {
		for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
			filtered[i], filtered[j] = filtered[j], filtered[i]
		}
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(filtered) {
			return []DatasetSummary{}
		}
		filtered = filtered[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(filtered) {
		filtered = filtered[:filter.Limit]
	}

	return filtered
}

// DatasetListResponse represents a paginated response for dataset queries.
type DatasetListResponse struct {
	// Datasets contains the actual dataset summaries
	Datasets []DatasetSummary `json:"datasets"`

	// TotalCount is the total number of datasets matching the filter
	// (before pagination)
	TotalCount int `json:"total_count"`

	// Page is the current page number (1-based)
	Page int `json:"page"`

	// PageSize is the number of summaries per page
	PageSize int `json:"page_size"`

	// TotalPages is the total number of pages available
	TotalPages int `json:"total_pages"`

	// GeneratedAt is when this response was created
	GeneratedAt time.Time `json:"generated_at"`

	// Filter contains the filter parameters used for this query
	Filter *DatasetFilter `json:"filter,omitempty"`
}
