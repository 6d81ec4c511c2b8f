package exporter

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prepcli/internal/config"
	"prepcli/internal/profile"
)

func f64(v float64) *float64 {
	return &v
}

func newTestProfile() *profile.Profile {
	return &profile.Profile{
		Dataset:     "people",
		Fingerprint: "abc123",
		Rows:        4,
		Cols:        2,
		Columns: []profile.ColumnStats{
			{
				Name:   "age",
				Type:   "int",
				Count:  3,
				Nulls:  1,
				Unique: 3,
				Mean:   f64(34.5),
				Std:    f64(5),
				Min:    f64(29),
				Q25:    f64(31.5),
				Median: f64(34),
				Q75:    f64(37.5),
				Max:    f64(41),
			},
			{
				Name:   "name",
				Type:   "string",
				Count:  4,
				Nulls:  0,
				Unique: 4,
			},
		},
		GeneratedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func newReportExportEnv(t *testing.T) (*ReportExporter, *config.Paths, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "report_export_test_*")
	require.NoError(t, err)

	paths := &config.Paths{
		OutputDir:  filepath.Join(tempDir, "output"),
		ReportsDir: filepath.Join(tempDir, "reports"),
	}

	cleanup := func() {
		os.RemoveAll(tempDir)
	}

	return NewReportExporter(paths), paths, cleanup
}

// readArtifactCSV parses a BOM-prefixed CSV artifact.
func readArtifactCSV(t *testing.T, path string) [][]string {
	t.Helper()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, len(content) > 3, "artifact should carry a BOM")

	reader := csv.NewReader(strings.NewReader(string(content[3:])))
	records, err := reader.ReadAll()
	require.NoError(t, err)
	return records
}

func TestReportExporter_ArtifactPath(t *testing.T) {
	exporter, paths, cleanup := newReportExportEnv(t)
	defer cleanup()

	t.Run("bare name lands in reports dir", func(t *testing.T) {
		got := exporter.ArtifactPath("people_profile.json")
		assert.Equal(t, filepath.Join(paths.ReportsDir, "people_profile.json"), got)
	})

	t.Run("reports prefix is not doubled", func(t *testing.T) {
		got := exporter.ArtifactPath("reports/people_profile.json")
		assert.Equal(t, filepath.Join(paths.ReportsDir, "people_profile.json"), got)
	})

	t.Run("absolute path passes through", func(t *testing.T) {
		abs := filepath.Join(paths.OutputDir, "elsewhere.json")
		assert.Equal(t, abs, exporter.ArtifactPath(abs))
	})

	t.Run("reports nothing to disk", func(t *testing.T) {
		exporter.ArtifactPath("never_written.json")
		assert.NoFileExists(t, filepath.Join(paths.ReportsDir, "never_written.json"))
	})
}

func TestReportExporter_ExportProfileCSV(t *testing.T) {
	exporter, paths, cleanup := newReportExportEnv(t)
	defer cleanup()

	p := newTestProfile()

	err := exporter.ExportProfileCSV(p, "people_profile.csv")
	require.NoError(t, err)

	records := readArtifactCSV(t, filepath.Join(paths.ReportsDir, "people_profile.csv"))
	require.Len(t, records, 3) // header + one row per column

	assert.Equal(t, []string{
		"Column", "Type", "Count", "Nulls", "Unique",
		"Mean", "Std", "Min", "Q25", "Median", "Q75", "Max",
	}, records[0])

	assert.Equal(t, []string{
		"age", "int", "3", "1", "3",
		"34.5", "5", "29", "31.5", "34", "37.5", "41",
	}, records[1])

	// Non-numeric columns leave the statistics cells empty
	assert.Equal(t, []string{
		"name", "string", "4", "0", "4",
		"", "", "", "", "", "", "",
	}, records[2])
}

func TestReportExporter_ExportProfileJSON(t *testing.T) {
	exporter, paths, cleanup := newReportExportEnv(t)
	defer cleanup()

	p := newTestProfile()

	err := exporter.ExportProfileJSON(p, "people_profile.json")
	require.NoError(t, err)

	path := filepath.Join(paths.ReportsDir, "people_profile.json")
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	// Indented so the artifact is readable as-is
	assert.Contains(t, string(content), "\n  \"dataset\"")

	var decoded profile.Profile
	require.NoError(t, json.Unmarshal(content, &decoded))

	assert.Equal(t, p.Dataset, decoded.Dataset)
	assert.Equal(t, p.Fingerprint, decoded.Fingerprint)
	assert.Equal(t, p.Rows, decoded.Rows)
	assert.Equal(t, p.Cols, decoded.Cols)
	require.Len(t, decoded.Columns, 2)
	assert.Equal(t, p.Columns[0], decoded.Columns[0])
	assert.Nil(t, decoded.Columns[1].Mean)
	assert.True(t, decoded.GeneratedAt.Equal(p.GeneratedAt))

	// Atomic write leaves no temp residue behind
	leftovers, err := filepath.Glob(filepath.Join(paths.ReportsDir, "*.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestReportExporter_ExportCorrelationCSV(t *testing.T) {
	exporter, paths, cleanup := newReportExportEnv(t)
	defer cleanup()

	c := &profile.Correlation{
		Columns: []string{"age", "income"},
		Matrix: [][]float64{
			{1, 0.75},
			{0.75, 1},
		},
	}

	err := exporter.ExportCorrelationCSV(c, "people_correlation.csv")
	require.NoError(t, err)

	records := readArtifactCSV(t, filepath.Join(paths.ReportsDir, "people_correlation.csv"))
	require.Len(t, records, 3)

	assert.Equal(t, []string{"Column", "age", "income"}, records[0])
	assert.Equal(t, []string{"age", "1", "0.75"}, records[1])
	assert.Equal(t, []string{"income", "0.75", "1"}, records[2])
}

func TestReportExporter_ExportCorrelationJSON(t *testing.T) {
	exporter, paths, cleanup := newReportExportEnv(t)
	defer cleanup()

	c := &profile.Correlation{
		Columns: []string{"age", "income"},
		Matrix: [][]float64{
			{1, 0.75},
			{0.75, 1},
		},
	}

	err := exporter.ExportCorrelationJSON(c, "people_correlation.json")
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(paths.ReportsDir, "people_correlation.json"))
	require.NoError(t, err)

	var decoded profile.Correlation
	require.NoError(t, json.Unmarshal(content, &decoded))
	assert.Equal(t, c, &decoded)
}

func TestReportExporter_WriteErrors(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "report_err_*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	// A regular file where the reports directory should be makes
	// directory creation fail
	blocker := filepath.Join(tempDir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0644))

	exporter := NewReportExporter(&config.Paths{ReportsDir: blocker})

	err = exporter.ExportProfileJSON(newTestProfile(), "nested/people_profile.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create directory")
}
