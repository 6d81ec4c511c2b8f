package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileValidator_ValidateInputDirectory(t *testing.T) {
	tests := []struct {
		name            string
		setupFunc       func(t *testing.T) string
		requiredPattern string
		wantErr         bool
		errorContains   string
	}{
		{
			name: "valid directory with files",
			setupFunc: func(t *testing.T) string {
				dir := t.TempDir()
				file := filepath.Join(dir, "census.csv")
				require.NoError(t, os.WriteFile(file, []byte("a,b\n1,2\n"), 0644))
				return dir
			},
			requiredPattern: "*.csv",
			wantErr:         false,
		},
		{
			name: "valid directory without files",
			setupFunc: func(t *testing.T) string {
				return t.TempDir()
			},
			requiredPattern: "*.csv",
			wantErr:         false, // No files is not an error
		},
		{
			name: "non-existent directory",
			setupFunc: func(t *testing.T) string {
				return "/non/existent/path"
			},
			requiredPattern: "",
			wantErr:         true,
			errorContains:   "does not exist",
		},
		{
			name: "path is file not directory",
			setupFunc: func(t *testing.T) string {
				dir := t.TempDir()
				file := filepath.Join(dir, "census.csv")
				require.NoError(t, os.WriteFile(file, []byte("a,b\n"), 0644))
				return file
			},
			requiredPattern: "",
			wantErr:         true,
			errorContains:   "not a directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator := NewFileValidator(slog.Default())
			dir := tt.setupFunc(t)

			err := validator.ValidateInputDirectory(dir, tt.requiredPattern)

			if tt.wantErr {
				assert.Error(t, err)
				if tt.errorContains != "" {
					assert.Contains(t, err.Error(), tt.errorContains)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFileValidator_ValidateOutputDirectory(t *testing.T) {
	validator := NewFileValidator(nil)

	t.Run("creates missing directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "cleaned", "nested")
		require.NoError(t, validator.ValidateOutputDirectory(dir))

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("accepts existing directory", func(t *testing.T) {
		assert.NoError(t, validator.ValidateOutputDirectory(t.TempDir()))
	})

	t.Run("removes the write probe", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, validator.ValidateOutputDirectory(dir))
		assert.NoFileExists(t, filepath.Join(dir, ".write_test"))
	})
}

func TestFileValidator_ValidateFile(t *testing.T) {
	validator := NewFileValidator(slog.Default())

	t.Run("readable file passes", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "census.csv")
		require.NoError(t, os.WriteFile(path, []byte("a,b\n"), 0644))
		assert.NoError(t, validator.ValidateFile(path))
	})

	t.Run("missing file fails", func(t *testing.T) {
		err := validator.ValidateFile(filepath.Join(t.TempDir(), "ghost.csv"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not exist")
	})

	t.Run("directory fails", func(t *testing.T) {
		err := validator.ValidateFile(t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is a directory, not a file")
	})
}

func TestFileValidator_ValidateDatasetFile(t *testing.T) {
	tests := []struct {
		name          string
		fileName      string
		wantErr       bool
		errorContains string
	}{
		{
			name:     "csv dataset",
			fileName: "census.csv",
			wantErr:  false,
		},
		{
			name:     "tsv dataset",
			fileName: "survey.tsv",
			wantErr:  false,
		},
		{
			name:     "excel workbook",
			fileName: "ledger.xlsx",
			wantErr:  false,
		},
		{
			name:          "unsupported extension",
			fileName:      "notes.txt",
			wantErr:       true,
			errorContains: "not a supported dataset format",
		},
		{
			name:          "office owner file",
			fileName:      "~$ledger.xlsx",
			wantErr:       true,
			errorContains: "temporary Excel file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator := NewFileValidator(slog.Default())
			path := filepath.Join(t.TempDir(), tt.fileName)
			require.NoError(t, os.WriteFile(path, []byte("content"), 0644))

			err := validator.ValidateDatasetFile(path)

			if tt.wantErr {
				assert.Error(t, err)
				if tt.errorContains != "" {
					assert.Contains(t, err.Error(), tt.errorContains)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFileValidator_ValidateExcelFile(t *testing.T) {
	validator := NewFileValidator(slog.Default())

	t.Run("xlsx passes", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ledger.xlsx")
		require.NoError(t, os.WriteFile(path, []byte("content"), 0644))
		assert.NoError(t, validator.ValidateExcelFile(path))
	})

	t.Run("legacy xls is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "legacy.xls")
		require.NoError(t, os.WriteFile(path, []byte("content"), 0644))

		err := validator.ValidateExcelFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not an Excel workbook")
	})
}

func TestFileValidator_ValidateCSVFile(t *testing.T) {
	validator := NewFileValidator(slog.Default())

	t.Run("csv passes", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "census.csv")
		require.NoError(t, os.WriteFile(path, []byte("a,b\n"), 0644))
		assert.NoError(t, validator.ValidateCSVFile(path))
	})

	t.Run("wrong extension fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "survey.tsv")
		require.NoError(t, os.WriteFile(path, []byte("a\tb\n"), 0644))

		err := validator.ValidateCSVFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a CSV file")
	})
}

func TestFileValidator_CountFiles(t *testing.T) {
	validator := NewFileValidator(slog.Default())
	dir := t.TempDir()

	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("part_%d.csv", i)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub.csv"), 0755))

	count, err := validator.CountFiles(dir, "*.csv")
	require.NoError(t, err)
	assert.Equal(t, 3, count, "directories and other extensions are excluded")

	count, err = validator.CountFiles(dir, "*.parquet")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
