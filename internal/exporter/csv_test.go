package exporter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prepcli/internal/config"
)

// Setup test environment
func setupTestEnv(t *testing.T) (*CSVWriter, string, func()) {
	t.Helper()

	// Create temporary directory
	tempDir, err := os.MkdirTemp("", "exporter_test_*")
	require.NoError(t, err)

	// Create subdirectories
	require.NoError(t, os.MkdirAll(filepath.Join(tempDir, "output"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(tempDir, "reports"), 0755))

	// Create CSV writer
	writer := NewCSVWriter(&config.Paths{
		DataDir:    filepath.Join(tempDir, "data"),
		OutputDir:  filepath.Join(tempDir, "output"),
		ReportsDir: filepath.Join(tempDir, "reports"),
	})

	// Cleanup function
	cleanup := func() {
		os.RemoveAll(tempDir)
	}

	return writer, tempDir, cleanup
}

func TestNewCSVWriter(t *testing.T) {
	paths := &config.Paths{}
	writer := NewCSVWriter(paths)

	assert.NotNil(t, writer)
	assert.Equal(t, paths, writer.paths)
}

func TestCSVWriter_WriteCSV(t *testing.T) {
	writer, tempDir, cleanup := setupTestEnv(t)
	defer cleanup()

	tests := []struct {
		name        string
		filePath    string
		options     WriteOptions
		expectError bool
		validate    func(t *testing.T, filePath string)
	}{
		{
			name:     "basic write with headers",
			filePath: "test_basic.csv",
			options: WriteOptions{
				Headers: []string{"name", "age", "city"},
				Records: [][]string{
					{"Alice", "34", "Lyon"},
					{"Bob", "29", "Oslo"},
				},
				Append:    false,
				BOMPrefix: false,
			},
			expectError: false,
			validate: func(t *testing.T, filePath string) {
				content, err := os.ReadFile(filePath)
				require.NoError(t, err)

				lines := strings.Split(strings.TrimSpace(string(content)), "\n")
				assert.Len(t, lines, 3) // header + 2 records
				assert.Equal(t, "name,age,city", lines[0])
				assert.Equal(t, "Alice,34,Lyon", lines[1])
				assert.Equal(t, "Bob,29,Oslo", lines[2])
			},
		},
		{
			name:     "write with BOM prefix",
			filePath: "test_bom.csv",
			options: WriteOptions{
				Headers: []string{"column", "nulls"},
				Records: [][]string{
					{"age", "3"},
				},
				Append:    false,
				BOMPrefix: true,
			},
			expectError: false,
			validate: func(t *testing.T, filePath string) {
				content, err := os.ReadFile(filePath)
				require.NoError(t, err)

				// Check for UTF-8 BOM
				assert.True(t, bytes.HasPrefix(content, []byte{0xEF, 0xBB, 0xBF}))

				// Remove BOM and check content
				contentWithoutBOM := content[3:]
				lines := strings.Split(strings.TrimSpace(string(contentWithoutBOM)), "\n")
				assert.Equal(t, "column,nulls", lines[0])
				assert.Equal(t, "age,3", lines[1])
			},
		},
		{
			name:     "write without headers",
			filePath: "test_no_headers.csv",
			options: WriteOptions{
				Headers: nil,
				Records: [][]string{
					{"row1a", "row1b"},
					{"row2a", "row2b"},
				},
				Append:    false,
				BOMPrefix: false,
			},
			expectError: false,
			validate: func(t *testing.T, filePath string) {
				content, err := os.ReadFile(filePath)
				require.NoError(t, err)

				lines := strings.Split(strings.TrimSpace(string(content)), "\n")
				assert.Len(t, lines, 2) // only records, no headers
				assert.Equal(t, "row1a,row1b", lines[0])
				assert.Equal(t, "row2a,row2b", lines[1])
			},
		},
		{
			name:     "tab delimiter",
			filePath: "test_tabs.tsv",
			options: WriteOptions{
				Headers: []string{"name", "score"},
				Records: [][]string{
					{"Alice", "0.91"},
				},
				Delimiter: '\t',
			},
			expectError: false,
			validate: func(t *testing.T, filePath string) {
				content, err := os.ReadFile(filePath)
				require.NoError(t, err)

				lines := strings.Split(strings.TrimSpace(string(content)), "\n")
				assert.Equal(t, "name\tscore", lines[0])
				assert.Equal(t, "Alice\t0.91", lines[1])
			},
		},
		{
			name:     "append to existing file",
			filePath: "test_append.csv",
			options: WriteOptions{
				Records: [][]string{
					{"Carol", "41"},
				},
				Append:    true,
				BOMPrefix: false,
			},
			expectError: false,
			validate: func(t *testing.T, filePath string) {
				content, err := os.ReadFile(filePath)
				require.NoError(t, err)

				lines := strings.Split(strings.TrimSpace(string(content)), "\n")
				assert.Len(t, lines, 3) // header + initial + appended
				assert.Equal(t, "name,age", lines[0])
				assert.Equal(t, "Alice,34", lines[1])
				assert.Equal(t, "Carol,41", lines[2])
			},
		},
		{
			name:     "empty records",
			filePath: "test_empty.csv",
			options: WriteOptions{
				Headers:   []string{"col1", "col2"},
				Records:   [][]string{},
				Append:    false,
				BOMPrefix: false,
			},
			expectError: false,
			validate: func(t *testing.T, filePath string) {
				content, err := os.ReadFile(filePath)
				require.NoError(t, err)

				lines := strings.Split(strings.TrimSpace(string(content)), "\n")
				assert.Len(t, lines, 1) // only headers
				assert.Equal(t, "col1,col2", lines[0])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fullPath := filepath.Join(tempDir, "output", tt.filePath)

			// For append test, create initial file first
			if tt.options.Append {
				initialOptions := WriteOptions{
					Headers: []string{"name", "age"},
					Records: [][]string{{"Alice", "34"}},
				}
				err := writer.WriteCSV(tt.filePath, initialOptions)
				require.NoError(t, err)
			}

			err := writer.WriteCSV(tt.filePath, tt.options)

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				tt.validate(t, fullPath)
			}
		})
	}
}

func TestCSVWriter_WriteSimpleCSV(t *testing.T) {
	writer, tempDir, cleanup := setupTestEnv(t)
	defer cleanup()

	headers := []string{"name", "format", "rows"}
	records := [][]string{
		{"sales", "csv", "1200"},
		{"flights", "xlsx", "5430"},
	}

	err := writer.WriteSimpleCSV("simple_test.csv", headers, records)
	assert.NoError(t, err)

	// Validate file content
	filePath := filepath.Join(tempDir, "output", "simple_test.csv")
	content, err := os.ReadFile(filePath)
	require.NoError(t, err)

	// Check for BOM (WriteSimpleCSV uses BOMPrefix: true)
	assert.True(t, bytes.HasPrefix(content, []byte{0xEF, 0xBB, 0xBF}))

	// Remove BOM and check content
	contentWithoutBOM := content[3:]
	lines := strings.Split(strings.TrimSpace(string(contentWithoutBOM)), "\n")
	assert.Len(t, lines, 3) // header + 2 records
	assert.Equal(t, "name,format,rows", lines[0])
	assert.Equal(t, "sales,csv,1200", lines[1])
	assert.Equal(t, "flights,xlsx,5430", lines[2])
}

func TestCSVWriter_AppendToCSV(t *testing.T) {
	writer, tempDir, cleanup := setupTestEnv(t)
	defer cleanup()

	filePath := "append_test.csv"
	fullPath := filepath.Join(tempDir, "output", filePath)

	// Create initial file
	initialRecords := [][]string{
		{"Alice", "34"},
		{"Bob", "29"},
	}
	err := writer.WriteSimpleCSV(filePath, []string{"name", "age"}, initialRecords)
	require.NoError(t, err)

	// Append new records
	appendRecords := [][]string{
		{"Carol", "41"},
		{"Dan", "23"},
	}
	err = writer.AppendToCSV(filePath, appendRecords)
	assert.NoError(t, err)

	// Validate content
	content, err := os.ReadFile(fullPath)
	require.NoError(t, err)

	// Remove BOM for easier parsing
	contentWithoutBOM := content[3:]
	lines := strings.Split(strings.TrimSpace(string(contentWithoutBOM)), "\n")

	assert.Len(t, lines, 5) // header + 2 initial + 2 appended
	assert.Equal(t, "name,age", lines[0])
	assert.Equal(t, "Alice,34", lines[1])
	assert.Equal(t, "Bob,29", lines[2])
	assert.Equal(t, "Carol,41", lines[3])
	assert.Equal(t, "Dan,23", lines[4])
}

func TestCSVWriter_ResolvePath(t *testing.T) {
	writer, tempDir, cleanup := setupTestEnv(t)
	defer cleanup()

	t.Run("absolute path passes through", func(t *testing.T) {
		abs := filepath.Join(tempDir, "elsewhere", "file.csv")
		assert.Equal(t, abs, writer.resolvePath(abs))
	})

	t.Run("reports prefix lands in reports dir", func(t *testing.T) {
		result := writer.resolvePath("reports/sales_profile.csv")
		assert.Equal(t, filepath.Join(tempDir, "reports", "sales_profile.csv"), result)
	})

	t.Run("bare path lands in output dir", func(t *testing.T) {
		result := writer.resolvePath("sales_cleaned.csv")
		assert.Equal(t, filepath.Join(tempDir, "output", "sales_cleaned.csv"), result)
	})

	t.Run("nil paths passes through", func(t *testing.T) {
		bare := NewCSVWriter(nil)
		assert.Equal(t, "sales_cleaned.csv", bare.resolvePath("sales_cleaned.csv"))
	})
}

func TestCSVWriter_AtomicWrite(t *testing.T) {
	writer, tempDir, cleanup := setupTestEnv(t)
	defer cleanup()

	// Overwrite an existing file and make sure no temp residue is left
	options := WriteOptions{
		Headers: []string{"name"},
		Records: [][]string{{"first"}},
	}
	require.NoError(t, writer.WriteCSV("atomic.csv", options))

	options.Records = [][]string{{"second"}}
	require.NoError(t, writer.WriteCSV("atomic.csv", options))

	content, err := os.ReadFile(filepath.Join(tempDir, "output", "atomic.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "second")
	assert.NotContains(t, string(content), "first")

	leftovers, err := filepath.Glob(filepath.Join(tempDir, "output", "*.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestCSVWriter_SpecialCharacters(t *testing.T) {
	writer, tempDir, cleanup := setupTestEnv(t)
	defer cleanup()

	// Values that need CSV escaping must survive a round trip
	headers := []string{"name", "description", "notes"}
	records := [][]string{
		{"Fly, Inc", "description with \"quotes\"", "notes with\nnewlines"},
		{"Åir", "accents: ñáéíóú", "tabs\tinside"},
	}

	err := writer.WriteSimpleCSV("special_chars.csv", headers, records)
	assert.NoError(t, err)

	filePath := filepath.Join(tempDir, "output", "special_chars.csv")
	file, err := os.Open(filePath)
	require.NoError(t, err)
	defer file.Close()

	// Skip BOM
	bom := make([]byte, 3)
	_, err = file.Read(bom)
	require.NoError(t, err)

	reader := csv.NewReader(file)
	allRecords, err := reader.ReadAll()
	require.NoError(t, err)

	require.Len(t, allRecords, 3) // header + 2 records
	assert.Equal(t, headers, allRecords[0])
	assert.Equal(t, records[0], allRecords[1])
	assert.Equal(t, records[1], allRecords[2])
}

func TestCSVWriter_ConcurrentWrites(t *testing.T) {
	writer, tempDir, cleanup := setupTestEnv(t)
	defer cleanup()

	const numGoroutines = 8
	const recordsPerGoroutine = 50

	var wg sync.WaitGroup
	errChan := make(chan error, numGoroutines)

	// Concurrent writes to different files must not interfere
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			filePath := filepath.Join("concurrent", fmt.Sprintf("file_%d.csv", id))

			var records [][]string
			for j := 0; j < recordsPerGoroutine; j++ {
				records = append(records, []string{
					fmt.Sprintf("row_%d_%d", id, j),
					fmt.Sprintf("%d", j),
				})
			}

			if err := writer.WriteSimpleCSV(filePath, []string{"name", "number"}, records); err != nil {
				errChan <- err
			}
		}(i)
	}

	wg.Wait()
	close(errChan)

	for err := range errChan {
		assert.NoError(t, err)
	}

	// Verify all files were created correctly
	for i := 0; i < numGoroutines; i++ {
		filePath := filepath.Join(tempDir, "output", "concurrent", fmt.Sprintf("file_%d.csv", i))
		content, err := os.ReadFile(filePath)
		require.NoError(t, err)

		contentWithoutBOM := content[3:]
		lines := strings.Split(strings.TrimSpace(string(contentWithoutBOM)), "\n")
		assert.Len(t, lines, recordsPerGoroutine+1) // header + records
	}
}

func TestCSVWriter_ErrorScenarios(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "exporter_err_*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	// A regular file where the output directory should be makes
	// directory creation fail
	blocker := filepath.Join(tempDir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0644))

	writer := NewCSVWriter(&config.Paths{OutputDir: blocker})

	err = writer.WriteCSV("nested/test.csv", WriteOptions{
		Headers: []string{"col"},
		Records: [][]string{{"value"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create directory")
}

func TestStreamWriter(t *testing.T) {
	writer, tempDir, cleanup := setupTestEnv(t)
	defer cleanup()

	stream, err := writer.CreateStreamWriter("streamed.csv", []string{"name", "age"})
	require.NoError(t, err)

	require.NoError(t, stream.WriteRecord([]string{"Alice", "34"}))
	require.NoError(t, stream.WriteRecord([]string{"Bob", "29"}))
	require.NoError(t, stream.Close())

	content, err := os.ReadFile(filepath.Join(tempDir, "output", "streamed.csv"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "name,age", lines[0])
	assert.Equal(t, "Alice,34", lines[1])
	assert.Equal(t, "Bob,29", lines[2])
}

// BenchmarkCSVWriter_WriteCSV tests CSV writing performance
func BenchmarkCSVWriter_WriteCSV(b *testing.B) {
	tempDir, err := os.MkdirTemp("", "benchmark_csv_*")
	require.NoError(b, err)
	defer os.RemoveAll(tempDir)

	writer := NewCSVWriter(&config.Paths{
		OutputDir: filepath.Join(tempDir, "output"),
	})

	headers := []string{"id", "name", "value", "flag"}
	var records [][]string
	for i := 0; i < 1000; i++ {
		records = append(records, []string{
			fmt.Sprintf("%d", i),
			fmt.Sprintf("row_%d", i),
			"123.45",
			"true",
		})
	}

	options := WriteOptions{
		Headers:   headers,
		Records:   records,
		BOMPrefix: true,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		err := writer.WriteCSV("benchmark.csv", options)
		require.NoError(b, err)
	}
}
