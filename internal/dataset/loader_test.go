package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prepcli/internal/config"
	apperrors "prepcli/internal/errors"
)

func testLoaderConfig() config.LoaderConfig {
	return config.LoaderConfig{
		Delimiter:     ",",
		HasHeader:     true,
		DetectTypes:   true,
		NAValues:      config.DefaultNAValues(),
		MaxFileSizeMB: 512,
		PreviewRows:   20,
	}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_Load_ShapeFidelity(t *testing.T) {
	content := strings.Join([]string{
		"name,age,city",
		"alice,30,baghdad",
		"bob,25,erbil",
		"carol,41,basra",
		"dave,35,mosul",
	}, "\n")

	path := writeTempFile(t, "people.csv", content)
	loader := NewLoader(testLoaderConfig(), nil)

	ds, err := loader.Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 4, ds.Rows())
	assert.Equal(t, 3, ds.Cols())
	assert.Equal(t, []string{"name", "age", "city"}, ds.Columns())
	assert.Equal(t, "people", ds.Name)
	assert.Equal(t, FormatCSV, ds.Format)
	assert.Len(t, ds.Fingerprint, 64)
}

func TestLoader_Load_MissingValueMarkers(t *testing.T) {
	content := strings.Join([]string{
		"name,score",
		"alice,10",
		"bob,",
		"carol,NA",
		"dave,null",
	}, "\n")

	path := writeTempFile(t, "scores.csv", content)
	loader := NewLoader(testLoaderConfig(), nil)

	ds, err := loader.Load(context.Background(), path)
	require.NoError(t, err)

	col := ds.Frame.Col("score")
	require.NoError(t, col.Err)

	isNA := col.IsNaN()
	assert.Equal(t, []bool{false, true, true, true}, isNA)
}

func TestLoader_Load_TSV(t *testing.T) {
	content := "symbol\tclose\nTASC\t12\nBBOB\t9\n"
	path := writeTempFile(t, "quotes.tsv", content)
	loader := NewLoader(testLoaderConfig(), nil)

	ds, err := loader.Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 2, ds.Rows())
	assert.Equal(t, 2, ds.Cols())
	assert.Equal(t, FormatTSV, ds.Format)
	assert.Equal(t, []string{"symbol", "close"}, ds.Columns())
}

func TestLoader_Load_CustomDelimiter(t *testing.T) {
	cfg := testLoaderConfig()
	cfg.Delimiter = ";"

	content := "a;b\n1;2\n3;4\n"
	path := writeTempFile(t, "semi.csv", content)
	loader := NewLoader(cfg, nil)

	ds, err := loader.Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 2, ds.Rows())
	assert.Equal(t, 2, ds.Cols())
}

func TestLoader_Load_Errors(t *testing.T) {
	loader := NewLoader(testLoaderConfig(), nil)

	tests := []struct {
		name     string
		path     func(t *testing.T) string
		wantType apperrors.ErrorType
	}{
		{
			name: "missing file",
			path: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "nope.csv")
			},
			wantType: apperrors.ErrTypeLoad,
		},
		{
			name: "unsupported extension",
			path: func(t *testing.T) string {
				return writeTempFile(t, "data.parquet", "x")
			},
			wantType: apperrors.ErrTypeLoad,
		},
		{
			name: "directory instead of file",
			path: func(t *testing.T) string {
				dir := filepath.Join(t.TempDir(), "data.csv")
				require.NoError(t, os.Mkdir(dir, 0o755))
				return dir
			},
			wantType: apperrors.ErrTypeLoad,
		},
		{
			name: "ragged rows",
			path: func(t *testing.T) string {
				return writeTempFile(t, "ragged.csv", "a,b\n1,2\n3,4,5\n")
			},
			wantType: apperrors.ErrTypeParsing,
		},
		{
			name: "empty file",
			path: func(t *testing.T) string {
				return writeTempFile(t, "empty.csv", "")
			},
			wantType: apperrors.ErrTypeParsing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.Load(context.Background(), tt.path(t))
			require.Error(t, err)

			var appErr *apperrors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantType, appErr.Type)
		})
	}
}

func TestLoader_Load_SizeLimit(t *testing.T) {
	cfg := testLoaderConfig()
	cfg.MaxFileSizeMB = 1

	row := strings.Repeat("x", 1024) + "\n"
	content := "col\n" + strings.Repeat(row, 1100)
	path := writeTempFile(t, "big.csv", content)

	loader := NewLoader(cfg, nil)
	_, err := loader.Load(context.Background(), path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "size limit")
}

func TestLoader_Load_CancelledContext(t *testing.T) {
	path := writeTempFile(t, "data.csv", "a\n1\n")
	loader := NewLoader(testLoaderConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loader.Load(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoader_LoadRecords(t *testing.T) {
	records := [][]string{
		{"name", "score"},
		{"alice", "10"},
		{"bob", "20"},
	}

	loader := NewLoader(testLoaderConfig(), nil)
	ds, err := loader.LoadRecords("inline", records)
	require.NoError(t, err)

	assert.Equal(t, 2, ds.Rows())
	assert.Equal(t, 2, ds.Cols())
	assert.Equal(t, "inline", ds.Name)
	assert.NotEmpty(t, ds.Fingerprint)

	// Same records always produce the same fingerprint
	ds2, err := loader.LoadRecords("inline", records)
	require.NoError(t, err)
	assert.Equal(t, ds.Fingerprint, ds2.Fingerprint)
}

func TestDataset_Preview(t *testing.T) {
	records := [][]string{
		{"name"},
		{"alice"},
		{"bob"},
		{"carol"},
	}

	loader := NewLoader(testLoaderConfig(), nil)
	ds, err := loader.LoadRecords("names", records)
	require.NoError(t, err)

	tests := []struct {
		name     string
		rows     int
		wantRows int
	}{
		{name: "subset", rows: 2, wantRows: 3},
		{name: "more than available", rows: 10, wantRows: 4},
		{name: "zero rows", rows: 0, wantRows: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			preview := ds.Preview(tt.rows)
			assert.Len(t, preview, tt.wantRows)
			assert.Equal(t, []string{"name"}, preview[0])
		})
	}
}

func TestDataset_ColumnTypes(t *testing.T) {
	records := [][]string{
		{"name", "age", "active"},
		{"alice", "30", "true"},
		{"bob", "25", "false"},
	}

	loader := NewLoader(testLoaderConfig(), nil)
	ds, err := loader.LoadRecords("typed", records)
	require.NoError(t, err)

	types := ds.ColumnTypes()
	assert.Equal(t, "string", types["name"])
	assert.Equal(t, "int", types["age"])
	assert.Equal(t, "bool", types["active"])
}

func TestFormatForPath(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{path: "data/raw/prices.csv", want: FormatCSV},
		{path: "prices.CSV", want: FormatCSV},
		{path: "quotes.tsv", want: FormatTSV},
		{path: "book.xlsx", want: FormatExcel},
		{path: "data.parquet", wantErr: true},
		{path: "noext", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			format, err := FormatForPath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, format)
		})
	}
}

func TestNameForPath(t *testing.T) {
	assert.Equal(t, "prices", NameForPath("data/raw/prices.csv"))
	assert.Equal(t, "book", NameForPath("/abs/path/book.xlsx"))
	assert.Equal(t, "plain", NameForPath("plain"))
}
