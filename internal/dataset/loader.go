package dataset

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-gota/gota/dataframe"

	"prepcli/internal/config"
	apperrors "prepcli/internal/errors"
)

// Loader reads tabular files into datasets using the configured
// delimiter, missing value markers and type detection.
type Loader struct {
	cfg    config.LoaderConfig
	logger *slog.Logger
}

// NewLoader creates a loader with the given configuration.
func NewLoader(cfg config.LoaderConfig, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "dataset_loader")),
	}
}

// Load reads the file at path into a dataset, dispatching on the file
// extension. CSV and TSV files go through the delimited reader, xlsx
// files through the Excel reader.
func (l *Loader) Load(ctx context.Context, path string) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	format, err := FormatForPath(path)
	if err != nil {
		return nil, apperrors.NewLoadError("unsupported dataset format", err).
			WithContext("path", path)
	}

	if err := l.checkSize(path); err != nil {
		return nil, err
	}

	switch format {
	case FormatTSV:
		return l.loadDelimited(ctx, path, FormatTSV, '\t')
	case FormatExcel:
		return l.LoadExcel(ctx, path, "")
	default:
		return l.loadDelimited(ctx, path, FormatCSV, l.delimiter())
	}
}

// LoadCSV reads a delimited text file using the configured delimiter.
func (l *Loader) LoadCSV(ctx context.Context, path string) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := l.checkSize(path); err != nil {
		return nil, err
	}
	return l.loadDelimited(ctx, path, FormatCSV, l.delimiter())
}

// LoadRecords builds a dataset from in-memory records, header row first.
func (l *Loader) LoadRecords(name string, records [][]string) (*Dataset, error) {
	df := dataframe.LoadRecords(records, l.frameOptions()...)
	if df.Err != nil {
		return nil, apperrors.NewParsingError("failed to build data frame from records", df.Err).
			WithContext("dataset", name)
	}

	ds := New(name, df)
	ds.Format = FormatCSV
	ds.Fingerprint = FingerprintRecords(records)
	return ds, nil
}

func (l *Loader) loadDelimited(ctx context.Context, path string, format Format, delimiter rune) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewLoadError("failed to read dataset file", err).
			WithContext("path", path)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := append(l.frameOptions(), dataframe.WithDelimiter(delimiter))
	df := dataframe.ReadCSV(bytes.NewReader(data), opts...)
	if df.Err != nil {
		return nil, apperrors.NewParsingError("failed to parse delimited file", df.Err).
			WithContext("path", path)
	}

	ds := New(NameForPath(path), df)
	ds.Source = path
	ds.Format = format
	ds.Fingerprint = Fingerprint(data)

	l.logger.InfoContext(ctx, "dataset loaded",
		slog.String("dataset", ds.Name),
		slog.String("format", string(format)),
		slog.Int("rows", ds.Rows()),
		slog.Int("cols", ds.Cols()))

	return ds, nil
}

// frameOptions translates the loader configuration into frame load options.
func (l *Loader) frameOptions() []dataframe.LoadOption {
	return []dataframe.LoadOption{
		dataframe.HasHeader(l.cfg.HasHeader),
		dataframe.DetectTypes(l.cfg.DetectTypes),
		dataframe.NaNValues(l.naValues()),
	}
}

func (l *Loader) naValues() []string {
	if len(l.cfg.NAValues) > 0 {
		return l.cfg.NAValues
	}
	return config.DefaultNAValues()
}

func (l *Loader) delimiter() rune {
	for _, r := range l.cfg.Delimiter {
		return r
	}
	return ','
}

// checkSize rejects files above the configured size limit before any
// parsing work happens.
func (l *Loader) checkSize(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return apperrors.NewLoadError("failed to stat dataset file", err).
			WithContext("path", path)
	}
	if info.IsDir() {
		return apperrors.NewLoadError("dataset path is a directory", nil).
			WithContext("path", path)
	}

	limit := l.cfg.MaxFileSizeMB * 1024 * 1024
	if limit > 0 && info.Size() > limit {
		return apperrors.NewLoadError(
			fmt.Sprintf("file exceeds size limit of %d MB", l.cfg.MaxFileSizeMB), nil).
			WithContext("path", path).
			WithContext("size_bytes", info.Size())
	}
	return nil
}
