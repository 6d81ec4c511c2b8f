package dataset

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/xuri/excelize/v2"

	apperrors "prepcli/internal/errors"
)

// LoadExcel reads a sheet of an xlsx workbook into a dataset. An empty
// sheet name selects the first sheet in the workbook.
func (l *Loader) LoadExcel(ctx context.Context, path, sheet string) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewLoadError("failed to read workbook", err).
			WithContext("path", path)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewParsingError("failed to open workbook", err).
			WithContext("path", path)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, apperrors.NewParsingError("workbook has no sheets", nil).
				WithContext("path", path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to read sheet %s", sheet), err).
			WithContext("path", path)
	}
	if len(rows) == 0 {
		return nil, apperrors.NewParsingError("sheet contains no rows", nil).
			WithContext("path", path).
			WithContext("sheet", sheet)
	}

	records := normalizeRecords(rows)

	df := dataframe.LoadRecords(records, l.frameOptions()...)
	if df.Err != nil {
		return nil, apperrors.NewParsingError("failed to build data frame from sheet", df.Err).
			WithContext("path", path).
			WithContext("sheet", sheet)
	}

	ds := New(NameForPath(path), df)
	ds.Source = path
	ds.Format = FormatExcel
	ds.Fingerprint = Fingerprint(data)

	l.logger.InfoContext(ctx, "workbook loaded",
		slog.String("dataset", ds.Name),
		slog.String("sheet", sheet),
		slog.Int("rows", ds.Rows()),
		slog.Int("cols", ds.Cols()))

	return ds, nil
}

// normalizeRecords pads ragged rows to the widest row. Workbook readers
// trim trailing empty cells, which delimited parsing rejects.
func normalizeRecords(rows [][]string) [][]string {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	records := make([][]string, len(rows))
	for i, row := range rows {
		if len(row) == width {
			records[i] = row
			continue
		}
		padded := make([]string, width)
		copy(padded, row)
		records[i] = padded
	}
	return records
}
