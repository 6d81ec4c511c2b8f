package profile

import (
	"context"
	"log/slog"
	"math"

	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/stat"

	"prepcli/internal/dataset"
	apperrors "prepcli/internal/errors"
)

// Correlation holds a pairwise Pearson correlation matrix over the
// numeric columns of a dataset. Matrix[i][j] is the correlation between
// Columns[i] and Columns[j].
type Correlation struct {
	Columns []string    `json:"columns"`
	Matrix  [][]float64 `json:"matrix"`
}

// Correlation computes the pairwise correlation matrix for the numeric
// columns with at least two non-null values. Pairs without enough
// complete rows, and constant columns, report a correlation of zero.
func (p *Profiler) Correlation(ctx context.Context, ds *dataset.Dataset) (*Correlation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	df := ds.Frame
	columns := usableNumericColumns(df)
	if len(columns) == 0 {
		return nil, apperrors.NewAppValidationError("dataset has no numeric columns to correlate")
	}

	values := make([][]float64, len(columns))
	for i, name := range columns {
		values[i] = df.Col(name).Float()
	}

	matrix := make([][]float64, len(columns))
	for i := range columns {
		matrix[i] = make([]float64, len(columns))
		matrix[i][i] = 1
	}

	for i := 0; i < len(columns); i++ {
		for j := i + 1; j < len(columns); j++ {
			r := pairwiseCorrelation(values[i], values[j])
			matrix[i][j] = r
			matrix[j][i] = r
		}
	}

	p.logger.InfoContext(ctx, "correlation matrix computed",
		slog.String("dataset", ds.Name),
		slog.Int("columns", len(columns)))

	return &Correlation{Columns: columns, Matrix: matrix}, nil
}

// pairwiseCorrelation correlates the rows where both columns have a
// value, the way pandas computes DataFrame.corr.
func pairwiseCorrelation(x, y []float64) float64 {
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	if len(xs) < 2 {
		return 0
	}

	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		return 0
	}
	return r
}

// usableNumericColumns filters numeric columns down to the ones with at
// least two values to correlate.
func usableNumericColumns(df dataframe.DataFrame) []string {
	var out []string
	for _, name := range NumericColumns(df) {
		if len(nonNullFloats(df.Col(name))) >= 2 {
			out = append(out, name)
		}
	}
	return out
}
