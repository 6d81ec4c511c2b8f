package transform

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/stat"

	apperrors "prepcli/internal/errors"
	"prepcli/internal/profile"
)

// Strategy selects how an Imputer fills missing values.
type Strategy string

const (
	StrategyMean     Strategy = "mean"
	StrategyMedian   Strategy = "median"
	StrategyMode     Strategy = "mode"
	StrategyConstant Strategy = "constant"
)

// Imputer fills missing values in the selected columns. Mean and median
// apply to numeric columns and promote int columns to float, since the
// replacement is usually fractional. Mode and constant work on any
// column type.
type Imputer struct {
	Columns   []string
	Strategy  Strategy
	FillValue string
}

func (im Imputer) Name() string { return "impute" }

func (im Imputer) Validate() error {
	switch im.Strategy {
	case StrategyMean, StrategyMedian, StrategyMode:
		return nil
	case StrategyConstant:
		if im.FillValue == "" {
			return apperrors.NewAppValidationError("constant imputation requires a fill value")
		}
		return nil
	case "":
		return apperrors.NewAppValidationError("imputation strategy is required")
	default:
		return apperrors.NewAppValidationError(
			fmt.Sprintf("unknown imputation strategy: %s", im.Strategy))
	}
}

func (im Imputer) Apply(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if err := im.Validate(); err != nil {
		return df, err
	}

	numericOnly := im.Strategy == StrategyMean || im.Strategy == StrategyMedian
	columns, err := resolveColumns(df, im.Columns, numericOnly)
	if err != nil {
		return df, err
	}

	out := df
	for _, name := range columns {
		col := out.Col(name)
		if !col.HasNaN() {
			continue
		}

		filled, err := im.fillColumn(col)
		if err != nil {
			return df, err
		}
		out = out.Mutate(filled)
		if out.Err != nil {
			return df, apperrors.NewTransformError(
				fmt.Sprintf("failed to impute column %s", name), out.Err)
		}
	}
	return out, nil
}

func (im Imputer) fillColumn(col series.Series) (series.Series, error) {
	switch im.Strategy {
	case StrategyMean, StrategyMedian:
		return im.fillNumeric(col)
	case StrategyMode:
		mode, ok := modeValue(col)
		if !ok {
			return col, apperrors.NewTransformError(
				fmt.Sprintf("column %s has no values to impute from", col.Name), nil)
		}
		return fillWithValue(col, mode), nil
	default:
		return fillWithValue(col, im.FillValue), nil
	}
}

// fillNumeric computes the replacement from the non-null values and
// rebuilds the column as float so fractional replacements survive.
func (im Imputer) fillNumeric(col series.Series) (series.Series, error) {
	values := nonNullFloats(col)
	if len(values) == 0 {
		return col, apperrors.NewTransformError(
			fmt.Sprintf("column %s has no values to impute from", col.Name), nil)
	}

	var fill float64
	if im.Strategy == StrategyMean {
		fill = stat.Mean(values, nil)
	} else {
		sort.Float64s(values)
		fill = profile.Percentile(values, 0.5)
	}

	raw := col.Float()
	out := make([]float64, len(raw))
	for i, v := range raw {
		if math.IsNaN(v) {
			out[i] = fill
		} else {
			out[i] = v
		}
	}
	return series.New(out, series.Float, col.Name), nil
}

// fillWithValue replaces missing records with a literal, keeping the
// column type.
func fillWithValue(col series.Series, value string) series.Series {
	records := col.Records()
	isNA := col.IsNaN()
	for i := range records {
		if isNA[i] {
			records[i] = value
		}
	}
	return series.New(records, col.Type(), col.Name)
}

// modeValue returns the most frequent non-null value. Ties resolve to
// the smallest value, numerically when both candidates parse as numbers.
func modeValue(col series.Series) (string, bool) {
	counts := make(map[string]int)
	isNA := col.IsNaN()
	for i, r := range col.Records() {
		if isNA[i] {
			continue
		}
		counts[r]++
	}
	if len(counts) == 0 {
		return "", false
	}

	var best string
	bestCount := 0
	for value, count := range counts {
		if count > bestCount || (count == bestCount && valueLess(value, best)) {
			best = value
			bestCount = count
		}
	}
	return best, true
}

func valueLess(a, b string) bool {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		return fa < fb
	}
	return a < b
}
