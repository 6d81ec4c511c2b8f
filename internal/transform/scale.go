package transform

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/stat"

	apperrors "prepcli/internal/errors"
	"prepcli/internal/profile"
)

// ScaleMethod selects the scaling applied by a Scaler.
type ScaleMethod string

const (
	// ScaleMinMax maps each column onto [0, 1].
	ScaleMinMax ScaleMethod = "minmax"
	// ScaleStandard centers each column and divides by the population
	// standard deviation.
	ScaleStandard ScaleMethod = "standard"
	// ScaleRobust centers on the median and divides by the
	// interquartile range, which resists outliers.
	ScaleRobust ScaleMethod = "robust"
)

// Scaler rescales numeric columns. Constant columns scale to zero, and
// missing values pass through untouched. Scaled columns always come out
// as floats.
type Scaler struct {
	Columns []string
	Method  ScaleMethod
}

func (s Scaler) Name() string { return "scale" }

func (s Scaler) Validate() error {
	switch s.Method {
	case ScaleMinMax, ScaleStandard, ScaleRobust:
		return nil
	case "":
		return apperrors.NewAppValidationError("scaling method is required")
	default:
		return apperrors.NewAppValidationError(
			fmt.Sprintf("unknown scaling method: %s", s.Method))
	}
}

func (s Scaler) Apply(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if err := s.Validate(); err != nil {
		return df, err
	}

	columns, err := resolveColumns(df, s.Columns, true)
	if err != nil {
		return df, err
	}

	out := df
	for _, name := range columns {
		col := out.Col(name)
		values := nonNullFloats(col)
		if len(values) == 0 {
			continue
		}

		scaled := s.scaleValues(col.Float(), values)
		out = out.Mutate(series.New(scaled, series.Float, name))
		if out.Err != nil {
			return df, apperrors.NewTransformError(
				fmt.Sprintf("failed to scale column %s", name), out.Err)
		}
	}
	return out, nil
}

// scaleValues rescales raw (which may contain NaN) using statistics
// computed from the non-null values.
func (s Scaler) scaleValues(raw, values []float64) []float64 {
	var center, spread float64

	switch s.Method {
	case ScaleMinMax:
		min, max := minMax(values)
		center = min
		spread = max - min
	case ScaleStandard:
		center = stat.Mean(values, nil)
		spread = stat.PopStdDev(values, nil)
	default:
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		center = profile.Percentile(sorted, 0.5)
		spread = profile.Percentile(sorted, 0.75) - profile.Percentile(sorted, 0.25)
	}

	out := make([]float64, len(raw))
	for i, v := range raw {
		if math.IsNaN(v) {
			out[i] = v
			continue
		}
		if spread == 0 {
			out[i] = 0
			continue
		}
		out[i] = (v - center) / spread
	}
	return out
}

func minMax(values []float64) (float64, float64) {
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}
