package transform

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	apperrors "prepcli/internal/errors"
	"prepcli/internal/profile"
)

// OutlierMethod selects how an OutlierFilter finds its fences.
type OutlierMethod string

const (
	// OutlierIQR fences at the quartiles plus or minus K times the
	// interquartile range, Tukey's rule.
	OutlierIQR OutlierMethod = "iqr"
	// OutlierPercentile fences at the Lower and Upper percentiles.
	OutlierPercentile OutlierMethod = "percentile"
)

// OutlierAction selects what happens to values outside the fences.
type OutlierAction string

const (
	// ActionClip pins outliers to the nearest fence.
	ActionClip OutlierAction = "clip"
	// ActionDrop removes the whole row.
	ActionDrop OutlierAction = "drop"
)

// DefaultIQRFactor is Tukey's conventional fence multiplier.
const DefaultIQRFactor = 1.5

// OutlierFilter clips or drops values that fall outside a per column
// fence. Fences come either from Tukey's IQR rule or from fixed
// percentiles. Missing values are never treated as outliers.
type OutlierFilter struct {
	Columns []string
	Method  OutlierMethod
	Action  OutlierAction

	// K is the IQR multiplier, defaulting to 1.5 when zero.
	K float64
	// Lower and Upper bound the percentile method, as fractions.
	Lower float64
	Upper float64
}

func (o OutlierFilter) Name() string { return "outliers" }

func (o OutlierFilter) Validate() error {
	switch o.Method {
	case OutlierIQR:
		if o.K < 0 {
			return apperrors.NewAppValidationError("iqr factor must not be negative")
		}
	case OutlierPercentile:
		if o.Lower < 0 || o.Upper > 1 || o.Lower >= o.Upper {
			return apperrors.NewAppValidationError(
				"percentile bounds must satisfy 0 <= lower < upper <= 1")
		}
	case "":
		return apperrors.NewAppValidationError("outlier method is required")
	default:
		return apperrors.NewAppValidationError(
			fmt.Sprintf("unknown outlier method: %s", o.Method))
	}

	switch o.Action {
	case ActionClip, ActionDrop:
		return nil
	case "":
		return apperrors.NewAppValidationError("outlier action is required")
	default:
		return apperrors.NewAppValidationError(
			fmt.Sprintf("unknown outlier action: %s", o.Action))
	}
}

func (o OutlierFilter) Apply(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if err := o.Validate(); err != nil {
		return df, err
	}

	columns, err := resolveColumns(df, o.Columns, true)
	if err != nil {
		return df, err
	}

	if o.Action == ActionDrop {
		return o.dropRows(df, columns)
	}
	return o.clipValues(df, columns)
}

func (o OutlierFilter) clipValues(df dataframe.DataFrame, columns []string) (dataframe.DataFrame, error) {
	out := df
	for _, name := range columns {
		col := out.Col(name)
		lower, upper, ok := o.fences(col)
		if !ok {
			continue
		}

		raw := col.Float()
		clipped := make([]float64, len(raw))
		for i, v := range raw {
			switch {
			case math.IsNaN(v):
				clipped[i] = v
			case v < lower:
				clipped[i] = lower
			case v > upper:
				clipped[i] = upper
			default:
				clipped[i] = v
			}
		}

		out = out.Mutate(series.New(clipped, series.Float, name))
		if out.Err != nil {
			return df, apperrors.NewTransformError(
				fmt.Sprintf("failed to clip column %s", name), out.Err)
		}
	}
	return out, nil
}

func (o OutlierFilter) dropRows(df dataframe.DataFrame, columns []string) (dataframe.DataFrame, error) {
	outlier := make([]bool, df.Nrow())
	for _, name := range columns {
		col := df.Col(name)
		lower, upper, ok := o.fences(col)
		if !ok {
			continue
		}

		for i, v := range col.Float() {
			if math.IsNaN(v) {
				continue
			}
			if v < lower || v > upper {
				outlier[i] = true
			}
		}
	}

	keep := make([]int, 0, df.Nrow())
	for i, out := range outlier {
		if !out {
			keep = append(keep, i)
		}
	}
	if len(keep) == df.Nrow() {
		return df, nil
	}

	out := df.Subset(keep)
	if out.Err != nil {
		return df, apperrors.NewTransformError("failed to drop outlier rows", out.Err)
	}
	return out, nil
}

// fences computes the lower and upper cutoffs for a column. It reports
// false when the column has too few values to fence.
func (o OutlierFilter) fences(col series.Series) (float64, float64, bool) {
	values := nonNullFloats(col)
	if len(values) < 2 {
		return 0, 0, false
	}
	sort.Float64s(values)

	if o.Method == OutlierPercentile {
		return profile.Percentile(values, o.Lower), profile.Percentile(values, o.Upper), true
	}

	k := o.K
	if k == 0 {
		k = DefaultIQRFactor
	}
	q1 := profile.Percentile(values, 0.25)
	q3 := profile.Percentile(values, 0.75)
	iqr := q3 - q1
	return q1 - k*iqr, q3 + k*iqr, true
}
