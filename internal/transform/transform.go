package transform

import (
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	apperrors "prepcli/internal/errors"
	"prepcli/internal/profile"
)

// Transform is a single change applied to a data frame. Implementations
// are value types configured by the caller; Apply returns a new frame
// and never mutates its input.
type Transform interface {
	Name() string
	Validate() error
	Apply(df dataframe.DataFrame) (dataframe.DataFrame, error)
}

// resolveColumns expands the requested column list. An empty request
// selects every column, or every numeric column when numericOnly is
// set. Explicitly requested columns must exist, and must be numeric
// when numericOnly is set.
func resolveColumns(df dataframe.DataFrame, requested []string, numericOnly bool) ([]string, error) {
	if df.Err != nil {
		return nil, apperrors.NewParsingError("invalid data frame", df.Err)
	}

	if len(requested) == 0 {
		if numericOnly {
			return profile.NumericColumns(df), nil
		}
		return df.Names(), nil
	}

	types := make(map[string]series.Type, df.Ncol())
	names := df.Names()
	for i, t := range df.Types() {
		types[names[i]] = t
	}

	for _, name := range requested {
		t, ok := types[name]
		if !ok {
			return nil, apperrors.NewAppValidationError(fmt.Sprintf("unknown column: %s", name))
		}
		if numericOnly && t != series.Float && t != series.Int {
			return nil, apperrors.NewAppValidationError(
				fmt.Sprintf("column %s is not numeric (type %s)", name, t))
		}
	}
	return requested, nil
}

// dropColumns returns the frame without the named columns, preserving
// the order of the remaining ones.
func dropColumns(df dataframe.DataFrame, names ...string) dataframe.DataFrame {
	drop := make(map[string]bool, len(names))
	for _, name := range names {
		drop[name] = true
	}

	var keep []int
	for i, name := range df.Names() {
		if !drop[name] {
			keep = append(keep, i)
		}
	}
	return df.Select(keep)
}

// nonNullFloats returns the column as floats with missing entries removed.
func nonNullFloats(col series.Series) []float64 {
	raw := col.Float()
	values := make([]float64, 0, len(raw))
	for _, v := range raw {
		if !math.IsNaN(v) {
			values = append(values, v)
		}
	}
	return values
}

// indexSet builds a membership set from row indexes.
func indexSet(indexes []int) map[int]bool {
	set := make(map[int]bool, len(indexes))
	for _, idx := range indexes {
		set[idx] = true
	}
	return set
}

// validateRowIndexes checks that every index addresses a data row.
func validateRowIndexes(indexes []int, rows int) error {
	for _, idx := range indexes {
		if idx < 0 || idx >= rows {
			return apperrors.NewAppValidationError(
				fmt.Sprintf("row index %d out of range, dataset has %d rows", idx, rows))
		}
	}
	return nil
}
