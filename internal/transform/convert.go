package transform

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	apperrors "prepcli/internal/errors"
)

// TypeConverter casts the selected columns to a target type. Values
// that do not convert become missing, unless Strict is set, in which
// case the conversion fails and names the offending values.
type TypeConverter struct {
	Columns []string
	To      string
	Strict  bool
}

func (tc TypeConverter) Name() string { return "convert" }

func (tc TypeConverter) Validate() error {
	switch series.Type(tc.To) {
	case series.String, series.Int, series.Float, series.Bool:
		return nil
	case "":
		return apperrors.NewAppValidationError("conversion target type is required")
	default:
		return apperrors.NewAppValidationError(
			fmt.Sprintf("unknown target type: %s", tc.To))
	}
}

func (tc TypeConverter) Apply(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if err := tc.Validate(); err != nil {
		return df, err
	}

	columns, err := resolveColumns(df, tc.Columns, false)
	if err != nil {
		return df, err
	}

	target := series.Type(tc.To)
	out := df
	for _, name := range columns {
		col := out.Col(name)
		if col.Type() == target {
			continue
		}

		if tc.Strict {
			if bad := unconvertibleValues(col, target); len(bad) > 0 {
				return df, apperrors.NewTransformError(
					fmt.Sprintf("column %s has values that do not convert to %s: %s",
						name, target, strings.Join(bad, ", ")), nil)
			}
		}

		converted := series.New(col.Records(), target, name)
		if converted.Err != nil {
			return df, apperrors.NewTransformError(
				fmt.Sprintf("failed to convert column %s", name), converted.Err)
		}

		out = out.Mutate(converted)
		if out.Err != nil {
			return df, apperrors.NewTransformError(
				fmt.Sprintf("failed to convert column %s", name), out.Err)
		}
	}
	return out, nil
}

// unconvertibleValues lists the distinct non-null records that would
// become missing when cast to the target type.
func unconvertibleValues(col series.Series, target series.Type) []string {
	seen := make(map[string]bool)
	var bad []string

	isNA := col.IsNaN()
	for i, r := range col.Records() {
		if isNA[i] || seen[r] {
			continue
		}
		if !convertible(r, target) {
			seen[r] = true
			bad = append(bad, r)
		}
	}
	return bad
}

func convertible(value string, target series.Type) bool {
	switch target {
	case series.Int:
		_, err := strconv.Atoi(value)
		return err == nil
	case series.Float:
		_, err := strconv.ParseFloat(value, 64)
		return err == nil
	case series.Bool:
		switch strings.ToLower(value) {
		case "true", "t", "1", "false", "f", "0":
			return true
		default:
			return false
		}
	default:
		return true
	}
}
