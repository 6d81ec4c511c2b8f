package transform

import (
	"github.com/go-gota/gota/dataframe"

	apperrors "prepcli/internal/errors"
)

// DropNulls removes every row that has a missing value in any of the
// selected columns. With no columns configured it considers the whole
// row, the way dropna does by default.
type DropNulls struct {
	Columns []string
}

func (d DropNulls) Name() string { return "drop_nulls" }

func (d DropNulls) Validate() error { return nil }

func (d DropNulls) Apply(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	columns, err := resolveColumns(df, d.Columns, false)
	if err != nil {
		return df, err
	}

	hasNull := make([]bool, df.Nrow())
	for _, name := range columns {
		for i, na := range df.Col(name).IsNaN() {
			if na {
				hasNull[i] = true
			}
		}
	}

	keep := make([]int, 0, df.Nrow())
	for i, null := range hasNull {
		if !null {
			keep = append(keep, i)
		}
	}
	if len(keep) == df.Nrow() {
		return df, nil
	}

	out := df.Subset(keep)
	if out.Err != nil {
		return df, apperrors.NewTransformError("failed to drop rows with nulls", out.Err)
	}
	return out, nil
}

// RowFilter keeps or removes rows by their zero based position. Exactly
// one of Keep or Remove must be set.
type RowFilter struct {
	Keep   []int
	Remove []int
}

func (f RowFilter) Name() string { return "filter_rows" }

func (f RowFilter) Validate() error {
	if len(f.Keep) == 0 && len(f.Remove) == 0 {
		return apperrors.NewAppValidationError("row filter requires a keep or remove list")
	}
	if len(f.Keep) > 0 && len(f.Remove) > 0 {
		return apperrors.NewAppValidationError("row filter accepts either keep or remove, not both")
	}
	return nil
}

func (f RowFilter) Apply(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if err := f.Validate(); err != nil {
		return df, err
	}

	rows := df.Nrow()
	if len(f.Keep) > 0 {
		if err := validateRowIndexes(f.Keep, rows); err != nil {
			return df, err
		}
		out := df.Subset(f.Keep)
		if out.Err != nil {
			return df, apperrors.NewTransformError("failed to keep rows", out.Err)
		}
		return out, nil
	}

	if err := validateRowIndexes(f.Remove, rows); err != nil {
		return df, err
	}

	remove := indexSet(f.Remove)
	keep := make([]int, 0, rows-len(remove))
	for i := 0; i < rows; i++ {
		if !remove[i] {
			keep = append(keep, i)
		}
	}

	out := df.Subset(keep)
	if out.Err != nil {
		return df, apperrors.NewTransformError("failed to remove rows", out.Err)
	}
	return out, nil
}
