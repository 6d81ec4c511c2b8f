package profile

import (
	"sort"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	apperrors "prepcli/internal/errors"
)

// ValueCount pairs a distinct column value with its occurrence count.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// NullCounts returns the number of missing entries per column.
func NullCounts(df dataframe.DataFrame) map[string]int {
	out := make(map[string]int, df.Ncol())
	for _, name := range df.Names() {
		nulls := 0
		for _, na := range df.Col(name).IsNaN() {
			if na {
				nulls++
			}
		}
		out[name] = nulls
	}
	return out
}

// UniqueCounts returns the number of distinct non-null values per column.
func UniqueCounts(df dataframe.DataFrame) map[string]int {
	out := make(map[string]int, df.Ncol())
	for _, name := range df.Names() {
		col := df.Col(name)
		out[name] = countUnique(col, col.IsNaN())
	}
	return out
}

// ValueCounts tallies the distinct non-null values of one column,
// ordered by descending count with ties broken by value. A limit of
// zero returns every distinct value.
func ValueCounts(df dataframe.DataFrame, column string, limit int) ([]ValueCount, error) {
	col := df.Col(column)
	if col.Err != nil {
		return nil, apperrors.NewNotFoundError("column " + column)
	}

	counts := make(map[string]int)
	isNA := col.IsNaN()
	for i, r := range col.Records() {
		if isNA[i] {
			continue
		}
		counts[r]++
	}

	out := make([]ValueCount, 0, len(counts))
	for value, count := range counts {
		out = append(out, ValueCount{Value: value, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ObjectColumns returns the names of the string typed columns, the ones
// a caller would usually encode before modelling.
func ObjectColumns(df dataframe.DataFrame) []string {
	names := df.Names()
	types := df.Types()

	var out []string
	for i, name := range names {
		if types[i] == series.String {
			out = append(out, name)
		}
	}
	return out
}

// NumericColumns returns the names of the int and float typed columns.
func NumericColumns(df dataframe.DataFrame) []string {
	names := df.Names()
	types := df.Types()

	var out []string
	for i, name := range names {
		if isNumericType(types[i]) {
			out = append(out, name)
		}
	}
	return out
}
