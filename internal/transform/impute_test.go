package transform

import (
	"math"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frameFromRecords(t *testing.T, records [][]string) dataframe.DataFrame {
	t.Helper()
	df := dataframe.LoadRecords(records,
		dataframe.DetectTypes(true),
		dataframe.HasHeader(true),
	)
	require.NoError(t, df.Err)
	return df
}

func TestImputer_Mean(t *testing.T) {
	df := frameFromRecords(t, [][]string{
		{"value"},
		{"1"},
		{"2"},
		{"NaN"},
		{"4"},
	})

	imputer := Imputer{Columns: []string{"value"}, Strategy: StrategyMean}
	out, err := imputer.Apply(df)
	require.NoError(t, err)

	col := out.Col("value")
	require.NoError(t, col.Err)
	assert.False(t, col.HasNaN())
	assert.Equal(t, series.Float, col.Type())

	values := col.Float()
	require.Len(t, values, 4)
	assert.InDelta(t, 1.0, values[0], 1e-9)
	assert.InDelta(t, 2.0, values[1], 1e-9)
	assert.InDelta(t, 7.0/3.0, values[2], 1e-9)
	assert.InDelta(t, 4.0, values[3], 1e-9)
}

func TestImputer_Median(t *testing.T) {
	df := frameFromRecords(t, [][]string{
		{"value"},
		{"1"},
		{"2"},
		{"NaN"},
		{"4"},
		{"10"},
	})

	imputer := Imputer{Columns: []string{"value"}, Strategy: StrategyMedian}
	out, err := imputer.Apply(df)
	require.NoError(t, err)

	values := out.Col("value").Float()
	assert.InDelta(t, 3.0, values[2], 1e-9)
}

func TestImputer_Mode_Categorical(t *testing.T) {
	df := frameFromRecords(t, [][]string{
		{"city"},
		{"baghdad"},
		{"baghdad"},
		{"erbil"},
		{"NaN"},
	})

	imputer := Imputer{Columns: []string{"city"}, Strategy: StrategyMode}
	out, err := imputer.Apply(df)
	require.NoError(t, err)

	records := out.Col("city").Records()
	assert.Equal(t, []string{"baghdad", "baghdad", "erbil", "baghdad"}, records)
}

func TestImputer_Mode_NumericTieTakesSmallest(t *testing.T) {
	df := frameFromRecords(t, [][]string{
		{"value"},
		{"2"},
		{"2"},
		{"10"},
		{"10"},
		{"NaN"},
	})

	imputer := Imputer{Columns: []string{"value"}, Strategy: StrategyMode}
	out, err := imputer.Apply(df)
	require.NoError(t, err)

	records := out.Col("value").Records()
	assert.Equal(t, "2", records[4])
}

func TestImputer_Constant(t *testing.T) {
	df := frameFromRecords(t, [][]string{
		{"city"},
		{"baghdad"},
		{"NaN"},
	})

	imputer := Imputer{Columns: []string{"city"}, Strategy: StrategyConstant, FillValue: "unknown"}
	out, err := imputer.Apply(df)
	require.NoError(t, err)

	records := out.Col("city").Records()
	assert.Equal(t, []string{"baghdad", "unknown"}, records)
}

func TestImputer_SkipsCompleteColumns(t *testing.T) {
	df := frameFromRecords(t, [][]string{
		{"value"},
		{"1"},
		{"2"},
	})

	imputer := Imputer{Columns: []string{"value"}, Strategy: StrategyMean}
	out, err := imputer.Apply(df)
	require.NoError(t, err)

	// Untouched columns keep their original type
	assert.Equal(t, series.Int, out.Col("value").Type())
}

func TestImputer_DefaultsToAllNumericColumns(t *testing.T) {
	df := frameFromRecords(t, [][]string{
		{"a", "b", "name"},
		{"1", "10", "x"},
		{"NaN", "NaN", "NaN"},
		{"3", "30", "z"},
	})

	imputer := Imputer{Strategy: StrategyMean}
	out, err := imputer.Apply(df)
	require.NoError(t, err)

	assert.False(t, out.Col("a").HasNaN())
	assert.False(t, out.Col("b").HasNaN())
	// String column is not a mean target and keeps its missing value
	assert.True(t, out.Col("name").HasNaN())
}

func TestImputer_Errors(t *testing.T) {
	df := frameFromRecords(t, [][]string{
		{"value", "name"},
		{"1", "x"},
		{"NaN", "NaN"},
	})

	allNull := dataframe.New(
		series.New([]float64{math.NaN(), math.NaN()}, series.Float, "value"),
	)
	require.NoError(t, allNull.Err)

	tests := []struct {
		name    string
		df      dataframe.DataFrame
		imputer Imputer
	}{
		{
			name:    "missing strategy",
			df:      df,
			imputer: Imputer{Columns: []string{"value"}},
		},
		{
			name:    "unknown strategy",
			df:      df,
			imputer: Imputer{Columns: []string{"value"}, Strategy: "knn"},
		},
		{
			name:    "constant without fill value",
			df:      df,
			imputer: Imputer{Columns: []string{"value"}, Strategy: StrategyConstant},
		},
		{
			name:    "unknown column",
			df:      df,
			imputer: Imputer{Columns: []string{"nope"}, Strategy: StrategyMean},
		},
		{
			name:    "mean on string column",
			df:      df,
			imputer: Imputer{Columns: []string{"name"}, Strategy: StrategyMean},
		},
		{
			name:    "no values to impute from",
			df:      allNull,
			imputer: Imputer{Columns: []string{"value"}, Strategy: StrategyMean},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.imputer.Apply(tt.df)
			assert.Error(t, err)
		})
	}
}
