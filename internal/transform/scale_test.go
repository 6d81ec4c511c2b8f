package transform

import (
	"math"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScaler_MinMax(t *testing.T) {
	df := frameFromRecords(t, [][]string{
		{"value"},
		{"2"},
		{"4"},
		{"6"},
	})

	out, err := Scaler{Columns: []string{"value"}, Method: ScaleMinMax}.Apply(df)
	require.NoError(t, err)

	values := out.Col("value").Float()
	assert.InDelta(t, 0.0, values[0], 1e-9)
	assert.InDelta(t, 0.5, values[1], 1e-9)
	assert.InDelta(t, 1.0, values[2], 1e-9)
}

func TestScaler_MinMaxIsIdempotent(t *testing.T) {
	df := frameFromRecords(t, [][]string{
		{"a", "b"},
		{"10", "-3"},
		{"55", "0"},
		{"20", "9"},
		{"100", "4"},
	})

	scaler := Scaler{Method: ScaleMinMax}
	once, err := scaler.Apply(df)
	require.NoError(t, err)

	twice, err := scaler.Apply(once)
	require.NoError(t, err)

	assert.Equal(t, once.Records(), twice.Records())
}

func TestScaler_Standard(t *testing.T) {
	df := frameFromRecords(t, [][]string{
		{"value"},
		{"1"},
		{"2"},
		{"3"},
	})

	out, err := Scaler{Columns: []string{"value"}, Method: ScaleStandard}.Apply(df)
	require.NoError(t, err)

	values := out.Col("value").Float()
	assert.InDelta(t, -1.224744871391589, values[0], 1e-9)
	assert.InDelta(t, 0.0, values[1], 1e-9)
	assert.InDelta(t, 1.224744871391589, values[2], 1e-9)
}

func TestScaler_Robust(t *testing.T) {
	df := frameFromRecords(t, [][]string{
		{"value"},
		{"1"},
		{"2"},
		{"3"},
		{"4"},
		{"5"},
	})

	out, err := Scaler{Columns: []string{"value"}, Method: ScaleRobust}.Apply(df)
	require.NoError(t, err)

	values := out.Col("value").Float()
	expected := []float64{-1, -0.5, 0, 0.5, 1}
	for i, want := range expected {
		assert.InDelta(t, want, values[i], 1e-9)
	}
}

func TestScaler_ConstantColumnScalesToZero(t *testing.T) {
	df := frameFromRecords(t, [][]string{
		{"value"},
		{"5"},
		{"5"},
		{"5"},
	})

	out, err := Scaler{Columns: []string{"value"}, Method: ScaleMinMax}.Apply(df)
	require.NoError(t, err)

	for _, v := range out.Col("value").Float() {
		assert.Zero(t, v)
	}
}

func TestScaler_MissingValuesPassThrough(t *testing.T) {
	df := frameFromRecords(t, [][]string{
		{"value"},
		{"1"},
		{"NaN"},
		{"3"},
	})

	out, err := Scaler{Columns: []string{"value"}, Method: ScaleMinMax}.Apply(df)
	require.NoError(t, err)

	values := out.Col("value").Float()
	assert.InDelta(t, 0.0, values[0], 1e-9)
	assert.True(t, math.IsNaN(values[1]))
	assert.InDelta(t, 1.0, values[2], 1e-9)
}

func TestScaler_AllNullColumnIsSkipped(t *testing.T) {
	df := dataframe.New(
		series.New([]float64{math.NaN(), math.NaN()}, series.Float, "value"),
	)
	require.NoError(t, df.Err)

	out, err := Scaler{Columns: []string{"value"}, Method: ScaleStandard}.Apply(df)
	require.NoError(t, err)
	assert.True(t, out.Col("value").HasNaN())
}

func TestScaler_DefaultsToNumericColumns(t *testing.T) {
	df := frameFromRecords(t, [][]string{
		{"age", "name"},
		{"10", "x"},
		{"30", "y"},
	})

	out, err := Scaler{Method: ScaleMinMax}.Apply(df)
	require.NoError(t, err)

	assert.Equal(t, []string{"x", "y"}, out.Col("name").Records())
	values := out.Col("age").Float()
	assert.InDelta(t, 0.0, values[0], 1e-9)
	assert.InDelta(t, 1.0, values[1], 1e-9)
}

func TestScaler_Errors(t *testing.T) {
	df := frameFromRecords(t, [][]string{
		{"age", "name"},
		{"10", "x"},
	})

	tests := []struct {
		name   string
		scaler Scaler
	}{
		{name: "missing method", scaler: Scaler{Columns: []string{"age"}}},
		{name: "unknown method", scaler: Scaler{Columns: []string{"age"}, Method: "log"}},
		{name: "non numeric column", scaler: Scaler{Columns: []string{"name"}, Method: ScaleMinMax}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.scaler.Apply(df)
			assert.Error(t, err)
		})
	}
}
