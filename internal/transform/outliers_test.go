package transform

import (
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outlierFrame(t *testing.T) dataframe.DataFrame {
	t.Helper()
	return frameFromRecords(t, [][]string{
		{"id", "value"},
		{"0", "1"},
		{"1", "2"},
		{"2", "3"},
		{"3", "4"},
		{"4", "100"},
	})
}

func TestOutlierFilter_IQRClip(t *testing.T) {
	df := outlierFrame(t)

	filter := OutlierFilter{Columns: []string{"value"}, Method: OutlierIQR, Action: ActionClip}
	out, err := filter.Apply(df)
	require.NoError(t, err)

	// Quartiles are 2 and 4, so the upper fence sits at 4 + 1.5*2 = 7
	values := out.Col("value").Float()
	expected := []float64{1, 2, 3, 4, 7}
	for i, want := range expected {
		assert.InDelta(t, want, values[i], 1e-9)
	}
}

func TestOutlierFilter_IQRDrop(t *testing.T) {
	df := outlierFrame(t)

	filter := OutlierFilter{Columns: []string{"value"}, Method: OutlierIQR, Action: ActionDrop}
	out, err := filter.Apply(df)
	require.NoError(t, err)

	assert.Equal(t, 4, out.Nrow())
	assert.NotContains(t, out.Col("id").Records(), "4")
}

func TestOutlierFilter_WiderFactorKeepsEverything(t *testing.T) {
	df := outlierFrame(t)

	filter := OutlierFilter{Columns: []string{"value"}, Method: OutlierIQR, Action: ActionDrop, K: 100}
	out, err := filter.Apply(df)
	require.NoError(t, err)
	assert.Equal(t, 5, out.Nrow())
}

func TestOutlierFilter_PercentileClip(t *testing.T) {
	df := frameFromRecords(t, [][]string{
		{"value"},
		{"1"},
		{"2"},
		{"3"},
		{"4"},
		{"5"},
	})

	filter := OutlierFilter{
		Columns: []string{"value"},
		Method:  OutlierPercentile,
		Action:  ActionClip,
		Lower:   0,
		Upper:   0.5,
	}
	out, err := filter.Apply(df)
	require.NoError(t, err)

	values := out.Col("value").Float()
	expected := []float64{1, 2, 3, 3, 3}
	for i, want := range expected {
		assert.InDelta(t, want, values[i], 1e-9)
	}
}

func TestOutlierFilter_MissingValuesAreNotOutliers(t *testing.T) {
	df := frameFromRecords(t, [][]string{
		{"id", "value"},
		{"0", "1"},
		{"1", "2"},
		{"2", "3"},
		{"3", "4"},
		{"4", "100"},
		{"5", "NaN"},
	})

	filter := OutlierFilter{Columns: []string{"value"}, Method: OutlierIQR, Action: ActionDrop}
	out, err := filter.Apply(df)
	require.NoError(t, err)

	ids := out.Col("id").Records()
	assert.NotContains(t, ids, "4")
	assert.Contains(t, ids, "5")
}

func TestOutlierFilter_TooFewValuesIsNoOp(t *testing.T) {
	df := frameFromRecords(t, [][]string{
		{"value"},
		{"42"},
	})

	filter := OutlierFilter{Columns: []string{"value"}, Method: OutlierIQR, Action: ActionClip}
	out, err := filter.Apply(df)
	require.NoError(t, err)
	assert.Equal(t, df.Records(), out.Records())
}

func TestOutlierFilter_Validate(t *testing.T) {
	tests := []struct {
		name   string
		filter OutlierFilter
		ok     bool
	}{
		{
			name:   "iqr clip",
			filter: OutlierFilter{Method: OutlierIQR, Action: ActionClip},
			ok:     true,
		},
		{
			name:   "percentile drop",
			filter: OutlierFilter{Method: OutlierPercentile, Action: ActionDrop, Lower: 0.05, Upper: 0.95},
			ok:     true,
		},
		{
			name:   "missing method",
			filter: OutlierFilter{Action: ActionClip},
		},
		{
			name:   "unknown method",
			filter: OutlierFilter{Method: "zscore", Action: ActionClip},
		},
		{
			name:   "negative factor",
			filter: OutlierFilter{Method: OutlierIQR, Action: ActionClip, K: -1},
		},
		{
			name:   "inverted percentile bounds",
			filter: OutlierFilter{Method: OutlierPercentile, Action: ActionClip, Lower: 0.9, Upper: 0.1},
		},
		{
			name:   "upper percentile above one",
			filter: OutlierFilter{Method: OutlierPercentile, Action: ActionClip, Lower: 0.1, Upper: 1.5},
		},
		{
			name:   "missing action",
			filter: OutlierFilter{Method: OutlierIQR},
		},
		{
			name:   "unknown action",
			filter: OutlierFilter{Method: OutlierIQR, Action: "flag"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
