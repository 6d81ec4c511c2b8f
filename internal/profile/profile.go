package profile

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/stat"

	"prepcli/internal/dataset"
)

// ColumnStats summarizes a single column. The numeric summary fields
// are pointers so that columns without any usable values marshal as
// null instead of a misleading zero.
type ColumnStats struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Count   int      `json:"count"`
	Nulls   int      `json:"nulls"`
	Unique  int      `json:"unique"`
	Top     string   `json:"top,omitempty"`
	TopFreq int      `json:"top_freq,omitempty"`
	Mean    *float64 `json:"mean,omitempty"`
	Std     *float64 `json:"std,omitempty"`
	Min     *float64 `json:"min,omitempty"`
	Q25     *float64 `json:"q25,omitempty"`
	Median  *float64 `json:"median,omitempty"`
	Q75     *float64 `json:"q75,omitempty"`
	Max     *float64 `json:"max,omitempty"`
}

// Profile is the full report for a dataset.
type Profile struct {
	Dataset     string        `json:"dataset"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	Rows        int           `json:"rows"`
	Cols        int           `json:"cols"`
	Columns     []ColumnStats `json:"columns"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// Profiler computes dataset profiles.
type Profiler struct {
	logger *slog.Logger
}

// NewProfiler creates a profiler.
func NewProfiler(logger *slog.Logger) *Profiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Profiler{logger: logger.With(slog.String("component", "profiler"))}
}

// Profile builds the full report for a dataset, covering every column.
func (p *Profiler) Profile(ctx context.Context, ds *dataset.Dataset) (*Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	df := ds.Frame
	names := df.Names()
	types := df.Types()

	columns := make([]ColumnStats, 0, len(names))
	for i, name := range names {
		columns = append(columns, buildColumnStats(df.Col(name), string(types[i])))
	}

	report := &Profile{
		Dataset:     ds.Name,
		Fingerprint: ds.Fingerprint,
		Rows:        df.Nrow(),
		Cols:        df.Ncol(),
		Columns:     columns,
		GeneratedAt: time.Now(),
	}

	p.logger.InfoContext(ctx, "profile generated",
		slog.String("dataset", ds.Name),
		slog.Int("rows", report.Rows),
		slog.Int("cols", report.Cols))

	return report, nil
}

// Describe returns summary statistics for the numeric columns only,
// in frame order.
func Describe(df dataframe.DataFrame) []ColumnStats {
	names := df.Names()
	types := df.Types()

	var out []ColumnStats
	for i, name := range names {
		if !isNumericType(types[i]) {
			continue
		}
		out = append(out, buildColumnStats(df.Col(name), string(types[i])))
	}
	return out
}

func buildColumnStats(col series.Series, colType string) ColumnStats {
	isNA := col.IsNaN()
	nulls := 0
	for _, na := range isNA {
		if na {
			nulls++
		}
	}

	stats := ColumnStats{
		Name:   col.Name,
		Type:   colType,
		Count:  col.Len() - nulls,
		Nulls:  nulls,
		Unique: countUnique(col, isNA),
	}

	if colType != string(series.Float) && colType != string(series.Int) {
		if value, freq := topValue(col, isNA); freq > 0 {
			stats.Top = value
			stats.TopFreq = freq
		}
		return stats
	}

	values := nonNullFloats(col)
	if len(values) == 0 {
		return stats
	}
	sort.Float64s(values)

	stats.Mean = fptr(stat.Mean(values, nil))
	stats.Std = fptr(stat.StdDev(values, nil))
	stats.Min = fptr(values[0])
	stats.Max = fptr(values[len(values)-1])
	stats.Q25 = fptr(Percentile(values, 0.25))
	stats.Median = fptr(Percentile(values, 0.5))
	stats.Q75 = fptr(Percentile(values, 0.75))

	return stats
}

// Percentile returns the pth quantile (0 to 1) of sorted values using
// linear interpolation between closest ranks, the convention pandas
// and numpy default to.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}

	h := p * float64(n-1)
	i := int(math.Floor(h))
	if i >= n-1 {
		return sorted[n-1]
	}
	if i < 0 {
		return sorted[0]
	}
	frac := h - float64(i)
	return sorted[i] + frac*(sorted[i+1]-sorted[i])
}

// nonNullFloats returns the column values as floats with missing
// entries removed.
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

func countUnique(col series.Series, isNA []bool) int {
	seen := make(map[string]struct{})
	records := col.Records()
	for i, r := range records {
		if isNA[i] {
			continue
		}
		seen[r] = struct{}{}
	}
	return len(seen)
}

// topValue returns the most frequent non-null value of a column, ties
// broken by the smaller value so the result is stable across runs.
func topValue(col series.Series, isNA []bool) (string, int) {
	counts := make(map[string]int)
	for i, r := range col.Records() {
		if isNA[i] {
			continue
		}
		counts[r]++
	}

	best := ""
	bestCount := 0
	for value, count := range counts {
		if count > bestCount || (count == bestCount && value < best) {
			best = value
			bestCount = count
		}
	}
	return best, bestCount
}

func isNumericType(t series.Type) bool {
	return t == series.Float || t == series.Int
}

// fptr boxes a float, mapping NaN to nil so reports stay JSON safe.
func fptr(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
