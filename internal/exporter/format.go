package exporter

import (
	"math"
	"strconv"
)

// formatFloat formats a statistic with six significant digits, enough
// to compare distributions without drowning the table in digits
func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	return strconv.FormatFloat(f, 'g', 6, 64)
}

// formatFloatPtr formats an optional statistic, empty when absent
func formatFloatPtr(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

// formatInt formats an int64 value for CSV output
func formatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}
