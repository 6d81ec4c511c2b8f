package exporter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected string
	}{
		{
			name:     "zero value",
			input:    0.0,
			expected: "0",
		},
		{
			name:     "positive integer",
			input:    123.0,
			expected: "123",
		},
		{
			name:     "negative integer",
			input:    -456.0,
			expected: "-456",
		},
		{
			name:     "decimal with trailing zeros removed",
			input:    123.456000,
			expected: "123.456",
		},
		{
			name:     "typical mean",
			input:    34.5,
			expected: "34.5",
		},
		{
			name:     "small decimal",
			input:    0.001234,
			expected: "0.001234",
		},
		{
			name:     "boundary before exponent form",
			input:    0.0001,
			expected: "0.0001",
		},
		{
			name:     "rounded to six significant digits",
			input:    123.456789,
			expected: "123.457",
		},
		{
			name:     "large magnitude switches to exponent form",
			input:    1000000.0,
			expected: "1e+06",
		},
		{
			name:     "large decimal in exponent form",
			input:    1234567.89,
			expected: "1.23457e+06",
		},
		{
			name:     "tiny magnitude in exponent form",
			input:    0.0000123,
			expected: "1.23e-05",
		},
		{
			name:     "NaN renders as empty cell",
			input:    math.NaN(),
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatFloat(tt.input)
			assert.Equal(t, tt.expected, result, "formatFloat(%f) = %s, want %s", tt.input, result, tt.expected)
		})
	}
}

func TestFormatFloatPtr(t *testing.T) {
	assert.Equal(t, "", formatFloatPtr(nil))

	v := 34.5
	assert.Equal(t, "34.5", formatFloatPtr(&v))
}

func TestFormatInt(t *testing.T) {
	tests := []struct {
		name     string
		input    int64
		expected string
	}{
		{
			name:     "zero value",
			input:    0,
			expected: "0",
		},
		{
			name:     "positive small integer",
			input:    123,
			expected: "123",
		},
		{
			name:     "negative small integer",
			input:    -456,
			expected: "-456",
		},
		{
			name:     "positive large integer",
			input:    9223372036854775807, // max int64
			expected: "9223372036854775807",
		},
		{
			name:     "negative large integer",
			input:    -9223372036854775808, // min int64
			expected: "-9223372036854775808",
		},
		{
			name:     "typical row count",
			input:    1000000,
			expected: "1000000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatInt(tt.input)
			assert.Equal(t, tt.expected, result, "formatInt(%d) = %s, want %s", tt.input, result, tt.expected)
		})
	}
}

// BenchmarkFormatFloat tests the performance of formatFloat
func BenchmarkFormatFloat(b *testing.B) {
	testValues := []float64{
		0.0,
		123.456789,
		-987.654321,
		1234567.890123,
		0.000001,
		999999.999999,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, val := range testValues {
			_ = formatFloat(val)
		}
	}
}
