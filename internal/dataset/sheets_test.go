package dataset

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prepcli/internal/config"
)

func TestSheetsLoader_Disabled(t *testing.T) {
	loader := NewLoader(testLoaderConfig(), nil)
	sheetsLoader := NewSheetsLoader(config.SheetsConfig{Enabled: false}, loader, nil)

	_, err := sheetsLoader.Load(context.Background(), "sheet-id", "Sheet1!A1:B10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")
}

func TestSheetsLoader_MissingArguments(t *testing.T) {
	loader := NewLoader(testLoaderConfig(), nil)
	sheetsLoader := NewSheetsLoader(config.SheetsConfig{Enabled: true, APIKey: "key"}, loader, nil)

	_, err := sheetsLoader.Load(context.Background(), "", "")
	assert.Error(t, err)
}

func TestRecordsFromValues(t *testing.T) {
	values := [][]interface{}{
		{"name", "score", "active"},
		{"alice", float64(10), true},
		{"bob", float64(2.5), false},
		{"carol"},
	}

	records := recordsFromValues(values)

	assert.Equal(t, [][]string{
		{"name", "score", "active"},
		{"alice", "10", "true"},
		{"bob", "2.5", "false"},
		{"carol", "", ""},
	}, records)
}

func TestFormatCellValue(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{name: "string", in: "hello", want: "hello"},
		{name: "whole float", in: float64(42), want: "42"},
		{name: "fractional float", in: 3.14, want: "3.14"},
		{name: "bool", in: true, want: "true"},
		{name: "nil", in: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatCellValue(tt.in))
		})
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("hello"))
	b := Fingerprint([]byte("hello"))
	c := Fingerprint([]byte("world"))

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestFingerprintRecords(t *testing.T) {
	records := [][]string{
		{"a", "b"},
		{"1", "2"},
	}

	a := FingerprintRecords(records)
	b := FingerprintRecords(records)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)

	// A single changed cell changes the digest
	changed := [][]string{
		{"a", "b"},
		{"1", "3"},
	}
	assert.NotEqual(t, a, FingerprintRecords(changed))
}
