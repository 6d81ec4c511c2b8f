package transform

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"golang.org/x/crypto/blake2b"

	apperrors "prepcli/internal/errors"
	"prepcli/internal/profile"
)

// EncodeMethod selects how an Encoder turns categories into numbers.
type EncodeMethod string

const (
	EncodeLabel     EncodeMethod = "label"
	EncodeOneHot    EncodeMethod = "onehot"
	EncodeFrequency EncodeMethod = "frequency"
	EncodeHashing   EncodeMethod = "hashing"
)

// Encoder converts categorical columns to numeric ones. With no columns
// configured it encodes every string column. Missing values stay
// missing, except under one hot encoding where they produce an all zero
// row, the way get_dummies does.
type Encoder struct {
	Columns []string
	Method  EncodeMethod
	Buckets int
}

func (e Encoder) Name() string { return "encode" }

func (e Encoder) Validate() error {
	switch e.Method {
	case EncodeLabel, EncodeOneHot, EncodeFrequency:
		return nil
	case EncodeHashing:
		if e.Buckets <= 0 {
			return apperrors.NewAppValidationError("hashing encoder requires a positive bucket count")
		}
		return nil
	case "":
		return apperrors.NewAppValidationError("encoding method is required")
	default:
		return apperrors.NewAppValidationError(
			fmt.Sprintf("unknown encoding method: %s", e.Method))
	}
}

func (e Encoder) Apply(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	out, _, err := e.ApplyWithMappings(df)
	return out, err
}

// ApplyWithMappings encodes and also reports, per column, the mapping
// from original value to encoded number. For one hot encoding the
// number is the position of the value's indicator column; for hashing
// it is the bucket.
func (e Encoder) ApplyWithMappings(df dataframe.DataFrame) (dataframe.DataFrame, map[string]map[string]float64, error) {
	if err := e.Validate(); err != nil {
		return df, nil, err
	}

	columns := e.Columns
	if len(columns) == 0 {
		columns = profile.ObjectColumns(df)
	} else if _, err := resolveColumns(df, columns, false); err != nil {
		return df, nil, err
	}

	mappings := make(map[string]map[string]float64, len(columns))
	out := df
	for _, name := range columns {
		col := out.Col(name)

		var (
			mapping map[string]float64
			err     error
		)
		switch e.Method {
		case EncodeOneHot:
			out, mapping, err = e.encodeOneHot(out, col)
		case EncodeFrequency:
			out, mapping, err = e.encodeFrequency(out, col)
		case EncodeHashing:
			out, mapping, err = e.encodeHashing(out, col)
		default:
			out, mapping, err = e.encodeLabel(out, col)
		}
		if err != nil {
			return df, nil, err
		}
		mappings[name] = mapping
	}
	return out, mappings, nil
}

// encodeLabel assigns each distinct value its rank in sorted order, so
// the mapping is stable across runs regardless of row order.
func (e Encoder) encodeLabel(df dataframe.DataFrame, col series.Series) (dataframe.DataFrame, map[string]float64, error) {
	values := distinctValues(col)
	mapping := make(map[string]float64, len(values))
	for i, v := range values {
		mapping[v] = float64(i)
	}

	records := col.Records()
	isNA := col.IsNaN()
	encoded := make([]string, len(records))
	for i, r := range records {
		if isNA[i] {
			encoded[i] = "NaN"
			continue
		}
		encoded[i] = strconv.Itoa(int(mapping[r]))
	}

	out, err := mutateColumn(df, series.New(encoded, series.Int, col.Name))
	if err != nil {
		return df, nil, err
	}
	return out, mapping, nil
}

// encodeOneHot appends an indicator column per distinct value and drops
// the original column.
func (e Encoder) encodeOneHot(df dataframe.DataFrame, col series.Series) (dataframe.DataFrame, map[string]float64, error) {
	values := distinctValues(col)
	mapping := make(map[string]float64, len(values))

	records := col.Records()
	isNA := col.IsNaN()

	out := df
	for pos, value := range values {
		mapping[value] = float64(pos)

		indicator := make([]int, len(records))
		for i, r := range records {
			if !isNA[i] && r == value {
				indicator[i] = 1
			}
		}

		name := fmt.Sprintf("%s_%s", col.Name, value)
		var err error
		out, err = mutateColumn(out, series.New(indicator, series.Int, name))
		if err != nil {
			return df, nil, err
		}
	}

	out = dropColumns(out, col.Name)
	if out.Err != nil {
		return df, nil, apperrors.NewTransformError(
			fmt.Sprintf("failed to drop encoded column %s", col.Name), out.Err)
	}
	return out, mapping, nil
}

// encodeFrequency replaces each value with its share of the non-null rows.
func (e Encoder) encodeFrequency(df dataframe.DataFrame, col series.Series) (dataframe.DataFrame, map[string]float64, error) {
	counts := make(map[string]int)
	total := 0

	records := col.Records()
	isNA := col.IsNaN()
	for i, r := range records {
		if isNA[i] {
			continue
		}
		counts[r]++
		total++
	}
	if total == 0 {
		return df, nil, apperrors.NewTransformError(
			fmt.Sprintf("column %s has no values to encode", col.Name), nil)
	}

	mapping := make(map[string]float64, len(counts))
	for value, count := range counts {
		mapping[value] = float64(count) / float64(total)
	}

	encoded := make([]float64, len(records))
	for i, r := range records {
		if isNA[i] {
			encoded[i] = math.NaN()
			continue
		}
		encoded[i] = mapping[r]
	}

	out, err := mutateColumn(df, series.New(encoded, series.Float, col.Name))
	if err != nil {
		return df, nil, err
	}
	return out, mapping, nil
}

// encodeHashing buckets each value by its BLAKE2b digest, which keeps
// cardinality bounded without storing a dictionary.
func (e Encoder) encodeHashing(df dataframe.DataFrame, col series.Series) (dataframe.DataFrame, map[string]float64, error) {
	mapping := make(map[string]float64)

	records := col.Records()
	isNA := col.IsNaN()
	encoded := make([]string, len(records))
	for i, r := range records {
		if isNA[i] {
			encoded[i] = "NaN"
			continue
		}
		bucket, ok := mapping[r]
		if !ok {
			bucket = float64(hashBucket(r, e.Buckets))
			mapping[r] = bucket
		}
		encoded[i] = strconv.Itoa(int(bucket))
	}

	out, err := mutateColumn(df, series.New(encoded, series.Int, col.Name))
	if err != nil {
		return df, nil, err
	}
	return out, mapping, nil
}

func hashBucket(value string, buckets int) int {
	sum := blake2b.Sum256([]byte(value))
	return int(binary.BigEndian.Uint64(sum[:8]) % uint64(buckets))
}

// distinctValues returns the sorted distinct non-null values of a column.
func distinctValues(col series.Series) []string {
	seen := make(map[string]bool)
	isNA := col.IsNaN()
	for i, r := range col.Records() {
		if isNA[i] || seen[r] {
			continue
		}
		seen[r] = true
	}

	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

func mutateColumn(df dataframe.DataFrame, s series.Series) (dataframe.DataFrame, error) {
	if s.Err != nil {
		return df, apperrors.NewTransformError(
			fmt.Sprintf("failed to build column %s", s.Name), s.Err)
	}
	out := df.Mutate(s)
	if out.Err != nil {
		return df, apperrors.NewTransformError(
			fmt.Sprintf("failed to replace column %s", s.Name), out.Err)
	}
	return out, nil
}
