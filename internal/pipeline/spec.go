package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"prepcli/internal/transform"
)

// Spec declares a cleaning pipeline: where the data comes from, the
// transforms to apply in order, and where the cleaned table goes.
// Source and Output are defaults that a run request can override.
type Spec struct {
	Name        string     `yaml:"name" json:"name" validate:"required"`
	Description string     `yaml:"description" json:"description,omitempty"`
	Source      string     `yaml:"source" json:"source,omitempty"`
	Output      string     `yaml:"output" json:"output,omitempty"`
	Profile     bool       `yaml:"profile" json:"profile"`
	Steps       []StepSpec `yaml:"steps" json:"steps" validate:"required,min=1,dive"`
}

// StepSpec declares one transform of a pipeline. Transform picks the
// kind, and only the fields matching that kind are read.
type StepSpec struct {
	ID        string   `yaml:"id" json:"id" validate:"required"`
	Transform string   `yaml:"transform" json:"transform" validate:"required,oneof=impute drop_nulls filter_rows convert scale encode outliers"`
	Columns   []string `yaml:"columns" json:"columns,omitempty"`

	// impute
	Strategy  string `yaml:"strategy" json:"strategy,omitempty"`
	FillValue string `yaml:"fill_value" json:"fill_value,omitempty"`

	// convert
	To     string `yaml:"to" json:"to,omitempty"`
	Strict bool   `yaml:"strict" json:"strict,omitempty"`

	// scale, encode and outliers
	Method  string `yaml:"method" json:"method,omitempty"`
	Buckets int    `yaml:"buckets" json:"buckets,omitempty"`

	// filter_rows
	Keep   []int `yaml:"keep" json:"keep,omitempty"`
	Remove []int `yaml:"remove" json:"remove,omitempty"`

	// outliers
	Action string  `yaml:"action" json:"action,omitempty"`
	K      float64 `yaml:"k" json:"k,omitempty"`
	Lower  float64 `yaml:"lower" json:"lower,omitempty"`
	Upper  float64 `yaml:"upper" json:"upper,omitempty"`
}

var specValidator = newSpecValidator()

func newSpecValidator() *validator.Validate {
	v := validator.New()

	// Report yaml field names in validation errors
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseSpec parses and validates a YAML pipeline definition. Unknown
// fields are rejected, which catches misspelled options early.
func ParseSpec(data []byte) (*Spec, error) {
	var spec Spec
	if err := yaml.UnmarshalStrict(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline spec: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// LoadSpecFile reads a pipeline definition from a YAML file. A spec
// without a name takes the file name.
func LoadSpecFile(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline spec: %w", err)
	}

	var spec Spec
	if err := yaml.UnmarshalStrict(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline spec %s: %w", path, err)
	}
	if spec.Name == "" {
		base := filepath.Base(path)
		spec.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline spec %s: %w", path, err)
	}
	return &spec, nil
}

// Validate checks the spec structure, step ID uniqueness, and that
// every declared transform builds and validates.
func (s *Spec) Validate() error {
	if err := specValidator.Struct(s); err != nil {
		return fmt.Errorf("invalid pipeline spec: %s", formatValidationError(err))
	}

	seen := make(map[string]bool, len(s.Steps))
	for _, step := range s.Steps {
		if reservedStepIDs[step.ID] {
			return fmt.Errorf("pipeline %s: step ID %s is reserved", s.Name, step.ID)
		}
		if seen[step.ID] {
			return fmt.Errorf("pipeline %s: duplicate step ID %s", s.Name, step.ID)
		}
		seen[step.ID] = true

		tr, err := step.BuildTransform()
		if err != nil {
			return fmt.Errorf("pipeline %s: step %s: %w", s.Name, step.ID, err)
		}
		if err := tr.Validate(); err != nil {
			return fmt.Errorf("pipeline %s: step %s: %w", s.Name, step.ID, err)
		}
	}
	return nil
}

// reservedStepIDs are taken by the built in steps; a transform with one
// of these IDs would shadow them in manifests and progress reports.
var reservedStepIDs = map[string]bool{
	StepIDLoad:    true,
	StepIDClean:   true,
	StepIDProfile: true,
	StepIDExport:  true,
}

// BuildTransform constructs the declared transform.
func (st *StepSpec) BuildTransform() (transform.Transform, error) {
	switch st.Transform {
	case "impute":
		return transform.Imputer{
			Columns:   st.Columns,
			Strategy:  transform.Strategy(st.Strategy),
			FillValue: st.FillValue,
		}, nil
	case "drop_nulls":
		return transform.DropNulls{Columns: st.Columns}, nil
	case "filter_rows":
		return transform.RowFilter{Keep: st.Keep, Remove: st.Remove}, nil
	case "convert":
		return transform.TypeConverter{
			Columns: st.Columns,
			To:      st.To,
			Strict:  st.Strict,
		}, nil
	case "scale":
		return transform.Scaler{
			Columns: st.Columns,
			Method:  transform.ScaleMethod(st.Method),
		}, nil
	case "encode":
		return transform.Encoder{
			Columns: st.Columns,
			Method:  transform.EncodeMethod(st.Method),
			Buckets: st.Buckets,
		}, nil
	case "outliers":
		return transform.OutlierFilter{
			Columns: st.Columns,
			Method:  transform.OutlierMethod(st.Method),
			Action:  transform.OutlierAction(st.Action),
			K:       st.K,
			Lower:   st.Lower,
			Upper:   st.Upper,
		}, nil
	default:
		return nil, fmt.Errorf("unknown transform: %s", st.Transform)
	}
}

func formatValidationError(err error) string {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}

	parts := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		parts = append(parts, fmt.Sprintf("%s failed %s", fieldErr.Field(), fieldErr.Tag()))
	}
	return strings.Join(parts, "; ")
}

// DefaultPipelineName names the built in cleaning recipe.
const DefaultPipelineName = "default"

// ErrPipelineNotFound is returned when no pipeline matches a name.
var ErrPipelineNotFound = fmt.Errorf("pipeline not found")

// DefaultCleanSpec is the standard cleaning recipe applied when a run
// names no pipeline: numeric gaps fill with the column mean,
// categorical gaps with the most frequent value, and any row still
// incomplete afterwards is dropped.
func DefaultCleanSpec(name string) *Spec {
	return &Spec{
		Name:        name,
		Description: "Mean and mode imputation followed by dropping incomplete rows",
		Profile:     true,
		Steps: []StepSpec{
			{ID: "impute-numeric", Transform: "impute", Strategy: string(transform.StrategyMean)},
			{ID: "impute-categorical", Transform: "impute", Strategy: string(transform.StrategyMode)},
			{ID: "drop-incomplete", Transform: "drop_nulls"},
		},
	}
}

// SpecStore holds named pipeline specs. It seeds itself with the
// default cleaning recipe so a bare install can run immediately.
type SpecStore struct {
	mu    sync.RWMutex
	specs map[string]*Spec
}

// NewSpecStore creates a spec store with the default recipe registered.
func NewSpecStore() *SpecStore {
	store := &SpecStore{specs: make(map[string]*Spec)}
	store.specs[DefaultPipelineName] = DefaultCleanSpec(DefaultPipelineName)
	return store
}

// Register validates a spec and adds it to the store, replacing any
// spec with the same name.
func (s *SpecStore) Register(spec *Spec) error {
	if spec == nil {
		return fmt.Errorf("cannot register nil spec")
	}
	if err := spec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.specs[spec.Name] = spec
	return nil
}

// Resolve returns the spec registered under the given name.
func (s *SpecStore) Resolve(name string) (*Spec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	spec, ok := s.specs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPipelineNotFound, name)
	}
	return spec, nil
}

// List returns the registered specs sorted by name.
func (s *SpecStore) List() []*Spec {
	s.mu.RLock()
	defer s.mu.RUnlock()

	specs := make([]*Spec, 0, len(s.specs))
	for _, spec := range s.specs {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// LoadDir registers every .yaml and .yml file in dir and returns how
// many loaded. A missing directory is not an error.
func (s *SpecStore) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read pipeline directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		spec, err := LoadSpecFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return loaded, err
		}
		if err := s.Register(spec); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}
