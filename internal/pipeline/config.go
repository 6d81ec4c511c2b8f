package pipeline

import (
	"time"
)

// Config controls run execution. Execution is always strictly
// sequential, one step at a time, and a failing step fails the run
// immediately, so the knobs here are limited to timeouts and per step
// parameters.
type Config struct {
	// Per step timeouts
	StepTimeouts map[string]time.Duration `json:"step_timeouts"`

	// ManifestDir is where run manifests are written, empty to skip
	ManifestDir string `json:"manifest_dir"`

	// Custom step configurations
	StepConfigs map[string]interface{} `json:"step_configs"`
}

// NewConfig returns the default run configuration.
func NewConfig() *Config {
	return &Config{
		StepTimeouts: map[string]time.Duration{
			StepIDLoad:   DefaultLoadTimeout,
			StepIDExport: DefaultExportTimeout,
		},
		StepConfigs: make(map[string]interface{}),
	}
}

// GetStepTimeout returns the timeout for a specific step.
func (c *Config) GetStepTimeout(stepID string) time.Duration {
	if timeout, ok := c.StepTimeouts[stepID]; ok {
		return timeout
	}
	return DefaultStepTimeout
}

// SetStepTimeout sets the timeout for a specific step.
func (c *Config) SetStepTimeout(stepID string, timeout time.Duration) {
	if c.StepTimeouts == nil {
		c.StepTimeouts = make(map[string]time.Duration)
	}
	c.StepTimeouts[stepID] = timeout
}

// GetStepConfig returns the configuration for a specific step.
func (c *Config) GetStepConfig(stepID string) (interface{}, bool) {
	if c.StepConfigs == nil {
		return nil, false
	}
	config, ok := c.StepConfigs[stepID]
	return config, ok
}

// SetStepConfig sets the configuration for a specific step.
func (c *Config) SetStepConfig(stepID string, config interface{}) {
	if c.StepConfigs == nil {
		c.StepConfigs = make(map[string]interface{})
	}
	c.StepConfigs[stepID] = config
}

// ConfigBuilder provides a fluent interface for building run
// configurations.
type ConfigBuilder struct {
	config *Config
}

// NewConfigBuilder creates a new configuration builder.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		config: NewConfig(),
	}
}

// WithStepTimeout sets the timeout for a step.
func (b *ConfigBuilder) WithStepTimeout(stepID string, timeout time.Duration) *ConfigBuilder {
	b.config.SetStepTimeout(stepID, timeout)
	return b
}

// WithManifestDir sets where run manifests are written.
func (b *ConfigBuilder) WithManifestDir(dir string) *ConfigBuilder {
	b.config.ManifestDir = dir
	return b
}

// WithStepConfig sets the configuration for a step.
func (b *ConfigBuilder) WithStepConfig(stepID string, config interface{}) *ConfigBuilder {
	b.config.SetStepConfig(stepID, config)
	return b
}

// Build returns the built configuration.
func (b *ConfigBuilder) Build() *Config {
	return b.config
}
