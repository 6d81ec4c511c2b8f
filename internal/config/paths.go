package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths holds the fully resolved directory layout for a run.
type Paths struct {
	WorkingDir string
	DataDir    string
	OutputDir  string
	ReportsDir string
	LogsDir    string
}

// ResolvePaths resolves the configured directories to absolute paths
// against the current working directory.
func (c *Config) ResolvePaths() (*Paths, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to determine working directory: %w", err)
	}

	p := &Paths{
		WorkingDir: wd,
		DataDir:    resolveDir(wd, c.Paths.DataDir),
		OutputDir:  resolveDir(wd, c.Paths.OutputDir),
		ReportsDir: resolveDir(wd, c.Paths.ReportsDir),
		LogsDir:    resolveDir(wd, c.Paths.LogsDir),
	}
	return p, nil
}

func resolveDir(base, dir string) string {
	if dir == "" {
		return base
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(base, dir)
}

// EnsureDirectories creates every configured directory that does not exist yet.
func (c *Config) EnsureDirectories() error {
	p, err := c.ResolvePaths()
	if err != nil {
		return err
	}
	return p.EnsureDirectories()
}

// EnsureDirectories creates the resolved directories with 0755 permissions.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.DataDir, p.OutputDir, p.ReportsDir, p.LogsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// GetDataDir returns the resolved data directory path
func (c *Config) GetDataDir() string {
	p, err := c.ResolvePaths()
	if err != nil {
		return c.Paths.DataDir
	}
	return p.DataDir
}

// GetOutputDir returns the resolved output directory path
func (c *Config) GetOutputDir() string {
	p, err := c.ResolvePaths()
	if err != nil {
		return c.Paths.OutputDir
	}
	return p.OutputDir
}

// GetReportsDir returns the resolved reports directory path
func (c *Config) GetReportsDir() string {
	p, err := c.ResolvePaths()
	if err != nil {
		return c.Paths.ReportsDir
	}
	return p.ReportsDir
}

// GetLogsDir returns the resolved logs directory path
func (c *Config) GetLogsDir() string {
	p, err := c.ResolvePaths()
	if err != nil {
		return c.Paths.LogsDir
	}
	return p.LogsDir
}
