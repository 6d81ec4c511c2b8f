// Package config provides centralized configuration management for the prep
// toolkit. It handles loading configuration from multiple sources, validation,
// and a type-safe API for accessing configuration values.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. A YAML configuration file (prep.yaml or configs/prep.yaml)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern PREP_* for namespacing:
//
//	PREP_SERVER_PORT=8080
//	PREP_PATHS_DATA_DIR=data
//	PREP_LOADER_DELIMITER=;
//	PREP_LOGGING_LEVEL=debug
//
// # Path Management
//
// The Paths type resolves the data, output, reports and logs directories to
// absolute paths against the working directory and creates them on demand:
//
//	paths, err := cfg.ResolvePaths()
//	err = paths.EnsureDirectories()
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
