// Package files provides file system operations and discovery utilities
// for the prep toolkit.
//
// This package contains two main components:
//
// Discovery: Provides file discovery operations such as finding dataset
// files by format, locating cleaned outputs, and matching files against
// glob patterns. It also includes utilities for filtering files by date
// range and finding the latest file.
//
// Manager: Provides basic file management operations such as copying,
// moving, archiving, and deleting files. All operations resolve against
// the configured path layout to maintain portability.
//
// Example usage:
//
//	// Create a discovery instance rooted at the data directory
//	discovery := files.NewDiscovery(paths.DataDir)
//
//	// Find all dataset files regardless of format
//	datasets, err := discovery.FindDatasetFiles("")
//
//	// Create a manager instance
//	manager := files.NewManager(paths)
//
//	// Check if file exists
//	if manager.FileExists("data/sales.csv") {
//	    // Process file
//	}
package files
