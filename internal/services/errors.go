package services

import "errors"

// Data service errors
var (
	// Dataset errors
	ErrNoDatasetsFound = errors.New("no datasets found")
	ErrDatasetNotFound = errors.New("dataset not found")
	ErrInvalidDataset  = errors.New("invalid dataset name")

	// Profile errors
	ErrNoProfileFound = errors.New("no profile report found")

	// File errors
	ErrNoFilesFound    = errors.New("no files found")
	ErrFileNotFound    = errors.New("file not found")
	ErrInvalidFileType = errors.New("invalid file type")

	// Run errors
	ErrRunNotFound   = errors.New("run not found")
	ErrRunRunning    = errors.New("run already running")
	ErrRunNotRunning = errors.New("run not running")
	ErrInvalidStep   = errors.New("invalid pipeline step")

	// WebSocket errors
	ErrWebSocketUpgrade = errors.New("websocket upgrade failed")
	ErrWebSocketClosed  = errors.New("websocket connection closed")

	// General errors
	ErrInvalidInput       = errors.New("invalid input")
	ErrOperationTimeout   = errors.New("operation timed out")
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
)
