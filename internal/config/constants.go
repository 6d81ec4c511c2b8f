package config

import "time"

// Application constants for the prep toolkit
const (
	AppName    = "prepcli"
	AppVersion = "1.4.0"

	// EnvPrefix is the envconfig prefix: PREP_SERVER_PORT, PREP_PATHS_DATA_DIR, ...
	EnvPrefix = "PREP"

	// Default directory layout (relative to the working directory)
	DefaultDataDir    = "data"
	DefaultOutputDir  = "data/cleaned"
	DefaultReportsDir = "data/reports"
	DefaultLogsDir    = "logs"

	// Rate limiting
	DefaultRateLimit = 100
	DefaultBurstSize = 50

	// Network timeouts
	DefaultHTTPTimeout  = 30 * time.Second
	SheetsFetchTimeout  = 45 * time.Second
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second

	// WebSocket buffer sizes
	WebSocketReadBufferSize  = 1024
	WebSocketWriteBufferSize = 1024

	// Log settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
	MaxLogFileSize   = 100 * 1024 * 1024 // 100MB

	// Manifest file written next to run reports
	ManifestFileName = "manifest.json"
)

// TabularExtensions lists the file extensions the loader accepts, lower case.
var TabularExtensions = []string{".csv", ".tsv", ".xlsx"}

// DefaultNAValues returns the cell contents treated as missing on load.
// Empty string first: delimited files mark absent fields that way.
func DefaultNAValues() []string {
	return []string{"", "NA", "N/A", "NaN", "nan", "null", "NULL", "<nil>"}
}
