// Package events contains simplified event contract definitions for WebSocket
// communication between the prepcli server and its frontend.
package events

import (
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Core run message - the primary event type for pipeline progress
	MessageTypeRunSnapshot MessageType = "run:snapshot"

	// Granular run messages kept for clients that do not consume snapshots
	MessageTypeRunStatus   MessageType = "run:status"
	MessageTypeRunProgress MessageType = "run:progress"
	MessageTypeRunComplete MessageType = "run:complete"
	MessageTypeRunError    MessageType = "run:error"

	// System messages
	MessageTypeSystemStatus  MessageType = "system:status"
	MessageTypeSystemMetrics MessageType = "system:metrics"

	// Dataset messages
	MessageTypeDataRefresh MessageType = "data_update"

	// Connection messages
	MessageTypeConnect    MessageType = "connect"
	MessageTypeDisconnect MessageType = "disconnect"
	MessageTypeError      MessageType = "error"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`       // Unique message ID
	Type      MessageType `json:"type"`               // Message type
	Timestamp time.Time   `json:"timestamp"`          // Message timestamp
	TraceID   string      `json:"trace_id,omitempty"` // Request trace ID
}

// WebSocketMessage represents a complete WebSocket message
type WebSocketMessage struct {
	BaseMessage
	Data    interface{} `json:"data,omitempty"`    // Message payload
	Subtype string      `json:"subtype,omitempty"` // Legacy support
	Action  string      `json:"action,omitempty"`  // Legacy support
}

// RunSnapshot is the primary message type for all run updates.
// Each snapshot carries the full state of the run, so clients can
// rebuild their view from any single message.
type RunSnapshot struct {
	RunID       string         `json:"run_id"`
	Pipeline    string         `json:"pipeline"`
	Status      string         `json:"status"`       // pending|running|completed|failed|cancelled
	Progress    int            `json:"progress"`     // 0-100
	CurrentStep string         `json:"current_step"` // Current active step name
	Steps       []StepSnapshot `json:"steps"`        // All steps with their status
	StartedAt   time.Time      `json:"started_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
	Message     string         `json:"message,omitempty"`
}

// StepSnapshot represents the state of a single pipeline step
type StepSnapshot struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Status   string                 `json:"status"`   // pending|running|completed|failed|skipped
	Progress int                    `json:"progress"` // 0-100
	Message  string                 `json:"message,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"` // Row counts, artifact paths
}

// SubscriptionOptions represents subscription options (for protocol.go compatibility)
type SubscriptionOptions struct {
	BufferSize     int    `json:"buffer_size,omitempty"`
	MaxFrequency   int    `json:"max_frequency,omitempty"` // Max messages per second
	IncludeHistory bool   `json:"include_history,omitempty"`
	HistoryLimit   int    `json:"history_limit,omitempty"`
	Quality        string `json:"quality,omitempty"` // realtime, delayed, snapshot
}

// ErrorMessage represents an error message
type ErrorMessage struct {
	BaseMessage
	Data struct {
		Code        string      `json:"code"`
		Message     string      `json:"message"`
		Details     interface{} `json:"details,omitempty"`
		Recoverable bool        `json:"recoverable"`
		Hint        string      `json:"hint,omitempty"`
	} `json:"data"`
}

// DataRefreshEvent tells clients to re-fetch dataset listings after an
// export or archive changed the files on disk.
type DataRefreshEvent struct {
	BaseMessage
	Data struct {
		Source     string   `json:"source"` // export|archive|convert
		Components []string `json:"components"`
	} `json:"data"`
}

// SystemStatusEvent represents a system status event
type SystemStatusEvent struct {
	BaseMessage
	Data struct {
		Status     string            `json:"status"` // healthy|degraded|unhealthy
		Components map[string]string `json:"components"`
		Uptime     string            `json:"uptime"`
		Version    string            `json:"version"`
	} `json:"data"`
}

// SystemMetricsEvent represents system metrics event
type SystemMetricsEvent struct {
	BaseMessage
	Data struct {
		ActiveRuns  int       `json:"active_runs"`
		QueuedJobs  int       `json:"queued_jobs"`
		Connections int       `json:"active_connections"`
		Goroutines  int       `json:"goroutines"`
		MemoryMB    float64   `json:"memory_mb"`
		ErrorRate   float64   `json:"error_rate"`
		Timestamp   time.Time `json:"timestamp"`
	} `json:"data"`
}
