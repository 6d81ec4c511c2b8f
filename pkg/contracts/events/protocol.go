// Package events contains event contract definitions for WebSocket communication
// in the prepcli system.
package events

import (
	"encoding/json"
	"time"
)

// Protocol version
const (
	ProtocolVersion = "1.0"
	ProtocolName    = "prep-websocket-protocol"
)

// Connection states
type ConnectionState string

const (
	ConnectionStateConnecting    ConnectionState = "connecting"
	ConnectionStateConnected     ConnectionState = "connected"
	ConnectionStateDisconnecting ConnectionState = "disconnecting"
	ConnectionStateDisconnected  ConnectionState = "disconnected"
	ConnectionStateReconnecting  ConnectionState = "reconnecting"
)

// Channel types
type ChannelType string

const (
	ChannelTypeGlobal   ChannelType = "global"
	ChannelTypeRuns     ChannelType = "runs"
	ChannelTypeDatasets ChannelType = "datasets"
	ChannelTypeSystem   ChannelType = "system"
)

// Frame represents a WebSocket protocol frame
type Frame struct {
	Version   string          `json:"version"`
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Channel   string          `json:"channel,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
	Sequence  int64           `json:"sequence,omitempty"`
	TraceID   string          `json:"trace_id,omitempty"`
}

// ProtocolError represents a protocol-level error
type ProtocolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Fatal   bool   `json:"fatal"`
}

// Protocol error codes
const (
	ErrCodeInvalidFrame      = "INVALID_FRAME"
	ErrCodeInvalidChannel    = "INVALID_CHANNEL"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeMessageTooLarge   = "MESSAGE_TOO_LARGE"
	ErrCodeUnsupportedType   = "UNSUPPORTED_TYPE"
	ErrCodeProtocolViolation = "PROTOCOL_VIOLATION"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeServerError       = "SERVER_ERROR"
)

// Handshake represents the initial handshake message
type Handshake struct {
	Version      string            `json:"version"`
	ClientID     string            `json:"client_id,omitempty"`
	Capabilities []string          `json:"capabilities,omitempty"`
	UserAgent    string            `json:"user_agent,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// HandshakeResponse represents the server's handshake response
type HandshakeResponse struct {
	Success      bool              `json:"success"`
	SessionID    string            `json:"session_id,omitempty"`
	ServerTime   time.Time         `json:"server_time"`
	Heartbeat    int               `json:"heartbeat_interval"` // seconds
	Capabilities []string          `json:"capabilities,omitempty"`
	Limits       *ConnectionLimits `json:"limits,omitempty"`
	Error        *ProtocolError    `json:"error,omitempty"`
}

// ConnectionLimits represents connection limits
type ConnectionLimits struct {
	MaxMessageSize    int64 `json:"max_message_size"` // bytes
	MaxMessagesPerSec int   `json:"max_messages_per_sec"`
	MaxSubscriptions  int   `json:"max_subscriptions"`
	MaxQueueSize      int   `json:"max_queue_size"`
	IdleTimeout       int   `json:"idle_timeout"` // seconds
}

// HeartbeatMessage represents a heartbeat message
type HeartbeatMessage struct {
	Timestamp time.Time `json:"timestamp"`
	Sequence  int64     `json:"sequence"`
	Latency   int64     `json:"latency_ms,omitempty"`
}

// MetricsSnapshot represents WebSocket connection metrics
type MetricsSnapshot struct {
	SessionID        string        `json:"session_id"`
	ConnectedAt      time.Time     `json:"connected_at"`
	Duration         time.Duration `json:"duration"`
	MessagesSent     int64         `json:"messages_sent"`
	MessagesReceived int64         `json:"messages_received"`
	BytesSent        int64         `json:"bytes_sent"`
	BytesReceived    int64         `json:"bytes_received"`
	ErrorCount       int64         `json:"error_count"`
	ReconnectCount   int           `json:"reconnect_count"`
	Latency          int64         `json:"latency_ms"`
	Subscriptions    int           `json:"subscription_count"`
}
