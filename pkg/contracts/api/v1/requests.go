// Package api contains API contract definitions for the prepcli server.
// Version v1 represents the current stable API version.
package api

import (
	"prepcli/pkg/contracts/domain"
)

// Common request parameters

// PaginationRequest represents common pagination parameters
type PaginationRequest struct {
	Page     int    `json:"page" query:"page" validate:"min=1"`
	PageSize int    `json:"page_size" query:"page_size" validate:"min=1,max=100"`
	Sort     string `json:"sort" query:"sort" validate:"omitempty,oneof=asc desc"`
	SortBy   string `json:"sort_by" query:"sort_by"`
}

// DateRangeRequest represents a date range in requests
type DateRangeRequest struct {
	From string `json:"from" query:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string `json:"to" query:"to" validate:"omitempty,datetime=2006-01-02"`
}

// Run API Requests

// RunStartRequest represents a request to start a pipeline run
type RunStartRequest struct {
	Pipeline   string                 `json:"pipeline,omitempty"`
	Mode       string                 `json:"mode" validate:"required,oneof=full partial resume"`
	Source     string                 `json:"source,omitempty"`
	OutputDir  string                 `json:"output_dir,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// RunStopRequest represents a request to stop a run
type RunStopRequest struct {
	RunID string `json:"run_id" param:"id" validate:"required"`
	Force bool   `json:"force" query:"force"`
}

// RunListRequest represents a request to list runs
type RunListRequest struct {
	PaginationRequest
	Status   string `json:"status" query:"status" validate:"omitempty,oneof=pending running completed failed cancelled"`
	Pipeline string `json:"pipeline" query:"pipeline"`
	DateFrom string `json:"date_from" query:"date_from" validate:"omitempty,datetime=2006-01-02"`
	DateTo   string `json:"date_to" query:"date_to" validate:"omitempty,datetime=2006-01-02"`
}

// Dataset API Requests

// DatasetListRequest represents a request to list datasets
type DatasetListRequest struct {
	PaginationRequest
	Filter domain.DatasetFilter `json:"filter,omitempty"`
}

// DatasetDetailRequest represents a request for dataset details
type DatasetDetailRequest struct {
	Name        string `json:"name" param:"name" validate:"required,dataset"`
	PreviewRows int    `json:"preview_rows" query:"preview_rows" validate:"omitempty,min=1,max=100"`
}

// DatasetConvertRequest represents a request to convert a dataset between
// tabular formats
type DatasetConvertRequest struct {
	Name   string `json:"name" validate:"required,dataset"`
	Target string `json:"target" validate:"required,oneof=csv tsv xlsx"`
}

// DatasetArchiveRequest represents a request to archive a dataset file
type DatasetArchiveRequest struct {
	Name string `json:"name" validate:"required,dataset"`
}

// DatasetDownloadRequest represents a request to download a file
type DatasetDownloadRequest struct {
	Type     string `json:"type" param:"type" validate:"required,oneof=data output reports"`
	Filename string `json:"filename" param:"filename" validate:"required"`
}

// Pipeline spec API Requests

// SpecRegisterRequest represents a request to register a pipeline spec
type SpecRegisterRequest struct {
	Spec   string `json:"spec" validate:"required"`
	Format string `json:"format" validate:"omitempty,oneof=yaml json"`
}

// Profile API Requests

// ProfileRequest represents a request to profile a dataset
type ProfileRequest struct {
	Name         string `json:"name" param:"name" validate:"required,dataset"`
	Correlations bool   `json:"correlations" query:"correlations"`
}

// WebSocket API Requests

// WebSocketSubscribeRequest represents a WebSocket subscription request
type WebSocketSubscribeRequest struct {
	Type     string                 `json:"type" validate:"required,oneof=run dataset system all"`
	Channels []string               `json:"channels" validate:"required,min=1"`
	Filters  map[string]interface{} `json:"filters,omitempty"`
}

// WebSocketUnsubscribeRequest represents a WebSocket unsubscription request
type WebSocketUnsubscribeRequest struct {
	Type     string   `json:"type" validate:"required,oneof=run dataset system all"`
	Channels []string `json:"channels,omitempty"`
}

// Health API Requests

// HealthCheckRequest represents a health check request
type HealthCheckRequest struct {
	Verbose bool     `json:"verbose" query:"verbose"`
	Include []string `json:"include" query:"include" validate:"omitempty,dive,oneof=data pipeline websocket services"`
}

// System API Requests

// SystemConfigRequest represents a system configuration request
type SystemConfigRequest struct {
	Section string `json:"section" query:"section" validate:"omitempty,oneof=general logging paths loader"`
}

// SystemLogsRequest represents a system logs request
type SystemLogsRequest struct {
	PaginationRequest
	Level     string           `json:"level" query:"level" validate:"omitempty,oneof=debug info warn error"`
	DateRange DateRangeRequest `json:"date_range,omitempty"`
	Component string           `json:"component" query:"component"`
	TraceID   string           `json:"trace_id" query:"trace_id"`
}
