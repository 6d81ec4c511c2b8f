package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"log/slog"

	"prepcli/internal/config"
	"prepcli/internal/services"
	ws "prepcli/internal/websocket"
)

// Tests use slog directly instead of services.Logger interface

func newHealthTestService(t *testing.T) *services.HealthService {
	t.Helper()

	// Point every managed directory at a fresh temp dir
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.ReportsDir = filepath.Join(base, "reports")
	cfg.Paths.LogsDir = filepath.Join(base, "logs")
	require.NoError(t, cfg.EnsureDirectories())

	slogLogger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// Create minimal dependencies
	webSocketHub := ws.NewHub(slogLogger)
	runService, err := services.NewRunService(cfg, webSocketHub, nil, slogLogger)
	require.NoError(t, err)

	paths, err := cfg.ResolvePaths()
	require.NoError(t, err)

	return services.NewHealthService(
		"v1.0.0-test",
		"https://github.com/example/repo",
		paths,
		runService,
		webSocketHub,
		slogLogger,
	)
}

func TestHealthHandler_BasicHealthCheck(t *testing.T) {
	slogLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHealthHandler(newHealthTestService(t), slogLogger)

	tests := []struct {
		name           string
		endpoint       string
		handlerFunc    http.HandlerFunc
		expectedStatus int
		checkResponse  func(t *testing.T, body []byte)
	}{
		{
			name:           "health check endpoint",
			endpoint:       "/api/health",
			handlerFunc:    handler.HealthCheck,
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, body []byte) {
				var response map[string]interface{}
				err := json.Unmarshal(body, &response)
				assert.NoError(t, err)
				assert.Equal(t, "ok", response["status"])
				assert.Contains(t, response, "timestamp")
				assert.Equal(t, "v1.0.0-test", response["version"])
			},
		},
		{
			name:           "readiness check endpoint",
			endpoint:       "/api/health/ready",
			handlerFunc:    handler.ReadinessCheck,
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, body []byte) {
				var response map[string]interface{}
				err := json.Unmarshal(body, &response)
				assert.NoError(t, err)
				// All dependencies are wired, so the service is ready
				assert.Equal(t, "ready", response["status"])
				assert.Contains(t, response, "services")
			},
		},
		{
			name:           "liveness check endpoint",
			endpoint:       "/api/health/live",
			handlerFunc:    handler.LivenessCheck,
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, body []byte) {
				var response map[string]interface{}
				err := json.Unmarshal(body, &response)
				assert.NoError(t, err)
				assert.Equal(t, "alive", response["status"])
				assert.Contains(t, response, "runtime")
			},
		},
		{
			name:           "version endpoint",
			endpoint:       "/api/version",
			handlerFunc:    handler.Version,
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, body []byte) {
				var response map[string]interface{}
				err := json.Unmarshal(body, &response)
				assert.NoError(t, err)
				assert.Equal(t, "v1.0.0-test", response["version"])
				assert.Contains(t, response, "go_version")
				assert.Contains(t, response, "os")
				assert.Contains(t, response, "arch")
			},
		},
		{
			name:           "stats endpoint",
			endpoint:       "/api/health/stats",
			handlerFunc:    handler.Stats,
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, body []byte) {
				var response map[string]interface{}
				err := json.Unmarshal(body, &response)
				assert.NoError(t, err)
				assert.Contains(t, response, "uptime_seconds")
				assert.Contains(t, response, "go_version")
				assert.Contains(t, response, "websocket_clients")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Create request
			req := httptest.NewRequest("GET", tt.endpoint, nil)
			rec := httptest.NewRecorder()

			// Execute handler
			tt.handlerFunc(rec, req)

			// Assert status code
			assert.Equal(t, tt.expectedStatus, rec.Code, "Expected status %d but got %d", tt.expectedStatus, rec.Code)

			// Check response if provided
			if tt.checkResponse != nil {
				tt.checkResponse(t, rec.Body.Bytes())
			}
		})
	}
}

func TestHealthHandler_HandlerMethods(t *testing.T) {
	slogLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHealthHandler(newHealthTestService(t), slogLogger)

	// Test that all handler methods exist and don't panic
	t.Run("HealthCheck method exists", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/health", nil)
		rec := httptest.NewRecorder()
		assert.NotPanics(t, func() {
			handler.HealthCheck(rec, req)
		})
	})

	t.Run("ReadinessCheck method exists", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/health/ready", nil)
		rec := httptest.NewRecorder()
		assert.NotPanics(t, func() {
			handler.ReadinessCheck(rec, req)
		})
	})

	t.Run("LivenessCheck method exists", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/health/live", nil)
		rec := httptest.NewRecorder()
		assert.NotPanics(t, func() {
			handler.LivenessCheck(rec, req)
		})
	})

	t.Run("Version method exists", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/version", nil)
		rec := httptest.NewRecorder()
		assert.NotPanics(t, func() {
			handler.Version(rec, req)
		})
	})

	t.Run("Stats method exists", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/health/stats", nil)
		rec := httptest.NewRecorder()
		assert.NotPanics(t, func() {
			handler.Stats(rec, req)
		})
	})
}

func TestHealthHandler_TimingAndUptime(t *testing.T) {
	slogLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	healthService := newHealthTestService(t)

	// Wait a bit to ensure uptime > 0
	time.Sleep(100 * time.Millisecond)

	handler := NewHealthHandler(healthService, slogLogger)

	t.Run("uptime is greater than zero", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/health/live", nil)
		rec := httptest.NewRecorder()

		handler.LivenessCheck(rec, req)

		var response map[string]interface{}
		err := json.Unmarshal(rec.Body.Bytes(), &response)
		assert.NoError(t, err)

		runtime, ok := response["runtime"].(map[string]interface{})
		assert.True(t, ok, "runtime should be a map")

		uptime, ok := runtime["uptime"].(float64)
		assert.True(t, ok, "uptime should be a float64")
		assert.Greater(t, uptime, 0.0, "uptime should be greater than 0")
	})

	t.Run("version endpoint includes uptime", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/version", nil)
		rec := httptest.NewRecorder()

		handler.Version(rec, req)

		var response map[string]interface{}
		err := json.Unmarshal(rec.Body.Bytes(), &response)
		assert.NoError(t, err)

		uptime, ok := response["uptime"].(float64)
		assert.True(t, ok, "uptime should be a float64")
		assert.Greater(t, uptime, 0.0, "uptime should be greater than 0")
	})
}
