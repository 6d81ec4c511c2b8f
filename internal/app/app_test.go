package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestEnvironment points every configured directory into a temp dir
// so tests do not litter the package directory.
func setupTestEnvironment(t *testing.T) func() {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "app_test_*")
	require.NoError(t, err)

	envs := map[string]string{
		"PREP_SERVER_PORT":       "8081",
		"PREP_LOGGING_LEVEL":     "error",
		"PREP_LOGGING_OUTPUT":    "console",
		"PREP_PATHS_DATA_DIR":    filepath.Join(tempDir, "data"),
		"PREP_PATHS_OUTPUT_DIR":  filepath.Join(tempDir, "data", "cleaned"),
		"PREP_PATHS_REPORTS_DIR": filepath.Join(tempDir, "data", "reports"),
		"PREP_PATHS_LOGS_DIR":    filepath.Join(tempDir, "logs"),
	}
	for k, v := range envs {
		os.Setenv(k, v)
	}

	return func() {
		for k := range envs {
			os.Unsetenv(k)
		}
		os.RemoveAll(tempDir)
	}
}

func TestNewApplication(t *testing.T) {
	tests := []struct {
		name          string
		setupEnv      func()
		wantErr       bool
		errorContains string
	}{
		{
			name:     "successful initialization",
			setupEnv: func() {},
			wantErr:  false,
		},
		{
			name: "initialization with invalid config",
			setupEnv: func() {
				os.Setenv("PREP_SERVER_PORT", "-1")
			},
			wantErr:       true,
			errorContains: "config validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup := setupTestEnvironment(t)
			defer cleanup()

			if tt.setupEnv != nil {
				tt.setupEnv()
			}

			application, err := NewApplication()

			if tt.wantErr {
				assert.Error(t, err)
				if tt.errorContains != "" {
					assert.Contains(t, err.Error(), tt.errorContains)
				}
				assert.Nil(t, application)
			} else {
				assert.NoError(t, err)
				if assert.NotNil(t, application) {
					assert.NotNil(t, application.Config)
					assert.NotNil(t, application.Paths)
					assert.NotNil(t, application.Logger)
					assert.NotNil(t, application.Router)
					assert.NotNil(t, application.Server)
					assert.NotNil(t, application.WebSocketHub)
					assert.NotNil(t, application.RunService)
					assert.NotNil(t, application.DataService)
					assert.NotNil(t, application.HealthService)
					assert.NotNil(t, application.RunTracer)
					assert.NotNil(t, application.Services)

					application.WebSocketHub.Stop()
					application.RunService.Stop(time.Second)
				}
			}
		})
	}
}

func TestApplication_initializeServices(t *testing.T) {
	cleanup := setupTestEnvironment(t)
	defer cleanup()

	application, err := NewApplication()
	require.NoError(t, err)
	defer application.WebSocketHub.Stop()
	defer application.RunService.Stop(time.Second)

	assert.NotNil(t, application.Services.Runs)
	assert.NotNil(t, application.Services.Data)
	assert.NotNil(t, application.Services.Health)
	assert.NotNil(t, application.Services.WebSocket)
	assert.Same(t, application.RunService, application.Services.Runs)
	assert.Same(t, application.WebSocketHub, application.Services.WebSocket)
}

func TestApplication_setupRouter(t *testing.T) {
	cleanup := setupTestEnvironment(t)
	defer cleanup()

	application, err := NewApplication()
	require.NoError(t, err)
	defer application.WebSocketHub.Stop()
	defer application.RunService.Stop(time.Second)

	testServer := httptest.NewServer(application.Router)
	defer testServer.Close()

	t.Run("health endpoint registered", func(t *testing.T) {
		resp, err := http.Get(testServer.URL + "/api/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("version endpoint registered", func(t *testing.T) {
		resp, err := http.Get(testServer.URL + "/api/version")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), VERSION)
	})

	t.Run("run steps endpoint registered", func(t *testing.T) {
		resp, err := http.Get(testServer.URL + "/api/runs/steps")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("websocket endpoint rejects plain requests", func(t *testing.T) {
		resp, err := http.Get(testServer.URL + "/ws")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("prometheus endpoint registered", func(t *testing.T) {
		resp, err := http.Get(testServer.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.NotEqual(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("test page served", func(t *testing.T) {
		resp, err := http.Get(testServer.URL + "/test")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("root redirects to app page", func(t *testing.T) {
		client := &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
		resp, err := client.Get(testServer.URL + "/")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
		assert.Equal(t, "/app", resp.Header.Get("Location"))
	})
}

func TestApplication_handleWebSocket(t *testing.T) {
	cleanup := setupTestEnvironment(t)
	defer cleanup()

	application, err := NewApplication()
	require.NoError(t, err)
	defer application.WebSocketHub.Stop()
	defer application.RunService.Stop(time.Second)

	testServer := httptest.NewServer(http.HandlerFunc(application.handleWebSocket))
	defer testServer.Close()

	t.Run("successful upgrade", func(t *testing.T) {
		wsURL := "ws" + strings.TrimPrefix(testServer.URL, "http")

		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Skipf("WebSocket connection failed: %v", err)
			return
		}
		defer conn.Close()

		err = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`))
		assert.NoError(t, err)
	})

	t.Run("plain request rejected", func(t *testing.T) {
		resp, err := http.Get(testServer.URL)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestApplication_getCORSConfig(t *testing.T) {
	cleanup := setupTestEnvironment(t)
	defer cleanup()

	application, err := NewApplication()
	require.NoError(t, err)
	defer application.WebSocketHub.Stop()
	defer application.RunService.Stop(time.Second)

	t.Run("production mode", func(t *testing.T) {
		os.Unsetenv("GO_ENV")

		corsConfig := application.getCORSConfig()
		assert.NotEmpty(t, corsConfig.AllowedMethods)
		assert.NotEmpty(t, corsConfig.AllowedHeaders)
		assert.True(t, corsConfig.AllowCredentials)
		assert.Equal(t, 300, corsConfig.MaxAge)
		assert.Contains(t, corsConfig.AllowedOrigins, "http://localhost:8081")
		assert.NotContains(t, corsConfig.AllowedOrigins, "http://localhost:3000")
	})

	t.Run("development mode allows dashboard dev server", func(t *testing.T) {
		os.Setenv("GO_ENV", "development")
		defer os.Unsetenv("GO_ENV")

		corsConfig := application.getCORSConfig()
		assert.Contains(t, corsConfig.AllowedOrigins, "http://localhost:3000")
	})
}

func TestApplication_isDevelopmentMode(t *testing.T) {
	cleanup := setupTestEnvironment(t)
	defer cleanup()

	application, err := NewApplication()
	require.NoError(t, err)
	defer application.WebSocketHub.Stop()
	defer application.RunService.Stop(time.Second)

	tests := []struct {
		name     string
		setupEnv func()
		want     bool
	}{
		{
			name: "GO_ENV development",
			setupEnv: func() {
				os.Setenv("GO_ENV", "development")
			},
			want: true,
		},
		{
			name:     "no environment set",
			setupEnv: func() {},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv("GO_ENV")
			if tt.setupEnv != nil {
				tt.setupEnv()
			}

			assert.Equal(t, tt.want, application.isDevelopmentMode())
			os.Unsetenv("GO_ENV")
		})
	}
}

func TestApplication_performStartupHealthCheck(t *testing.T) {
	cleanup := setupTestEnvironment(t)
	defer cleanup()

	application, err := NewApplication()
	require.NoError(t, err)
	defer application.WebSocketHub.Stop()
	defer application.RunService.Stop(time.Second)

	t.Run("writable directories pass", func(t *testing.T) {
		err := application.performStartupHealthCheck(context.Background())
		assert.NoError(t, err)
	})

	t.Run("unwritable directory reported as warning", func(t *testing.T) {
		saved := application.Paths.DataDir
		application.Paths.DataDir = filepath.Join(application.Paths.DataDir, "does", "not", "exist")
		defer func() { application.Paths.DataDir = saved }()

		err := application.performStartupHealthCheck(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "warnings")
		assert.Contains(t, err.Error(), "Data directory not writable")
	})
}

func TestApplication_StartStop(t *testing.T) {
	cleanup := setupTestEnvironment(t)
	defer cleanup()

	application, err := NewApplication()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, application.Start(ctx, cancel))

	// Poll until the listener accepts connections
	healthURL := fmt.Sprintf("http://localhost:%d/api/health", application.Config.Server.Port)
	var resp *http.Response
	for i := 0; i < 20; i++ {
		resp, err = http.Get(healthURL)
		if err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err == nil {
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	assert.NoError(t, application.Stop(stopCtx))
}

func TestApplication_Run(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("process signals are not supported on windows")
	}

	cleanup := setupTestEnvironment(t)
	defer cleanup()

	application, err := NewApplication()
	require.NoError(t, err)

	runErr := make(chan error, 1)
	go func() {
		runErr <- application.Run()
	}()

	// Give the server time to come up, then interrupt ourselves
	time.Sleep(300 * time.Millisecond)
	proc, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)
	require.NoError(t, proc.Signal(syscall.SIGTERM))

	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("application did not shut down within timeout")
	}
}

func TestGenerateBuildID(t *testing.T) {
	id := generateBuildID()
	assert.Len(t, id, 12)
	assert.Equal(t, id, generateBuildID())
}
