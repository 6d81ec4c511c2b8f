package app

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"prepcli/internal/config"
	apierrors "prepcli/internal/errors"
	"prepcli/internal/infrastructure"
	customMiddleware "prepcli/internal/middleware"
	"prepcli/internal/pipeline"
	"prepcli/internal/services"
	handlers "prepcli/internal/transport/http"
	ws "prepcli/internal/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	VERSION    = "1.2.0"
	REPO_URL   = "https://github.com/prepcli/prepcli"
	AppName    = "Prep Toolkit - Tabular Data Preparation Service"
	Executable = "prepd"
)

var (
	// BuildTime is set at compile time
	BuildTime = time.Now().Format(time.RFC3339)
	// BuildID is a unique identifier for this build
	BuildID = generateBuildID()
)

func generateBuildID() string {
	// Deterministic per version and day, stable across restarts
	h := sha256.New()
	h.Write([]byte(VERSION))
	h.Write([]byte(time.Now().Format("2006-01-02")))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	WebSocketHub  *ws.Hub
	RunService    *services.RunService
	DataService   *services.DataService
	HealthService *services.HealthService
	RunTracer     *pipeline.RunTracer
	RunMetrics    *infrastructure.RunMetrics
	Logger        *slog.Logger
	Services      *ServiceContainer
	OTelProviders *infrastructure.OTelProviders
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Runs      *services.RunService
	Data      *services.DataService
	Health    *services.HealthService
	WebSocket *ws.Hub
}

// NewApplication creates a new application instance with dependency injection
func NewApplication() (*Application, error) {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Single infrastructure logger shared by every component
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", VERSION),
		slog.String("executable", Executable))

	// Resolve and prepare the directory layout before any service
	// touches the filesystem
	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}

	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	// Initialize OpenTelemetry
	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	// Initialize WebSocket OpenTelemetry metrics
	if err := ws.InitOTelMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize WebSocket OpenTelemetry metrics: %w", err)
	}

	// Pipeline tracer drives run and step spans
	runTracer, err := pipeline.NewRunTracer(otelProviders)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize run tracer: %w", err)
	}

	// Pipeline instruments; a failure here degrades metrics but not runs
	runMetrics, err := infrastructure.CreateRunMetrics(otelProviders.Meter)
	if err != nil {
		logger.Warn("Failed to create run metrics instruments",
			slog.String("error", err.Error()))
		runMetrics = nil
	}

	// Create application
	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		RunTracer:     runTracer,
		RunMetrics:    runMetrics,
	}

	// Initialize services in order
	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Setup router
	app.setupRouter()

	// Create HTTP server
	app.createServer()

	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	// Initialize WebSocket hub and start its goroutines
	hub := ws.NewHub(a.Logger)
	hub.Start()
	a.WebSocketHub = hub

	// Initialize run service; the hub receives pipeline progress events
	runService, err := services.NewRunService(a.Config, hub, a.RunTracer, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize run service: %w", err)
	}
	a.RunService = runService

	// Start the run queue worker
	a.RunService.Start(context.Background())

	// Initialize data service with injected logger
	dataService, err := services.NewDataServiceWithLogger(a.Config, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize data service: %w", err)
	}
	a.DataService = dataService

	// Initialize health service with injected logger
	healthService := services.NewHealthServiceWithBuildInfo(
		VERSION,
		REPO_URL,
		BuildTime,
		BuildID,
		a.Paths,
		a.RunService,
		a.WebSocketHub,
		a.Logger,
	)
	a.HealthService = healthService

	// Create service container
	a.Services = &ServiceContainer{
		Runs:      runService,
		Data:      dataService,
		Health:    healthService,
		WebSocket: hub,
	}

	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Apply MINIMAL middleware that won't interfere with WebSocket.
	// These are safe because they don't wrap the ResponseWriter.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	// WebSocket route with minimal middleware and tracing.
	// MUST be registered after minimal middleware but before the group.
	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).HandleFunc("/ws", a.handleWebSocket)

	// Serve dashboard assets outside the middleware group; static files
	// don't need tracing, rate limits, or per-request logging
	a.setupStaticRoutes(r)

	// Create a route group for everything else with FULL middleware
	r.Group(func(r chi.Router) {
		// Ordering: RequestID → RealIP → OTel → Logger → Recoverer → the rest
		otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
		if err != nil {
			a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
		} else {
			r.Use(otelMiddleware.Handler)
		}

		// Expose pipeline instruments to handlers
		r.Use(customMiddleware.RunMetricsMiddleware(a.RunMetrics))

		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		// NOTE: Timeout middleware is applied per route group below so run
		// endpoints can carry a different budget than the rest of the API
		r.Use(customMiddleware.SecurityHeaders)

		corsConfig := a.getCORSConfig()
		r.Use(customMiddleware.CORS(corsConfig))

		// Rate limiting
		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		// Now register all other routes within this group
		a.setupAPIRoutes(r)
		a.setupHTMLRoutes(r)
	})

	// Prometheus metrics endpoint (outside the middleware group for performance)
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		// Standard timeout for most API endpoints
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))

			// Health handler
			healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
			r.Get("/health", healthHandler.HealthCheck)
			r.Get("/health/ready", healthHandler.ReadinessCheck)
			r.Get("/health/live", healthHandler.LivenessCheck)
			r.Get("/health/stats", healthHandler.Stats)
			r.Get("/version", healthHandler.Version)

			// System metrics handler
			metricsHandler := handlers.NewMetricsHandler(a.WebSocketHub, a.RunService)
			r.Mount("/metrics", metricsHandler.Routes())

			// Create error handler
			errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)

			// Data handler
			dataHandler := handlers.NewDataHandler(a.DataService, a.Logger, errorHandler)
			r.Mount("/data", dataHandler.Routes())

			// Client logging endpoint
			r.Post("/logs", handlers.NewClientLogHandler(a.Logger).Handle)
		})

		// Run routes carry their own timeout budget; synchronous waits
		// would be cut short under the standard request timeout
		r.Group(func(r chi.Router) {
			runHandler := handlers.NewRunHandler(a.RunService, a.WebSocketHub, a.Logger)
			runHandler.SetMetrics(a.RunMetrics)
			r.Mount("/runs", runHandler.Routes())

			runMetricsHandler, err := handlers.NewRunMetricsHandler(a.RunService, a.Logger)
			if err != nil {
				a.Logger.Error("Failed to create run metrics handler", slog.String("error", err.Error()))
			} else {
				r.Mount("/runs/metrics", runMetricsHandler.Routes())
			}

			// Step shortcuts the dashboard uses for one-click actions
			r.Post("/clean", customMiddleware.PipelineTraceHandler(pipeline.StepIDClean, a.startStepHandler(pipeline.StepIDClean)))
			r.Post("/profile", customMiddleware.PipelineTraceHandler(pipeline.StepIDProfile, a.startStepHandler(pipeline.StepIDProfile)))
			r.Post("/export", customMiddleware.PipelineTraceHandler(pipeline.StepIDExport, a.startStepHandler(pipeline.StepIDExport)))
		})
	})
}

// startStepHandler builds a handler that enqueues a single-step run.
func (a *Application) startStepHandler(stepID string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var params struct {
			Source     string                 `json:"source"`
			OutputDir  string                 `json:"output_dir"`
			Parameters map[string]interface{} `json:"parameters"`
		}
		if err := render.DecodeJSON(r.Body, &params); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]interface{}{"error": "Invalid request"})
			return
		}

		req := &pipeline.RunRequest{
			ID:         uuid.New().String(),
			Source:     params.Source,
			OutputDir:  params.OutputDir,
			Step:       stepID,
			Parameters: params.Parameters,
		}

		job, err := a.RunService.StartRun(r.Context(), req)
		if err != nil {
			status := http.StatusInternalServerError
			if strings.Contains(err.Error(), "queue is full") {
				status = http.StatusServiceUnavailable
			}
			render.Status(r, status)
			render.JSON(w, r, map[string]interface{}{"error": err.Error()})
			return
		}

		render.JSON(w, r, map[string]interface{}{
			"run_id": req.ID,
			"job_id": job.ID,
			"status": "queued",
		})
	}
}

// setupStaticRoutes configures static file serving for the dashboard
func (a *Application) setupStaticRoutes(r chi.Router) {
	staticDir := filepath.Join(a.webDir(), "static")

	r.Route("/static", func(r chi.Router) {
		r.Use(customMiddleware.Compress(5))
		r.Handle("/*", http.StripPrefix("/static", http.FileServer(http.Dir(staticDir))))
	})
}

// setupHTMLRoutes configures HTML page routes
func (a *Application) setupHTMLRoutes(r chi.Router) {
	r.Get("/", handlers.RedirectToApp)
	r.Get("/app", handlers.ServeMainApp(a.webDir()))
	r.Get("/test", handlers.ServeTestPage())
}

// webDir returns the dashboard asset directory under the working dir.
func (a *Application) webDir() string {
	return filepath.Join(a.Paths.WorkingDir, "web")
}

// getCORSConfig returns CORS configuration based on environment
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	isDevelopment := a.isDevelopmentMode()
	selfOrigin := fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)
	selfOriginIP := fmt.Sprintf("http://127.0.0.1:%d", a.Config.Server.Port)

	corsConfig := customMiddleware.CORSConfig{
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-CSRF-Token",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
		},
		AllowCredentials: true,
		MaxAge:           300,
		Logger:           a.Logger,
	}

	if isDevelopment {
		// Development mode: allow the dashboard dev server as well
		corsConfig.AllowedOrigins = []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
			selfOrigin,
			selfOriginIP,
		}
		a.Logger.Info("CORS configured for development mode",
			slog.Any("allowed_origins", corsConfig.AllowedOrigins))
	} else {
		// Production mode: same origin plus anything explicitly configured
		corsConfig.AllowedOrigins = []string{
			selfOrigin,
			selfOriginIP,
		}

		if a.Config.Security.EnableCORS && len(a.Config.Security.AllowedOrigins) > 0 {
			corsConfig.AllowedOrigins = append(corsConfig.AllowedOrigins, a.Config.Security.AllowedOrigins...)
		}

		a.Logger.Info("CORS configured for production mode",
			slog.Any("allowed_origins", corsConfig.AllowedOrigins))
	}

	return corsConfig
}

// isDevelopmentMode detects if we're running in development mode
func (a *Application) isDevelopmentMode() bool {
	if a.Config.Logging.Development {
		return true
	}

	if env := os.Getenv("GO_ENV"); env == "development" {
		return true
	}

	return false
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the application
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", VERSION),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	a.Logger.InfoContext(ctx, "Application paths",
		slog.String("working_dir", a.Paths.WorkingDir),
		slog.String("data_dir", a.Paths.DataDir),
		slog.String("output_dir", a.Paths.OutputDir),
		slog.String("reports_dir", a.Paths.ReportsDir),
		slog.String("logs_dir", a.Paths.LogsDir))

	// The hub and run queue are already running; only the server starts here
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			// Signal shutdown through context instead of os.Exit
			cancel()
		}
	}()

	// Health check on critical paths; warnings are non-fatal
	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))

	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	// Stop server
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	// Drain the run queue, waiting for the active run
	if a.RunService != nil {
		if err := a.RunService.Stop(a.Config.Server.ShutdownTimeout); err != nil {
			a.Logger.ErrorContext(ctx, "Failed to stop run queue gracefully", slog.String("error", err.Error()))
		}

		// Cancel anything the drain left running
		if n := a.RunService.CancelAll(ctx); n > 0 {
			a.Logger.InfoContext(ctx, "Cancelled active runs", slog.Int("count", n))
		}
	}

	// Stop background services
	a.WebSocketHub.Stop()

	// Shutdown OpenTelemetry providers
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Start application
	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	// Wait for a signal or a fatal component error
	select {
	case sig := <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "Shutting down after component failure")
	}

	// Graceful shutdown
	return a.Stop(context.Background())
}

// handleWebSocket handles WebSocket connections
func (a *Application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Extract any available request ID (might not have middleware)
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = fmt.Sprintf("ws-%d", time.Now().UnixNano())
	}

	ctx := infrastructure.WithTraceID(r.Context(), reqID)
	a.Logger.InfoContext(ctx, "WebSocket upgrade request",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("origin", r.Header.Get("Origin")),
		slog.String("host", r.Host),
		slog.String("user_agent", r.UserAgent()))

	// Set CORS headers explicitly for WebSocket upgrade
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Handle cases where Origin header is missing (e.g., file:// protocol)
		origin = fmt.Sprintf("http://%s", r.Host)
		a.Logger.WarnContext(ctx, "No Origin header in WebSocket request, using host",
			slog.String("host", r.Host))
	}

	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Credentials", "true")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")

			// Allow if no origin (local file or same-origin request)
			if origin == "" {
				return true
			}

			// In development mode, be more permissive
			if a.isDevelopmentMode() {
				a.Logger.DebugContext(ctx, "WebSocket origin check - development mode, allowing",
					slog.String("origin", origin))
				return true
			}

			// In production, validate against allowed origins
			corsConfig := a.getCORSConfig()
			for _, allowed := range corsConfig.AllowedOrigins {
				if origin == allowed {
					return true
				}
			}

			a.Logger.WarnContext(ctx, "WebSocket origin check - origin not allowed",
				slog.String("origin", origin),
				slog.Any("allowed_origins", corsConfig.AllowedOrigins))
			return false
		},
		ReadBufferSize:  a.Config.WebSocket.ReadBufferSize,
		WriteBufferSize: a.Config.WebSocket.WriteBufferSize,
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			a.Logger.ErrorContext(ctx, "WebSocket upgrade error",
				slog.Int("status", status),
				slog.String("reason", reason.Error()),
				slog.String("origin", r.Header.Get("Origin")))
			// A custom Error callback suppresses the upgrader's own
			// response, so write it here
			http.Error(w, reason.Error(), status)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.ErrorContext(ctx, "WebSocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("origin", origin))
		return
	}

	// Create a new client with trace ID and register with hub
	client := ws.NewClientWithTrace(a.WebSocketHub, conn, reqID, a.Logger)
	a.WebSocketHub.Register(client)

	a.Logger.InfoContext(ctx, "WebSocket client connected",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("request_id", reqID))

	// Start client goroutines with panic isolation
	go func() {
		defer func() {
			if r := recover(); r != nil {
				a.Logger.ErrorContext(ctx, "WebSocket write pump panic",
					slog.Any("panic", r),
					slog.String("request_id", reqID))
			}
		}()
		client.WritePump()
	}()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				a.Logger.ErrorContext(ctx, "WebSocket read pump panic",
					slog.Any("panic", r),
					slog.String("request_id", reqID))
			}
		}()
		client.ReadPump()
	}()
}

// performStartupHealthCheck verifies critical paths and resources
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	var warnings []string

	// Check critical directories are writable
	directories := map[string]string{
		"Data":    a.Paths.DataDir,
		"Output":  a.Paths.OutputDir,
		"Reports": a.Paths.ReportsDir,
		"Logs":    a.Paths.LogsDir,
	}

	for name, dir := range directories {
		// A test file proves write access; stat alone misses mount issues
		testFile := filepath.Join(dir, ".write_test")
		if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s directory not writable: %s", name, dir))
		} else {
			os.Remove(testFile)
		}
	}

	// Dashboard assets are optional; the API works without them
	if _, err := os.Stat(a.webDir()); os.IsNotExist(err) {
		a.Logger.InfoContext(ctx, "Dashboard directory not found, serving API only",
			slog.String("path", a.webDir()))
	}

	// Sheets credentials are only needed when the source is enabled
	if a.Config.Sheets.Enabled && a.Config.Sheets.CredentialsFile != "" {
		if _, err := os.Stat(a.Config.Sheets.CredentialsFile); os.IsNotExist(err) {
			warnings = append(warnings, fmt.Sprintf("Sheets credentials file not found: %s", a.Config.Sheets.CredentialsFile))
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("startup health check warnings: %s", strings.Join(warnings, "; "))
	}

	a.Logger.InfoContext(ctx, "Startup health check passed")
	return nil
}
