// Package services implements the business logic layer of the prep application.
// It provides a clean separation between HTTP handlers and the dataset,
// pipeline and profiling packages, ensuring that business rules are
// centralized and testable.
//
// # Architecture
//
// Services follow these architectural principles:
//
//	1. Interface-driven design for testability
//	2. Context propagation for cancellation and tracing
//	3. Dependency injection for loose coupling
//	4. Domain-focused methods that encapsulate business rules
//
// # Service Layer Responsibilities
//
// The service layer is responsible for:
//
//	- Business logic and validation
//	- Cross-cutting concerns (logging, metrics)
//	- Error handling and transformation
//	- Coordinating dataset loading, runs and exports
//
// # Common Service Pattern
//
// Services typically follow this structure:
//
//	type ServiceName struct {
//	    loader *dataset.Loader
//	    logger *slog.Logger
//	}
//
//	func NewServiceName(loader *dataset.Loader, logger *slog.Logger) *ServiceName {
//	    return &ServiceName{
//	        loader: loader,
//	        logger: logger,
//	    }
//	}
//
//	func (s *ServiceName) BusinessOperation(ctx context.Context, input Input) (*Output, error) {
//	    // Validate input
//	    if err := input.Validate(); err != nil {
//	        return nil, fmt.Errorf("validation failed: %w", err)
//	    }
//
//	    // Execute business logic
//	    result, err := s.loader.Operation(ctx, input)
//	    if err != nil {
//	        s.logger.ErrorContext(ctx, "operation failed",
//	            "error", err,
//	            "input", input,
//	        )
//	        return nil, fmt.Errorf("operation failed: %w", err)
//	    }
//
//	    return result, nil
//	}
//
// # Available Services
//
// The package provides these core services:
//
//	- DataService: dataset discovery, previews, profile reports and file downloads
//	- RunService: pipeline run submission, status tracking and cancellation
//	- HealthService: system health, readiness and version reporting
//
// # Error Handling
//
// Services return the sentinel errors declared in errors.go so that
// handlers can map them to HTTP responses with errors.Is:
//
//	- ErrInvalidDataset and ErrInvalidInput for invalid input
//	- ErrDatasetNotFound, ErrFileNotFound and ErrRunNotFound for missing resources
//	- ErrRunRunning for conflicting run submissions
//
// # Testing
//
// Services are tested by mocking dependencies:
//
//	hub := new(MockRunHub)
//	service, err := NewRunService(cfg, hub, nil, logger)
//
//	hub.On("BroadcastUpdate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()
//	resp, err := service.ExecuteRun(ctx, req)
package services
