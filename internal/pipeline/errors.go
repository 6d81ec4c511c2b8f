package pipeline

import (
	"fmt"
)

// ErrorType classifies a run error.
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeDependency   ErrorType = "dependency"
	ErrorTypeExecution    ErrorType = "execution"
	ErrorTypeTimeout      ErrorType = "timeout"
	ErrorTypeCancellation ErrorType = "cancellation"
	ErrorTypeFatal        ErrorType = "fatal"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeInvalidState ErrorType = "invalid_state"
)

// RunError is a step or run level failure carrying its classification.
type RunError struct {
	Type    ErrorType              `json:"type"`
	Step    string                 `json:"step,omitempty"`
	Message string                 `json:"message"`
	Cause   error                  `json:"cause,omitempty"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface.
func (e *RunError) Error() string {
	if e == nil {
		return "unknown run error"
	}
	if e.Step != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Type, e.Step, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *RunError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewStepValidationError reports a step that refused to run.
func NewStepValidationError(step, message string) *RunError {
	return &RunError{
		Type:    ErrorTypeValidation,
		Step:    step,
		Message: message,
	}
}

// NewDependencyError reports an unmet step dependency.
func NewDependencyError(step, dependsOn, message string) *RunError {
	return &RunError{
		Type:    ErrorTypeDependency,
		Step:    step,
		Message: message,
		Context: map[string]interface{}{
			"depends_on": dependsOn,
		},
	}
}

// NewExecutionError reports a step that failed while running.
func NewExecutionError(step string, cause error) *RunError {
	return &RunError{
		Type:    ErrorTypeExecution,
		Step:    step,
		Message: "step execution failed",
		Cause:   cause,
	}
}

// NewTimeoutError reports a step that exceeded its timeout.
func NewTimeoutError(step string, timeout string) *RunError {
	return &RunError{
		Type:    ErrorTypeTimeout,
		Step:    step,
		Message: fmt.Sprintf("step exceeded timeout of %s", timeout),
		Context: map[string]interface{}{
			"timeout": timeout,
		},
	}
}

// NewCancellationError reports a run cancelled mid step.
func NewCancellationError(step string) *RunError {
	return &RunError{
		Type:    ErrorTypeCancellation,
		Step:    step,
		Message: "run was cancelled",
	}
}

// NewFatalError reports an unrecoverable framework failure.
func NewFatalError(message string, cause error) *RunError {
	return &RunError{
		Type:    ErrorTypeFatal,
		Message: message,
		Cause:   cause,
	}
}

// GetErrorType returns the classification of an error.
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ""
	}
	if rErr, ok := err.(*RunError); ok {
		return rErr.Type
	}
	return ErrorTypeExecution
}

// WrapError attaches run context to an error.
func WrapError(err error, step string, message string) *RunError {
	if err == nil {
		return nil
	}

	if rErr, ok := err.(*RunError); ok {
		if rErr.Step == "" {
			rErr.Step = step
		}
		if message != "" {
			rErr.Message = fmt.Sprintf("%s: %s", message, rErr.Message)
		}
		return rErr
	}

	return &RunError{
		Type:    ErrorTypeExecution,
		Step:    step,
		Message: message,
		Cause:   err,
	}
}

// Common run errors
var (
	// ErrRunNotFound is returned when a run cannot be found.
	ErrRunNotFound = &RunError{
		Type:    ErrorTypeNotFound,
		Message: "run not found",
	}

	// ErrRunCompleted is returned when modifying a finished run.
	ErrRunCompleted = &RunError{
		Type:    ErrorTypeInvalidState,
		Message: "run has already completed",
	}

	// ErrRunNotRunning is returned when stopping a run that is not running.
	ErrRunNotRunning = &RunError{
		Type:    ErrorTypeInvalidState,
		Message: "run is not running",
	}
)
