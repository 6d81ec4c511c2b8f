package pipeline_test

import (
	"errors"
	"testing"

	"prepcli/internal/pipeline"
	"prepcli/internal/pipeline/testutil"
)

func TestRunErrorFormatting(t *testing.T) {
	tests := []struct {
		name string
		err  *pipeline.RunError
		want string
	}{
		{
			name: "error with step",
			err: &pipeline.RunError{
				Type:    pipeline.ErrorTypeExecution,
				Step:    "clean",
				Message: "imputation failed",
			},
			want: "[execution] clean: imputation failed",
		},
		{
			name: "error without step",
			err: &pipeline.RunError{
				Type:    pipeline.ErrorTypeFatal,
				Message: "step state not found",
			},
			want: "[fatal] step state not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertEqual(t, tt.err.Error(), tt.want)
		})
	}
}

func TestRunErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := pipeline.NewExecutionError("clean", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause through Unwrap")
	}

	bare := pipeline.NewStepValidationError("load", "no source file")
	if bare.Unwrap() != nil {
		t.Error("validation error without cause should unwrap to nil")
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *pipeline.RunError
		wantType pipeline.ErrorType
		wantStep string
	}{
		{
			name:     "validation",
			err:      pipeline.NewStepValidationError("load", "no source file"),
			wantType: pipeline.ErrorTypeValidation,
			wantStep: "load",
		},
		{
			name:     "dependency",
			err:      pipeline.NewDependencyError("clean", "load", "dependency load not completed"),
			wantType: pipeline.ErrorTypeDependency,
			wantStep: "clean",
		},
		{
			name:     "execution",
			err:      pipeline.NewExecutionError("export", errors.New("disk full")),
			wantType: pipeline.ErrorTypeExecution,
			wantStep: "export",
		},
		{
			name:     "timeout",
			err:      pipeline.NewTimeoutError("load", "5m0s"),
			wantType: pipeline.ErrorTypeTimeout,
			wantStep: "load",
		},
		{
			name:     "cancellation",
			err:      pipeline.NewCancellationError("profile"),
			wantType: pipeline.ErrorTypeCancellation,
			wantStep: "profile",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertErrorType(t, tt.err, tt.wantType)
			testutil.AssertEqual(t, tt.err.Step, tt.wantStep)
		})
	}
}

func TestDependencyErrorContext(t *testing.T) {
	err := pipeline.NewDependencyError("clean", "load", "dependency load not found")
	testutil.AssertEqual(t, err.Context["depends_on"], "load")
}

func TestGetErrorType(t *testing.T) {
	testutil.AssertEqual(t, pipeline.GetErrorType(nil), pipeline.ErrorType(""))
	testutil.AssertEqual(t,
		pipeline.GetErrorType(pipeline.NewTimeoutError("load", "1s")),
		pipeline.ErrorTypeTimeout)
	testutil.AssertEqual(t,
		pipeline.GetErrorType(errors.New("plain")),
		pipeline.ErrorTypeExecution)
}

func TestWrapError(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		if pipeline.WrapError(nil, "load", "context") != nil {
			t.Error("wrapping nil should return nil")
		}
	})

	t.Run("plain error", func(t *testing.T) {
		cause := errors.New("disk full")
		wrapped := pipeline.WrapError(cause, "export", "step execution failed")

		testutil.AssertErrorType(t, wrapped, pipeline.ErrorTypeExecution)
		testutil.AssertEqual(t, wrapped.Step, "export")
		if !errors.Is(wrapped, cause) {
			t.Error("wrapped error should keep its cause")
		}
	})

	t.Run("run error keeps its type", func(t *testing.T) {
		timeout := pipeline.NewTimeoutError("load", "1s")
		wrapped := pipeline.WrapError(timeout, "load", "step execution failed")

		testutil.AssertErrorType(t, wrapped, pipeline.ErrorTypeTimeout)
		testutil.AssertErrorContains(t, wrapped, "step execution failed")
	})
}

func TestSentinelErrors(t *testing.T) {
	testutil.AssertErrorType(t, pipeline.ErrRunNotFound, pipeline.ErrorTypeNotFound)
	testutil.AssertErrorContains(t, pipeline.ErrRunNotFound, "run not found")
}
