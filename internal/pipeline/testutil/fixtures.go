package testutil

import (
	"context"
	"errors"
	"time"

	"prepcli/internal/pipeline"
)

// CreateTestRunState creates a run state seeded like a typical request
func CreateTestRunState(id string) *pipeline.RunState {
	state := pipeline.NewRunState(id)
	state.SetConfig(pipeline.ContextKeySourcePath, "data/input/people.csv")
	state.SetConfig(pipeline.ContextKeyPipeline, pipeline.DefaultPipelineName)
	return state
}

// CreateTestConfig creates a run configuration with short timeouts
func CreateTestConfig() *pipeline.Config {
	return pipeline.NewConfigBuilder().
		WithStepTimeout(pipeline.StepIDLoad, 1*time.Second).
		WithStepTimeout(pipeline.StepIDClean, 1*time.Second).
		WithStepTimeout(pipeline.StepIDProfile, 1*time.Second).
		WithStepTimeout(pipeline.StepIDExport, 1*time.Second).
		Build()
}

// CreateSuccessfulStep creates a step that always succeeds
func CreateSuccessfulStep(id, name string, deps ...string) *MockStep {
	return &MockStep{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
		ExecuteFunc: func(ctx context.Context, state *pipeline.RunState) error {
			stepState := state.GetStep(id)
			if stepState != nil {
				stepState.UpdateProgress(50, "Processing...")
				timer := time.NewTimer(5 * time.Millisecond)
				defer timer.Stop()
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-timer.C:
				}
				stepState.UpdateProgress(100, "Completed")
			}
			return nil
		},
	}
}

// CreateFailingStep creates a step that always fails
func CreateFailingStep(id, name string, err error, deps ...string) *MockStep {
	if err == nil {
		err = errors.New("step failed")
	}

	return &MockStep{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
		ExecuteFunc: func(ctx context.Context, state *pipeline.RunState) error {
			return err
		},
	}
}

// CreateSlowStep creates a step that takes a specific duration
func CreateSlowStep(id, name string, duration time.Duration, deps ...string) *MockStep {
	return &MockStep{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
		ExecuteFunc: func(ctx context.Context, state *pipeline.RunState) error {
			select {
			case <-time.After(duration):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
}

// CreateValidationFailingStep creates a step that fails validation
func CreateValidationFailingStep(id, name string, validationErr error, deps ...string) *MockStep {
	if validationErr == nil {
		validationErr = errors.New("validation failed")
	}

	return &MockStep{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
		ValidateFunc: func(state *pipeline.RunState) error {
			return validationErr
		},
	}
}

// CreateContextAwareStep creates a step that writes a context value
func CreateContextAwareStep(id, name string, writeKey string, writeValue interface{}, deps ...string) *MockStep {
	return &MockStep{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
		ExecuteFunc: func(ctx context.Context, state *pipeline.RunState) error {
			if writeKey != "" {
				state.SetContext(writeKey, writeValue)
			}
			return nil
		},
	}
}

// CreateTestSpec creates a minimal valid pipeline definition
func CreateTestSpec(name string) *pipeline.Spec {
	return &pipeline.Spec{
		Name: name,
		Steps: []pipeline.StepSpec{
			{ID: "fill-age", Transform: "impute", Columns: []string{"age"}, Strategy: "mean"},
		},
	}
}
