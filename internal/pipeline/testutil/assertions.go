package testutil

import (
	"strings"
	"testing"
	"time"

	"prepcli/internal/pipeline"
)

// AssertStepStatus verifies a step has the expected status
func AssertStepStatus(t *testing.T, step *pipeline.StepState, expected pipeline.StepStatus) {
	t.Helper()
	if step == nil {
		t.Fatal("step state is nil")
	}
	if got := step.GetStatus(); got != expected {
		t.Errorf("step %s status = %v, want %v", step.ID, got, expected)
	}
}

// AssertRunStatus verifies a run has the expected status
func AssertRunStatus(t *testing.T, state *pipeline.RunState, expected pipeline.RunStatus) {
	t.Helper()
	if state == nil {
		t.Fatal("run state is nil")
	}
	if state.Status != expected {
		t.Errorf("run status = %v, want %v", state.Status, expected)
	}
}

// AssertStepCompleted verifies a step completed successfully
func AssertStepCompleted(t *testing.T, state *pipeline.RunState, stepID string) {
	t.Helper()
	step := state.GetStep(stepID)
	if step == nil {
		t.Fatalf("step %s not found", stepID)
	}
	AssertStepStatus(t, step, pipeline.StepStatusCompleted)
}

// AssertStepFailed verifies a step failed
func AssertStepFailed(t *testing.T, state *pipeline.RunState, stepID string) {
	t.Helper()
	step := state.GetStep(stepID)
	if step == nil {
		t.Fatalf("step %s not found", stepID)
	}
	AssertStepStatus(t, step, pipeline.StepStatusFailed)
	if step.Error == nil {
		t.Errorf("step %s has no error", stepID)
	}
}

// AssertStepSkipped verifies a step was skipped
func AssertStepSkipped(t *testing.T, state *pipeline.RunState, stepID string) {
	t.Helper()
	step := state.GetStep(stepID)
	if step == nil {
		t.Fatalf("step %s not found", stepID)
	}
	AssertStepStatus(t, step, pipeline.StepStatusSkipped)
}

// AssertWebSocketMessage verifies a message of the given type was sent
func AssertWebSocketMessage(t *testing.T, hub *MockWebSocketHub, eventType string) {
	t.Helper()
	messages := hub.GetMessagesByType(eventType)
	if len(messages) == 0 {
		t.Errorf("no WebSocket message of type %s found", eventType)
	}
}

// AssertError verifies an error matches expected
func AssertError(t *testing.T, err error, wantErr bool) {
	t.Helper()
	if (err != nil) != wantErr {
		t.Errorf("error = %v, wantErr %v", err, wantErr)
	}
}

// AssertErrorContains verifies an error contains a substring
func AssertErrorContains(t *testing.T, err error, substr string) {
	t.Helper()
	if err == nil {
		t.Errorf("expected error containing %q, got nil", substr)
		return
	}
	if !strings.Contains(err.Error(), substr) {
		t.Errorf("error = %v, want error containing %q", err, substr)
	}
}

// AssertErrorType verifies the classification of a run error
func AssertErrorType(t *testing.T, err error, expectedType pipeline.ErrorType) {
	t.Helper()
	if err == nil {
		t.Fatal("error is nil")
	}
	rErr, ok := err.(*pipeline.RunError)
	if !ok {
		t.Fatalf("error is not a RunError: %T", err)
	}
	if rErr.Type != expectedType {
		t.Errorf("error type = %v, want %v", rErr.Type, expectedType)
	}
}

// AssertNoError fails if there is an error
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertEqual verifies two values are equal
func AssertEqual(t *testing.T, got, want interface{}) {
	t.Helper()
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

// AssertNotNil verifies a value is not nil
func AssertNotNil(t *testing.T, v interface{}) {
	t.Helper()
	if v == nil {
		t.Fatal("value is nil")
	}
}

// AssertStepOrder verifies steps were executed in the expected order
func AssertStepOrder(t *testing.T, steps []*MockStep, expectedOrder []string) {
	t.Helper()

	type execution struct {
		id   string
		time time.Time
	}

	var executions []execution
	for _, step := range steps {
		if len(step.ExecuteArgs) > 0 {
			executions = append(executions, execution{
				id:   step.ID(),
				time: step.ExecuteArgs[0].Time,
			})
		}
	}

	for i := 0; i < len(executions)-1; i++ {
		for j := i + 1; j < len(executions); j++ {
			if executions[j].time.Before(executions[i].time) {
				executions[i], executions[j] = executions[j], executions[i]
			}
		}
	}

	if len(executions) != len(expectedOrder) {
		t.Errorf("executed %d steps, expected %d", len(executions), len(expectedOrder))
		return
	}

	for i, exec := range executions {
		if exec.id != expectedOrder[i] {
			t.Errorf("execution order[%d] = %s, want %s", i, exec.id, expectedOrder[i])
		}
	}
}

// AssertConfigValue verifies a run config value
func AssertConfigValue(t *testing.T, state *pipeline.RunState, key string, expected interface{}) {
	t.Helper()
	val, ok := state.GetConfig(key)
	if !ok {
		t.Errorf("config key %q not found", key)
		return
	}
	if val != expected {
		t.Errorf("config[%q] = %v, want %v", key, val, expected)
	}
}

// AssertContextValue verifies a run context value
func AssertContextValue(t *testing.T, state *pipeline.RunState, key string, expected interface{}) {
	t.Helper()
	val, ok := state.GetContext(key)
	if !ok {
		t.Errorf("context key %q not found", key)
		return
	}
	if val != expected {
		t.Errorf("context[%q] = %v, want %v", key, val, expected)
	}
}
