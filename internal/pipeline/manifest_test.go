package pipeline

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunManifest(t *testing.T) {
	t.Run("NewRunManifest", func(t *testing.T) {
		manifest := NewRunManifest("run-123", "default")

		assert.NotNil(t, manifest)
		assert.Equal(t, "manifest-run-123", manifest.ID)
		assert.Equal(t, "run-123", manifest.RunID)
		assert.Equal(t, "default", manifest.Pipeline)
		assert.Equal(t, "pending", manifest.Status)
		assert.Empty(t, manifest.StepExecutions)
		assert.Empty(t, manifest.Outputs)
	})

	t.Run("RecordSource", func(t *testing.T) {
		manifest := NewRunManifest("run-123", "default")

		manifest.RecordSource("data/input/people.csv", "abc123", 100, 5)

		assert.Equal(t, "data/input/people.csv", manifest.Source)
		assert.Equal(t, "abc123", manifest.SourceFingerprint)
		assert.Equal(t, 100, manifest.SourceRows)
		assert.Equal(t, 5, manifest.SourceCols)
		assert.Equal(t, "running", manifest.Status)
	})

	t.Run("RecordStepExecution", func(t *testing.T) {
		manifest := NewRunManifest("run-123", "default")

		manifest.RecordStepStart("fill-age", "fill-age (impute)", 100, 5)
		require.Len(t, manifest.StepExecutions, 1)
		assert.Equal(t, "running", manifest.StepExecutions[0].Status)
		assert.Equal(t, 100, manifest.StepExecutions[0].RowsBefore)
		assert.Equal(t, 5, manifest.StepExecutions[0].ColsBefore)

		manifest.RecordStepCompletion("fill-age", 100, 5, map[string]interface{}{
			"transform": "impute",
		})
		assert.Equal(t, "completed", manifest.StepExecutions[0].Status)
		assert.Equal(t, 100, manifest.StepExecutions[0].RowsAfter)
		assert.Equal(t, "impute", manifest.StepExecutions[0].Metadata["transform"])
		assert.True(t, manifest.IsStepCompleted("fill-age"))
	})

	t.Run("RecordStepFailure", func(t *testing.T) {
		manifest := NewRunManifest("run-123", "default")

		manifest.RecordStepStart("drop-incomplete", "drop-incomplete (drop_nulls)", 100, 5)
		manifest.RecordStepFailure("drop-incomplete", errors.New("no rows left"))

		assert.Equal(t, "failed", manifest.StepExecutions[0].Status)
		assert.Equal(t, "no rows left", manifest.StepExecutions[0].Error)
		assert.Equal(t, "failed", manifest.Status)
		assert.Contains(t, manifest.Error, "drop-incomplete")
		assert.False(t, manifest.IsStepCompleted("drop-incomplete"))
	})

	t.Run("RecordStepSkipped", func(t *testing.T) {
		manifest := NewRunManifest("run-123", "default")

		manifest.RecordStepSkipped("scale-scores", "scale-scores (scale)", "previous step failed")

		require.Len(t, manifest.StepExecutions, 1)
		assert.Equal(t, "skipped", manifest.StepExecutions[0].Status)
		assert.Equal(t, "previous step failed", manifest.StepExecutions[0].Error)
	})

	t.Run("RecordOutput", func(t *testing.T) {
		manifest := NewRunManifest("run-123", "default")

		manifest.RecordOutput(OutputInfo{
			Path:        "/tmp/out/people_cleaned.csv",
			Format:      "csv",
			Rows:        95,
			Cols:        5,
			Fingerprint: "def456",
			CreatedBy:   StepIDExport,
		})

		require.Len(t, manifest.Outputs, 1)
		assert.Equal(t, "/tmp/out/people_cleaned.csv", manifest.Outputs[0].Path)
		assert.Equal(t, 95, manifest.Outputs[0].Rows)
		assert.Equal(t, StepIDExport, manifest.Outputs[0].CreatedBy)
		assert.False(t, manifest.Outputs[0].CreatedAt.IsZero())
	})

	t.Run("Progress", func(t *testing.T) {
		manifest := NewRunManifest("run-123", "default")
		assert.Equal(t, 0, manifest.Progress())

		manifest.RecordStepStart("a", "a", 10, 2)
		manifest.RecordStepStart("b", "b", 10, 2)
		manifest.RecordStepCompletion("a", 10, 2, nil)

		assert.Equal(t, 50, manifest.Progress())
	})

	t.Run("CompleteAndFail", func(t *testing.T) {
		completed := NewRunManifest("run-1", "default")
		completed.Complete()
		assert.Equal(t, "completed", completed.Status)

		failed := NewRunManifest("run-2", "default")
		failed.Fail(errors.New("cancelled"))
		assert.Equal(t, "failed", failed.Status)
		assert.Equal(t, "cancelled", failed.Error)

		// A step failure already recorded keeps its error message
		stepFailed := NewRunManifest("run-3", "default")
		stepFailed.RecordStepStart("x", "x", 1, 1)
		stepFailed.RecordStepFailure("x", errors.New("boom"))
		stepFailed.Fail(errors.New("run aborted"))
		assert.Contains(t, stepFailed.Error, "boom")
	})
}

func TestRunManifestSaveAndLoad(t *testing.T) {
	manifest := NewRunManifest("run-save", "default")
	manifest.RecordSource("data/input/people.csv", "abc123", 100, 5)
	manifest.RecordStepStart("fill-age", "fill-age (impute)", 100, 5)
	manifest.RecordStepCompletion("fill-age", 100, 5, nil)
	manifest.RecordOutput(OutputInfo{
		Path:      "out/people_cleaned.csv",
		Format:    "csv",
		Rows:      100,
		Cols:      5,
		CreatedBy: StepIDExport,
	})
	manifest.Complete()

	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, manifest.SaveToFile(path))

	loaded, err := LoadManifestFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, manifest.ID, loaded.ID)
	assert.Equal(t, manifest.RunID, loaded.RunID)
	assert.Equal(t, "completed", loaded.Status)
	assert.Equal(t, manifest.SourceFingerprint, loaded.SourceFingerprint)
	require.Len(t, loaded.StepExecutions, 1)
	assert.Equal(t, "completed", loaded.StepExecutions[0].Status)
	require.Len(t, loaded.Outputs, 1)
	assert.Equal(t, "out/people_cleaned.csv", loaded.Outputs[0].Path)
}

func TestRunManifestLoadErrors(t *testing.T) {
	_, err := LoadManifestFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestRunManifestClone(t *testing.T) {
	manifest := NewRunManifest("run-clone", "default")
	manifest.RecordSource("people.csv", "abc", 10, 3)
	manifest.RecordStepStart("a", "a", 10, 3)

	clone := manifest.Clone()
	assert.Equal(t, manifest.ID, clone.ID)
	assert.Len(t, clone.StepExecutions, 1)

	clone.RecordStepSkipped("b", "b", "skipped")
	assert.Len(t, manifest.StepExecutions, 1)
	assert.Len(t, clone.StepExecutions, 2)
}

func TestRunManifestConcurrentUpdates(t *testing.T) {
	manifest := NewRunManifest("run-race", "default")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			manifest.RecordStepStart("a", "a", i, 3)
			manifest.RecordStepCompletion("a", i, 3, nil)
		}
		close(done)
	}()

	for i := 0; i < 50; i++ {
		manifest.Progress()
		manifest.IsStepCompleted("a")
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("concurrent updates deadlocked")
	}
}
