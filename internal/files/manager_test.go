package files

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"prepcli/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPaths(t *testing.T) *config.Paths {
	t.Helper()

	base := t.TempDir()
	paths := &config.Paths{
		WorkingDir: base,
		DataDir:    filepath.Join(base, "data"),
		OutputDir:  filepath.Join(base, "data", "cleaned"),
		ReportsDir: filepath.Join(base, "data", "reports"),
		LogsDir:    filepath.Join(base, "logs"),
	}
	require.NoError(t, paths.EnsureDirectories())
	return paths
}

func TestNewManager(t *testing.T) {
	paths := &config.Paths{
		WorkingDir: "/srv/prep",
		DataDir:    "/srv/prep/data",
	}

	manager := NewManager(paths)
	assert.NotNil(t, manager)
	assert.Equal(t, paths, manager.paths)
}

func TestFileExists(t *testing.T) {
	paths := newTestPaths(t)
	manager := NewManager(paths)

	relPath := "census.csv"
	fullPath := filepath.Join(paths.DataDir, relPath)
	require.NoError(t, os.WriteFile(fullPath, []byte("a,b\n1,2\n"), 0644))

	assert.True(t, manager.FileExists(relPath), "relative path resolves into the data directory")
	assert.True(t, manager.FileExists(fullPath), "absolute path is used as-is")
	assert.False(t, manager.FileExists("missing.csv"))
}

func TestCreateDirectory(t *testing.T) {
	paths := newTestPaths(t)
	manager := NewManager(paths)

	require.NoError(t, manager.CreateDirectory("staging/batch_01"))

	info, err := os.Stat(filepath.Join(paths.DataDir, "staging", "batch_01"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCopyFile(t *testing.T) {
	paths := newTestPaths(t)
	manager := NewManager(paths)

	content := []byte("name,score\nalice,90\n")
	require.NoError(t, os.WriteFile(filepath.Join(paths.DataDir, "scores.csv"), content, 0644))

	t.Run("copies into the output directory", func(t *testing.T) {
		require.NoError(t, manager.CopyFile("scores.csv", "cleaned/scores.csv"))

		copied, err := os.ReadFile(filepath.Join(paths.OutputDir, "scores.csv"))
		require.NoError(t, err)
		assert.Equal(t, content, copied)

		// Source is untouched
		assert.True(t, manager.FileExists("scores.csv"))
	})

	t.Run("creates missing destination directories", func(t *testing.T) {
		require.NoError(t, manager.CopyFile("scores.csv", "reports/archive/scores.csv"))
		assert.FileExists(t, filepath.Join(paths.ReportsDir, "archive", "scores.csv"))
	})

	t.Run("missing source fails", func(t *testing.T) {
		err := manager.CopyFile("ghost.csv", "cleaned/ghost.csv")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open source file")
	})
}

func TestMoveFile(t *testing.T) {
	paths := newTestPaths(t)
	manager := NewManager(paths)

	content := []byte("col\nval\n")
	require.NoError(t, os.WriteFile(filepath.Join(paths.DataDir, "inbox.csv"), content, 0644))

	require.NoError(t, manager.MoveFile("inbox.csv", "cleaned/inbox.csv"))

	moved, err := os.ReadFile(filepath.Join(paths.OutputDir, "inbox.csv"))
	require.NoError(t, err)
	assert.Equal(t, content, moved)
	assert.False(t, manager.FileExists("inbox.csv"), "source should be gone after a move")
}

func TestArchiveFile(t *testing.T) {
	t.Run("existing output is stamped and moved aside", func(t *testing.T) {
		paths := newTestPaths(t)
		manager := NewManager(paths)

		content := []byte("name,score\nalice,90\n")
		target := filepath.Join(paths.OutputDir, "scores_cleaned.csv")
		require.NoError(t, os.WriteFile(target, content, 0644))

		archived, err := manager.ArchiveFile("cleaned/scores_cleaned.csv")
		require.NoError(t, err)
		require.NotEmpty(t, archived)

		assert.Equal(t, filepath.Join(paths.OutputDir, "archive"), filepath.Dir(archived))
		assert.True(t, strings.HasPrefix(filepath.Base(archived), "scores_cleaned_"))
		assert.Equal(t, ".csv", filepath.Ext(archived))

		moved, err := os.ReadFile(archived)
		require.NoError(t, err)
		assert.Equal(t, content, moved)
		assert.NoFileExists(t, target)
	})

	t.Run("missing file archives nothing", func(t *testing.T) {
		paths := newTestPaths(t)
		manager := NewManager(paths)

		archived, err := manager.ArchiveFile("cleaned/ghost.csv")
		require.NoError(t, err)
		assert.Empty(t, archived)
	})

	t.Run("repeated archives never collide", func(t *testing.T) {
		paths := newTestPaths(t)
		manager := NewManager(paths)
		target := filepath.Join(paths.OutputDir, "scores_cleaned.csv")

		require.NoError(t, os.WriteFile(target, []byte("first\n"), 0644))
		first, err := manager.ArchiveFile("cleaned/scores_cleaned.csv")
		require.NoError(t, err)

		require.NoError(t, os.WriteFile(target, []byte("second\n"), 0644))
		second, err := manager.ArchiveFile("cleaned/scores_cleaned.csv")
		require.NoError(t, err)

		assert.NotEqual(t, first, second)
		assert.FileExists(t, first)
		assert.FileExists(t, second)
	})
}

func TestDeleteFile(t *testing.T) {
	paths := newTestPaths(t)
	manager := NewManager(paths)

	path := filepath.Join(paths.DataDir, "stale.csv")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	require.NoError(t, manager.DeleteFile("stale.csv"))
	assert.NoFileExists(t, path)

	assert.Error(t, manager.DeleteFile("stale.csv"), "deleting twice should fail")
}

func TestGetFileSize(t *testing.T) {
	paths := newTestPaths(t)
	manager := NewManager(paths)

	content := []byte("name,score\n")
	require.NoError(t, os.WriteFile(filepath.Join(paths.DataDir, "sized.csv"), content, 0644))

	size, err := manager.GetFileSize("sized.csv")
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), size)

	_, err = manager.GetFileSize("missing.csv")
	assert.Error(t, err)
}

func TestReadWriteFile(t *testing.T) {
	paths := newTestPaths(t)
	manager := NewManager(paths)

	data := []byte(`{"rows": 3}`)
	require.NoError(t, manager.WriteFile("reports/summaries/census.json", data))

	// Intermediate directories are created on demand
	assert.FileExists(t, filepath.Join(paths.ReportsDir, "summaries", "census.json"))

	read, err := manager.ReadFile("reports/summaries/census.json")
	require.NoError(t, err)
	assert.Equal(t, data, read)
}

func TestListFiles(t *testing.T) {
	paths := newTestPaths(t)
	manager := NewManager(paths)

	for _, name := range []string{"a.csv", "b.csv"} {
		require.NoError(t, os.WriteFile(filepath.Join(paths.DataDir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(paths.DataDir, "nested"), 0755))

	files, err := manager.ListFiles(".")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.csv", "b.csv"}, files, "directories are excluded")

	_, err = manager.ListFiles("missing")
	assert.Error(t, err)
}

func TestEnsureDirectory(t *testing.T) {
	paths := newTestPaths(t)
	manager := NewManager(paths)

	require.NoError(t, manager.EnsureDirectory("staging"))
	require.NoError(t, manager.EnsureDirectory("staging"), "existing directory is fine")

	info, err := os.Stat(filepath.Join(paths.DataDir, "staging"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestPathResolution(t *testing.T) {
	paths := newTestPaths(t)
	manager := NewManager(paths)

	tests := []struct {
		name      string
		inputPath string
		expected  string
	}{
		{
			name:      "cleaned prefix",
			inputPath: "cleaned/scores.csv",
			expected:  filepath.Join(paths.OutputDir, "scores.csv"),
		},
		{
			name:      "reports prefix",
			inputPath: "reports/census.json",
			expected:  filepath.Join(paths.ReportsDir, "census.json"),
		},
		{
			name:      "logs prefix",
			inputPath: "logs/run.log",
			expected:  filepath.Join(paths.LogsDir, "run.log"),
		},
		{
			name:      "absolute path unchanged",
			inputPath: "/var/tmp/input.csv",
			expected:  "/var/tmp/input.csv",
		},
		{
			name:      "default data directory",
			inputPath: "census.csv",
			expected:  filepath.Join(paths.DataDir, "census.csv"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, manager.resolvePath(tt.inputPath))
		})
	}
}

func TestGetRelativePath(t *testing.T) {
	paths := newTestPaths(t)
	manager := NewManager(paths)

	rel, err := manager.GetRelativePath(filepath.Join(paths.OutputDir, "scores.csv"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("data", "cleaned", "scores.csv"), rel)
}

func TestConcurrentFileOperations(t *testing.T) {
	paths := newTestPaths(t)
	manager := NewManager(paths)

	const numGoroutines = 10
	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			name := fmt.Sprintf("part_%02d.csv", n)
			data := []byte(fmt.Sprintf("part,%d\n", n))
			if err := manager.WriteFile(name, data); err != nil {
				errs <- err
				return
			}

			read, err := manager.ReadFile(name)
			if err != nil {
				errs <- err
				return
			}
			if string(read) != string(data) {
				errs <- fmt.Errorf("content mismatch for %s", name)
			}
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	files, err := manager.ListFiles(".")
	require.NoError(t, err)
	assert.Len(t, files, numGoroutines)
}
