package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpString(t *testing.T) {
	assert.Equal(t, "created", OpCreated.String())
	assert.Equal(t, "modified", OpModified.String())
	assert.Equal(t, "deleted", OpDeleted.String())
	assert.Equal(t, "renamed", OpRenamed.String())
	assert.Equal(t, "unknown", Op(42).String())
}

func TestSourceFilter(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"src/Controller.php", true},
		{"views/home.phtml", true},
		{"stubforge.json", true},
		{"composer.lock", true},
		{".env", true},
		{"public/logo.png", false},
		{"README.md", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, SourceFilter(tt.path))
		})
	}
}

func TestNoEditorTempFilter(t *testing.T) {
	assert.True(t, NoEditorTempFilter("src/a.php"))
	assert.False(t, NoEditorTempFilter("src/a.php~"))
	assert.False(t, NoEditorTempFilter("src/.a.php.swp"))
	assert.False(t, NoEditorTempFilter("src/.#a.php"))
}

func TestIgnore(t *testing.T) {
	w, err := New(10*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Close()

	root := t.TempDir()
	w.Ignore(filepath.Join(root, "build"))

	assert.True(t, w.isIgnored(filepath.Join(root, "build")))
	assert.True(t, w.isIgnored(filepath.Join(root, "build", "linux-amd64", "app")))
	assert.False(t, w.isIgnored(filepath.Join(root, "buildx")))
	assert.False(t, w.isIgnored(filepath.Join(root, "src")))
}

func TestRunDeliversDebouncedBatch(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "build"), 0o755))

	w, err := New(50*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Close()

	w.AddFilter(SourceFilter)
	w.Ignore(filepath.Join(root, "build"))
	require.NoError(t, w.AddRecursive(root))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	batches := make(chan []Change, 10)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(_ context.Context, changes []Change) error {
			batches <- changes
			return nil
		})
	}()

	// Give the loop a moment to start selecting.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "build", "ignored.php"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "logo.png"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "a.php"), []byte("<?php"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.php"), []byte("<?php"), 0o644))

	seen := map[string]bool{}
	deadline := time.After(5 * time.Second)
	for len(seen) < 2 {
		select {
		case batch := <-batches:
			for _, c := range batch {
				seen[filepath.Base(c.Path)] = true
			}
		case <-deadline:
			t.Fatalf("timed out, saw %v", seen)
		}
	}

	assert.True(t, seen["a.php"])
	assert.True(t, seen["index.php"])
	assert.False(t, seen["logo.png"])
	assert.False(t, seen["ignored.php"])

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
