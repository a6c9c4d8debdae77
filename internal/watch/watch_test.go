package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldIgnore(t *testing.T) {
	ignored := []string{
		"/src/demo/.git",
		"/src/demo/.git/objects/ab",
		"/src/demo/__pycache__",
		"/src/demo/pkg/__pycache__/mod.cpython-312.pyc",
		"/src/demo/demo.egg-info",
		"/src/demo/dist",
		"/src/demo/build",
		"/src/demo/.venv",
		"/src/demo/module.pyc",
		"/src/demo/.main.py.swp",
		"/src/demo/main.py~",
	}
	for _, p := range ignored {
		assert.True(t, shouldIgnore(p), p)
	}

	watched := []string{
		"/src/demo/pyproject.toml",
		"/src/demo/src/demo/__init__.py",
		"/src/demo/README.md",
		"/src/demo/builder.py",
	}
	for _, p := range watched {
		assert.False(t, shouldIgnore(p), p)
	}
}

func TestWatcher_InitialBuildFailureAborts(t *testing.T) {
	w := New(t.TempDir(), 10*time.Millisecond, func(context.Context) error {
		return os.ErrPermission
	})

	err := w.Run(context.Background())
	require.ErrorIs(t, err, os.ErrPermission)
}

func TestWatcher_RebuildsOnChange(t *testing.T) {
	source := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(source, "pyproject.toml"), []byte("[build-system]\n"), 0o644))

	var builds atomic.Int32
	w := New(source, 20*time.Millisecond, func(context.Context) error {
		builds.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Initial build.
	require.Eventually(t, func() bool { return builds.Load() >= 1 },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(source, "module.py"), []byte("x = 1\n"), 0o644))

	require.Eventually(t, func() bool { return builds.Load() >= 2 },
		2*time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestWatcher_CancelStopsRun(t *testing.T) {
	w := New(t.TempDir(), 10*time.Millisecond, func(context.Context) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}
