package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitRun(t *testing.T, runs <-chan struct{}) {
	t.Helper()
	select {
	case <-runs:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for run")
	}
}

func TestWatcher(t *testing.T) {
	t.Run("options", func(t *testing.T) {
		_, err := NewWatcherWithOptions(nil, nil)
		assert.Error(t, err)
		_, err = NewWatcherWithOptions(&WatcherOptions{}, nil)
		assert.Error(t, err)
	})

	t.Run("missing dir", func(t *testing.T) {
		w, err := NewWatcherWithOptions(&WatcherOptions{Dirs: []string{filepath.Join(t.TempDir(), "missing")}}, nil)
		require.NoError(t, err)
		err = w.Watch(context.Background(), func(ctx context.Context) error { return nil })
		assert.Error(t, err)
	})

	t.Run("runs on start and on change", func(t *testing.T) {
		dir := t.TempDir()
		w, err := NewWatcherWithOptions(&WatcherOptions{Dirs: []string{dir}, Debounce: 20 * time.Millisecond}, nil)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		runs := make(chan struct{}, 10)
		done := make(chan error, 1)
		go func() {
			done <- w.Watch(ctx, func(ctx context.Context) error {
				runs <- struct{}{}
				return errors.New("failed runs do not stop watching")
			})
		}()

		waitRun(t, runs)

		require.NoError(t, os.WriteFile(filepath.Join(dir, "user.json"), []byte(`{}`), 0644))
		waitRun(t, runs)

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("watch did not stop")
		}
	})

	t.Run("ignores non declaration files", func(t *testing.T) {
		dir := t.TempDir()
		w, err := NewWatcherWithOptions(&WatcherOptions{Dirs: []string{dir}, Debounce: 20 * time.Millisecond}, nil)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		runs := make(chan struct{}, 10)
		go func() {
			_ = w.Watch(ctx, func(ctx context.Context) error {
				runs <- struct{}{}
				return nil
			})
		}()

		waitRun(t, runs)

		require.NoError(t, os.WriteFile(filepath.Join(dir, "_draft.json"), []byte(`{}`), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`x`), 0644))

		select {
		case <-runs:
			t.Fatal("unexpected run")
		case <-time.After(300 * time.Millisecond):
		}
	})
}
