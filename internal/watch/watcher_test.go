package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcher_RunsOnStartAndOnChange(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "ramp.csv")
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(file, []byte("a"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runs := make(chan struct{}, 10)
	w := New(Config{DebounceDelay: 20 * time.Millisecond}, nil)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, []string{file}, func(context.Context) { runs <- struct{}{} })
	}()

	waitRun := func(msg string) {
		t.Helper()
		select {
		case <-runs:
		case <-time.After(5 * time.Second):
			t.Fatal(msg)
		}
	}
	waitRun("no initial run")

	// unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))
	select {
	case <-runs:
		t.Fatal("ran for an unwatched file")
	case <-time.After(200 * time.Millisecond):
	}

	// a burst of writes collapses into one run
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(file, []byte{byte('b' + i)}, 0o644))
	}
	waitRun("no run after change")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := New(Config{}, nil)
	err := w.Run(context.Background(), []string{filepath.Join(t.TempDir(), "gone", "x.csv")}, func(context.Context) {})
	require.Error(t, err)
}
