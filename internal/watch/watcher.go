// Package watch re-runs a job when any of a set of files changes.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/seqharness/internal/ports"
	"github.com/bft-labs/seqharness/pkg/log"
)

// DefaultDebounceDelay is the quiet time after a change before the job runs.
const DefaultDebounceDelay = 200 * time.Millisecond

// Config holds watcher options.
type Config struct {
	// DebounceDelay is the delay to wait after a file change before running.
	// Default: 200 milliseconds
	DebounceDelay time.Duration
}

// Watcher runs a job once and again after every burst of file changes.
type Watcher struct {
	mu            sync.Mutex
	debounceDelay time.Duration
	logger        ports.Logger
	debounce      *time.Timer
	trigger       chan struct{}
}

// New creates a watcher.
func New(cfg Config, logger ports.Logger) *Watcher {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = DefaultDebounceDelay
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Watcher{
		debounceDelay: cfg.DebounceDelay,
		logger:        logger,
		trigger:       make(chan struct{}, 1),
	}
}

// Run calls job immediately and then after changes to files, until ctx is
// done. Jobs never overlap. The containing directories are watched so that
// files replaced by editors are still seen.
func (w *Watcher) Run(ctx context.Context, files []string, job func(context.Context)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	watched := make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		watched[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	job(ctx)

	for {
		select {
		case <-ctx.Done():
			w.stopDebounce()
			return nil

		case <-w.trigger:
			w.logger.Info("files changed, running again")
			job(ctx)

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !watched[abs] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("file changed", log.String("file", abs), log.String("op", event.Op.String()))
			w.debounceFire()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", log.Err(err))
		}
	}
}

func (w *Watcher) debounceFire() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(w.debounceDelay, func() {
		select {
		case w.trigger <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) stopDebounce() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
}
