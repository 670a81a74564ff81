package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of writes from editors and copy tools.
const DefaultDebounce = 500 * time.Millisecond

// Watcher re-runs a pipeline whenever the source file changes.
// The pipeline should be built with WithClearFirst(true) so reruns replace
// the previous chunks instead of duplicating them.
type Watcher struct {
	pipeline *Pipeline
	path     string
	debounce time.Duration
	onRun    func(*Report, error)
	logger   *slog.Logger
}

// NewWatcher creates a watcher for path. onRun, if non-nil, receives the
// outcome of each rerun.
func NewWatcher(pipeline *Pipeline, path string, debounce time.Duration, onRun func(*Report, error)) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		pipeline: pipeline,
		path:     filepath.Clean(path),
		debounce: debounce,
		onRun:    onRun,
		logger:   slog.Default().With("component", "watcher"),
	}
}

// Watch blocks until ctx is done. The parent directory is watched so that
// files replaced by rename are still seen.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.logger.Info("watching source", "path", w.path)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer.Reset(w.debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "err", err)
		case <-timer.C:
			report, err := w.pipeline.Run(ctx, w.path)
			if err != nil {
				w.logger.Error("re-ingestion failed", "path", w.path, "err", err)
			} else {
				w.logger.Info("re-ingested source", "path", w.path, "chunks", report.Stored)
			}
			if w.onRun != nil {
				w.onRun(report, err)
			}
		}
	}
}
