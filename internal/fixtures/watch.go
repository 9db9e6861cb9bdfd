package fixtures

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/certhub/internal/debounce"
)

// reloadDelay coalesces editor save bursts (write, chmod, rename) into one reload.
const reloadDelay = 200 * time.Millisecond

// Watch watches the seed file at path and calls onChange with the reloaded
// seed after each burst of writes. It blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file so that editors which
// replace the file by rename keep being observed.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(Seed)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	// mu is held across onChange; once stopped is set no callback runs, and
	// Watch does not return while one is in progress.
	var (
		mu      sync.Mutex
		stopped bool
	)
	loader := File(abs)
	reload := debounce.New(0, reloadDelay, debounce.WithOnSettle(func(int) {
		mu.Lock()
		defer mu.Unlock()
		if stopped || ctx.Err() != nil {
			return
		}
		seed, err := loader.Load(ctx)
		if err != nil {
			logger.Warn("fixtures: reload failed", slog.String("path", abs), slog.String("error", err.Error()))
			return
		}
		logger.Info("fixtures: reloaded", slog.String("path", abs), slog.Int("certificates", len(seed.Certificates)))
		onChange(seed)
	}))
	defer func() {
		reload.Stop()
		mu.Lock()
		stopped = true
		mu.Unlock()
	}()

	logger.Info("fixtures: watching", slog.String("path", abs))

	events := 0
	for {
		select {
		case <-ctx.Done():
			logger.Info("fixtures: watcher stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			events++
			reload.Set(events)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("fixtures: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
