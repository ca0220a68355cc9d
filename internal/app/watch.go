package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce collapses the burst of events an editor save produces.
const watchDebounce = 200 * time.Millisecond

// Watch builds once and rebuilds whenever a model file changes, until ctx
// is cancelled. Build failures are logged and do not stop watching.
func (a *App) Watch(ctx context.Context) error {
	paths, err := a.modelFiles()
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Directories are watched rather than files: editors replace files on
	// save, which drops a watch on the file itself.
	files := make(map[string]struct{}, len(paths))
	dirs := make(map[string]struct{})
	for _, p := range paths {
		files[filepath.Clean(p)] = struct{}{}
		dir := filepath.Dir(p)
		if _, ok := dirs[dir]; ok {
			continue
		}
		dirs[dir] = struct{}{}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	a.rebuild(ctx)
	a.logger.Info("👀 Watching for changes.", "files", len(files), "directories", len(dirs))

	trigger := make(chan struct{}, 1)
	debounce := time.AfterFunc(time.Hour, func() {
		select {
		case trigger <- struct{}{}:
		default:
		}
	})
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Watch stopped.")
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevantEvent(ev, files) {
				continue
			}
			a.logger.Debug("Model file changed.", "path", ev.Name, "op", ev.Op.String())
			debounce.Reset(watchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("File watcher error.", "error", err)
		case <-trigger:
			a.logger.Info("Change detected, rebuilding.")
			a.rebuild(ctx)
		}
	}
}

func (a *App) rebuild(ctx context.Context) {
	if err := a.Build(ctx); err != nil {
		a.logger.Error("Build failed.", "error", err)
	}
}

// relevantEvent reports whether ev changes a watched model file or adds a
// new one next to them.
func relevantEvent(ev fsnotify.Event, files map[string]struct{}) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	if _, ok := files[filepath.Clean(ev.Name)]; ok {
		return true
	}
	return filepath.Ext(ev.Name) == modelExtension
}
