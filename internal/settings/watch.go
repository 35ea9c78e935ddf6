package settings

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the settings file into store whenever it changes, until ctx
// is done. The parent directory is watched so editors that replace the file
// are picked up. A file that fails to parse leaves the previous settings in
// place; a removed file restores the defaults.
func Watch(ctx context.Context, path string, store *Store, logger *slog.Logger) error {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
					!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				reload(path, store, logger)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("settings watcher error", "error", err)
			}
		}
	}()

	return nil
}

func reload(path string, store *Store, logger *slog.Logger) {
	s, err := Load(path)
	if err != nil {
		logger.Warn("keeping previous settings", "path", path, "error", err)
		return
	}
	store.Set(s)
	logger.Info("settings reloaded", "path", path, "helpers", s.Helpers, "popularTerms", len(s.Popular))
}
