package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher перечитывает файл конфигурации при изменении
type Watcher struct {
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	path    string
	envFile string
}

// NewWatcher starts watching the directory of path. The directory is watched
// instead of the file so that editors replacing the file by rename are seen.
func NewWatcher(path, envFile string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	return &Watcher{watcher: w, logger: logger, path: abs, envFile: envFile}, nil
}

// Run delivers every successfully reloaded config to onChange until ctx is
// done. A config that fails to load is logged and skipped.
func (w *Watcher) Run(ctx context.Context, onChange func(*Config)) error {
	defer func() { _ = w.watcher.Close() }()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := Load(w.path, w.envFile)
			if err != nil {
				w.logger.Warn("Config reload failed, keeping previous settings", "path", w.path, "error", err)
				continue
			}
			w.logger.Info("Config reloaded", "path", w.path)
			onChange(cfg)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Config watcher error", "error", err)
		}
	}
}
