package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/sleads/portal/pkg/observability"
)

// Watch watches the config file and hot-reloads the trusted-origins list on
// change. Returns immediately if no config file is in use. Blocks until ctx
// is done.
func (c *Config) Watch(ctx context.Context, path string, logger *observability.Logger) error {
	if path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors replace files on save and
	// the inode-level watch would be lost.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch config dir: %w", err)
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := c.reloadOrigins(path); err != nil {
				logger.WithError(err).WithField("path", path).Warn("config reload failed")
				continue
			}
			logger.WithField("origins", c.TrustedOrigins()).Info("trusted origins reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Warn("config watcher error")
		}
	}
}
