package file

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/tidemark/internal/logger"
)

// Watch reloads the configuration whenever the file changes on disk and
// signals each successful reload on the returned channel. The channel is
// closed when ctx is cancelled.
//
// The parent directory is watched rather than the file itself: most
// editors replace files by rename, which would detach a watch bound to
// the old inode.
func (s *ConfigStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(s.filePath)); err != nil {
		watcher.Close() //nolint:errcheck
		return nil, fmt.Errorf("watch config directory: %w", err)
	}

	reloads := make(chan struct{}, 1)

	go func() {
		defer close(reloads)
		defer watcher.Close() //nolint:errcheck

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != s.filePath {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := s.Load(); err != nil {
					// Keep serving the last good configuration
					logger.Warn("Config reload failed: %v", err)
					continue
				}
				logger.Info("Configuration reloaded from %s", s.filePath)
				select {
				case reloads <- struct{}{}:
				default:
					// Listener hasn't drained the previous signal; reloads coalesce
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Config watcher error: %v", err)
			}
		}
	}()

	return reloads, nil
}
