package settings

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"mps/internal/logging"
)

// Watch reloads the store when another process rewrites the settings file.
// It blocks until the context is canceled. Watcher failures are reported via
// the returned error only when the watcher cannot start at all; runtime
// errors are logged and watching continues.
func (s *Store) Watch(ctx context.Context, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	log := logging.NewComponentLogger(logger, "settings")

	// Watch the directory: atomic rename replaces the file inode, so a watch
	// on the file itself would go stale after the first external write.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return err
	}

	base := filepath.Base(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := s.Reload(); err != nil {
				log.Warn("settings reload failed", logging.Error(err))
				continue
			}
			log.Debug("settings reloaded", logging.Int("threshold", s.Threshold()))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("settings watcher error", logging.Error(err))
		}
	}
}
