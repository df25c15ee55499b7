package consent

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrNotWatchable is returned by Watch when the store is not file-backed.
var ErrNotWatchable = errors.New("approval store is not file-backed")

// Watch reloads the approval set whenever another process rewrites or
// removes the store file, until ctx is cancelled.
func (m *Manager) Watch(ctx context.Context) error {
	ps, ok := m.store.(interface{ Path() string })
	if !ok {
		return ErrNotWatchable
	}
	path := ps.Path()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: atomic saves replace the file, which would drop a
	// watch placed on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				m.Load()
				m.logger.Debug("approvals_reloaded", zap.String("op", ev.Op.String()))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn("approvals_watch_error", zap.Error(err))
		}
	}
}
