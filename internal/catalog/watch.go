package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultSettle is how long the file must stay quiet before a reload.
const DefaultSettle = 250 * time.Millisecond

// Watch reloads the override file whenever it changes until ctx ends. The
// parent directory is watched so editors that replace the file by rename
// are followed. With the embedded catalog there is nothing to watch and
// Watch returns immediately.
func (s *Source) Watch(ctx context.Context, settle time.Duration) error {
	if s.path == "" {
		return nil
	}
	if settle <= 0 {
		settle = DefaultSettle
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog watcher: %w", err)
	}
	target := filepath.Clean(s.path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	go s.watchLoop(ctx, w, target, settle)
	return nil
}

func (s *Source) watchLoop(ctx context.Context, w *fsnotify.Watcher, target string, settle time.Duration) {
	defer w.Close()

	timer := time.NewTimer(settle)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			s.logger.Debug("catalog file changed", zap.String("op", ev.Op.String()))
			timer.Reset(settle)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("catalog watcher error", zap.Error(err))
		case <-timer.C:
			_ = s.Reload()
		}
	}
}
