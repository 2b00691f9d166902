package persist

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/arbor/internal/checksum"
	"github.com/starford/arbor/internal/models"
	"github.com/starford/arbor/internal/storage"
	"github.com/starford/arbor/internal/tree"
)

// ReloadFunc receives a forest that was changed outside this process.
type ReloadFunc func(models.Forest) error

const watchDebounce = 150 * time.Millisecond

// Watch follows the file backing key in an FS store and calls reload when
// its content changes to something other than what saver last wrote.
// Writes land through rename, so the directory is watched rather than the
// file. Undecodable content is logged and ignored.
func Watch(ctx context.Context, store *storage.FS, key string, saver *Saver, logger *slog.Logger, reload ReloadFunc) error {
	target, err := store.Path(key)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(store.Root()); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("path", target))

	var timer *time.Timer
	var fire <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(watchDebounce)
			fire = timer.C
		} else {
			timer.Reset(watchDebounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			reloadFromStore(ctx, store, key, saver, logger, reload)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func reloadFromStore(ctx context.Context, store storage.Store, key string, saver *Saver, logger *slog.Logger, reload ReloadFunc) {
	data, err := store.Get(ctx, key)
	if err != nil {
		logger.Warn("watcher: read failed", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	sum := checksum.Sum(data)
	if sum == saver.LastChecksum() {
		return
	}
	f, err := Decode(data)
	if err != nil {
		logger.Warn("watcher: ignoring invalid tree", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	saver.Remember(sum)
	if err := reload(f); err != nil {
		logger.Warn("watcher: reload failed", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	logger.Info("watcher: reloaded", slog.String("key", key), slog.Int("nodes", len(tree.IDs(f))))
}
