package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce absorbs editor write bursts (truncate + write + chmod).
const watchDebounce = 300 * time.Millisecond

// Watch reloads the config whenever the file changes and calls onReload with
// the fresh copy. Tunables take effect through c on the next read; structural
// settings (database mode, health listener) need a restart and are only
// overwritten in the shared struct for consistency.
//
// The parent directory is watched, not the file: editors and orchestrators
// replace config files via rename, which drops a direct file watch.
func Watch(ctx context.Context, path string, c *Config, onReload func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		var pending *time.Timer
		lastHash := c.Hash()

		reload := func() {
			fresh, err := Load(path)
			if err != nil {
				slog.Warn("config reload failed, keeping previous", "path", path, "error", err)
				return
			}
			if fresh.Hash() == lastHash {
				return
			}
			lastHash = fresh.Hash()
			c.ReplaceFrom(fresh)
			slog.Info("config reloaded", "path", path)
			if onReload != nil {
				onReload(fresh)
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(watchDebounce, reload)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", "error", err)
			}
		}
	}()

	return nil
}
