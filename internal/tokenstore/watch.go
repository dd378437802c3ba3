package tokenstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the burst of events one save produces
// (temp file create, rename, chmod) into a single callback.
const watchDebounce = 200 * time.Millisecond

// Watch calls onChange after the token stored at path is written or removed,
// by this process or another one (a CLI login or logout while the server
// runs). It watches the parent directory because saves replace the file by
// rename. SQLite sidecar files (-wal, -journal) count as the store. Blocks
// until ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(), logger *slog.Logger) error {
	return watch(ctx, path, watchDebounce, onChange, logger)
}

func watch(ctx context.Context, path string, debounce time.Duration, onChange func(), logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirPerms); err != nil {
		return fmt.Errorf("tokenstore: creating directory %s: %w", dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tokenstore: creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("tokenstore: watching %s: %w", dir, err)
	}

	logger.Debug("watching token store", slog.String("path", path))

	base := filepath.Base(path)

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if !ownsName(base, filepath.Base(ev.Name)) {
				continue
			}

			// Permission-only changes never alter the record.
			if ev.Op == fsnotify.Chmod {
				continue
			}

			timer.Reset(debounce)

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.Warn("token store watcher error", slog.String("error", watchErr.Error()))

		case <-timer.C:
			logger.Debug("token store changed on disk", slog.String("path", path))
			onChange()
		}
	}
}

// ownsName reports whether name is the token file or one of its SQLite
// sidecars. Temp files from atomic saves are ignored; the rename that
// follows them is what counts.
func ownsName(base, name string) bool {
	if name == base {
		return true
	}

	suffix, ok := strings.CutPrefix(name, base)

	return ok && (suffix == "-wal" || suffix == "-journal")
}
