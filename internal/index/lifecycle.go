package index

import (
	"log/slog"
	"os"

	"github.com/example/filepicker/internal/clock"
	"github.com/example/filepicker/internal/model"
)

// StartWatching performs the initial Rescan and then arms the background
// fsnotify watcher. It is separate from New so a caller can inspect or
// query the index between construction and the first scan if needed, and
// so watcher startup failures (not fatal) can be logged distinctly from
// scan failures (which are).
func (ix *Index) StartWatching(log *slog.Logger) error {
	if err := ix.Rescan(); err != nil {
		return err
	}
	ix.watcher = startWatcher(ix, log)
	return nil
}

// Restart points the index at a new base directory, stopping the old
// watcher, clearing all entries, and performing a fresh scan. This always
// bumps the generation counter, invalidating any previously issued
// index_id for callers that didn't already expect a rescan to do so.
func (ix *Index) Restart(newBase string, log *slog.Logger) error {
	if ix.watcher != nil {
		ix.watcher.Close()
		ix.watcher = nil
	}
	abs, err := clock.Canonical(newBase)
	if err != nil {
		return &ErrInvalidBase{Path: newBase}
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return &ErrInvalidBase{Path: newBase}
	}

	ix.mu.Lock()
	ix.entries = make(map[string]*model.FileRecord)
	ix.nextID.Store(0)
	ix.base.Store(&abs)
	ix.publish()
	ix.mu.Unlock()

	return ix.StartWatching(log)
}

// Close stops the background watcher, if any. It is safe to call on an
// index that was never started.
func (ix *Index) Close() {
	if ix.watcher != nil {
		ix.watcher.Close()
		ix.watcher = nil
	}
}
