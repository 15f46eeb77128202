package index

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watcher wraps an fsnotify.Watcher with debounced, coalesced delivery of
// Events to the owning Index, and a bounded pending set so a burst of
// filesystem churn (e.g. a build tool rewriting thousands of files) can
// never grow memory unbounded: once the pending set exceeds
// MaxPendingEvents it drops the oldest pending path and falls back to a
// full Rescan.
type watcher struct {
	ix  *Index
	fsw *fsnotify.Watcher
	log *slog.Logger

	mu         sync.Mutex
	pending    map[string]struct{}
	order      []string
	timer      *time.Timer
	closed     bool
	overflowed bool

	debounce   time.Duration
	maxPending int

	done chan struct{}
}

// startWatcher creates and arms a recursive watch rooted at ix.Base(),
// returning nil (not an error) if fsnotify itself is unavailable on this
// platform — watching is a best-effort enhancement, not a hard dependency
// of a working index.
func startWatcher(ix *Index, log *slog.Logger) *watcher {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		if log != nil {
			log.Warn("filesystem watcher unavailable", "error", err)
		}
		return nil
	}
	if log == nil {
		log = slog.Default()
	}
	w := &watcher{
		ix:         ix,
		fsw:        fsw,
		log:        log,
		pending:    make(map[string]struct{}),
		debounce:   time.Duration(ix.cfg.WatchDebounce) * time.Millisecond,
		maxPending: ix.cfg.MaxPendingEvents,
		done:       make(chan struct{}),
	}
	if err := w.fsw.Add(ix.Base()); err != nil {
		log.Warn("initial watch registration failed", "error", err)
	}
	for _, r := range ix.Snapshot().Records {
		if dir := parentOf(r.AbsolutePath); dir != ix.Base() {
			_ = w.fsw.Add(dir)
		}
	}
	go w.loop()
	return w
}

func (w *watcher) loop() {
	defer w.fsw.Close()
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleRaw(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// handleRaw coalesces a raw fsnotify event into the pending set and
// (re)arms the debounce timer. Directory creates are registered for
// watching immediately so nested files aren't missed.
func (w *watcher) handleRaw(ev fsnotify.Event) {
	if ev.Op&fsnotify.Create != 0 {
		if isDirNoFollow(ev.Name) {
			if err := w.fsw.Add(ev.Name); err != nil {
				w.log.Warn("failed to watch new directory", "path", ev.Name, "error", err)
			}
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if _, exists := w.pending[ev.Name]; !exists {
		if len(w.pending) >= w.maxPending {
			w.dropOldestLocked()
		}
		w.pending[ev.Name] = struct{}{}
		w.order = append(w.order, ev.Name)
	}
	if w.timer == nil {
		w.timer = time.AfterFunc(w.debounce, w.flush)
	} else {
		w.timer.Reset(w.debounce)
	}
}

// dropOldestLocked evicts the longest-pending path and marks the batch for
// a full rescan instead of a targeted apply, since an unbounded burst means
// incremental bookkeeping can no longer be trusted to be complete.
func (w *watcher) dropOldestLocked() {
	if len(w.order) == 0 {
		return
	}
	oldest := w.order[0]
	w.order = w.order[1:]
	delete(w.pending, oldest)
	w.overflowed = true
}

func (w *watcher) flush() {
	w.mu.Lock()
	paths := w.order
	w.order = nil
	w.pending = make(map[string]struct{})
	overflowed := w.overflowed
	w.overflowed = false
	w.timer = nil
	w.mu.Unlock()

	if overflowed {
		w.log.Warn("watch event backlog overflowed, forcing full rescan")
		if err := w.ix.Rescan(); err != nil {
			w.log.Warn("forced rescan failed", "error", err)
		}
		return
	}

	for _, p := range paths {
		if err := w.ix.upsert(p); err != nil {
			w.log.Warn("apply watch event failed", "path", p, "error", err)
		}
	}
}

func (w *watcher) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	close(w.done)
}

func parentOf(abs string) string { return filepath.Dir(abs) }

func isDirNoFollow(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.IsDir()
}
