// Package index maintains the live, queryable file index: a
// parallel-scanning indexer with a copy-on-write snapshot for lock-free
// reads, an incremental apply path for watcher events, and a bounded,
// debounced fsnotify watcher. Records carry stable index IDs, a
// generation counter, and per-record locking for idempotent updates
// (mtime, size, git status).
package index

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/example/filepicker/internal/clock"
	"github.com/example/filepicker/internal/model"
)

// ErrInvalidBase is returned when the supplied base path is not a readable
// directory.
type ErrInvalidBase struct{ Path string }

func (e *ErrInvalidBase) Error() string { return fmt.Sprintf("index: invalid base path %q", e.Path) }

// ErrScanFailed is returned when the root itself cannot be walked.
type ErrScanFailed struct {
	Path string
	Err  error
}

func (e *ErrScanFailed) Error() string {
	return fmt.Sprintf("index: scan of %q failed: %v", e.Path, e.Err)
}

func (e *ErrScanFailed) Unwrap() error { return e.Err }

// IgnorePredicate reports whether relPath (slash-separated, relative to the
// index's base) should be excluded from the index. It is supplied at init
// rather than hard-coded; DefaultIgnore implements the fallback
// (dot-components and .git).
type IgnorePredicate func(relPath string, isDir bool) bool

// Config configures a new Index.
type Config struct {
	MaxThreads       int
	Ignore           IgnorePredicate
	WatchDebounce    durationOrDefault
	MaxPendingEvents int
}

// durationOrDefault exists only so Config's zero value is a legal,
// documented default without importing time at every call site that builds
// a Config.
type durationOrDefault = int64 // milliseconds; 0 means DefaultDebounceMillis

const (
	DefaultMaxThreads       = 4
	DefaultDebounceMillis   = 75
	DefaultMaxPendingEvents = 4096
)

func (c Config) normalized() Config {
	if c.MaxThreads <= 0 {
		c.MaxThreads = DefaultMaxThreads
	}
	if c.Ignore == nil {
		c.Ignore = DefaultIgnore
	}
	if c.WatchDebounce <= 0 {
		c.WatchDebounce = DefaultDebounceMillis
	}
	if c.MaxPendingEvents <= 0 {
		c.MaxPendingEvents = DefaultMaxPendingEvents
	}
	return c
}

// Snapshot is an immutable, shareable view of the index at a point in time.
// Readers obtain one via Index.Snapshot and never block writers; a stale
// Snapshot remains fully valid (its *model.FileRecord pointers keep
// receiving idempotent mutations such as git-status refreshes, but never
// disappear) until the holder drops it.
type Snapshot struct {
	Generation uint64
	Records    []*model.FileRecord
	byPath     map[string]*model.FileRecord
}

// Lookup resolves an absolute path to its record within this snapshot.
func (s *Snapshot) Lookup(absPath string) (*model.FileRecord, bool) {
	r, ok := s.byPath[absPath]
	return r, ok
}

// Index owns the live file set under Base. All structural mutations
// (insert, delete, full rescan, restart) go through the writer lock and
// publish a fresh Snapshot; idempotent field mutations (stat refresh, git
// status) go through the record's own lock and require no snapshot swap.
type Index struct {
	cfg  Config
	base atomic.Pointer[string]

	generation atomic.Uint64
	nextID     atomic.Uint64

	mu      sync.Mutex // serializes structural mutation; readers never take it
	entries map[string]*model.FileRecord

	snap atomic.Pointer[Snapshot]

	watcher *watcher
}

// New validates basePath and constructs an Index with an empty snapshot
// published; callers should follow with Rescan (directly, or via
// StartWatching) to perform the initial scan. Keeping construction and
// the scan separate means queries against the empty/partial snapshot
// remain well defined even before the first scan completes.
func New(basePath string, cfg Config) (*Index, error) {
	abs, err := clock.Canonical(basePath)
	if err != nil {
		return nil, &ErrInvalidBase{Path: basePath}
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, &ErrInvalidBase{Path: basePath}
	}
	ix := &Index{
		cfg:     cfg.normalized(),
		entries: make(map[string]*model.FileRecord),
	}
	ix.base.Store(&abs)
	ix.publish()
	return ix, nil
}

// Base returns the current base directory.
func (ix *Index) Base() string { return *ix.base.Load() }

// Generation returns the current generation counter.
func (ix *Index) Generation() uint64 { return ix.generation.Load() }

// Snapshot returns the currently published, immutable view. It never
// blocks on the writer lock.
func (ix *Index) Snapshot() *Snapshot { return ix.snap.Load() }

// publish builds and atomically installs a new Snapshot from the current
// entries map, sorted by relative path for a stable, deterministic order.
// Callers must hold ix.mu.
func (ix *Index) publish() {
	sorted := make([]*model.FileRecord, 0, len(ix.entries))
	for _, r := range ix.entries {
		sorted = append(sorted, r)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].RelativePath < sorted[j].RelativePath
	})
	byPath := make(map[string]*model.FileRecord, len(sorted))
	for _, r := range sorted {
		byPath[r.AbsolutePath] = r
	}
	ix.snap.Store(&Snapshot{
		Generation: ix.generation.Load(),
		Records:    sorted,
		byPath:     byPath,
	})
}
