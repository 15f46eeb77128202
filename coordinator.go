// Package filepicker is the façade a host holds for the lifetime of one
// file-picker session: a single entry point that owns the index, the
// background watcher, the git tracker, and the frecency store, and
// dispatches queries against a consistent snapshot. One owning value,
// explicit Init/Close lifecycle, no process-wide singleton required of
// callers.
package filepicker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/example/filepicker/internal/clock"
	"github.com/example/filepicker/internal/config"
	"github.com/example/filepicker/internal/displayname"
	"github.com/example/filepicker/internal/frecency"
	"github.com/example/filepicker/internal/gittrack"
	"github.com/example/filepicker/internal/index"
	"github.com/example/filepicker/internal/model"
	"github.com/example/filepicker/internal/scorer"
	"github.com/example/filepicker/internal/tracing"
)

// Error kinds surfaced by the core.
var (
	ErrInvalidBase    = fmt.Errorf("filepicker: invalid base path")
	ErrNotInitialized = fmt.Errorf("filepicker: search or track called before init_file_picker")
	ErrDbUnavailable  = frecency.ErrUnavailable
	ErrGitUnavailable = gittrack.ErrUnavailable
)

// ResultItem is the public, language-neutral query result shape.
type ResultItem struct {
	AbsolutePath    string                 `json:"absolute_path"`
	RelativePath    string                 `json:"relative_path"`
	Name            string                 `json:"name"`
	DisplayName     string                 `json:"display_name"`
	Extension       string                 `json:"extension"`
	Size            uint64                 `json:"size"`
	ModifiedSeconds int64                  `json:"modified_seconds"`
	IsSymlink       bool                   `json:"is_symlink"`
	GitStatus       string                 `json:"git_status"`
	FrecencyScore   int                    `json:"frecency_score"`
	TotalScore      int                    `json:"total_score"`
	FuzzyPositions  []uint32               `json:"fuzzy_positions"`
	Components      *model.ComponentScores `json:"components,omitempty"`
}

// SearchResult is fuzzy_search_files's return envelope.
type SearchResult struct {
	Items           []ResultItem `json:"items"`
	TotalMatched    uint         `json:"total_matched"`
	QueryDurationMs uint64       `json:"query_duration_ms"`
}

// Coordinator is the single owned value a host holds for the lifetime of
// one file-picker session. All lifecycle calls (Init*, Restart, Cleanup)
// must be serialized by the caller onto one controlling goroutine; Search
// may be called concurrently with mutation.
type Coordinator struct {
	mu sync.RWMutex

	cfg         config.Config
	configStore *config.Store
	idx         *index.Index
	frecency    *frecency.Store
	git         *gittrack.Tracker
	ranker      *scorer.Ranker
	debug       bool

	searchGen atomic.Uint64
	sessionID string
	log       *slog.Logger
}

// New constructs an uninitialized Coordinator bound to a config store,
// loading any previously persisted settings (falling back to documented
// defaults on a missing or corrupted file, per internal/config.Store.Load).
// Call InitDB and InitFilePicker before Search/TrackAccess.
func New(configPath string) *Coordinator {
	store := config.NewStore(configPath, tracing.Named("config"))
	return &Coordinator{
		configStore: store,
		cfg:         store.Load(),
		log:         tracing.Named("coordinator"),
	}
}

// InitTracing installs the process-wide structured logger and returns the
// resolved log file path.
func (c *Coordinator) InitTracing(logFile string, level tracing.Level) (string, error) {
	return tracing.Init(logFile, level)
}

// InitDB opens the frecency database. A failure degrades to in-memory-only
// frecency rather than failing the whole coordinator.
func (c *Coordinator) InitDB(path string, createIfMissing bool) error {
	store, err := frecency.Open(path, createIfMissing, clock.System{})
	c.mu.Lock()
	c.frecency = store
	c.ranker = scorer.New(store, func() int64 { return time.Now().Unix() })
	c.mu.Unlock()
	if err != nil && err != frecency.ErrUnavailable {
		return err
	}
	if err == frecency.ErrUnavailable {
		c.log.Warn("frecency database unavailable, continuing with in-memory scores only", "path", path)
		return ErrDbUnavailable
	}
	return nil
}

// InitFilePicker builds the index and starts the background watcher and
// git tracker rooted at base. The initial scan runs synchronously inside
// StartWatching before this call returns, so a caller that issues a query
// immediately afterward always sees a fully populated index rather than a
// partial one still being filled in by a background goroutine.
func (c *Coordinator) InitFilePicker(base string) error {
	ix, err := index.New(base, index.Config{
		MaxThreads: int(c.cfgSnapshot().MaxThreads),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBase, err)
	}

	sessionID := uuid.New().String()

	c.mu.Lock()
	c.idx = ix
	c.git = gittrack.Discover(base)
	c.cfg.BasePath = base
	c.sessionID = sessionID
	c.mu.Unlock()

	c.log.Info("file picker session started", "session_id", sessionID, "base", base)
	if err := ix.StartWatching(c.log); err != nil {
		return err
	}
	return nil
}

// SessionID returns the identifier correlating log lines for the
// currently active base directory. It changes on every InitFilePicker or
// RestartIndexInPath call, so log output spanning a restart can be told
// apart.
func (c *Coordinator) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

func (c *Coordinator) cfgSnapshot() config.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// ScanFiles triggers a synchronous full rescan of the current base.
func (c *Coordinator) ScanFiles() error {
	ix := c.index()
	if ix == nil {
		return ErrNotInitialized
	}
	return ix.Rescan()
}

// RestartIndexInPath points the index at a new base directory, discarding
// every previously issued index_id.
func (c *Coordinator) RestartIndexInPath(newBase string) error {
	ix := c.index()
	if ix == nil {
		return ErrNotInitialized
	}
	if err := ix.Restart(newBase, c.log); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBase, err)
	}
	sessionID := uuid.New().String()
	c.mu.Lock()
	c.git = gittrack.Discover(newBase)
	c.cfg.BasePath = newBase
	c.sessionID = sessionID
	c.mu.Unlock()
	c.log.Info("file picker session restarted", "session_id", sessionID, "base", newBase)
	return nil
}

func (c *Coordinator) index() *index.Index {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.idx
}

// FuzzySearchFiles runs one ranked query against the current snapshot. A
// newer call supersedes any older in-flight one: the previous call's
// Cancelled check will observe the generation bump and stop scanning at
// its next batch boundary.
func (c *Coordinator) FuzzySearchFiles(ctx context.Context, query string, max uint, currentFile, cwd string) (SearchResult, error) {
	ix := c.index()
	if ix == nil {
		return SearchResult{}, ErrNotInitialized
	}

	gen := c.searchGen.Add(1)
	cancelled := func() bool {
		if ctx.Err() != nil {
			return true
		}
		return c.searchGen.Load() != gen
	}

	c.mu.RLock()
	rk := c.ranker
	debug := c.debug
	c.mu.RUnlock()
	if rk == nil {
		rk = scorer.New(nil, func() int64 { return time.Now().Unix() })
	}

	start := time.Now()
	snap := ix.Snapshot()
	results := rk.Search(snap, scorer.Query{
		Text:        query,
		MaxResults:  int(max),
		CurrentFile: currentFile,
		Cwd:         cwd,
		Cancelled:   cancelled,
	})
	elapsed := time.Since(start)

	candidates := make([]displayname.Candidate, len(results))
	for i, r := range results {
		candidates[i] = displayname.Candidate{
			Key:          r.Record.AbsolutePath,
			Name:         r.Record.Name,
			RelativePath: r.Record.RelativePath,
		}
	}
	shortNames := displayname.Compute(candidates)

	items := make([]ResultItem, len(results))
	for i, r := range results {
		item := ResultItem{
			AbsolutePath:    r.Record.AbsolutePath,
			RelativePath:    r.Record.RelativePath,
			Name:            r.Record.Name,
			DisplayName:     shortNames[r.Record.AbsolutePath],
			Extension:       r.Record.Extension,
			Size:            r.Record.SizeBytes(),
			ModifiedSeconds: r.Record.ModifiedAt().Unix(),
			IsSymlink:       r.Record.IsSymlink,
			GitStatus:       string(r.Record.GitStatus()),
			FrecencyScore:   r.Record.FrecencyScore(),
			TotalScore:      r.TotalScore,
			FuzzyPositions:  r.FuzzyPositions,
		}
		if debug {
			comp := r.Components
			item.Components = &comp
		}
		items[i] = item
	}

	return SearchResult{
		Items:           items,
		TotalMatched:    uint(len(items)),
		QueryDurationMs: uint64(elapsed.Milliseconds()),
	}, nil
}

// TrackAccess records one access event against the frecency store.
func (c *Coordinator) TrackAccess(absolutePath string) error {
	c.mu.RLock()
	store := c.frecency
	idx := c.idx
	c.mu.RUnlock()
	if idx == nil {
		return ErrNotInitialized
	}
	if store == nil {
		return nil
	}
	store.TrackAccess(absolutePath)
	if rec, ok := idx.Snapshot().Lookup(absolutePath); ok {
		rec.SetFrecencyScore(store.ScoreFor(absolutePath))
	}
	return nil
}

// RefreshGitStatus re-enumerates the worktree and applies status updates
// to every matching FileRecord, returning the count that changed.
func (c *Coordinator) RefreshGitStatus() (int, error) {
	c.mu.RLock()
	idx := c.idx
	git := c.git
	c.mu.RUnlock()
	if idx == nil {
		return 0, ErrNotInitialized
	}
	if git == nil {
		git = gittrack.Discover(idx.Base())
		c.mu.Lock()
		c.git = git
		c.mu.Unlock()
	}
	return git.Refresh(idx.Snapshot().Records)
}

// SetDebug toggles whether component score breakdowns are attached to
// ResultItems.
func (c *Coordinator) SetDebug(enabled bool) {
	c.mu.Lock()
	c.debug = enabled
	c.mu.Unlock()
}

// CleanupFilePicker persists the current config, stops the watcher, flushes
// the frecency store, and releases the database handle, joining all
// background work before returning. A config save failure is logged but
// does not fail the cleanup: persistence is an optimization for the next
// session, not a precondition for shutting this one down cleanly.
func (c *Coordinator) CleanupFilePicker() error {
	c.mu.Lock()
	idx := c.idx
	store := c.frecency
	cfg := c.cfg
	cfgStore := c.configStore
	c.idx = nil
	c.frecency = nil
	c.mu.Unlock()

	if cfgStore != nil {
		if err := cfgStore.Save(cfg); err != nil {
			c.log.Warn("failed to persist config", "path", cfgStore.Path(), "error", err)
		}
	}

	if idx != nil {
		idx.Close()
	}
	if store != nil {
		if err := store.Close(); err != nil {
			return err
		}
	}
	return nil
}
