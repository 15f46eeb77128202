// Package frecency implements the persisted access-frequency/recency
// store: a thin struct over database/sql opening an embedded sqlite3
// engine with WAL mode enabled, migrating its schema on Open, and
// wrapping writes in a single Exec. sqlite is used purely as an embedded
// ordered key-value store (one table, path as primary key) — no SQL
// query richness is needed, but WAL mode is what lets the asynchronous
// write-through path avoid blocking readers.
package frecency

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/filepicker/internal/clock"
)

// MaxTimestamps bounds the retained access-timestamp ring per entry.
const MaxTimestamps = 10

// Decay constants, tuned for a "recent day" bias. The exact numbers are
// not load-bearing, only their *effect* (recent accesses dominate) is.
const (
	decayBase       = 100.0
	decayTau        = 36 * time.Hour
	accessCountGain = 40.0
)

// ErrUnavailable is returned by Open when the database cannot be opened or
// migrated; callers fall back to an in-memory-only store.
var ErrUnavailable = fmt.Errorf("frecency: database unavailable")

type entry struct {
	mu          sync.Mutex
	timestamps  []int64 // unix seconds, oldest first, length <= MaxTimestamps
	accessCount int64
	score       int
	dirty       bool
}

// Store is the frecency database: an in-memory cache backed by a sqlite
// file. The cache is a single map guarded by one RWMutex, with a mutex per
// entry; it is not sharded. score_for is O(1) against the cache; track_access updates
// the cache synchronously and queues an asynchronous write-through so the
// search path never performs I/O.
type Store struct {
	clock clock.Clock

	db *sql.DB // nil when running in-memory-only (DbUnavailable)

	mu      sync.RWMutex
	entries map[string]*entry

	writes   chan writeReq
	closed   chan struct{}
	wg       sync.WaitGroup
	writeErr atomic.Int64
}

type writeReq struct {
	path string
}

// Open opens (creating if needed) the sqlite-backed store under dbPath. On
// I/O failure it returns ErrUnavailable alongside a Store that still works
// purely in-memory.
func Open(dbPath string, createIfMissing bool, c clock.Clock) (*Store, error) {
	if c == nil {
		c = clock.System{}
	}
	s := &Store{
		clock:   c,
		entries: make(map[string]*entry),
		writes:  make(chan writeReq, 256),
		closed:  make(chan struct{}),
	}

	if dbPath == "" {
		return s, ErrUnavailable
	}
	if !createIfMissing {
		if _, err := os.Stat(dbPath); err != nil {
			return s, ErrUnavailable
		}
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return s, ErrUnavailable
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_journal_mode=WAL", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return s, ErrUnavailable
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return s, ErrUnavailable
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS frecency (
		path TEXT PRIMARY KEY,
		access_count INTEGER NOT NULL,
		timestamps TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return s, ErrUnavailable
	}

	s.db = db
	if err := s.loadAll(); err != nil {
		_ = db.Close()
		s.db = nil
		return s, ErrUnavailable
	}

	s.wg.Add(1)
	go s.writeLoop()
	return s, nil
}

func (s *Store) loadAll() error {
	rows, err := s.db.Query(`SELECT path, access_count, timestamps FROM frecency`)
	if err != nil {
		return err
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	for rows.Next() {
		var path, ts string
		var count int64
		if err := rows.Scan(&path, &count, &ts); err != nil {
			continue
		}
		e := &entry{accessCount: count, timestamps: decodeTimestamps(ts)}
		e.score = computeScore(e.timestamps, e.accessCount, now)
		s.entries[path] = e
	}
	return rows.Err()
}

// TrackAccess appends now to path's timestamp ring, bumps access_count, and
// schedules an asynchronous write-through. The in-memory score is updated
// synchronously so the very next score_for call within this process sees
// it; the §5 "settle" window refers only to durability, not visibility.
func (s *Store) TrackAccess(path string) {
	now := s.clock.Now().Unix()

	s.mu.Lock()
	e, ok := s.entries[path]
	if !ok {
		e = &entry{}
		s.entries[path] = e
	}
	s.mu.Unlock()

	e.mu.Lock()
	e.timestamps = append(e.timestamps, now)
	if len(e.timestamps) > MaxTimestamps {
		e.timestamps = e.timestamps[len(e.timestamps)-MaxTimestamps:]
	}
	e.accessCount++
	e.score = computeScore(e.timestamps, e.accessCount, s.clock.Now())
	e.dirty = true
	e.mu.Unlock()

	if s.db != nil {
		select {
		case s.writes <- writeReq{path: path}:
		default:
			// Write queue saturated; the entry stays dirty and will be
			// persisted by a later write of the same path or by
			// Flush/Close.
		}
	}
}

// ScoreFor is an O(1) lookup against the in-memory cache; it performs no
// I/O and is safe to call from the search hot path.
func (s *Store) ScoreFor(path string) int {
	s.mu.RLock()
	e, ok := s.entries[path]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.score
}

// Clear truncates the store, both in memory and on disk. It is the only
// API that deletes FrecencyEntries.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.entries = make(map[string]*entry)
	s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	_, err := s.db.Exec(`DELETE FROM frecency`)
	return err
}

// Flush persists every cached entry synchronously, dirty or not. Called on process exit
// (via Close) and opportunistically during idle.
func (s *Store) Flush() error {
	if s.db == nil {
		return nil
	}
	s.mu.RLock()
	paths := make([]string, 0, len(s.entries))
	for p := range s.entries {
		paths = append(paths, p)
	}
	s.mu.RUnlock()

	var firstErr error
	for _, p := range paths {
		if err := s.persist(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close flushes and closes the underlying database, joining the writer
// goroutine.
func (s *Store) Close() error {
	close(s.closed)
	s.wg.Wait()
	err := s.Flush()
	if s.db != nil {
		if cerr := s.db.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// WriteFailures reports how many asynchronous persist attempts have
// failed, without ever failing TrackAccess itself.
func (s *Store) WriteFailures() int64 { return s.writeErr.Load() }

func (s *Store) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.closed:
			return
		case req := <-s.writes:
			if err := s.persist(req.path); err != nil {
				s.writeErr.Add(1)
			}
		}
	}
}

func (s *Store) persist(path string) error {
	s.mu.RLock()
	e, ok := s.entries[path]
	s.mu.RUnlock()
	if !ok || s.db == nil {
		return nil
	}
	e.mu.Lock()
	count := e.accessCount
	ts := encodeTimestamps(e.timestamps)
	e.dirty = false
	e.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO frecency (path, access_count, timestamps) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET access_count = excluded.access_count, timestamps = excluded.timestamps`,
		path, count, ts)
	return err
}

// computeScore implements the frecency formula:
//
//	frecency = sum_i floor(base * exp(-delta_i/tau)) + c*log(1+access_count)
//
// clamped to a non-negative integer.
func computeScore(timestamps []int64, accessCount int64, now time.Time) int {
	var total float64
	for _, t := range timestamps {
		delta := now.Sub(time.Unix(t, 0))
		if delta < 0 {
			delta = 0
		}
		total += math.Floor(decayBase * math.Exp(-float64(delta)/float64(decayTau)))
	}
	total += accessCountGain * math.Log1p(float64(accessCount))
	if total < 0 {
		return 0
	}
	return int(total)
}

func encodeTimestamps(ts []int64) string {
	out := make([]byte, 0, len(ts)*12)
	for i, t := range ts {
		if i > 0 {
			out = append(out, ',')
		}
		out = appendInt(out, t)
	}
	return string(out)
}

func decodeTimestamps(s string) []int64 {
	if s == "" {
		return nil
	}
	var out []int64
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, parseInt(s[start:i]))
			}
			start = i + 1
		}
	}
	if len(out) > MaxTimestamps {
		out = out[len(out)-MaxTimestamps:]
	}
	return out
}

func appendInt(b []byte, v int64) []byte {
	return append(b, []byte(fmt.Sprintf("%d", v))...)
}

func parseInt(s string) int64 {
	var v int64
	neg := false
	for i, c := range s {
		if i == 0 && c == '-' {
			neg = true
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		v = v*10 + int64(c-'0')
	}
	if neg {
		v = -v
	}
	return v
}
