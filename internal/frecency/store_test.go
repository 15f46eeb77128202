package frecency

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/example/filepicker/internal/clock"
)

func TestTrackAccessIncreasesScore(t *testing.T) {
	dir := t.TempDir()
	c := clock.Fixed{At: time.Unix(1_700_000_000, 0)}
	s, err := Open(filepath.Join(dir, "frecency.db"), true, c)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	before := s.ScoreFor("alpha.txt")
	s.TrackAccess("alpha.txt")
	after := s.ScoreFor("alpha.txt")
	if after <= before {
		t.Fatalf("expected score to increase after access: before=%d after=%d", before, after)
	}
}

func TestTrackAccessPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "frecency.db")
	c := clock.Fixed{At: time.Unix(1_700_000_000, 0)}

	s1, err := Open(dbPath, true, c)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := 0; i < 5; i++ {
		s1.TrackAccess("alpha.txt")
	}
	want := s1.ScoreFor("alpha.txt")
	if err := s1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(dbPath, false, c)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	got := s2.ScoreFor("alpha.txt")
	if got != want {
		t.Fatalf("expected score to round-trip: want=%d got=%d", want, got)
	}
}

func TestTimestampRingIsBounded(t *testing.T) {
	dir := t.TempDir()
	c := clock.Fixed{At: time.Unix(1_700_000_000, 0)}
	s, err := Open(filepath.Join(dir, "frecency.db"), true, c)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	for i := 0; i < MaxTimestamps*3; i++ {
		s.TrackAccess("busy.txt")
	}
	s.mu.RLock()
	e := s.entries["busy.txt"]
	s.mu.RUnlock()
	e.mu.Lock()
	n := len(e.timestamps)
	e.mu.Unlock()
	if n > MaxTimestamps {
		t.Fatalf("expected timestamp ring bounded to %d, got %d", MaxTimestamps, n)
	}
}

func TestClearRemovesEntries(t *testing.T) {
	dir := t.TempDir()
	c := clock.Fixed{At: time.Unix(1_700_000_000, 0)}
	s, err := Open(filepath.Join(dir, "frecency.db"), true, c)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	s.TrackAccess("alpha.txt")
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got := s.ScoreFor("alpha.txt"); got != 0 {
		t.Fatalf("expected score 0 after clear, got %d", got)
	}
}

func TestOpenUnavailableFallsBackToMemory(t *testing.T) {
	s, err := Open("", true, nil)
	if err != ErrUnavailable {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	// Still usable in-memory.
	s.TrackAccess("x")
	if s.ScoreFor("x") <= 0 {
		t.Fatalf("expected in-memory tracking to still work")
	}
}
