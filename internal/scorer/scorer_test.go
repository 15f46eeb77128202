package scorer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/filepicker/internal/clock"
	"github.com/example/filepicker/internal/frecency"
	"github.com/example/filepicker/internal/index"
	"github.com/example/filepicker/internal/model"
)

func mustWriteScorer(t *testing.T, dir, relPath string) {
	t.Helper()
	abs := filepath.Join(dir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newScannedIndex(t *testing.T, dir string) *index.Index {
	t.Helper()
	ix, err := index.New(dir, index.Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := ix.Rescan(); err != nil {
		t.Fatalf("Rescan: %v", err)
	}
	return ix
}

func TestSearchExactFilenameRanksFirst(t *testing.T) {
	dir := t.TempDir()
	mustWriteScorer(t, dir, "src/main.c")
	mustWriteScorer(t, dir, "src/util.c")
	mustWriteScorer(t, dir, "docs/readme.md")

	ix := newScannedIndex(t, dir)
	rk := New(nil, func() int64 { return 1700000000 })
	results := rk.Search(ix.Snapshot(), Query{Text: "readme", MaxResults: 10})
	if len(results) == 0 || results[0].Record.RelativePath != "docs/readme.md" {
		t.Fatalf("expected docs/readme.md first, got %+v", results)
	}
}

func TestSearchTypoToleranceRanksConfigAboveConflict(t *testing.T) {
	dir := t.TempDir()
	mustWriteScorer(t, dir, "src/config.rs")
	mustWriteScorer(t, dir, "src/conflict.rs")

	ix := newScannedIndex(t, dir)
	rk := New(nil, func() int64 { return 1700000000 })
	results := rk.Search(ix.Snapshot(), Query{Text: "cofnig", MaxResults: 10})
	if len(results) == 0 || results[0].Record.RelativePath != "src/config.rs" {
		t.Fatalf("expected src/config.rs first, got %+v", results)
	}
	if len(results[0].FuzzyPositions) == 0 {
		t.Fatalf("expected non-empty fuzzy positions witness")
	}
}

func TestSearchPathPieceRanksNestedMatchFirst(t *testing.T) {
	dir := t.TempDir()
	mustWriteScorer(t, dir, "a/b/foo.rs")
	mustWriteScorer(t, dir, "x/foo.rs")

	ix := newScannedIndex(t, dir)
	rk := New(nil, func() int64 { return 1700000000 })
	results := rk.Search(ix.Snapshot(), Query{Text: "b/foo", MaxResults: 10})
	if len(results) == 0 || results[0].Record.RelativePath != "a/b/foo.rs" {
		t.Fatalf("expected a/b/foo.rs first, got %+v", results)
	}
}

func TestSearchCurrentFileDemotion(t *testing.T) {
	dir := t.TempDir()
	mustWriteScorer(t, dir, "x.rs")
	mustWriteScorer(t, dir, "y.rs")

	ix := newScannedIndex(t, dir)
	rk := New(nil, func() int64 { return 1700000000 })
	current := filepath.Join(ix.Base(), "x.rs")
	results := rk.Search(ix.Snapshot(), Query{Text: "r", MaxResults: 10, CurrentFile: current})
	if len(results) < 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Record.RelativePath != "y.rs" {
		t.Fatalf("expected y.rs ranked first with x.rs demoted, got %+v", results)
	}
}

func TestSearchFrecencyInfluence(t *testing.T) {
	dir := t.TempDir()
	mustWriteScorer(t, dir, "alpha.txt")
	mustWriteScorer(t, dir, "beta.txt")

	ix := newScannedIndex(t, dir)

	store, err := frecency.Open("", false, clock.Fixed{At: time.Unix(1700000000, 0)})
	if err != nil && err != frecency.ErrUnavailable {
		t.Fatalf("Open: %v", err)
	}
	alphaAbs := filepath.Join(ix.Base(), "alpha.txt")
	for i := 0; i < 5; i++ {
		store.TrackAccess(alphaAbs)
	}

	rk := New(store, func() int64 { return 1700000000 })
	results := rk.Search(ix.Snapshot(), Query{Text: "a", MaxResults: 10})
	if len(results) == 0 || results[0].Record.RelativePath != "alpha.txt" {
		t.Fatalf("expected alpha.txt ranked first after track_access, got %+v", results)
	}
}

func TestSearchCwdBiasRanksSiblingFileFirst(t *testing.T) {
	dir := t.TempDir()
	mustWriteScorer(t, dir, "aaa/x.rs")
	mustWriteScorer(t, dir, "bbb/x.rs")

	ix := newScannedIndex(t, dir)
	rk := New(nil, func() int64 { return 1700000000 })

	// Same path length and fuzzy score on both sides; absent a cwd bias the
	// lexical tie-break favors aaa/x.rs.
	baseline := rk.Search(ix.Snapshot(), Query{Text: "x", MaxResults: 10})
	if len(baseline) < 2 || baseline[0].Record.RelativePath != "aaa/x.rs" {
		t.Fatalf("expected lexical tie-break to favor aaa/x.rs absent cwd, got %+v", baseline)
	}

	biased := rk.Search(ix.Snapshot(), Query{
		Text:       "x",
		MaxResults: 10,
		Cwd:        filepath.Join(ix.Base(), "bbb"),
	})
	if len(biased) < 2 || biased[0].Record.RelativePath != "bbb/x.rs" {
		t.Fatalf("expected bbb/x.rs ranked first via cwd bias, got %+v", biased)
	}
}

func TestSearchEmptyQueryRanksModifiedAboveClean(t *testing.T) {
	dir := t.TempDir()
	mustWriteScorer(t, dir, "x.rs")
	mustWriteScorer(t, dir, "y.rs")

	ix := newScannedIndex(t, dir)
	snap := ix.Snapshot()
	xRec, ok := snap.Lookup(filepath.Join(ix.Base(), "x.rs"))
	if !ok {
		t.Fatal("expected x.rs in snapshot")
	}
	yRec, ok := snap.Lookup(filepath.Join(ix.Base(), "y.rs"))
	if !ok {
		t.Fatal("expected y.rs in snapshot")
	}
	xRec.SetGitStatus(model.GitModified)
	yRec.SetGitStatus(model.GitClean)

	rk := New(nil, func() int64 { return 1700000000 })
	results := rk.Search(snap, Query{Text: "", MaxResults: 10})
	if len(results) < 2 || results[0].Record.RelativePath != "x.rs" {
		t.Fatalf("expected modified x.rs ranked above clean y.rs, got %+v", results)
	}
}

func TestGitMtimeRecencyBonusDecaysWithAge(t *testing.T) {
	fresh := GitMtimeRecencyBonus(40, 0)
	old := GitMtimeRecencyBonus(40, 30*86400)
	if fresh <= old {
		t.Fatalf("expected a fresher mtime to score higher, got fresh=%d old=%d", fresh, old)
	}
	if neg := GitMtimeRecencyBonus(40, -100); neg != fresh {
		t.Fatalf("expected negative age clamped to zero, got %d want %d", neg, fresh)
	}
}

func TestSearchEmptyQueryReturnsAllWithinLimit(t *testing.T) {
	dir := t.TempDir()
	mustWriteScorer(t, dir, "old.txt")
	mustWriteScorer(t, dir, "new.txt")

	ix := newScannedIndex(t, dir)
	rk := New(nil, func() int64 { return 1700000000 })
	results := rk.Search(ix.Snapshot(), Query{Text: "", MaxResults: 10})
	if len(results) != 2 {
		t.Fatalf("expected 2 results for empty query, got %d", len(results))
	}
}
