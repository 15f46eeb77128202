package filepicker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCoordinatorEndToEndSearch(t *testing.T) {
	base := t.TempDir()
	mustWriteFile(t, filepath.Join(base, "src", "main.c"), "")
	mustWriteFile(t, filepath.Join(base, "src", "util.c"), "")
	mustWriteFile(t, filepath.Join(base, "docs", "readme.md"), "")

	c := New(filepath.Join(t.TempDir(), "config.json"))
	if err := c.InitDB(filepath.Join(t.TempDir(), "frecency.db"), true); err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	if err := c.InitFilePicker(base); err != nil {
		t.Fatalf("InitFilePicker: %v", err)
	}
	defer c.CleanupFilePicker()

	res, err := c.FuzzySearchFiles(context.Background(), "readme", 10, "", "")
	if err != nil {
		t.Fatalf("FuzzySearchFiles: %v", err)
	}
	if len(res.Items) == 0 || res.Items[0].RelativePath != "docs/readme.md" {
		t.Fatalf("expected docs/readme.md first, got %+v", res.Items)
	}
}

func TestCoordinatorNotInitializedBeforeInitFilePicker(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "config.json"))
	_, err := c.FuzzySearchFiles(context.Background(), "x", 10, "", "")
	if err != ErrNotInitialized {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestCoordinatorTrackAccessUpdatesFrecencyScore(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "alpha.txt")
	mustWriteFile(t, target, "")

	c := New(filepath.Join(t.TempDir(), "config.json"))
	if err := c.InitDB(filepath.Join(t.TempDir(), "frecency.db"), true); err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	if err := c.InitFilePicker(base); err != nil {
		t.Fatalf("InitFilePicker: %v", err)
	}
	defer c.CleanupFilePicker()

	if err := c.TrackAccess(target); err != nil {
		t.Fatalf("TrackAccess: %v", err)
	}
	idx := c.index()
	rec, ok := idx.Snapshot().Lookup(target)
	if !ok {
		t.Fatalf("expected record for %s", target)
	}
	if rec.FrecencyScore() <= 0 {
		t.Fatalf("expected a positive frecency score after tracking an access, got %d", rec.FrecencyScore())
	}
}

func TestCoordinatorRestartSwitchesBase(t *testing.T) {
	baseA := t.TempDir()
	baseB := t.TempDir()
	mustWriteFile(t, filepath.Join(baseA, "a.txt"), "")
	mustWriteFile(t, filepath.Join(baseB, "b.txt"), "")

	c := New(filepath.Join(t.TempDir(), "config.json"))
	if err := c.InitFilePicker(baseA); err != nil {
		t.Fatalf("InitFilePicker: %v", err)
	}
	defer c.CleanupFilePicker()

	if err := c.RestartIndexInPath(baseB); err != nil {
		t.Fatalf("RestartIndexInPath: %v", err)
	}

	res, err := c.FuzzySearchFiles(context.Background(), "b", 10, "", "")
	if err != nil {
		t.Fatalf("FuzzySearchFiles: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].Name != "b.txt" {
		t.Fatalf("expected only b.txt after restart, got %+v", res.Items)
	}
}
