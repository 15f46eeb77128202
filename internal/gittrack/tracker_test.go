package gittrack

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/example/filepicker/internal/model"
)

func TestDiscoverInertWithoutRepo(t *testing.T) {
	dir := t.TempDir()
	tr := Discover(dir)
	if tr.Active() {
		t.Fatalf("expected inert tracker outside a git repository")
	}
	rec := model.NewFileRecord(filepath.Join(dir, "x.txt"), "x.txt", "x.txt", "txt", false, 1, 0, time.Now())
	changed, err := tr.Refresh([]*model.FileRecord{rec})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if changed != 0 {
		t.Fatalf("expected no change, unknown is already the default")
	}
	if rec.GitStatus() != model.GitUnknown {
		t.Fatalf("expected unknown status, got %s", rec.GitStatus())
	}
}

func TestRefreshReportsModifiedAndClean(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}

	modifiedPath := filepath.Join(dir, "modified.txt")
	cleanPath := filepath.Join(dir, "clean.txt")
	if err := os.WriteFile(modifiedPath, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cleanPath, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("modified.txt"); err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("clean.txt"); err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Commit("initial", &git.CommitOptions{Author: &object.Signature{Name: "t", Email: "t@example.com"}}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(modifiedPath, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}

	tr := Discover(dir)
	if !tr.Active() {
		t.Fatalf("expected an active tracker")
	}
	records := []*model.FileRecord{
		model.NewFileRecord(modifiedPath, "modified.txt", "modified.txt", "txt", false, 1, 0, time.Now()),
		model.NewFileRecord(cleanPath, "clean.txt", "clean.txt", "txt", false, 2, 0, time.Now()),
	}
	changed, err := tr.Refresh(records)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if changed != 2 {
		t.Fatalf("expected both records to move off the unknown default, got %d", changed)
	}
	if records[0].GitStatus() != model.GitModified {
		t.Fatalf("expected modified.txt to be modified, got %s", records[0].GitStatus())
	}
	if records[1].GitStatus() != model.GitClean {
		t.Fatalf("expected clean.txt to be clean, got %s", records[1].GitStatus())
	}
}
