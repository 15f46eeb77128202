// Package gittrack implements the per-file git status tracker: discover
// once, refresh on demand, and degrade to reporting every file as unknown
// when no repository is found or the worktree can't be read.
package gittrack

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"

	"github.com/example/filepicker/internal/model"
)

// ErrUnavailable is returned by Refresh when the repository is corrupt or
// locked; the tracker keeps reporting whatever status it last computed.
var ErrUnavailable = fmt.Errorf("gittrack: repository unavailable")

// Tracker reports git status for files under a discovered worktree. A
// Tracker with no repository is inert: every lookup reports GitUnknown.
type Tracker struct {
	repo      *git.Repository
	worktree  string // absolute path to the worktree root, "" when inert
	lastCount int
}

// Discover locates the git repository enclosing basePath. If none is
// found, the returned Tracker is inert rather than an error: callers just
// get GitUnknown back from every lookup instead of having to special-case
// a missing repository.
func Discover(basePath string) *Tracker {
	repo, err := git.PlainOpenWithOptions(basePath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return &Tracker{}
	}
	wt, err := repo.Worktree()
	if err != nil {
		return &Tracker{}
	}
	root, err := filepath.Abs(wt.Filesystem.Root())
	if err != nil {
		return &Tracker{}
	}
	return &Tracker{repo: repo, worktree: root}
}

// Active reports whether a repository was discovered.
func (t *Tracker) Active() bool { return t.repo != nil }

// Refresh recomputes status for every record whose absolute path falls
// under the worktree and writes it onto matching records via SetGitStatus. It
// returns the number of records whose status actually changed. Records
// outside the worktree, or every record when the tracker is inert, are
// set to GitUnknown.
func (t *Tracker) Refresh(records []*model.FileRecord) (int, error) {
	if t == nil || t.repo == nil {
		changed := 0
		for _, r := range records {
			if r.SetGitStatus(model.GitUnknown) {
				changed++
			}
		}
		return changed, nil
	}

	wt, err := t.repo.Worktree()
	if err != nil {
		return 0, ErrUnavailable
	}
	status, err := wt.Status()
	if err != nil {
		return 0, ErrUnavailable
	}

	changed := 0
	for _, r := range records {
		rel, err := filepath.Rel(t.worktree, r.AbsolutePath)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			if r.SetGitStatus(model.GitUnknown) {
				changed++
			}
			continue
		}
		relSlash := filepath.ToSlash(rel)
		// Index the map directly: Status.File inserts an Untracked entry
		// for paths git reports no change for, which would misclassify
		// clean tracked files.
		s := classify(status[relSlash])
		if r.SetGitStatus(s) {
			changed++
		}
	}
	t.lastCount = changed
	return changed, nil
}

// classify merges the worktree-vs-index and index-vs-HEAD codes that
// go-git reports into model.GitStatus, preferring the more urgent status
// when both halves disagree (e.g. staged-then-further-modified).
func classify(fs *git.FileStatus) model.GitStatus {
	if fs == nil {
		return model.GitClean
	}
	codes := []git.StatusCode{fs.Staging, fs.Worktree}
	rank := func(c git.StatusCode) int {
		switch c {
		case git.UpdatedButUnmerged:
			return 6
		case git.Renamed:
			return 5
		case git.Modified:
			return 4
		case git.Added:
			return 3
		case git.Untracked:
			return 2
		case git.Deleted:
			return 1
		default:
			return 0
		}
	}
	best := git.Unmodified
	for _, c := range codes {
		if rank(c) > rank(best) {
			best = c
		}
	}
	switch best {
	case git.UpdatedButUnmerged:
		return model.GitConflicted
	case git.Renamed:
		return model.GitRenamed
	case git.Modified:
		return model.GitModified
	case git.Added:
		return model.GitAdded
	case git.Untracked:
		return model.GitUntracked
	case git.Deleted:
		return model.GitDeleted
	default:
		return model.GitClean
	}
}
