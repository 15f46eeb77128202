// Package model holds the data types shared by the index, scorer, frecency
// and git-tracker packages. Keeping them here avoids import cycles between
// those packages.
package model

import (
	"sync"
	"time"
)

// GitStatus is the per-file status reported by the git tracker.
type GitStatus string

const (
	GitClean      GitStatus = "clean"
	GitUntracked  GitStatus = "untracked"
	GitModified   GitStatus = "modified"
	GitAdded      GitStatus = "added"
	GitDeleted    GitStatus = "deleted"
	GitRenamed    GitStatus = "renamed"
	GitConflicted GitStatus = "conflicted"
	GitIgnored    GitStatus = "ignored"
	GitUnknown    GitStatus = "unknown"
)

// FileRecord is one indexed file. The scanner and the watcher both build and
// mutate FileRecords; the git tracker and frecency store mutate the
// idempotent fields (GitStatus, FrecencyScore, ModifiedAt, SizeBytes) in
// place under the record's own lock, so a reader holding a stale Snapshot
// still observes either the old or the new value, never a torn one.
type FileRecord struct {
	// Immutable for the lifetime of the record.
	AbsolutePath string
	RelativePath string
	Name         string
	Extension    string
	IsSymlink    bool
	IndexID      uint64

	mu            sync.RWMutex
	sizeBytes     uint64
	modifiedAt    time.Time
	gitStatus     GitStatus
	frecencyScore int
}

// NewFileRecord builds a record with default mutable fields.
func NewFileRecord(absPath, relPath, name, ext string, isSymlink bool, id uint64, size uint64, modified time.Time) *FileRecord {
	return &FileRecord{
		AbsolutePath: absPath,
		RelativePath: relPath,
		Name:         name,
		Extension:    ext,
		IsSymlink:    isSymlink,
		IndexID:      id,
		sizeBytes:    size,
		modifiedAt:   modified,
		gitStatus:    GitUnknown,
	}
}

func (r *FileRecord) SizeBytes() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sizeBytes
}

func (r *FileRecord) ModifiedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.modifiedAt
}

func (r *FileRecord) SetStat(size uint64, modified time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sizeBytes = size
	r.modifiedAt = modified
}

func (r *FileRecord) GitStatus() GitStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gitStatus
}

// SetGitStatus updates the status and reports whether it actually changed.
func (r *FileRecord) SetGitStatus(s GitStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	changed := r.gitStatus != s
	r.gitStatus = s
	return changed
}

func (r *FileRecord) FrecencyScore() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frecencyScore
}

func (r *FileRecord) SetFrecencyScore(score int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frecencyScore = score
}

// ComponentScores is the per-component breakdown surfaced only in debug mode.
type ComponentScores struct {
	Fuzzy       int
	PathBonus   int
	Frecency    int
	Git         int
	CurrentFile int
}

// ScoredResult is the ranker's output for a single candidate.
type ScoredResult struct {
	Record          *FileRecord
	TotalScore      int
	FuzzyPositions  []uint32
	Components      ComponentScores
}
