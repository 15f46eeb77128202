package index

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/example/filepicker/internal/clock"
	"github.com/example/filepicker/internal/model"
)

// EventKind is the normalized filesystem change kind the watcher hands to
// ApplyEvent.
type EventKind int

const (
	EventCreated EventKind = iota
	EventModified
	EventDeleted
	EventRenamed
)

// Event is one normalized filesystem change. Path and OldPath are absolute.
// OldPath is set only for EventRenamed.
type Event struct {
	Kind    EventKind
	Path    string
	OldPath string
}

// ApplyEvent consumes one filesystem event, updating records and the
// path->id map without a full rescan. Directory events trigger a
// single-threaded subtree re-walk rather than a full parallel scan;
// everything else is a targeted stat-and-upsert. ApplyEvent never bumps
// the generation counter — only Rescan/Restart do, since only those
// invalidate every previously issued index_id.
func (ix *Index) ApplyEvent(ev Event) error {
	switch ev.Kind {
	case EventDeleted:
		ix.removeSubtree(ev.Path)
	case EventRenamed:
		ix.removeSubtree(ev.OldPath)
		return ix.upsert(ev.Path)
	case EventCreated, EventModified:
		return ix.upsert(ev.Path)
	}
	return nil
}

func (ix *Index) removeSubtree(abs string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	prefix := abs + string(filepath.Separator)
	changed := false
	if _, ok := ix.entries[abs]; ok {
		delete(ix.entries, abs)
		changed = true
	}
	for p := range ix.entries {
		if strings.HasPrefix(p, prefix) {
			delete(ix.entries, p)
			changed = true
		}
	}
	if changed {
		ix.publish()
	}
}

// upsert stats abs and either records it (file) or re-walks it (directory).
// A path that no longer exists is treated as a deletion, matching the
// watcher's best-effort normalization of rename/remove races.
func (ix *Index) upsert(abs string) error {
	rel, ok := ix.relFromAbs(abs)
	if !ok {
		return nil // outside the base entirely; ignore
	}
	info, err := os.Lstat(abs)
	if err != nil {
		ix.removeSubtree(abs)
		return nil
	}

	isDir := info.IsDir()
	isSymlink := info.Mode()&os.ModeSymlink != 0
	if isSymlink {
		target, err := os.Stat(abs)
		if err != nil || target.IsDir() {
			ix.removeSubtree(abs)
			return nil
		}
		info, isDir = target, false
	}

	name := filepath.Base(abs)
	if ix.cfg.Ignore(rel, isDir) {
		ix.removeSubtree(abs)
		return nil
	}

	if isDir {
		return ix.rescanSubtree(abs, rel)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if existing, ok := ix.entries[abs]; ok {
		existing.SetStat(uint64(info.Size()), info.ModTime())
		return nil
	}
	id := ix.nextID.Add(1) - 1
	ix.entries[abs] = buildRecordFromInfo(abs, rel, name, isSymlink, info, id)
	ix.publish()
	return nil
}

func buildRecordFromInfo(abs, rel, name string, isSymlink bool, info os.FileInfo, id uint64) *model.FileRecord {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	return model.NewFileRecord(abs, filepath.ToSlash(rel), name, ext, isSymlink, id, uint64(info.Size()), info.ModTime())
}

// rescanSubtree single-threadedly re-walks a directory whose contents are
// known to have changed (create/modify event landed directly on it),
// replacing whatever records previously lived under it.
func (ix *Index) rescanSubtree(abs, rel string) error {
	var chain []gitignoreRule
	if segs := strings.Split(rel, "/"); len(segs) > 0 {
		// Rebuild the gitignore chain root-to-here; cheap relative to a
		// full parallel scan since it only touches ancestors of one dir.
		base := ix.Base()
		if r, ok := compileGitignore(base, ""); ok {
			chain = append(chain, r)
		}
		acc := ""
		accAbs := base
		for _, seg := range segs {
			if acc == "" {
				acc = seg
			} else {
				acc = acc + "/" + seg
			}
			accAbs = filepath.Join(accAbs, seg)
			if r, ok := compileGitignore(accAbs, acc); ok {
				chain = append(chain, r)
			}
		}
	}

	collected := ix.walkSubtreeSingleThreaded(abs, rel, chain)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeSubtreeLocked(abs)
	for _, r := range collected {
		r.IndexID = ix.nextID.Add(1) - 1
		ix.entries[r.AbsolutePath] = r
	}
	ix.publish()
	return nil
}

func (ix *Index) removeSubtreeLocked(abs string) {
	prefix := abs + string(filepath.Separator)
	delete(ix.entries, abs)
	for p := range ix.entries {
		if strings.HasPrefix(p, prefix) {
			delete(ix.entries, p)
		}
	}
}

func (ix *Index) walkSubtreeSingleThreaded(abs, rel string, chain []gitignoreRule) []*model.FileRecord {
	var out []*model.FileRecord
	type frame struct {
		abs, rel string
		chain    []gitignoreRule
	}
	stack := []frame{{abs, rel, chain}}
	var scratch atomic.Uint64
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		entries, err := os.ReadDir(f.abs)
		if err != nil {
			continue
		}
		for _, de := range entries {
			name := de.Name()
			childRel := name
			if f.rel != "" {
				childRel = f.rel + "/" + name
			}
			isDir := de.IsDir()
			if ix.cfg.Ignore(childRel, isDir) || ignoredByChain(f.chain, childRel) {
				continue
			}
			childAbs := filepath.Join(f.abs, name)
			if de.Type()&os.ModeSymlink != 0 {
				target, err := os.Stat(childAbs)
				if err != nil || target.IsDir() {
					continue
				}
				out = append(out, buildRecord(childAbs, childRel, name, true, target, &scratch))
				continue
			}
			if isDir {
				childChain := f.chain
				if r, ok := compileGitignore(childAbs, childRel); ok {
					childChain = append(append([]gitignoreRule(nil), f.chain...), r)
				}
				stack = append(stack, frame{childAbs, childRel, childChain})
				continue
			}
			info, err := de.Info()
			if err != nil {
				continue
			}
			out = append(out, buildRecord(childAbs, childRel, name, false, info, &scratch))
		}
	}
	return out
}

func (ix *Index) relFromAbs(abs string) (string, bool) {
	base := ix.Base()
	rel, err := clock.RelativeTo(base, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}
