// Package displayname computes short, disambiguated display names for a
// set of files: files with a unique base name are rendered as just that
// name; files sharing a base name are prefixed with as many trailing
// parent-directory segments as needed to become unique. Operates over an
// arbitrary candidate set rather than a whole index — the natural place to
// disambiguate is among the items a query actually surfaces.
package displayname

import (
	"strings"
)

// Candidate is the minimal shape displayname needs from a ranked result.
type Candidate struct {
	Key          string // arbitrary unique key (e.g. absolute path), returned unchanged
	Name         string // final path component
	RelativePath string // slash-separated path relative to base
}

// Compute returns Key -> short display name for every candidate.
func Compute(candidates []Candidate) map[string]string {
	out := make(map[string]string, len(candidates))
	byName := make(map[string][]int)
	for i, c := range candidates {
		byName[c.Name] = append(byName[c.Name], i)
	}

	for name, idxs := range byName {
		if len(idxs) == 1 {
			out[candidates[idxs[0]].Key] = name
			continue
		}
		resolveDuplicates(candidates, idxs, out)
	}
	return out
}

func resolveDuplicates(candidates []Candidate, idxs []int, out map[string]string) {
	segsByIdx := make(map[int][]string, len(idxs))
	maxDepth := 0
	for _, i := range idxs {
		dir := parentDir(candidates[i].RelativePath)
		segs := splitReversed(dir)
		segsByIdx[i] = segs
		if len(segs) > maxDepth {
			maxDepth = len(segs)
		}
	}

	resolved := make(map[int]bool, len(idxs))
	for depth := 1; depth <= maxDepth+1; depth++ {
		byKey := make(map[string][]int)
		for _, i := range idxs {
			if resolved[i] {
				continue
			}
			key := shortKey(candidates[i].Name, segsByIdx[i], depth)
			byKey[key] = append(byKey[key], i)
		}
		for key, is := range byKey {
			if len(is) == 1 {
				out[candidates[is[0]].Key] = key
				resolved[is[0]] = true
			}
		}
		allResolved := true
		for _, i := range idxs {
			if !resolved[i] {
				allResolved = false
				break
			}
		}
		if allResolved {
			return
		}
	}

	for _, i := range idxs {
		if !resolved[i] {
			out[candidates[i].Key] = candidates[i].RelativePath
		}
	}
}

func shortKey(name string, revSegs []string, depth int) string {
	if depth > len(revSegs) {
		depth = len(revSegs)
	}
	parts := make([]string, 0, depth+1)
	for i := depth - 1; i >= 0; i-- {
		parts = append(parts, revSegs[i])
	}
	parts = append(parts, name)
	return strings.Join(parts, "/")
}

func parentDir(relPath string) string {
	idx := strings.LastIndexByte(relPath, '/')
	if idx < 0 {
		return ""
	}
	return relPath[:idx]
}

func splitReversed(dir string) []string {
	if dir == "" {
		return nil
	}
	segs := strings.Split(dir, "/")
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
	return segs
}
