// Package fuzzy implements the typo-resistant matcher used by the
// file-picker scoring policy: a contiguous-substring / subsequence scorer
// with a bounded edit-distance fallback for transpositions and small
// insertions/deletions, plus piecewise matching for queries containing a
// path separator.
package fuzzy

import "strings"

// Match is the result of scoring a haystack against a needle: a
// deterministic integer score plus the byte offsets into haystack that
// participated in the match, strictly increasing.
type Match struct {
	Score     int32
	Positions []uint32
}

// Matcher holds the tunables for the scorer. The zero value is usable and
// applies DefaultMinScore.
type Matcher struct {
	// MinScore is the cutoff below which Match returns ok=false, letting
	// the ranker reject candidates before heap insertion.
	MinScore int32
	// MaxEdits bounds the edit-distance fallback (transpositions and
	// 1-2 character indels). Zero means DefaultMaxEdits.
	MaxEdits int
}

const (
	DefaultMinScore = 1
	DefaultMaxEdits = 2

	weightContiguous = 2000
	weightSubseq     = 1000
	weightTypo       = 400
	penaltyPerEdit   = 220
)

func (m Matcher) minScore() int32 {
	if m.MinScore != 0 {
		return m.MinScore
	}
	return DefaultMinScore
}

func (m Matcher) maxEdits() int {
	if m.MaxEdits != 0 {
		return m.MaxEdits
	}
	return DefaultMaxEdits
}

// Match scores needle against haystack. If needle contains '/', it is split
// on '/' and matched piecewise against haystack's path segments from right
// to left (each piece must match within one segment); the overall score is
// the sum of per-piece scores plus a boundary bonus. An empty needle is not
// a valid call for Match — callers route empty queries around the matcher
// entirely (see scorer.Ranker.Search).
func (m Matcher) Match(haystack, needle string) (Match, bool) {
	if needle == "" {
		return Match{}, false
	}
	if strings.Contains(needle, "/") {
		return m.matchPieces(haystack, needle)
	}
	return m.matchSingle(haystack, needle)
}

func (m Matcher) matchPieces(haystack, needle string) (Match, bool) {
	needleParts := splitNonEmpty(needle, '/')
	if len(needleParts) == 0 {
		return Match{}, false
	}
	hayParts := strings.Split(haystack, "/")
	// Precompute byte offset of the start of each haystack segment.
	offsets := make([]int, len(hayParts))
	off := 0
	for i, p := range hayParts {
		offsets[i] = off
		off += len(p) + 1 // account for the separator
	}

	// Walk needle pieces and haystack segments from the right.
	ni := len(needleParts) - 1
	hi := len(hayParts) - 1
	var total int32
	var positions []uint32
	matchedPieces := 0
	for ni >= 0 && hi >= 0 {
		sub, ok := m.matchSingle(hayParts[hi], needleParts[ni])
		if ok {
			for _, p := range sub.Positions {
				positions = append(positions, uint32(offsets[hi])+p)
			}
			total += sub.Score
			matchedPieces++
			ni--
		}
		hi--
	}
	if matchedPieces != len(needleParts) {
		return Match{}, false
	}
	// Boundary bonus: every piece matched at a distinct segment boundary.
	total += int32(150 * matchedPieces)
	sortUint32(positions)
	if total < m.minScore() {
		return Match{}, false
	}
	return Match{Score: total, Positions: positions}, true
}

// matchSingle matches needle (no separators) against one haystack segment.
func (m Matcher) matchSingle(haystack, needle string) (Match, bool) {
	if haystack == "" {
		return Match{}, false
	}
	if res, ok := m.contiguousOrSubsequence(haystack, needle); ok {
		if res.Score < m.minScore() {
			return Match{}, false
		}
		return res, true
	}
	if res, ok := m.typoTolerant(haystack, needle); ok {
		if res.Score < m.minScore() {
			return Match{}, false
		}
		return res, true
	}
	return Match{}, false
}

// contiguousOrSubsequence implements the cheap, exact-character path: a
// contiguous case-insensitive substring match (preferred) or, failing that,
// a greedy subsequence match that rewards word-start hits.
func (m Matcher) contiguousOrSubsequence(haystack, needle string) (Match, bool) {
	hl := strings.ToLower(haystack)
	nl := strings.ToLower(needle)

	if idx := strings.Index(hl, nl); idx >= 0 {
		score := int32(weightContiguous)
		score += int32(max(0, 300-idx))
		if isWordStart(haystack, idx) {
			score += 200
		}
		if idx == 0 {
			score += 150
		}
		end := idx + len(nl)
		if end == len(haystack) || isBoundary(haystack[end]) {
			score += 60
		}
		if strings.HasPrefix(haystack, needle) {
			score += 80 // case-sensitive prefix/exactness bonus
		}
		score -= int32(max(0, len(hl)-len(nl)))
		positions := make([]uint32, len(nl))
		for i := range positions {
			positions[i] = uint32(idx + i)
		}
		return Match{Score: score, Positions: positions}, true
	}

	ok, positions, wordStarts := subseqGreedy(haystack, hl, nl)
	if !ok {
		return Match{}, false
	}
	score := int32(weightSubseq)
	score += int32(wordStarts) * 40
	first := int(positions[0])
	score += int32(max(0, 120-first))
	last := int(positions[len(positions)-1])
	extra := (last - first + 1) - len(positions)
	if extra > 0 {
		score -= int32(extra) * 6
	}
	return Match{Score: score, Positions: positions}, true
}

// subseqGreedy greedily matches nl as a subsequence of hl (both same length
// as haystack/original casing), returning the matched byte positions in
// haystack and a count of positions landing on word starts.
func subseqGreedy(orig, hl, nl string) (bool, []uint32, int) {
	si, pi := 0, 0
	wordStarts := 0
	var positions []uint32
	for si < len(hl) && pi < len(nl) {
		if hl[si] == nl[pi] {
			if isWordStart(orig, si) {
				wordStarts++
			}
			positions = append(positions, uint32(si))
			si++
			pi++
			continue
		}
		si++
	}
	if pi != len(nl) {
		return false, nil, 0
	}
	return true, positions, wordStarts
}

// typoTolerant handles the case where needle is not a subsequence of
// haystack at all: it slides a window across haystack whose length is close
// to len(needle) and computes a bounded Damerau-Levenshtein distance
// (transposition counts as one edit, same as single-character deletion or
// insertion). The cheapest window within MaxEdits wins; its score is the
// subsequence weight minus a penalty proportional to the edit count, and
// its positions are the aligned (matched or substituted) haystack offsets
// from the edit script, so every returned position still participates in
// the claimed match.
func (m Matcher) typoTolerant(haystack, needle string) (Match, bool) {
	maxEdits := m.maxEdits()
	hl := strings.ToLower(haystack)
	nl := strings.ToLower(needle)
	nlen := len(nl)
	if nlen == 0 {
		return Match{}, false
	}

	lo := nlen - maxEdits
	if lo < 1 {
		lo = 1
	}
	hi := nlen + maxEdits
	if hi > len(hl) {
		hi = len(hl)
	}

	bestDist := maxEdits + 1
	var bestPositions []uint32
	var bestStart int

	for wlen := lo; wlen <= hi; wlen++ {
		for start := 0; start+wlen <= len(hl); start++ {
			window := hl[start : start+wlen]
			dist, ops := damerauLevenshtein(nl, window, bestDist)
			if dist < 0 || dist > maxEdits {
				continue
			}
			if dist < bestDist {
				bestDist = dist
				bestPositions = alignedPositions(ops, start)
				bestStart = start
			}
		}
	}
	if bestPositions == nil {
		return Match{}, false
	}
	score := int32(weightTypo) - int32(bestDist)*penaltyPerEdit
	if bestStart == 0 {
		score += 40
	}
	if score < 1 {
		score = 1
	}
	return Match{Score: score, Positions: bestPositions}, true
}

// editOp records one step of the edit script aligning needle to window:
// kind is 'm' (match/substitute, consumes a window byte) or 'i' (pure
// insertion into needle, consumes no window byte).
type editOp struct {
	kind byte
	pos  int // byte offset within window, valid when kind == 'm'
}

// damerauLevenshtein computes the bounded optimal-string-alignment distance
// between a and b (adjacent transpositions count as one edit) and returns
// the edit script used to align a onto b. limit bounds the search; a
// returned distance of -1 means it exceeds limit everywhere explored, which
// callers treat as "no usable alignment".
func damerauLevenshtein(a, b string, limit int) (int, []editOp) {
	la, lb := len(a), len(b)
	if abs(la-lb) > limit {
		return -1, nil
	}
	// Standard OSA DP table; small inputs (query-length strings) so no
	// need for the rolling-window optimization.
	d := make([][]int, la+1)
	for i := range d {
		d[i] = make([]int, lb+1)
		d[i][0] = i
	}
	for j := 0; j <= lb; j++ {
		d[0][j] = j
	}
	for i := 1; i <= la; i++ {
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			del := d[i-1][j] + 1
			ins := d[i][j-1] + 1
			sub := d[i-1][j-1] + cost
			best := min3(del, ins, sub)
			if i > 1 && j > 1 && a[i-1] == b[j-2] && a[i-2] == b[j-1] {
				if t := d[i-2][j-2] + 1; t < best {
					best = t
				}
			}
			d[i][j] = best
		}
	}
	if d[la][lb] > limit {
		return -1, nil
	}
	return d[la][lb], traceback(d, a, b)
}

func traceback(d [][]int, a, b string) []editOp {
	i, j := len(a), len(b)
	var ops []editOp
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && a[i-1] == b[j-1] && d[i][j] == d[i-1][j-1]:
			ops = append(ops, editOp{kind: 'm', pos: j - 1})
			i--
			j--
		case i > 1 && j > 1 && a[i-1] == b[j-2] && a[i-2] == b[j-1] && d[i][j] == d[i-2][j-2]+1:
			ops = append(ops, editOp{kind: 'm', pos: j - 1})
			ops = append(ops, editOp{kind: 'm', pos: j - 2})
			i -= 2
			j -= 2
		case i > 0 && j > 0 && d[i][j] == d[i-1][j-1]+1:
			ops = append(ops, editOp{kind: 'm', pos: j - 1}) // substitution
			i--
			j--
		case j > 0 && d[i][j] == d[i][j-1]+1:
			ops = append(ops, editOp{kind: 'm', pos: j - 1}) // insertion into a: consumes b
			j--
		case i > 0 && d[i][j] == d[i-1][j]+1:
			ops = append(ops, editOp{kind: 'i'}) // deletion from a: consumes nothing in b
			i--
		default:
			// Should not happen; bail defensively.
			i, j = 0, 0
		}
	}
	reverseOps(ops)
	return ops
}

func alignedPositions(ops []editOp, windowStart int) []uint32 {
	seen := make(map[int]struct{})
	var positions []uint32
	for _, op := range ops {
		if op.kind != 'm' {
			continue
		}
		abs := windowStart + op.pos
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		positions = append(positions, uint32(abs))
	}
	sortUint32(positions)
	return positions
}

func reverseOps(ops []editOp) {
	for i, j := 0, len(ops)-1; i < j; i, j = i+1, j-1 {
		ops[i], ops[j] = ops[j], ops[i]
	}
}

func isBoundary(b byte) bool {
	return b == '/' || b == '\\' || b == '-' || b == '_' || b == '.'
}

func isWordStart(s string, i int) bool {
	if i <= 0 {
		return true
	}
	prev := s[i-1]
	cur := s[i]
	if isBoundary(prev) {
		return true
	}
	return isLower(prev) && isUpper(cur)
}

func isLower(b byte) bool { return b >= 'a' && b <= 'z' }
func isUpper(b byte) bool { return b >= 'A' && b <= 'Z' }

func splitNonEmpty(s string, sep byte) []string {
	var out []string
	for _, part := range strings.Split(s, string(sep)) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func sortUint32(s []uint32) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func abs(a int) int {
	if a < 0 {
		return -a
	}
	return a
}

// OverlapsName reports whether query plausibly matches within name itself
// (case-insensitive substring or subsequence, or a typo-tolerant match
// within the default edit bound), as opposed to only matching
// somewhere in the directory prefix of relPath. Used by the scorer's
// path_bonus to apply the name-match bonus.
func OverlapsName(relPath, name, query string) bool {
	m := Matcher{MinScore: 1}
	if _, ok := m.matchSingle(name, lastPiece(query)); ok {
		return true
	}
	return false
}

func lastPiece(query string) string {
	if idx := strings.LastIndexByte(query, '/'); idx >= 0 {
		return query[idx+1:]
	}
	return query
}
