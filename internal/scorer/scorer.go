// Package scorer composes the fuzzy matcher with path, frecency, git, and
// current-file heuristics into a single total score and selects the top-K
// results with a bounded min-heap.
package scorer

import (
	"container/heap"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/example/filepicker/internal/clock"
	"github.com/example/filepicker/internal/frecency"
	"github.com/example/filepicker/internal/fuzzy"
	"github.com/example/filepicker/internal/index"
	"github.com/example/filepicker/internal/model"
)

// Weights holds the tunable bonuses each score component contributes.
// Exact magnitudes are not load-bearing, only their relative ordering is
// (see DESIGN.md), so these are reasonable, documented defaults rather
// than empirically fit constants.
type Weights struct {
	DepthPenalty       int // subtracted once per path separator
	NameMatchBonus     int // match set overlaps the file name, not just the dir prefix
	ExtensionBonus     int // query's trailing extension equals the file's extension
	FrecencyMultiplier int // alpha_freq
	GitRecencyBonus    int // additional bonus scaled by worktree mtime recency
	CurrentFilePenalty int // large negative: de-rank the focused buffer itself
	SameDirBonus       int // moderate positive: sibling of the focused file
}

// DefaultWeights lets frecency and git bonuses break ties among
// equally-fuzzy-matched short queries, without ever overcoming a clearly
// superior fuzzy match.
var DefaultWeights = Weights{
	DepthPenalty:       15,
	NameMatchBonus:     250,
	ExtensionBonus:     80,
	FrecencyMultiplier: 3,
	GitRecencyBonus:    40,
	CurrentFilePenalty: -100000,
	SameDirBonus:       120,
}

// gitRank orders git_bonus:
// modified > added > untracked > renamed > conflicted > clean > deleted > ignored > unknown.
var gitRank = map[model.GitStatus]int{
	model.GitModified:   900,
	model.GitAdded:      800,
	model.GitUntracked:  700,
	model.GitRenamed:    600,
	model.GitConflicted: 500,
	model.GitClean:      400,
	model.GitDeleted:    300,
	model.GitIgnored:    200,
	model.GitUnknown:    100,
}

// Query carries everything a single search needs beyond the snapshot.
type Query struct {
	Text        string
	MaxResults  int
	CurrentFile string // absolute path, optional
	Cwd         string // absolute directory path, optional: files directly inside it get a same-directory bias

	// Cancelled, when non-nil, is polled at record-batch boundaries; once it
	// reports true, Search returns whatever partial result it has collected
	// so far rather than scanning the remaining snapshot, without killing a
	// goroutine outright.
	Cancelled func() bool
}

// cancelBatchSize is how many records Search scores between cancellation
// checks; small enough to make cancellation feel immediate, large enough
// that the atomic load isn't on the hot path per-record.
const cancelBatchSize = 512

// Ranker composes the fuzzy matcher, a frecency store, and a weight set
// into a single Search entry point.
type Ranker struct {
	Matcher  fuzzy.Matcher
	Frecency *frecency.Store
	Weights  Weights
	Now      func() int64 // unix seconds; overridable for tests
}

// New builds a Ranker with the default matcher tolerance and weights.
func New(store *frecency.Store, now func() int64) *Ranker {
	return &Ranker{
		Matcher:  fuzzy.Matcher{MinScore: fuzzy.DefaultMinScore, MaxEdits: fuzzy.DefaultMaxEdits},
		Frecency: store,
		Weights:  DefaultWeights,
		Now:      now,
	}
}

type candidate struct {
	result model.ScoredResult
	rel    string
}

// heapItem orders candidates as a min-heap over the documented total order,
// so popping the minimum repeatedly and discarding it is how an
// over-capacity heap sheds its weakest member.
type heapItem struct{ candidate }

type resultHeap []heapItem

func (h resultHeap) Len() int { return len(h) }
func (h resultHeap) Less(i, j int) bool {
	return lessRank(h[i].candidate, h[j].candidate)
}
func (h resultHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *resultHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// lessRank reports whether a ranks strictly below b in the documented total
// order (total score desc, fuzzy desc, shorter relative_path, lexically
// smaller relative_path, lower index_id) — i.e. whether a is the weaker
// candidate. A min-heap ordered by this relation pops its weakest member on
// overflow, which is exactly the eviction top-K selection needs.
func lessRank(a, b candidate) bool {
	if a.result.TotalScore != b.result.TotalScore {
		return a.result.TotalScore < b.result.TotalScore
	}
	if a.result.Components.Fuzzy != b.result.Components.Fuzzy {
		return a.result.Components.Fuzzy < b.result.Components.Fuzzy
	}
	if len(a.rel) != len(b.rel) {
		return len(a.rel) > len(b.rel)
	}
	if a.rel != b.rel {
		return a.rel > b.rel
	}
	return a.result.Record.IndexID > b.result.Record.IndexID
}

// Search scores every record in snap against q and returns up to
// q.MaxResults items in the documented total order.
func (rk *Ranker) Search(snap *index.Snapshot, q Query) []model.ScoredResult {
	maxResults := q.MaxResults
	if maxResults <= 0 {
		maxResults = 100
	}

	if strings.TrimSpace(q.Text) == "" {
		return rk.searchEmpty(snap, q, maxResults)
	}

	h := &resultHeap{}
	heap.Init(h)

	for i, rec := range snap.Records {
		if q.Cancelled != nil && i%cancelBatchSize == 0 && q.Cancelled() {
			break
		}
		m, ok := rk.Matcher.Match(rec.RelativePath, q.Text)
		if !ok {
			continue
		}
		cand := rk.compose(rec, q, m.Score, m.Positions)
		item := heapItem{candidate{result: cand, rel: rec.RelativePath}}
		if h.Len() < maxResults {
			heap.Push(h, item)
		} else if lessRank((*h)[0].candidate, item.candidate) {
			heap.Pop(h)
			heap.Push(h, item)
		}
	}
	return drain(h)
}

// searchEmpty handles the blank-query case: fuzzy is omitted, ranking is
// by frecency_bonus + current-directory bias + git_bonus + mtime, most
// recent first. git_bonus is folded in here too (not just mtime) so a
// worktree with pending changes surfaces them ahead of untouched files
// absent overriding frecency, per the documented git-status scenario.
func (rk *Ranker) searchEmpty(snap *index.Snapshot, q Query, maxResults int) []model.ScoredResult {
	h := &resultHeap{}
	heap.Init(h)
	for i, rec := range snap.Records {
		if q.Cancelled != nil && i%cancelBatchSize == 0 && q.Cancelled() {
			break
		}
		cand := rk.compose(rec, q, 0, nil)
		item := heapItem{candidate{result: cand, rel: rec.RelativePath}}
		if h.Len() < maxResults {
			heap.Push(h, item)
		} else if lessEmptyRank((*h)[0].candidate, item.candidate) {
			heap.Pop(h)
			heap.Push(h, item)
		}
	}
	out := drainBy(h, lessEmptyRank)
	return out
}

func lessEmptyRank(a, b candidate) bool {
	sa := a.result.Components.Frecency + a.result.Components.CurrentFile + a.result.Components.Git
	sb := b.result.Components.Frecency + b.result.Components.CurrentFile + b.result.Components.Git
	if sa != sb {
		return sa < sb
	}
	ma := a.result.Record.ModifiedAt().Unix()
	mb := b.result.Record.ModifiedAt().Unix()
	if ma != mb {
		return ma < mb
	}
	return a.result.Record.IndexID > b.result.Record.IndexID
}

func drain(h *resultHeap) []model.ScoredResult {
	return drainBy(h, lessRank)
}

func drainBy(h *resultHeap, less func(a, b candidate) bool) []model.ScoredResult {
	items := make([]candidate, h.Len())
	for i := range items {
		items[i] = heap.Pop(h).(heapItem).candidate
	}
	sort.Slice(items, func(i, j int) bool { return less(items[j].candidate, items[i].candidate) })
	out := make([]model.ScoredResult, len(items))
	for i, c := range items {
		out[i] = c.result
	}
	return out
}

// compose builds the total score for one record. fuzzyScore/positions are
// zero/nil for the empty-query path, in which case path_bonus is skipped
// entirely, depth penalty included (there is no query to match against the
// name).
func (rk *Ranker) compose(rec *model.FileRecord, q Query, fuzzyScore int32, positions []uint32) model.ScoredResult {
	comp := model.ComponentScores{Fuzzy: int(fuzzyScore)}

	if q.Text != "" {
		comp.PathBonus = rk.pathBonus(rec, q.Text)
	}

	if rk.Frecency != nil {
		comp.Frecency = rk.Weights.FrecencyMultiplier * rk.Frecency.ScoreFor(rec.AbsolutePath)
	}

	comp.Git = gitRank[rec.GitStatus()]
	if rec.GitStatus() != model.GitClean && rec.GitStatus() != model.GitUnknown && rec.GitStatus() != model.GitIgnored {
		age := rk.Now() - rec.ModifiedAt().Unix()
		comp.Git += GitMtimeRecencyBonus(rk.Weights.GitRecencyBonus, age)
	}

	if q.CurrentFile != "" {
		if rec.AbsolutePath == q.CurrentFile {
			comp.CurrentFile = rk.Weights.CurrentFilePenalty
		} else if clock.SameDir(rec.AbsolutePath, q.CurrentFile) {
			comp.CurrentFile = rk.Weights.SameDirBonus
		}
	}
	if q.Cwd != "" && comp.CurrentFile == 0 && clock.NormalizeSlash(filepath.Dir(rec.AbsolutePath)) == clock.NormalizeSlash(q.Cwd) {
		comp.CurrentFile = rk.Weights.SameDirBonus
	}

	total := comp.Fuzzy + comp.PathBonus + comp.Frecency + comp.Git + comp.CurrentFile
	return model.ScoredResult{
		Record:         rec,
		TotalScore:     total,
		FuzzyPositions: positions,
		Components:     comp,
	}
}

func (rk *Ranker) pathBonus(rec *model.FileRecord, query string) int {
	bonus := 0
	depth := strings.Count(rec.RelativePath, "/")
	bonus -= depth * rk.Weights.DepthPenalty

	if fuzzy.OverlapsName(rec.RelativePath, rec.Name, query) {
		bonus += rk.Weights.NameMatchBonus
	}

	if ext := trailingExtension(query); ext != "" && ext == rec.Extension {
		bonus += rk.Weights.ExtensionBonus
	}

	return bonus
}

func trailingExtension(query string) string {
	idx := strings.LastIndexByte(query, '.')
	if idx < 0 || idx == len(query)-1 {
		return ""
	}
	return strings.ToLower(query[idx+1:])
}

// GitMtimeRecencyBonus scales GitRecencyBonus down as a file's last
// modification recedes into the past. Exported so tests can assert its
// decay curve directly.
func GitMtimeRecencyBonus(weight int, ageSeconds int64) int {
	if ageSeconds < 0 {
		ageSeconds = 0
	}
	decay := math.Exp(-float64(ageSeconds) / float64(86400))
	return int(float64(weight) * decay)
}
