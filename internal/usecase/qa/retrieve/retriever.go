// Package retrieve implements the EnhancedRetriever (C14): overfetch,
// threshold filter, per-document cap, near-duplicate removal, and a
// diversity-aware sort. The algorithm is ported from the reference
// implementation's enhanced_retriever module; see DESIGN.md.
package retrieve

import (
	"context"
	"sort"
	"strings"

	"github.com/vigilfeed/vigilfeed/internal/usecase/qa/query"
)

// Result is one retrieved chunk after the full pipeline.
type Result struct {
	DocID     string
	ArticleID string
	Content   string
	Score     float64
	Metadata  map[string]any
}

// Searcher is the subset of the knowledge base this component depends on.
type Searcher interface {
	Search(ctx context.Context, q string, nResults int, filters map[string]any) ([]Result, error)
}

// Config controls the filtering/dedup/diversity behaviour.
type Config struct {
	SimilarityThreshold float64 // 0 = keep all, 1 = exact only
	MaxChunksPerDoc     int     // 0 disables the per-document cap
	DedupThreshold      float64 // default 0.95
	MaxHistoryTurns     int
}

func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.3,
		MaxChunksPerDoc:     3,
		DedupThreshold:      0.95,
		MaxHistoryTurns:     3,
	}
}

// Retriever composes HistoryAwareQueryBuilder + KnowledgeBase search with
// the threshold/cap/dedup/diversity pipeline.
type Retriever struct {
	kb  Searcher
	cfg Config
}

func New(kb Searcher, cfg Config) *Retriever {
	return &Retriever{kb: kb, cfg: cfg}
}

// Retrieve runs the full C14 pipeline and returns at most nResults chunks.
func (r *Retriever) Retrieve(ctx context.Context, current string, history []query.Turn, nResults int, filters map[string]any) ([]Result, error) {
	historyQuery := query.BuildHistoryAwareQuery(current, history, r.cfg.MaxHistoryTurns)

	overfetch := nResults * 3
	if overfetch < nResults {
		overfetch = nResults
	}

	candidates, err := r.kb.Search(ctx, historyQuery, overfetch, filters)
	if err != nil {
		return nil, err
	}

	filtered := FilterByThreshold(candidates, r.cfg.SimilarityThreshold)
	capped := LimitPerDocument(filtered, r.cfg.MaxChunksPerDoc)
	deduped := Deduplicate(capped, r.cfg.DedupThreshold)
	sorted := SortResults(deduped)

	if len(sorted) > nResults {
		sorted = sorted[:nResults]
	}
	return sorted, nil
}

// FilterByThreshold drops results scoring below threshold. threshold=0
// keeps everything; threshold=1 keeps only exact (score==1.0) matches.
func FilterByThreshold(results []Result, threshold float64) []Result {
	if threshold <= 0 {
		return results
	}
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if threshold >= 1 {
			if r.Score == 1.0 {
				out = append(out, r)
			}
			continue
		}
		if r.Score >= threshold {
			out = append(out, r)
		}
	}
	return out
}

// LimitPerDocument keeps, for each article_id group, only its top-k
// results by score, while preserving the original relative order of the
// survivors (not sorting everything by score first).
func LimitPerDocument(results []Result, maxPerDoc int) []Result {
	if maxPerDoc <= 0 {
		return results
	}

	type indexed struct {
		idx int
		r   Result
	}
	byDoc := map[string][]indexed{}
	for i, r := range results {
		byDoc[r.ArticleID] = append(byDoc[r.ArticleID], indexed{idx: i, r: r})
	}

	keepIdx := map[int]bool{}
	for _, group := range byDoc {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].r.Score > group[j].r.Score
		})
		limit := maxPerDoc
		if limit > len(group) {
			limit = len(group)
		}
		for _, g := range group[:limit] {
			keepIdx[g.idx] = true
		}
	}

	out := make([]Result, 0, len(results))
	for i, r := range results {
		if keepIdx[i] {
			out = append(out, r)
		}
	}
	return out
}

// Deduplicate iterates survivors in score-descending order and keeps a
// chunk only if its content similarity to every already-kept chunk is
// below dedupThreshold.
func Deduplicate(results []Result, dedupThreshold float64) []Result {
	if dedupThreshold <= 0 {
		dedupThreshold = 0.95
	}

	ordered := make([]Result, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score > ordered[j].Score
	})

	var kept []Result
	for _, cand := range ordered {
		dup := false
		for _, k := range kept {
			if contentSimilarity(cand.Content, k.Content) > dedupThreshold {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, cand)
		}
	}
	return kept
}

// contentSimilarity estimates similarity without an embedding call: fast
// character-3-gram Jaccard first; values outside [0.3, 0.9] are returned
// directly, values in between fall back to word-level Jaccard (cheaper
// to compute, more robust to punctuation/word-order when the char
// estimate is genuinely ambiguous).
func contentSimilarity(a, b string) float64 {
	charSim := jaccard(charNGrams(a, 3), charNGrams(b, 3))
	if charSim < 0.3 || charSim > 0.9 {
		return charSim
	}
	return jaccard(wordSet(a), wordSet(b))
}

func charNGrams(s string, n int) map[string]bool {
	runes := []rune(s)
	set := map[string]bool{}
	if len(runes) < n {
		if len(runes) > 0 {
			set[string(runes)] = true
		}
		return set
	}
	for i := 0; i+n <= len(runes); i++ {
		set[string(runes[i:i+n])] = true
	}
	return set
}

func wordSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if b[k] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// SortResults orders by score descending; within an equal-score group it
// round-robins across article_id sources, preferring sources not yet
// represented in the output so far. The final score sequence is
// guaranteed non-increasing.
func SortResults(results []Result) []Result {
	if len(results) == 0 {
		return results
	}

	ordered := make([]Result, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score > ordered[j].Score
	})

	// Group contiguous equal-score runs and diversity-sort within each run.
	out := make([]Result, 0, len(ordered))
	i := 0
	seenSources := map[string]bool{}
	for i < len(ordered) {
		j := i
		for j < len(ordered) && ordered[j].Score == ordered[i].Score {
			j++
		}
		group := ordered[i:j]
		out = append(out, diversityOrder(group, seenSources)...)
		i = j
	}
	return out
}

// diversityOrder reorders a same-score group so that chunks from
// article_ids not yet present in seenSources come first, round-robining
// one chunk per source per round to avoid one prolific article_id
// dominating the front of the list.
func diversityOrder(group []Result, seenSources map[string]bool) []Result {
	bySource := map[string][]Result{}
	var sourceOrder []string
	for _, r := range group {
		if _, ok := bySource[r.ArticleID]; !ok {
			sourceOrder = append(sourceOrder, r.ArticleID)
		}
		bySource[r.ArticleID] = append(bySource[r.ArticleID], r)
	}

	sort.SliceStable(sourceOrder, func(i, j int) bool {
		iNew := !seenSources[sourceOrder[i]]
		jNew := !seenSources[sourceOrder[j]]
		if iNew != jNew {
			return iNew
		}
		return false
	})

	var out []Result
	for {
		progressed := false
		for _, src := range sourceOrder {
			if len(bySource[src]) == 0 {
				continue
			}
			out = append(out, bySource[src][0])
			bySource[src] = bySource[src][1:]
			seenSources[src] = true
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return out
}
