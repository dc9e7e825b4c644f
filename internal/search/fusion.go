// Package search provides the text, visual and hybrid search engine and result fusion.
package search

import (
	"fmt"
	"sort"

	"github.com/hyperjump/rewind/internal/keyword"
	"github.com/hyperjump/rewind/internal/vector"
)

// Fusion policy names.
const (
	FusionMax = "max"
	FusionRRF = "rrf"
)

// rrfK is the reciprocal rank fusion constant.
const rrfK = 60

// rrfNorm rescales RRF so a record ranked first in both lists scores 1.0.
const rrfNorm = 2.0 / (rrfK + 1)

// Scored is one candidate from a single retrieval path. Lists of Scored are ranked best first.
type Scored struct {
	ID    string
	Score float64
}

// FusedResult holds a record ID and its fused and per-mode scores.
type FusedResult struct {
	ID          string
	Score       float64
	TextScore   float64
	VisualScore float64
	InText      bool
	InVisual    bool
}

// Mode returns the contributing-mode label.
func (r *FusedResult) Mode() string {
	switch {
	case r.InText && r.InVisual:
		return "text+visual"
	case r.InVisual:
		return "visual"
	default:
		return "text"
	}
}

// NormalizeKeywordScores normalizes keyword scores to [0,1] by max.
func NormalizeKeywordScores(results []*keyword.KeywordResult) map[string]float64 {
	normalized := make(map[string]float64, len(results))
	if len(results) == 0 {
		return normalized
	}
	maxScore := results[0].Score
	for _, r := range results {
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}
	for _, r := range results {
		if maxScore > 0 {
			normalized[r.ID] = r.Score / maxScore
		} else {
			normalized[r.ID] = 0
		}
	}
	return normalized
}

// FilterSimilarity keeps vector hits at or above minScore, in order.
func FilterSimilarity(results []*vector.VectorResult, minScore float64) []Scored {
	out := make([]Scored, 0, len(results))
	for _, r := range results {
		if r.Score >= minScore {
			out = append(out, Scored{ID: r.ID, Score: r.Score})
		}
	}
	return out
}

// Fuse merges the ranked text and visual lists into one entry per record ID.
// With FusionMax the score is the higher per-mode score. With FusionRRF a record found by
// both modes scores the normalized reciprocal rank sum, and a record found by one mode keeps
// that mode's score. The result is unordered.
func Fuse(text, visual []Scored, policy string) ([]*FusedResult, error) {
	if policy == "" {
		policy = FusionMax
	}
	if policy != FusionMax && policy != FusionRRF {
		return nil, fmt.Errorf("unknown fusion policy %q", policy)
	}
	byID := make(map[string]*FusedResult, len(text)+len(visual))
	order := make([]string, 0, len(text)+len(visual))
	get := func(id string) *FusedResult {
		r, ok := byID[id]
		if !ok {
			r = &FusedResult{ID: id}
			byID[id] = r
			order = append(order, id)
		}
		return r
	}
	for rank, s := range text {
		r := get(s.ID)
		if r.InText {
			continue
		}
		r.InText = true
		r.TextScore = s.Score
		if policy == FusionRRF {
			r.Score += 1.0 / float64(rrfK+rank+1)
		}
	}
	for rank, s := range visual {
		r := get(s.ID)
		if r.InVisual {
			continue
		}
		r.InVisual = true
		r.VisualScore = s.Score
		if policy == FusionRRF {
			r.Score += 1.0 / float64(rrfK+rank+1)
		}
	}
	out := make([]*FusedResult, 0, len(order))
	for _, id := range order {
		r := byID[id]
		if policy == FusionRRF && r.InText && r.InVisual {
			r.Score /= rrfNorm
		} else {
			r.Score = max(r.TextScore, r.VisualScore)
		}
		out = append(out, r)
	}
	return out, nil
}

// SortFused orders results by score, then records found by both modes, then newer
// capture time, then ID descending. capturedAt maps ID to capture time in unix nanos.
func SortFused(results []*FusedResult, capturedAt map[string]int64) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		ab, bb := a.InText && a.InVisual, b.InText && b.InVisual
		if ab != bb {
			return ab
		}
		if capturedAt[a.ID] != capturedAt[b.ID] {
			return capturedAt[a.ID] > capturedAt[b.ID]
		}
		return a.ID > b.ID
	})
}
