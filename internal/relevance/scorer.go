// Package relevance ranks checkpoints by a weighted combination of
// recency, tag importance, completion signal, git activity, and
// uniqueness. The sub-scores are fixed-vocabulary heuristics, not
// classifiers, and scoring is fully deterministic for a fixed "now".
package relevance

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/anortham/tusk-sub000/internal/checkpoint"
)

// Weights are the five non-negative factor weights. They should sum to
// roughly 1 but are not enforced to; callers may override per query.
type Weights struct {
	Recency     float64 `json:"recency"`
	Tags        float64 `json:"tags"`
	Completion  float64 `json:"completion"`
	GitActivity float64 `json:"git_activity"`
	Uniqueness  float64 `json:"uniqueness"`
}

// DefaultWeights returns the standard weighting.
func DefaultWeights() Weights {
	return Weights{
		Recency:     0.30,
		Tags:        0.20,
		Completion:  0.20,
		GitActivity: 0.15,
		Uniqueness:  0.15,
	}
}

// importantTags carry a higher per-tag contribution than ordinary tags.
var importantTags = map[string]bool{
	"critical":     true,
	"important":    true,
	"breakthrough": true,
	"milestone":    true,
	"completed":    true,
	"bug-fix":      true,
}

// completionVerbs in a description signal finished work.
var completionVerbs = []string{
	"completed", "finished", "fixed", "implemented", "resolved", "deployed", "done",
}

// Score combines the five sub-scores by weighted sum, clamped to [0,1].
func Score(e *checkpoint.Entry, w Weights, now time.Time) float64 {
	score := w.Recency*recencyScore(e, now) +
		w.Tags*tagScore(e) +
		w.Completion*completionScore(e) +
		w.GitActivity*gitActivityScore(e) +
		w.Uniqueness*uniquenessScore(e)

	if score > 1 {
		return 1
	}
	if score < 0 {
		return 0
	}
	return score
}

// recencyScore decays exponentially with a ~7 day constant: roughly
// halves every 5 days.
func recencyScore(e *checkpoint.Entry, now time.Time) float64 {
	days := now.Sub(e.Timestamp).Hours() / 24
	if days < 0 {
		days = 0
	}
	return math.Exp(-days / 7)
}

// tagScore sums 0.3 per important tag and 0.1 per other tag, capped at 1.
func tagScore(e *checkpoint.Entry) float64 {
	score := 0.0
	for _, tag := range e.Tags {
		if importantTags[strings.ToLower(tag)] {
			score += 0.3
		} else {
			score += 0.1
		}
	}
	if score > 1 {
		return 1
	}
	return score
}

// completionScore is 1.0 when the description contains a completion verb,
// else 0.5.
func completionScore(e *checkpoint.Entry) float64 {
	desc := strings.ToLower(e.Description)
	for _, verb := range completionVerbs {
		if strings.Contains(desc, verb) {
			return 1.0
		}
	}
	return 0.5
}

// gitActivityScore prefers entries anchored to a commit, then a branch.
func gitActivityScore(e *checkpoint.Entry) float64 {
	switch {
	case e.Commit() != "":
		return 1.0
	case e.Branch() != "":
		return 0.7
	default:
		return 0.3
	}
}

// uniquenessScore penalizes heavily consolidated entries so distinct
// events outrank repeated noise: 0.1 off per merged occurrence beyond the
// first, floored at 0.3.
func uniquenessScore(e *checkpoint.Entry) float64 {
	if e.Consolidation == nil || e.Consolidation.MergedEntries <= 1 {
		return 1.0
	}
	score := 1.0 - 0.1*float64(e.Consolidation.MergedEntries-1)
	if score < 0.3 {
		return 0.3
	}
	return score
}

// SortByRelevance stable-sorts entries descending by score. Ties keep
// their original relative order, so the result is reproducible.
func SortByRelevance(entries []checkpoint.Entry, w Weights, now time.Time) {
	scores := make([]float64, len(entries))
	for i := range entries {
		scores[i] = Score(&entries[i], w, now)
	}
	idx := make([]int, len(entries))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})

	sorted := make([]checkpoint.Entry, len(entries))
	for i, j := range idx {
		sorted[i] = entries[j]
	}
	copy(entries, sorted)
}

// FilterByRelevance keeps entries scoring at or above the threshold.
func FilterByRelevance(entries []checkpoint.Entry, w Weights, now time.Time, threshold float64) []checkpoint.Entry {
	var kept []checkpoint.Entry
	for i := range entries {
		if Score(&entries[i], w, now) >= threshold {
			kept = append(kept, entries[i])
		}
	}
	return kept
}
