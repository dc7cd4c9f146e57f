// Package dedup consolidates near-duplicate checkpoints at read time.
// Clustering and merging are pure transforms over in-memory entries; the
// stored rows are never touched.
package dedup

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/anortham/tusk-sub000/internal/checkpoint"
)

// Options are the similarity boosts layered on top of the description
// distance. Empirically chosen defaults; callers may override.
type Options struct {
	ProjectBoost float64 // added when both entries share a project
	BranchBoost  float64 // added when both entries share a git branch
	TagBoostMax  float64 // scaled by Jaccard overlap of tag sets
}

// DefaultOptions returns the default similarity boosts.
func DefaultOptions() Options {
	return Options{
		ProjectBoost: 0.10,
		BranchBoost:  0.05,
		TagBoostMax:  0.15,
	}
}

// Cluster groups entries whose similarity to a cluster seed meets the
// threshold. Greedy single pass: each unassigned entry seeds a new cluster
// and absorbs every remaining unassigned entry similar enough to it.
func Cluster(entries []checkpoint.Entry, threshold float64) [][]checkpoint.Entry {
	return ClusterWith(entries, threshold, DefaultOptions())
}

// ClusterWith is Cluster with explicit boost options.
func ClusterWith(entries []checkpoint.Entry, threshold float64, opts Options) [][]checkpoint.Entry {
	var clusters [][]checkpoint.Entry
	assigned := make([]bool, len(entries))

	for i := range entries {
		if assigned[i] {
			continue
		}
		cluster := []checkpoint.Entry{entries[i]}
		assigned[i] = true

		for j := i + 1; j < len(entries); j++ {
			if assigned[j] {
				continue
			}
			if Similarity(&entries[i], &entries[j], opts) >= threshold {
				cluster = append(cluster, entries[j])
				assigned[j] = true
			}
		}
		clusters = append(clusters, cluster)
	}
	return clusters
}

// Similarity computes semantic similarity in [0,1]: normalized Levenshtein
// similarity of the cleaned descriptions, plus context boosts, capped at 1.
func Similarity(a, b *checkpoint.Entry, opts Options) float64 {
	sim := stringSimilarity(normalizeText(a.Description), normalizeText(b.Description))

	if a.Project != nil && b.Project != nil && *a.Project == *b.Project {
		sim += opts.ProjectBoost
	}
	if a.GitBranch != nil && b.GitBranch != nil && *a.GitBranch == *b.GitBranch {
		sim += opts.BranchBoost
	}
	sim += opts.TagBoostMax * jaccard(a.Tags, b.Tags)

	if sim > 1 {
		return 1
	}
	return sim
}

// Merge collapses a cluster into one display entry. A single-entry cluster
// passes through unchanged. For multi-entry clusters the most recent entry
// becomes the primary record: its project/branch/commit win, tags and files
// are unioned, and the description gains a human-readable suffix. The
// returned entry carries ConsolidationInfo; nothing is written back.
func Merge(cluster []checkpoint.Entry) checkpoint.Entry {
	if len(cluster) == 0 {
		return checkpoint.Entry{}
	}
	if len(cluster) == 1 {
		return cluster[0]
	}

	primary := cluster[0]
	earliest, latest := cluster[0].Timestamp, cluster[0].Timestamp
	for _, e := range cluster[1:] {
		if e.Timestamp.After(primary.Timestamp) {
			primary = e
		}
		if e.Timestamp.Before(earliest) {
			earliest = e.Timestamp
		}
		if e.Timestamp.After(latest) {
			latest = e.Timestamp
		}
	}

	merged := primary
	merged.Tags = unionStrings(cluster, func(e checkpoint.Entry) []string { return e.Tags })
	merged.Files = unionStrings(cluster, func(e checkpoint.Entry) []string { return e.Files })
	merged.Description = mergedDescription(primary.Description, cluster)

	ids := make([]string, len(cluster))
	for i, e := range cluster {
		ids[i] = e.ID
	}
	merged.Consolidation = &checkpoint.ConsolidationInfo{
		MergedEntries: len(cluster),
		MergedIDs:     ids,
		Earliest:      earliest,
		Latest:        latest,
	}
	return merged
}

// MergeAll clusters and merges in one step, preserving cluster order.
func MergeAll(entries []checkpoint.Entry, threshold float64) []checkpoint.Entry {
	clusters := Cluster(entries, threshold)
	merged := make([]checkpoint.Entry, 0, len(clusters))
	for _, c := range clusters {
		merged = append(merged, Merge(c))
	}
	return merged
}

func mergedDescription(primary string, cluster []checkpoint.Entry) string {
	identical := true
	for _, e := range cluster {
		if e.Description != cluster[0].Description {
			identical = false
			break
		}
	}
	if identical {
		return fmt.Sprintf("%s (x%d)", primary, len(cluster))
	}
	return fmt.Sprintf("%s (consolidated from %d similar entries)", primary, len(cluster))
}

func unionStrings(cluster []checkpoint.Entry, get func(checkpoint.Entry) []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range cluster {
		for _, v := range get(e) {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

var punctuation = regexp.MustCompile(`[^a-z0-9\s]+`)

// normalizeText lower-cases, strips punctuation, and collapses whitespace.
func normalizeText(s string) string {
	s = strings.ToLower(s)
	s = punctuation.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// stringSimilarity is 1 - levenshtein/maxLen over the normalized strings.
func stringSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(maxLen)
}

// levenshtein computes edit distance with the two-row DP formulation.
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min3(cur[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// jaccard is |A∩B| / |A∪B| over tag sets; empty sets overlap not at all.
func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(a))
	for _, t := range a {
		setA[t] = true
	}
	inter := 0
	setB := make(map[string]bool, len(b))
	for _, t := range b {
		if setB[t] {
			continue
		}
		setB[t] = true
		if setA[t] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

// SortByTimestamp orders entries newest first, used to present merged
// views in the store's standard order.
func SortByTimestamp(entries []checkpoint.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
}

// TimeSpan is a convenience accessor for a merged entry's covered range.
func TimeSpan(e *checkpoint.Entry) (time.Time, time.Time) {
	if e.Consolidation == nil {
		return e.Timestamp, e.Timestamp
	}
	return e.Consolidation.Earliest, e.Consolidation.Latest
}
