package dedup

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anortham/tusk-sub000/internal/checkpoint"
)

func mkEntry(id, desc string, ts time.Time) checkpoint.Entry {
	return checkpoint.Entry{ID: id, Description: desc, Timestamp: ts}
}

func TestSimilarity_IdenticalDescriptions(t *testing.T) {
	now := time.Now()
	a := mkEntry("a", "Fixed auth timeout", now)
	b := mkEntry("b", "Fixed auth timeout", now)
	assert.InDelta(t, 1.0, Similarity(&a, &b, DefaultOptions()), 1e-9)
}

func TestSimilarity_IgnoresCaseAndPunctuation(t *testing.T) {
	now := time.Now()
	a := mkEntry("a", "Fixed auth timeout!", now)
	b := mkEntry("b", "fixed AUTH timeout", now)
	assert.InDelta(t, 1.0, Similarity(&a, &b, DefaultOptions()), 1e-9)
}

func TestSimilarity_Boosts(t *testing.T) {
	now := time.Now()
	proj := "api"
	branch := "main"

	a := mkEntry("a", "completely different text here", now)
	b := mkEntry("b", "nothing at all in common whatsoever", now)
	base := Similarity(&a, &b, DefaultOptions())

	a.Project, b.Project = &proj, &proj
	withProject := Similarity(&a, &b, DefaultOptions())
	assert.InDelta(t, base+0.10, withProject, 1e-9)

	a.GitBranch, b.GitBranch = &branch, &branch
	withBranch := Similarity(&a, &b, DefaultOptions())
	assert.InDelta(t, withProject+0.05, withBranch, 1e-9)

	a.Tags = []string{"x", "y"}
	b.Tags = []string{"x", "y"}
	withTags := Similarity(&a, &b, DefaultOptions())
	assert.InDelta(t, withBranch+0.15, withTags, 1e-9)
}

func TestSimilarity_CappedAtOne(t *testing.T) {
	now := time.Now()
	proj := "api"
	branch := "main"
	a := mkEntry("a", "Fixed auth timeout", now)
	b := mkEntry("b", "Fixed auth timeout", now)
	a.Project, b.Project = &proj, &proj
	a.GitBranch, b.GitBranch = &branch, &branch
	a.Tags = []string{"t"}
	b.Tags = []string{"t"}
	assert.LessOrEqual(t, Similarity(&a, &b, DefaultOptions()), 1.0)
}

func TestCluster_ThresholdMonotonicity(t *testing.T) {
	now := time.Now()
	entries := []checkpoint.Entry{
		mkEntry("1", "Fixed auth timeout in login", now),
		mkEntry("2", "Fixed auth timeout in login flow", now),
		mkEntry("3", "Implemented retry queue", now),
		mkEntry("4", "Implemented retry queue worker", now),
		mkEntry("5", "Wrote release notes", now),
	}

	loose := Cluster(entries, 0.1)
	tight := Cluster(entries, 0.9)
	assert.LessOrEqual(t, len(loose), len(tight),
		"looser threshold must merge at least as much")
}

func TestCluster_AssignsEveryEntryOnce(t *testing.T) {
	now := time.Now()
	var entries []checkpoint.Entry
	for i := 0; i < 10; i++ {
		entries = append(entries, mkEntry(fmt.Sprintf("%d", i), fmt.Sprintf("task %d", i), now))
	}

	clusters := Cluster(entries, 0.5)
	total := 0
	seen := make(map[string]bool)
	for _, c := range clusters {
		total += len(c)
		for _, e := range c {
			require.False(t, seen[e.ID], "entry %s in two clusters", e.ID)
			seen[e.ID] = true
		}
	}
	assert.Equal(t, len(entries), total)
}

func TestMerge_SingleEntryPassesThrough(t *testing.T) {
	e := mkEntry("only", "Fixed auth timeout", time.Now())
	got := Merge([]checkpoint.Entry{e})
	assert.Equal(t, e, got)
	assert.Nil(t, got.Consolidation)
}

func TestMerge_PicksMostRecentAsPrimary(t *testing.T) {
	now := time.Now()
	proj := "api"
	older := mkEntry("old", "Fixed auth timeout", now.Add(-time.Hour))
	older.Tags = []string{"auth"}
	older.Files = []string{"auth.go"}
	newer := mkEntry("new", "Fixed auth timeout again", now)
	newer.Project = &proj
	newer.Tags = []string{"bug-fix"}
	newer.Files = []string{"auth.go", "session.go"}

	got := Merge([]checkpoint.Entry{older, newer})

	require.NotNil(t, got.Consolidation)
	assert.Equal(t, "new", got.ID, "most recent entry becomes the primary record")
	assert.Equal(t, &proj, got.Project)
	assert.ElementsMatch(t, []string{"auth", "bug-fix"}, got.Tags)
	assert.ElementsMatch(t, []string{"auth.go", "session.go"}, got.Files)
	assert.Equal(t, 2, got.Consolidation.MergedEntries)
	assert.ElementsMatch(t, []string{"old", "new"}, got.Consolidation.MergedIDs)
	assert.Equal(t, older.Timestamp, got.Consolidation.Earliest)
	assert.Equal(t, newer.Timestamp, got.Consolidation.Latest)
}

func TestMerge_DescriptionSuffix(t *testing.T) {
	now := time.Now()

	identical := Merge([]checkpoint.Entry{
		mkEntry("1", "Fixed auth timeout", now.Add(-time.Minute)),
		mkEntry("2", "Fixed auth timeout", now),
	})
	assert.Equal(t, "Fixed auth timeout (x2)", identical.Description)

	differing := Merge([]checkpoint.Entry{
		mkEntry("1", "Fixed auth timeout", now.Add(-time.Minute)),
		mkEntry("2", "Fixed auth timeout properly", now),
	})
	assert.Contains(t, differing.Description, "consolidated from 2 similar entries")
}

func TestMergeAll_DoesNotMutateInput(t *testing.T) {
	now := time.Now()
	entries := []checkpoint.Entry{
		mkEntry("1", "Fixed auth timeout", now),
		mkEntry("2", "Fixed auth timeout", now.Add(-time.Minute)),
	}
	before := make([]checkpoint.Entry, len(entries))
	copy(before, entries)

	merged := MergeAll(entries, 0.7)

	assert.Equal(t, before, entries, "merge must be a pure read-time transform")
	require.Len(t, merged, 1)
	assert.NotNil(t, merged[0].Consolidation)
}

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"same", "same", 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, levenshtein(tc.a, tc.b), "levenshtein(%q,%q)", tc.a, tc.b)
	}
}

func TestJaccard(t *testing.T) {
	assert.Equal(t, 0.0, jaccard(nil, []string{"a"}))
	assert.Equal(t, 1.0, jaccard([]string{"a", "b"}, []string{"b", "a"}))
	assert.InDelta(t, 1.0/3.0, jaccard([]string{"a", "b"}, []string{"b", "c"}), 1e-9)
}
