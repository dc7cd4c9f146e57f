package storage_test

import (
	"strings"
	"testing"
	"time"

	"github.com/anortham/tusk-sub000/internal/checkpoint"
	"github.com/anortham/tusk-sub000/internal/storage"
)

func testWorkspace(id, name string) checkpoint.WorkspaceInfo {
	return checkpoint.WorkspaceInfo{
		ID:        id,
		Path:      "/tmp/" + name,
		Name:      name,
		Detection: checkpoint.DetectGitRoot,
	}
}

// newTestStore creates a Store backed by a temp directory for isolation.
func newTestStore(t *testing.T, dir string, ws checkpoint.WorkspaceInfo) *storage.Store {
	t.Helper()
	cfg := storage.DefaultConfig()
	cfg.DataDir = dir
	s, err := storage.New(cfg, ws)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func entry(desc string, ts time.Time) *checkpoint.Entry {
	return &checkpoint.Entry{Description: desc, Timestamp: ts}
}

// ─── Save / Round trip ───────────────────────────────────────────────────────

func TestSave_RoundTrip(t *testing.T) {
	s := newTestStore(t, t.TempDir(), testWorkspace("wsaaaa", "alpha"))
	ts := time.Now().UTC().Truncate(time.Second)

	id, err := s.Save(entry("Fixed auth timeout", ts))
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if id == "" {
		t.Fatal("Save() returned empty id")
	}

	got, err := s.Query(storage.QueryOptions{Days: 1})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Query() returned %d entries, want 1", len(got))
	}
	if got[0].Description != "Fixed auth timeout" {
		t.Errorf("description = %q", got[0].Description)
	}
	if !got[0].Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", got[0].Timestamp, ts)
	}
	if got[0].WorkspaceID != "wsaaaa" {
		t.Errorf("workspaceID = %q, want wsaaaa", got[0].WorkspaceID)
	}
}

func TestSave_GeneratesTimeSortableID(t *testing.T) {
	s := newTestStore(t, t.TempDir(), testWorkspace("wsaaaa", "alpha"))

	earlier, err := s.Save(entry("first", time.Now().UTC().Add(-time.Hour)))
	if err != nil {
		t.Fatal(err)
	}
	later, err := s.Save(entry("second", time.Now().UTC()))
	if err != nil {
		t.Fatal(err)
	}

	if len(earlier) != 26 || len(later) != 26 {
		t.Fatalf("ids %q/%q are not ULIDs", earlier, later)
	}
	if !(earlier < later) {
		t.Errorf("ids not time-sortable: %q !< %q", earlier, later)
	}
}

func TestSave_KeepsCallerSuppliedID(t *testing.T) {
	s := newTestStore(t, t.TempDir(), testWorkspace("wsaaaa", "alpha"))

	e := entry("imported", time.Now().UTC())
	e.ID = "custom-id-1"
	id, err := s.Save(e)
	if err != nil {
		t.Fatal(err)
	}
	if id != "custom-id-1" {
		t.Errorf("id = %q, want custom-id-1", id)
	}
}

func TestSave_ValidationListsAllViolations(t *testing.T) {
	s := newTestStore(t, t.TempDir(), testWorkspace("wsaaaa", "alpha"))

	_, err := s.Save(&checkpoint.Entry{Description: ""})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !checkpoint.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "description") || !strings.Contains(msg, "timestamp") {
		t.Errorf("error %q does not mention both violations", msg)
	}
}

func TestSaveBatch_AllOrNothing(t *testing.T) {
	s := newTestStore(t, t.TempDir(), testWorkspace("wsaaaa", "alpha"))
	now := time.Now().UTC()

	err := s.SaveBatch([]*checkpoint.Entry{
		entry("valid one", now),
		{Description: ""}, // invalid
		entry("valid two", now),
	})
	if err == nil {
		t.Fatal("expected batch to fail")
	}
	if !checkpoint.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %T", err)
	}

	got, err := s.Query(storage.QueryOptions{Days: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("batch was partially applied: %d entries persisted", len(got))
	}
}

func TestSaveBatch_CommitsAllValid(t *testing.T) {
	s := newTestStore(t, t.TempDir(), testWorkspace("wsaaaa", "alpha"))
	now := time.Now().UTC()

	if err := s.SaveBatch([]*checkpoint.Entry{
		entry("one", now.Add(-2*time.Minute)),
		entry("two", now.Add(-time.Minute)),
		entry("three", now),
	}); err != nil {
		t.Fatalf("SaveBatch() error: %v", err)
	}

	got, err := s.Query(storage.QueryOptions{Days: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
}

// ─── Query semantics ─────────────────────────────────────────────────────────

func TestQuery_WorkspaceIsolation(t *testing.T) {
	dir := t.TempDir()
	a := newTestStore(t, dir, testWorkspace("wsaaaa", "alpha"))
	b := newTestStore(t, dir, testWorkspace("wsbbbb", "beta"))
	now := time.Now().UTC()

	if _, err := a.Save(entry("alpha work", now)); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Save(entry("beta work", now)); err != nil {
		t.Fatal(err)
	}

	current, err := a.Query(storage.QueryOptions{Days: 1})
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range current {
		if e.WorkspaceID != "wsaaaa" {
			t.Errorf("scope current leaked entry from workspace %q", e.WorkspaceID)
		}
	}
	if len(current) != 1 {
		t.Errorf("scope current: got %d entries, want 1", len(current))
	}

	all, err := a.Query(storage.QueryOptions{Workspace: storage.ScopeAll, Days: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("scope all: got %d entries, want 2", len(all))
	}
}

func TestQuery_TagsRequireAll(t *testing.T) {
	s := newTestStore(t, t.TempDir(), testWorkspace("wsaaaa", "alpha"))
	now := time.Now().UTC()

	e1 := entry("tagged both", now)
	e1.Tags = []string{"critical", "auth"}
	e2 := entry("tagged one", now)
	e2.Tags = []string{"auth"}
	for _, e := range []*checkpoint.Entry{e1, e2} {
		if _, err := s.Save(e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Query(storage.QueryOptions{Days: 1, Tags: []string{"critical", "auth"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Description != "tagged both" {
		t.Errorf("tags AND filter returned %d entries", len(got))
	}
}

func TestQuery_ExplicitRangeBeatsDaysBack(t *testing.T) {
	s := newTestStore(t, t.TempDir(), testWorkspace("wsaaaa", "alpha"))
	now := time.Now().UTC()

	if _, err := s.Save(entry("old", now.AddDate(0, 0, -10))); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Save(entry("recent", now)); err != nil {
		t.Fatal(err)
	}

	// Days would exclude the old entry; the explicit range includes it.
	got, err := s.Query(storage.QueryOptions{
		Days: 1,
		From: now.AddDate(0, 0, -30),
		To:   now.AddDate(0, 0, -5),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Description != "old" {
		t.Errorf("explicit range did not take precedence: got %d entries", len(got))
	}
}

func TestQuery_NewestFirstWithPagination(t *testing.T) {
	s := newTestStore(t, t.TempDir(), testWorkspace("wsaaaa", "alpha"))
	now := time.Now().UTC()

	for i, desc := range []string{"first", "second", "third"} {
		if _, err := s.Save(entry(desc, now.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}

	page, err := s.Query(storage.QueryOptions{Days: 1, Limit: 2, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 {
		t.Fatalf("got %d entries, want 2", len(page))
	}
	if page[0].Description != "second" || page[1].Description != "first" {
		t.Errorf("unexpected page order: %q, %q", page[0].Description, page[1].Description)
	}
}

func TestQuery_ProjectExactMatch(t *testing.T) {
	s := newTestStore(t, t.TempDir(), testWorkspace("wsaaaa", "alpha"))
	now := time.Now().UTC()

	e := entry("api work", now)
	proj := "api"
	e.Project = &proj
	if _, err := s.Save(e); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Save(entry("other work", now)); err != nil {
		t.Fatal(err)
	}

	got, err := s.Query(storage.QueryOptions{Days: 1, Project: "api"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ProjectName() != "api" {
		t.Errorf("project filter returned %d entries", len(got))
	}
}

// ─── Aggregates ──────────────────────────────────────────────────────────────

func TestGetStats(t *testing.T) {
	s := newTestStore(t, t.TempDir(), testWorkspace("wsaaaa", "alpha"))
	now := time.Now().UTC()

	old := entry("ancient", now.AddDate(0, 0, -60))
	recent := entry("fresh", now)
	proj := "api"
	recent.Project = &proj
	for _, e := range []*checkpoint.Entry{old, recent} {
		if _, err := s.Save(e); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := s.GetStats()
	if err != nil {
		t.Fatalf("GetStats() error: %v", err)
	}
	if stats.Total != 2 {
		t.Errorf("Total = %d, want 2", stats.Total)
	}
	if stats.Last7Days != 1 {
		t.Errorf("Last7Days = %d, want 1", stats.Last7Days)
	}
	if stats.Projects != 1 {
		t.Errorf("Projects = %d, want 1", stats.Projects)
	}
	if stats.Workspaces != 1 {
		t.Errorf("Workspaces = %d, want 1", stats.Workspaces)
	}
	if stats.OldestEntry == nil || stats.NewestEntry == nil {
		t.Fatal("expected oldest/newest timestamps")
	}
	if !stats.OldestEntry.Before(*stats.NewestEntry) {
		t.Errorf("oldest %v not before newest %v", stats.OldestEntry, stats.NewestEntry)
	}
}

func TestListWorkspaces(t *testing.T) {
	dir := t.TempDir()
	a := newTestStore(t, dir, testWorkspace("wsaaaa", "alpha"))
	b := newTestStore(t, dir, testWorkspace("wsbbbb", "beta"))
	now := time.Now().UTC()

	if _, err := a.Save(entry("alpha work", now.Add(-time.Hour))); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Save(entry("beta work", now)); err != nil {
		t.Fatal(err)
	}

	got, err := a.ListWorkspaces()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d workspaces, want 2", len(got))
	}
	if got[0].WorkspaceID != "wsbbbb" {
		t.Errorf("most recently active workspace should sort first, got %q", got[0].WorkspaceID)
	}
	if got[0].CheckpointCount != 1 {
		t.Errorf("CheckpointCount = %d, want 1", got[0].CheckpointCount)
	}
}

// ─── Durability ──────────────────────────────────────────────────────────────

func TestReopen_KeepsData(t *testing.T) {
	dir := t.TempDir()
	ws := testWorkspace("wsaaaa", "alpha")

	cfg := storage.DefaultConfig()
	cfg.DataDir = dir
	s1, err := storage.New(cfg, ws)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s1.Save(entry("persists", time.Now().UTC())); err != nil {
		t.Fatal(err)
	}
	s1.Close()

	s2, err := storage.New(cfg, ws)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	got, err := s2.Query(storage.QueryOptions{Days: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("after reopen: got %d entries, want 1", len(got))
	}
}
