// Package checkpoint defines the data model shared by the storage,
// deduplication, relevance, and timeline subsystems: a checkpoint is one
// short progress record scoped to a workspace.
package checkpoint

import (
	"fmt"
	"strings"
	"time"
)

// DetectionMethod says how a workspace root was identified.
type DetectionMethod string

const (
	DetectGitRoot     DetectionMethod = "git-root"
	DetectPackageRoot DetectionMethod = "package-root"
	DetectCwd         DetectionMethod = "cwd"
)

// WorkspaceInfo identifies a resolved workspace. ID is a deterministic
// truncated SHA-256 of the normalized absolute path, so two processes
// pointed at the same logical project always derive the same id.
type WorkspaceInfo struct {
	ID        string          `json:"workspace_id"`
	Path      string          `json:"workspace_path"`
	Name      string          `json:"workspace_name"`
	Detection DetectionMethod `json:"detection_method"`
}

// ConsolidationInfo is attached to derived, in-memory merged entries by the
// deduplicator. It is never persisted; the underlying rows stay intact.
type ConsolidationInfo struct {
	MergedEntries int       `json:"merged_entries"`
	MergedIDs     []string  `json:"merged_ids"`
	Earliest      time.Time `json:"earliest"`
	Latest        time.Time `json:"latest"`
}

// Entry is one stored checkpoint. (WorkspaceID, ID) is the composite
// identity; Description and Timestamp are mandatory. Files are stored
// workspace-relative, never absolute.
type Entry struct {
	ID            string             `json:"id"`
	Timestamp     time.Time          `json:"timestamp"`
	Description   string             `json:"description"`
	Project       *string            `json:"project,omitempty"`
	GitBranch     *string            `json:"git_branch,omitempty"`
	GitCommit     *string            `json:"git_commit,omitempty"`
	Tags          []string           `json:"tags,omitempty"`
	Files         []string           `json:"files,omitempty"`
	WorkspaceID   string             `json:"workspace_id"`
	WorkspacePath string             `json:"workspace_path,omitempty"`
	WorkspaceName string             `json:"workspace_name,omitempty"`
	SyncStatus    string             `json:"sync_status"`
	Version       int                `json:"version"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	Consolidation *ConsolidationInfo `json:"consolidation_info,omitempty"`
}

// ProjectName returns the project or "" when unset.
func (e *Entry) ProjectName() string { return deref(e.Project) }

// Branch returns the git branch or "" when unset.
func (e *Entry) Branch() string { return deref(e.GitBranch) }

// Commit returns the git commit or "" when unset.
func (e *Entry) Commit() string { return deref(e.GitCommit) }

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// WorkspaceSummary is one row of a workspace listing.
type WorkspaceSummary struct {
	WorkspaceID     string    `json:"workspace_id"`
	WorkspacePath   string    `json:"workspace_path"`
	WorkspaceName   string    `json:"workspace_name"`
	CheckpointCount int       `json:"checkpoint_count"`
	LatestTimestamp time.Time `json:"latest_timestamp"`
}

// Stats holds aggregate store counts, recomputed on demand.
type Stats struct {
	Total          int        `json:"total"`
	Last7Days      int        `json:"last_7_days"`
	Last30Days     int        `json:"last_30_days"`
	Projects       int        `json:"projects"`
	Workspaces     int        `json:"workspaces"`
	OldestEntry    *time.Time `json:"oldest_entry,omitempty"`
	NewestEntry    *time.Time `json:"newest_entry,omitempty"`
}

// timestampLayouts are the accepted input formats, most specific first.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a caller-supplied timestamp string.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

// Validate checks the mandatory fields and returns a *ValidationError
// listing every violated rule, not just the first one.
func (e *Entry) Validate() error {
	var violations []string

	if strings.TrimSpace(e.Description) == "" {
		violations = append(violations, "description must be non-empty")
	}
	if e.Timestamp.IsZero() {
		violations = append(violations, "timestamp is required and must be a parseable date")
	}
	for _, f := range e.Files {
		if strings.HasPrefix(f, "/") || len(f) > 1 && f[1] == ':' {
			violations = append(violations, fmt.Sprintf("file %q must be workspace-relative, not absolute", f))
			break
		}
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}
