// Package storage implements the durable checkpoint store and its
// full-text search index.
//
// It uses SQLite with WAL journaling so one writer and many readers can
// share the database file across processes, and keeps an FTS5 shadow table
// in lock-step with the checkpoints table via triggers: the index update
// commits in the same transaction as the row it mirrors, so search can
// never observably lag behind a committed write.
package storage

import (
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/anortham/tusk-sub000/internal/checkpoint"
	"github.com/anortham/tusk-sub000/internal/workspace"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Config holds checkpoint store configuration.
type Config struct {
	DataDir          string
	BusyTimeout      time.Duration
	DefaultLimit     int
	MaxSearchResults int
}

// DefaultConfig returns the default configuration for the store.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:          filepath.Join(home, ".tusk"),
		BusyTimeout:      5 * time.Second,
		DefaultLimit:     50,
		MaxSearchResults: 100,
	}
}

// Store is the checkpoint engine backed by SQLite + FTS5.
type Store struct {
	db  *sql.DB
	cfg Config
	ws  checkpoint.WorkspaceInfo

	// ftsEnabled flips to false when the engine lacks FTS5 or the index
	// failed to build; search then degrades to substring matching.
	ftsEnabled bool
}

// New opens (or creates) the store for the given workspace. The data
// directory is created if needed, WAL mode and a bounded busy timeout are
// applied, and the schema is migrated.
func New(cfg Config, ws checkpoint.WorkspaceInfo) (*Store, error) {
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 50
	}
	if cfg.MaxSearchResults <= 0 {
		cfg.MaxSearchResults = 100
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("storage: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "checkpoints.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()),
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("storage: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg, ws: ws}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("storage: migration: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Workspace returns the workspace this store handle is scoped to.
func (s *Store) Workspace() checkpoint.WorkspaceInfo { return s.ws }

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS checkpoints (
			id             TEXT    NOT NULL,
			workspace_id   TEXT    NOT NULL,
			workspace_path TEXT    NOT NULL DEFAULT '',
			workspace_name TEXT    NOT NULL DEFAULT '',
			timestamp      TEXT    NOT NULL,
			description    TEXT    NOT NULL,
			project        TEXT,
			git_branch     TEXT,
			git_commit     TEXT,
			tags           TEXT    NOT NULL DEFAULT '[]',
			files          TEXT    NOT NULL DEFAULT '[]',
			sync_status    TEXT    NOT NULL DEFAULT 'local',
			version        INTEGER NOT NULL DEFAULT 1,
			created_at     TEXT    NOT NULL DEFAULT (datetime('now')),
			updated_at     TEXT    NOT NULL DEFAULT (datetime('now')),
			PRIMARY KEY (workspace_id, id)
		);

		CREATE INDEX IF NOT EXISTS idx_cp_ws_ts   ON checkpoints(workspace_id, timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_cp_ts      ON checkpoints(timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_cp_project ON checkpoints(project);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// The FTS index is an optimization, not a requirement: if the engine
	// lacks FTS5 the store still works and search uses the fallback path.
	if err := s.migrateFTS(); err != nil {
		s.ftsEnabled = false
		logDegraded("index unavailable, search will use substring fallback: %v", err)
		return nil
	}
	s.ftsEnabled = true
	return nil
}

func (s *Store) migrateFTS() error {
	// Standalone FTS table (not content=...) because the primary key is
	// composite text, which cannot serve as an FTS content rowid.
	if _, err := s.db.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS checkpoints_fts USING fts5(
			id UNINDEXED,
			workspace_id UNINDEXED,
			description,
			project,
			git_branch,
			tags,
			timestamp UNINDEXED
		);
	`); err != nil {
		return err
	}

	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='trigger' AND name='cp_fts_insert'",
	).Scan(&name)
	if err == sql.ErrNoRows {
		triggers := `
			CREATE TRIGGER cp_fts_insert AFTER INSERT ON checkpoints BEGIN
				INSERT INTO checkpoints_fts(id, workspace_id, description, project, git_branch, tags, timestamp)
				VALUES (new.id, new.workspace_id, new.description,
				        COALESCE(new.project, ''), COALESCE(new.git_branch, ''), new.tags, new.timestamp);
			END;

			CREATE TRIGGER cp_fts_delete AFTER DELETE ON checkpoints BEGIN
				DELETE FROM checkpoints_fts WHERE id = old.id AND workspace_id = old.workspace_id;
			END;

			CREATE TRIGGER cp_fts_update AFTER UPDATE ON checkpoints BEGIN
				DELETE FROM checkpoints_fts WHERE id = old.id AND workspace_id = old.workspace_id;
				INSERT INTO checkpoints_fts(id, workspace_id, description, project, git_branch, tags, timestamp)
				VALUES (new.id, new.workspace_id, new.description,
				        COALESCE(new.project, ''), COALESCE(new.git_branch, ''), new.tags, new.timestamp);
			END;
		`
		if _, err := s.db.Exec(triggers); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	return nil
}

// ─── Save ────────────────────────────────────────────────────────────────────

// Save validates and persists one checkpoint, returning its id.
//
// Missing workspace fields are assigned from the store's resolved
// workspace; a missing id gets a time-sortable ULID. Entries are immutable
// after this point — there is no update path.
func (s *Store) Save(e *checkpoint.Entry) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.prepare(e)

	if err := s.insert(s.db, e); err != nil {
		if isBusy(err) {
			return "", &checkpoint.ResourceBusyError{Op: "save", Err: err}
		}
		return "", fmt.Errorf("storage: save checkpoint: %w", err)
	}
	return e.ID, nil
}

// SaveBatch persists entries all-or-nothing: every entry is validated
// before any write, and one failed insert rolls back the whole batch.
func (s *Store) SaveBatch(entries []*checkpoint.Entry) error {
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			if ve, ok := err.(*checkpoint.ValidationError); ok {
				return &checkpoint.ValidationError{
					Violations: append([]string{fmt.Sprintf("entry %d rejected, batch aborted", i)}, ve.Violations...),
				}
			}
			return err
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		if isBusy(err) {
			return &checkpoint.ResourceBusyError{Op: "saveBatch", Err: err}
		}
		return fmt.Errorf("storage: begin batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for i, e := range entries {
		s.prepare(e)
		if err := s.insert(tx, e); err != nil {
			if isBusy(err) {
				return &checkpoint.ResourceBusyError{Op: "saveBatch", Err: err}
			}
			return fmt.Errorf("storage: batch entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		if isBusy(err) {
			return &checkpoint.ResourceBusyError{Op: "saveBatch", Err: err}
		}
		return fmt.Errorf("storage: commit batch: %w", err)
	}
	return nil
}

// prepare fills the generated and workspace-derived fields in place.
func (s *Store) prepare(e *checkpoint.Entry) {
	now := time.Now().UTC()
	if e.ID == "" {
		e.ID = newID(e.Timestamp)
	}
	if e.WorkspaceID == "" {
		e.WorkspaceID = s.ws.ID
		e.WorkspacePath = s.ws.Path
		e.WorkspaceName = s.ws.Name
	}
	if e.SyncStatus == "" {
		e.SyncStatus = "local"
	}
	if e.Version == 0 {
		e.Version = 1
	}
	e.CreatedAt = now
	e.UpdatedAt = now
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (s *Store) insert(db execer, e *checkpoint.Entry) error {
	tags, err := json.Marshal(nonNil(e.Tags))
	if err != nil {
		return err
	}
	files, err := json.Marshal(nonNil(e.Files))
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		INSERT INTO checkpoints
			(id, workspace_id, workspace_path, workspace_name, timestamp, description,
			 project, git_branch, git_commit, tags, files, sync_status, version,
			 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.WorkspaceID, e.WorkspacePath, e.WorkspaceName,
		formatTime(e.Timestamp), e.Description,
		e.Project, e.GitBranch, e.GitCommit,
		string(tags), string(files), e.SyncStatus, e.Version,
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
	)
	return err
}

// ─── Query ───────────────────────────────────────────────────────────────────

// Scope values for QueryOptions.Workspace and SearchOptions.Workspace.
// Anything else is treated as a filesystem path to scope to.
const (
	ScopeCurrent = "current"
	ScopeAll     = "all"
)

// QueryOptions filters a direct (non-full-text) read.
type QueryOptions struct {
	Workspace string // "", "current", "all", or a specific path
	Days      int    // days-back window; ignored when From/To set
	From      time.Time
	To        time.Time
	Project   string   // exact match
	Tags      []string // entry must carry every listed tag
	Limit     int
	Offset    int
}

// Query returns checkpoints matching the options, newest first.
func (s *Store) Query(opts QueryOptions) ([]checkpoint.Entry, error) {
	where, args := s.scopeCondition(opts.Workspace)

	from, to := opts.From, opts.To
	if from.IsZero() && to.IsZero() && opts.Days > 0 {
		from = time.Now().UTC().AddDate(0, 0, -opts.Days)
	}
	if !from.IsZero() {
		where = append(where, "datetime(timestamp) >= datetime(?)")
		args = append(args, formatTime(from))
	}
	if !to.IsZero() {
		where = append(where, "datetime(timestamp) <= datetime(?)")
		args = append(args, formatTime(to))
	}
	if opts.Project != "" {
		where = append(where, "project = ?")
		args = append(args, opts.Project)
	}
	for _, tag := range opts.Tags {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(checkpoints.tags) WHERE json_each.value = ?)")
		args = append(args, tag)
	}

	q := "SELECT " + entryColumns + " FROM checkpoints"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY timestamp DESC, id DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	q += " LIMIT ? OFFSET ?"
	args = append(args, limit, opts.Offset)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: query: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Get retrieves a single checkpoint by id within the current workspace.
func (s *Store) Get(id string) (*checkpoint.Entry, error) {
	rows, err := s.db.Query(
		"SELECT "+entryColumns+" FROM checkpoints WHERE workspace_id = ? AND id = ?",
		s.ws.ID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: get: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, sql.ErrNoRows
	}
	return &entries[0], nil
}

// scopeCondition translates a workspace scope into SQL conditions.
// Both the indexed and fallback search paths reuse it so scoping semantics
// cannot drift between them.
func (s *Store) scopeCondition(scope string) ([]string, []any) {
	switch scope {
	case ScopeAll:
		return nil, nil
	case "", ScopeCurrent:
		return []string{"workspace_id = ?"}, []any{s.ws.ID}
	default:
		return []string{"workspace_id = ?"}, []any{workspace.ID(scope)}
	}
}

// ─── Aggregates ──────────────────────────────────────────────────────────────

// GetStats recomputes aggregate counts on demand. Acceptable at this
// table's expected scale (low tens of thousands of rows).
func (s *Store) GetStats() (*checkpoint.Stats, error) {
	st := &checkpoint.Stats{}
	now := time.Now().UTC()

	queries := []struct {
		dest *int
		q    string
		args []any
	}{
		{&st.Total, "SELECT COUNT(*) FROM checkpoints", nil},
		{&st.Last7Days, "SELECT COUNT(*) FROM checkpoints WHERE datetime(timestamp) >= datetime(?)",
			[]any{formatTime(now.AddDate(0, 0, -7))}},
		{&st.Last30Days, "SELECT COUNT(*) FROM checkpoints WHERE datetime(timestamp) >= datetime(?)",
			[]any{formatTime(now.AddDate(0, 0, -30))}},
		{&st.Projects, "SELECT COUNT(DISTINCT project) FROM checkpoints WHERE project IS NOT NULL", nil},
		{&st.Workspaces, "SELECT COUNT(DISTINCT workspace_id) FROM checkpoints", nil},
	}
	for _, c := range queries {
		if err := s.db.QueryRow(c.q, c.args...).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("storage: stats: %w", err)
		}
	}

	var oldest, newest sql.NullString
	if err := s.db.QueryRow(
		"SELECT MIN(timestamp), MAX(timestamp) FROM checkpoints",
	).Scan(&oldest, &newest); err != nil {
		return nil, fmt.Errorf("storage: stats range: %w", err)
	}
	if oldest.Valid {
		if t, err := parseStoredTime(oldest.String); err == nil {
			st.OldestEntry = &t
		}
	}
	if newest.Valid {
		if t, err := parseStoredTime(newest.String); err == nil {
			st.NewestEntry = &t
		}
	}

	return st, nil
}

// ListWorkspaces summarizes every workspace present in the store.
func (s *Store) ListWorkspaces() ([]checkpoint.WorkspaceSummary, error) {
	rows, err := s.db.Query(`
		SELECT workspace_id,
		       MAX(workspace_path),
		       MAX(workspace_name),
		       COUNT(*),
		       MAX(timestamp)
		FROM checkpoints
		GROUP BY workspace_id
		ORDER BY MAX(timestamp) DESC`)
	if err != nil {
		return nil, fmt.Errorf("storage: list workspaces: %w", err)
	}
	defer rows.Close()

	var result []checkpoint.WorkspaceSummary
	for rows.Next() {
		var ws checkpoint.WorkspaceSummary
		var latest string
		if err := rows.Scan(&ws.WorkspaceID, &ws.WorkspacePath, &ws.WorkspaceName, &ws.CheckpointCount, &latest); err != nil {
			return nil, err
		}
		if t, err := parseStoredTime(latest); err == nil {
			ws.LatestTimestamp = t
		}
		result = append(result, ws)
	}
	return result, rows.Err()
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

const entryColumns = `id, workspace_id, workspace_path, workspace_name, timestamp,
	description, project, git_branch, git_commit, tags, files,
	sync_status, version, created_at, updated_at`

func scanEntries(rows *sql.Rows) ([]checkpoint.Entry, error) {
	var entries []checkpoint.Entry
	for rows.Next() {
		var e checkpoint.Entry
		var ts, createdAt, updatedAt, tags, files string
		if err := rows.Scan(
			&e.ID, &e.WorkspaceID, &e.WorkspacePath, &e.WorkspaceName, &ts,
			&e.Description, &e.Project, &e.GitBranch, &e.GitCommit, &tags, &files,
			&e.SyncStatus, &e.Version, &createdAt, &updatedAt,
		); err != nil {
			return nil, err
		}
		if t, err := parseStoredTime(ts); err == nil {
			e.Timestamp = t
		}
		if t, err := parseStoredTime(createdAt); err == nil {
			e.CreatedAt = t
		}
		if t, err := parseStoredTime(updatedAt); err == nil {
			e.UpdatedAt = t
		}
		if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
			return nil, fmt.Errorf("storage: corrupt tags column for %s: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(files), &e.Files); err != nil {
			return nil, fmt.Errorf("storage: corrupt files column for %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// newID generates a time-sortable id: ULID encodes the entry timestamp in
// its prefix and crypto-random bytes in its suffix.
func newID(ts time.Time) string {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return ulid.MustNew(ulid.Timestamp(ts), rand.Reader).String()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseStoredTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	// datetime('now') defaults use the space-separated form
	return time.Parse("2006-01-02 15:04:05", s)
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

// isBusy detects SQLite lock/busy-timeout exhaustion.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database table is locked")
}
