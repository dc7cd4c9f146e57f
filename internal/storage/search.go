package storage

import (
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"
	"unicode"

	"github.com/anortham/tusk-sub000/internal/checkpoint"
)

// SearchOptions filters a full-text search.
type SearchOptions struct {
	Workspace string // same scope semantics as QueryOptions.Workspace
	Limit     int
}

// SearchResult is one ranked hit. Score is normalized to [0,1], higher is
// more relevant. MatchedFields and Snippet are best-effort presentation
// aids, not part of the ranking contract.
type SearchResult struct {
	Entry         checkpoint.Entry `json:"entry"`
	Score         float64          `json:"score"`
	MatchedFields []string         `json:"matched_fields,omitempty"`
	Snippet       string           `json:"snippet,omitempty"`
}

// Search runs a full-text query over the index and returns ranked results.
//
// The query language: implicit AND between bare terms, explicit AND/OR/NOT,
// "quoted phrases", and trailing-* prefix wildcards. Bare terms in a query
// with no explicit syntax are automatically prefix-expanded (auth → auth*)
// to favor recall on short human-typed queries.
//
// Malformed query syntax returns a *checkpoint.QuerySyntaxError. Index
// failures never reach the caller: Search transparently degrades to a
// case-insensitive substring scan ordered by recency.
func (s *Store) Search(query string, opts SearchOptions) ([]SearchResult, error) {
	if err := validateQuery(query); err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxSearchResults {
		limit = s.cfg.MaxSearchResults
	}

	if s.ftsEnabled {
		results, err := s.searchFTS(query, opts.Workspace, limit)
		if err == nil {
			return results, nil
		}
		logDegraded("full-text search failed, using substring fallback: %v", err)
	}

	return s.searchFallback(query, opts.Workspace, limit)
}

// ─── Query validation ────────────────────────────────────────────────────────

func isOperator(tok string) bool {
	switch strings.ToUpper(tok) {
	case "AND", "OR", "NOT":
		return true
	}
	return false
}

// validateQuery rejects empty queries, unmatched quotes, unmatched
// parentheses, and queries that begin or end with a boolean operator.
func validateQuery(query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return &checkpoint.QuerySyntaxError{Query: query, Reason: "query is empty"}
	}
	if strings.Count(query, `"`)%2 != 0 {
		return &checkpoint.QuerySyntaxError{Query: query, Reason: "unmatched quote"}
	}

	depth := 0
	for _, r := range query {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return &checkpoint.QuerySyntaxError{Query: query, Reason: "unmatched closing parenthesis"}
			}
		}
	}
	if depth != 0 {
		return &checkpoint.QuerySyntaxError{Query: query, Reason: "unmatched opening parenthesis"}
	}

	toks := tokenize(trimmed)
	if len(toks) > 0 {
		if isOperator(firstWord(toks)) {
			return &checkpoint.QuerySyntaxError{Query: query, Reason: "query begins with a boolean operator"}
		}
		if isOperator(lastWord(toks)) {
			return &checkpoint.QuerySyntaxError{Query: query, Reason: "query ends with a boolean operator"}
		}
	}
	return nil
}

func firstWord(toks []string) string {
	for _, t := range toks {
		if t != "(" && t != ")" {
			return t
		}
	}
	return ""
}

func lastWord(toks []string) string {
	for i := len(toks) - 1; i >= 0; i-- {
		if toks[i] != "(" && toks[i] != ")" {
			return toks[i]
		}
	}
	return ""
}

// tokenize splits a query into words, quoted phrases, and parens. Quoted
// phrases keep their surrounding quotes.
func tokenize(query string) []string {
	var toks []string
	var cur strings.Builder
	inQuote := false

	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}

	for _, r := range query {
		switch {
		case r == '"':
			cur.WriteRune(r)
			if inQuote {
				flush()
			}
			inQuote = !inQuote
		case inQuote:
			cur.WriteRune(r)
		case r == '(' || r == ')':
			flush()
			toks = append(toks, string(r))
		case unicode.IsSpace(r):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}

// hasExplicitSyntax reports whether the query uses operators, quotes,
// wildcards, or grouping. Such queries are translated verbatim; only plain
// bag-of-words queries get automatic prefix expansion.
func hasExplicitSyntax(toks []string) bool {
	for _, t := range toks {
		if t == "(" || t == ")" || isOperator(t) ||
			strings.HasPrefix(t, `"`) || strings.HasSuffix(t, "*") {
			return true
		}
	}
	return false
}

// buildMatchQuery translates the validated query into FTS5 MATCH syntax.
// Terms are quoted so punctuation inside them cannot break the FTS parser.
func buildMatchQuery(query string) string {
	toks := tokenize(strings.TrimSpace(query))
	expand := !hasExplicitSyntax(toks)

	out := make([]string, 0, len(toks))
	for _, t := range toks {
		switch {
		case t == "(" || t == ")":
			out = append(out, t)
		case isOperator(t):
			out = append(out, strings.ToUpper(t))
		case strings.HasPrefix(t, `"`):
			out = append(out, t) // already a quoted phrase
		case strings.HasSuffix(t, "*"):
			out = append(out, quoteTerm(strings.TrimSuffix(t, "*"))+"*")
		case expand:
			out = append(out, quoteTerm(t)+"*")
		default:
			out = append(out, quoteTerm(t))
		}
	}
	return strings.Join(out, " ")
}

func quoteTerm(t string) string {
	return `"` + strings.Trim(t, `"`) + `"`
}

// ─── Indexed path ────────────────────────────────────────────────────────────

func (s *Store) searchFTS(query, scope string, limit int) ([]SearchResult, error) {
	where, args := s.scopeCondition(scope)
	cond := ""
	for _, w := range where {
		cond += " AND c." + w
	}

	match := buildMatchQuery(query)
	q := fmt.Sprintf(`
		SELECT %s, f.rank
		FROM checkpoints_fts f
		JOIN checkpoints c ON c.id = f.id AND c.workspace_id = f.workspace_id
		WHERE checkpoints_fts MATCH ?%s
		ORDER BY f.rank
		LIMIT ?`, prefixColumns("c"), cond)

	rows, err := s.db.Query(q, append(append([]any{match}, args...), limit)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	terms := plainTerms(query)
	var results []SearchResult
	for rows.Next() {
		var e checkpoint.Entry
		var ts, createdAt, updatedAt, tags, files string
		var rank float64
		if err := rows.Scan(
			&e.ID, &e.WorkspaceID, &e.WorkspacePath, &e.WorkspaceName, &ts,
			&e.Description, &e.Project, &e.GitBranch, &e.GitCommit, &tags, &files,
			&e.SyncStatus, &e.Version, &createdAt, &updatedAt,
			&rank,
		); err != nil {
			return nil, err
		}
		decodeScanned(&e, ts, createdAt, updatedAt, tags, files)

		results = append(results, SearchResult{
			Entry:         e,
			Score:         normalizeRank(rank),
			MatchedFields: matchedFields(&e, terms),
			Snippet:       highlight(e.Description, terms),
		})
	}
	return results, rows.Err()
}

func prefixColumns(alias string) string {
	cols := strings.Split(entryColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

func decodeScanned(e *checkpoint.Entry, ts, createdAt, updatedAt, tags, files string) {
	if t, err := parseStoredTime(ts); err == nil {
		e.Timestamp = t
	}
	if t, err := parseStoredTime(createdAt); err == nil {
		e.CreatedAt = t
	}
	if t, err := parseStoredTime(updatedAt); err == nil {
		e.UpdatedAt = t
	}
	decodeJSONList(tags, &e.Tags)
	decodeJSONList(files, &e.Files)
}

// normalizeRank maps the native bm25 rank (0 or negative, more negative =
// more relevant) into [0,1) with higher meaning more relevant.
func normalizeRank(rank float64) float64 {
	if rank > 0 {
		rank = -rank
	}
	score := -rank / (1 - rank)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// ─── Fallback path ───────────────────────────────────────────────────────────

// searchFallback is the degraded path: a case-insensitive substring match
// across description, project, branch, commit, tags, and files, ordered by
// recency. Workspace scoping is applied identically to the indexed path.
func (s *Store) searchFallback(query, scope string, limit int) ([]SearchResult, error) {
	where, args := s.scopeCondition(scope)

	q := "SELECT " + entryColumns + " FROM checkpoints"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY timestamp DESC, id DESC"

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: fallback search: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}

	terms := plainTerms(query)
	var results []SearchResult
	for _, e := range entries {
		if len(results) >= limit {
			break
		}
		hay := strings.ToLower(strings.Join([]string{
			e.Description, e.ProjectName(), e.Branch(), e.Commit(),
			strings.Join(e.Tags, " "), strings.Join(e.Files, " "),
		}, "\n"))

		matched := len(terms) > 0
		for _, term := range terms {
			if !strings.Contains(hay, term) {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}

		results = append(results, SearchResult{
			Entry: e,
			// No rank without the index; keep recency order and a
			// monotone in-range score.
			Score:         1.0 / float64(len(results)+1),
			MatchedFields: matchedFields(&e, terms),
			Snippet:       highlight(e.Description, terms),
		})
	}
	return results, nil
}

// plainTerms extracts the lowercase bare terms of a query, dropping
// operators, grouping, and wildcard markers.
func plainTerms(query string) []string {
	var terms []string
	for _, t := range tokenize(strings.TrimSpace(query)) {
		if t == "(" || t == ")" || isOperator(t) {
			continue
		}
		t = strings.Trim(t, `"`)
		t = strings.TrimSuffix(t, "*")
		if t != "" {
			terms = append(terms, strings.ToLower(t))
		}
	}
	return terms
}

// ─── Presentation aids ───────────────────────────────────────────────────────

func matchedFields(e *checkpoint.Entry, terms []string) []string {
	fields := []struct {
		name  string
		value string
	}{
		{"description", e.Description},
		{"project", e.ProjectName()},
		{"git_branch", e.Branch()},
		{"git_commit", e.Commit()},
		{"tags", strings.Join(e.Tags, " ")},
		{"files", strings.Join(e.Files, " ")},
	}

	var matched []string
	for _, f := range fields {
		low := strings.ToLower(f.value)
		for _, term := range terms {
			if strings.Contains(low, term) {
				matched = append(matched, f.name)
				break
			}
		}
	}
	return matched
}

// highlight wraps naive case-insensitive matches in <b>...</b>.
func highlight(text string, terms []string) string {
	out := text
	for _, term := range terms {
		re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(term))
		if err != nil {
			continue
		}
		out = re.ReplaceAllString(out, "<b>$0</b>")
	}
	return out
}

func decodeJSONList(raw string, dest *[]string) {
	// A corrupt column surfaces as an error in Query; search just drops
	// the list rather than failing the whole request.
	_ = json.Unmarshal([]byte(raw), dest)
}

func logDegraded(format string, args ...any) {
	log.Printf("WARNING: "+format, args...)
}
