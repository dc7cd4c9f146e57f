package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/anortham/tusk-sub000/internal/checkpoint"
	"github.com/anortham/tusk-sub000/internal/storage"
)

// SearchTool handles the checkpoint_search MCP tool.
type SearchTool struct {
	store *storage.Store
}

// NewSearchTool creates a SearchTool.
func NewSearchTool(store *storage.Store) *SearchTool {
	return &SearchTool{store: store}
}

// Definition returns the MCP tool definition for checkpoint_search.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("checkpoint_search",
		mcp.WithDescription(
			"Full-text search across saved checkpoints. Supports AND/OR/NOT, "+
				`"quoted phrases", and trailing-* prefix wildcards; bare terms are `+
				"prefix-matched automatically.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query"),
		),
		mcp.WithString("workspace",
			mcp.Description("Scope: current (default), all, or a workspace path"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 20)"),
		),
	)
}

// Handle processes the checkpoint_search tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")

	results, err := t.store.Search(query, storage.SearchOptions{
		Workspace: req.GetString("workspace", ""),
		Limit:     intArg(req, "limit", 20),
	})
	if err != nil {
		if checkpoint.IsQuerySyntax(err) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	if len(results) == 0 {
		return mcp.NewToolResultText("No checkpoints matched your query."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d checkpoints:\n\n", len(results))
	for i, r := range results {
		formatEntry(&b, i, &r.Entry)
		if len(r.MatchedFields) > 0 {
			fmt.Fprintf(&b, "    score: %.2f | matched: %s\n", r.Score, strings.Join(r.MatchedFields, ", "))
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}
