package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/anortham/tusk-sub000/internal/dedup"
	"github.com/anortham/tusk-sub000/internal/relevance"
	"github.com/anortham/tusk-sub000/internal/storage"
)

// defaultSimilarityThreshold is the consolidation cutoff used by recall.
const defaultSimilarityThreshold = 0.7

// RecallTool handles the checkpoint_recall MCP tool: the enriched read
// path that consolidates near-duplicates and ranks by relevance.
type RecallTool struct {
	store *storage.Store
}

// NewRecallTool creates a RecallTool.
func NewRecallTool(store *storage.Store) *RecallTool {
	return &RecallTool{store: store}
}

// Definition returns the MCP tool definition for checkpoint_recall.
func (t *RecallTool) Definition() mcp.Tool {
	return mcp.NewTool("checkpoint_recall",
		mcp.WithDescription(
			"Recall recent checkpoints, deduplicated and ranked by relevance. "+
				"Use this at session start to reconstruct what mattered most recently.",
		),
		mcp.WithNumber("days",
			mcp.Description("How many days back to look (default: 7)"),
		),
		mcp.WithString("project",
			mcp.Description("Filter by exact project name"),
		),
		mcp.WithString("tags",
			mcp.Description("Comma-separated tags; entries must carry all of them"),
		),
		mcp.WithString("workspace",
			mcp.Description("Scope: current (default), all, or a workspace path"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max entries to return (default: 20)"),
		),
		mcp.WithBoolean("deduplicate",
			mcp.Description("Consolidate near-duplicate entries (default: true)"),
		),
		mcp.WithNumber("min_relevance",
			mcp.Description("Drop entries scoring below this threshold (0..1)"),
		),
	)
}

// Handle processes the checkpoint_recall tool call.
func (t *RecallTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := t.store.Query(storage.QueryOptions{
		Workspace: req.GetString("workspace", ""),
		Days:      intArg(req, "days", 7),
		Project:   req.GetString("project", ""),
		Tags:      splitList(req.GetString("tags", "")),
		Limit:     intArg(req, "limit", 20),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("recall failed: %v", err)), nil
	}

	if boolArg(req, "deduplicate", true) {
		entries = dedup.MergeAll(entries, defaultSimilarityThreshold)
		dedup.SortByTimestamp(entries)
	}

	now := time.Now().UTC()
	weights := relevance.DefaultWeights()
	relevance.SortByRelevance(entries, weights, now)
	if min := floatArg(req, "min_relevance", 0); min > 0 {
		entries = relevance.FilterByRelevance(entries, weights, now, min)
	}

	if len(entries) == 0 {
		return mcp.NewToolResultText("No checkpoints found for that window."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recalled %d checkpoints (most relevant first):\n\n", len(entries))
	for i := range entries {
		formatEntry(&b, i, &entries[i])
	}
	return mcp.NewToolResultText(b.String()), nil
}
