package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/anortham/tusk-sub000/internal/storage"
)

// StatsTool handles the checkpoint_stats MCP tool.
type StatsTool struct {
	store *storage.Store
}

// NewStatsTool creates a StatsTool.
func NewStatsTool(store *storage.Store) *StatsTool {
	return &StatsTool{store: store}
}

// Definition returns the MCP tool definition for checkpoint_stats.
func (t *StatsTool) Definition() mcp.Tool {
	return mcp.NewTool("checkpoint_stats",
		mcp.WithDescription(
			"Show journal statistics — totals, recent activity, projects, and workspaces.",
		),
	)
}

// Handle processes the checkpoint_stats tool call.
func (t *StatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := t.store.GetStats()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get stats: %v", err)), nil
	}

	var b strings.Builder
	b.WriteString("## Checkpoint Statistics\n\n")
	fmt.Fprintf(&b, "- **Total checkpoints**: %d\n", stats.Total)
	fmt.Fprintf(&b, "- **Last 7 days**: %d\n", stats.Last7Days)
	fmt.Fprintf(&b, "- **Last 30 days**: %d\n", stats.Last30Days)
	fmt.Fprintf(&b, "- **Projects**: %d\n", stats.Projects)
	fmt.Fprintf(&b, "- **Workspaces**: %d\n", stats.Workspaces)
	if stats.OldestEntry != nil && stats.NewestEntry != nil {
		fmt.Fprintf(&b, "- **Range**: %s → %s\n",
			stats.OldestEntry.Local().Format("2006-01-02"),
			stats.NewestEntry.Local().Format("2006-01-02"))
	}
	return mcp.NewToolResultText(b.String()), nil
}
