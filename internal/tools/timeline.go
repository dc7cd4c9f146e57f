package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/anortham/tusk-sub000/internal/storage"
	"github.com/anortham/tusk-sub000/internal/timeline"
)

// TimelineTool handles the checkpoint_timeline MCP tool.
type TimelineTool struct {
	store *storage.Store
}

// NewTimelineTool creates a TimelineTool.
func NewTimelineTool(store *storage.Store) *TimelineTool {
	return &TimelineTool{store: store}
}

// Definition returns the MCP tool definition for checkpoint_timeline.
func (t *TimelineTool) Definition() mcp.Tool {
	return mcp.NewTool("checkpoint_timeline",
		mcp.WithDescription(
			"Group recent checkpoints into work sessions (1-hour idle gap) by day, "+
				"with per-session topic tags and key insights.",
		),
		mcp.WithNumber("days",
			mcp.Description("How many days back to look (default: 7)"),
		),
		mcp.WithString("workspace",
			mcp.Description("Scope: current (default), all, or a workspace path"),
		),
	)
}

// Handle processes the checkpoint_timeline tool call.
func (t *TimelineTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := t.store.Query(storage.QueryOptions{
		Workspace: req.GetString("workspace", ""),
		Days:      intArg(req, "days", 7),
		Limit:     500,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("timeline failed: %v", err)), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("No checkpoints in that window."), nil
	}

	sessions := timeline.ClusterIntoSessions(timeline.CheckpointItems(entries))
	days := timeline.GroupByDay(sessions, time.Now())

	var b strings.Builder
	for _, day := range days {
		fmt.Fprintf(&b, "## %s\n\n", day.Label)
		for _, s := range day.Sessions {
			fmt.Fprintf(&b, "- %s–%s: %d checkpoints",
				s.Start.Local().Format("15:04"), s.End.Local().Format("15:04"), s.ItemCount)
			if len(s.TopicTags) > 0 {
				fmt.Fprintf(&b, " [%s]", strings.Join(s.TopicTags, ", "))
			}
			b.WriteString("\n")
			for _, insight := range s.KeyInsights {
				fmt.Fprintf(&b, "    • %s\n", insight)
			}
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}
