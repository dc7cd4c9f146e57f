package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/anortham/tusk-sub000/internal/storage"
)

// WorkspacesTool handles the workspace_list MCP tool.
type WorkspacesTool struct {
	store *storage.Store
}

// NewWorkspacesTool creates a WorkspacesTool.
func NewWorkspacesTool(store *storage.Store) *WorkspacesTool {
	return &WorkspacesTool{store: store}
}

// Definition returns the MCP tool definition for workspace_list.
func (t *WorkspacesTool) Definition() mcp.Tool {
	return mcp.NewTool("workspace_list",
		mcp.WithDescription(
			"List every workspace with saved checkpoints, most recently active first.",
		),
	)
}

// Handle processes the workspace_list tool call.
func (t *WorkspacesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summaries, err := t.store.ListWorkspaces()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list workspaces: %v", err)), nil
	}

	if len(summaries) == 0 {
		return mcp.NewToolResultText("No workspaces have checkpoints yet."), nil
	}

	current := t.store.Workspace().ID

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d workspaces:\n\n", len(summaries))
	for _, ws := range summaries {
		marker := ""
		if ws.WorkspaceID == current {
			marker = " (current)"
		}
		fmt.Fprintf(&b, "- **%s**%s — %d checkpoints, last %s\n    %s\n",
			ws.WorkspaceName, marker, ws.CheckpointCount,
			ws.LatestTimestamp.Local().Format("2006-01-02 15:04"),
			ws.WorkspacePath,
		)
	}
	return mcp.NewToolResultText(b.String()), nil
}
