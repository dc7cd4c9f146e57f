package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/anortham/tusk-sub000/internal/checkpoint"
	"github.com/anortham/tusk-sub000/internal/storage"
)

// SaveTool handles the checkpoint_save MCP tool.
type SaveTool struct {
	store *storage.Store
}

// NewSaveTool creates a SaveTool.
func NewSaveTool(store *storage.Store) *SaveTool {
	return &SaveTool{store: store}
}

// Definition returns the MCP tool definition for checkpoint_save.
func (t *SaveTool) Definition() mcp.Tool {
	return mcp.NewTool("checkpoint_save",
		mcp.WithDescription(
			"Save a work-progress checkpoint for the current workspace. Use this to persist "+
				"what you just did — a fix, a decision, a discovery — so it survives the session.",
		),
		mcp.WithString("description",
			mcp.Required(),
			mcp.Description("What happened — one or two sentences"),
		),
		mcp.WithString("timestamp",
			mcp.Description("ISO-8601 timestamp (default: now)"),
		),
		mcp.WithString("project",
			mcp.Description("Project name"),
		),
		mcp.WithString("git_branch",
			mcp.Description("Current git branch"),
		),
		mcp.WithString("git_commit",
			mcp.Description("Current git commit hash"),
		),
		mcp.WithString("tags",
			mcp.Description("Comma-separated tags (e.g. bug-fix,critical)"),
		),
		mcp.WithString("files",
			mcp.Description("Comma-separated workspace-relative file paths touched"),
		),
	)
}

// Handle processes the checkpoint_save tool call.
func (t *SaveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entry := &checkpoint.Entry{
		Description: req.GetString("description", ""),
		Project:     optional(req.GetString("project", "")),
		GitBranch:   optional(req.GetString("git_branch", "")),
		GitCommit:   optional(req.GetString("git_commit", "")),
		Tags:        splitList(req.GetString("tags", "")),
		Files:       splitList(req.GetString("files", "")),
	}

	if raw := req.GetString("timestamp", ""); raw != "" {
		// Leave the timestamp zero on parse failure so validation
		// reports it together with any other violations.
		if ts, err := checkpoint.ParseTimestamp(raw); err == nil {
			entry.Timestamp = ts
		}
	} else {
		entry.Timestamp = time.Now().UTC()
	}

	id, err := t.store.Save(entry)
	if err != nil {
		if checkpoint.IsBusy(err) {
			return mcp.NewToolResultError(fmt.Sprintf("store is busy, retry shortly: %v", err)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("save failed: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Checkpoint %s saved to workspace %s.", id, t.store.Workspace().Name,
	)), nil
}
