// Package server wires the checkpoint engine into an MCP server instance.
//
// This is the composition root: it resolves the current workspace, opens
// the store, and injects it into the tool handlers. No business logic
// lives here — only wiring.
package server

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/anortham/tusk-sub000/internal/storage"
	"github.com/anortham/tusk-sub000/internal/tools"
	"github.com/anortham/tusk-sub000/internal/workspace"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates the MCP server with all checkpoint tools registered.
//
// The returned cleanup function closes the store's database connection and
// must be called on shutdown (typically via defer). It is always non-nil.
func New(cfg storage.Config) (*server.MCPServer, func(), error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	ws := workspace.Resolve(cwd)

	store, err := storage.New(cfg, ws)
	if err != nil {
		return nil, noop, fmt.Errorf("opening checkpoint store: %w", err)
	}
	cleanup := func() { _ = store.Close() }

	s := server.NewMCPServer(
		"tusk",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	saveTool := tools.NewSaveTool(store)
	s.AddTool(saveTool.Definition(), saveTool.Handle)

	recallTool := tools.NewRecallTool(store)
	s.AddTool(recallTool.Definition(), recallTool.Handle)

	searchTool := tools.NewSearchTool(store)
	s.AddTool(searchTool.Definition(), searchTool.Handle)

	timelineTool := tools.NewTimelineTool(store)
	s.AddTool(timelineTool.Definition(), timelineTool.Handle)

	statsTool := tools.NewStatsTool(store)
	s.AddTool(statsTool.Definition(), statsTool.Handle)

	workspacesTool := tools.NewWorkspacesTool(store)
	s.AddTool(workspacesTool.Definition(), workspacesTool.Handle)

	return s, cleanup, nil
}

func noop() {}

func serverInstructions() string {
	return `Tusk is a developer journal: save short checkpoints of what you
accomplish (checkpoint_save), and recall them ranked by relevance at the
start of a session (checkpoint_recall). Checkpoints are scoped per
workspace; use workspace "all" to read across projects.`
}
