// Tusk: a developer journal MCP server.
//
// Persists short work-progress checkpoints per workspace and recalls them
// ranked by relevance, so an AI coding session can pick up where the last
// one left off.
//
// Usage:
//
//	tusk              # Start MCP server (stdio transport)
//	tusk serve        # Same, explicitly
//	tusk stats        # Print journal statistics
//	tusk workspaces   # List workspaces with checkpoints
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v2"

	"github.com/anortham/tusk-sub000/internal/server"
	"github.com/anortham/tusk-sub000/internal/storage"
	"github.com/anortham/tusk-sub000/internal/workspace"
)

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "tusk",
		Usage:   "Developer journal MCP server",
		Version: server.Version,
		// No subcommand → MCP server on stdio, the way editors launch it.
		Action: func(c *cli.Context) error { return serve() },
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the MCP server (stdio transport)",
				Action: func(c *cli.Context) error { return serve() },
			},
			{
				Name:   "stats",
				Usage:  "Print journal statistics",
				Action: func(c *cli.Context) error { return printStats(c.App.Writer) },
			},
			{
				Name:   "workspaces",
				Usage:  "List workspaces with checkpoints",
				Action: func(c *cli.Context) error { return printWorkspaces(c.App.Writer) },
			},
		},
	}
}

func serve() error {
	s, cleanup, err := server.New(storage.DefaultConfig())
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	return mcpserver.ServeStdio(s)
}

func openStore() (*storage.Store, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return storage.New(storage.DefaultConfig(), workspace.Resolve(cwd))
}

func printStats(w io.Writer) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.GetStats()
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Checkpoints: %d total, %d in last 7 days, %d in last 30 days\n",
		stats.Total, stats.Last7Days, stats.Last30Days)
	fmt.Fprintf(&b, "Projects: %d  Workspaces: %d\n", stats.Projects, stats.Workspaces)
	if stats.OldestEntry != nil && stats.NewestEntry != nil {
		fmt.Fprintf(&b, "Range: %s to %s\n",
			stats.OldestEntry.Local().Format("2006-01-02"),
			stats.NewestEntry.Local().Format("2006-01-02"))
	}
	_, err = w.Write([]byte(b.String()))
	return err
}

func printWorkspaces(w io.Writer) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	summaries, err := store.ListWorkspaces()
	if err != nil {
		return err
	}

	var b strings.Builder
	for _, ws := range summaries {
		fmt.Fprintf(&b, "%-20s %4d checkpoints  last %s  %s\n",
			ws.WorkspaceName, ws.CheckpointCount,
			ws.LatestTimestamp.Local().Format("2006-01-02 15:04"),
			ws.WorkspacePath)
	}
	_, err = w.Write([]byte(b.String()))
	return err
}
