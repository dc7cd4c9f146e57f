// Package tools provides MCP tool handlers over the checkpoint engine.
//
// Each handler follows the same pattern:
// - A struct with its dependency (storage.Store) injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a result
//
// Handlers stay thin: parsing and text formatting only, all semantics live
// in the storage/dedup/relevance/timeline packages.
package tools

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/anortham/tusk-sub000/internal/checkpoint"
)

// intArg extracts an integer argument, returning defaultVal if the key is
// missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// floatArg extracts a float argument.
func floatArg(req mcp.CallToolRequest, key string, defaultVal float64) float64 {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return v
}

// boolArg extracts a boolean argument.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// splitList parses a comma-separated argument into trimmed values.
func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// optional converts an argument into the entry's pointer-optional form.
func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// formatEntry renders one checkpoint for tool output.
func formatEntry(b *strings.Builder, i int, e *checkpoint.Entry) {
	fmt.Fprintf(b, "[%d] %s — %s\n", i+1, e.Timestamp.Local().Format("2006-01-02 15:04"), e.Description)

	var ctx []string
	if p := e.ProjectName(); p != "" {
		ctx = append(ctx, "project: "+p)
	}
	if br := e.Branch(); br != "" {
		ctx = append(ctx, "branch: "+br)
	}
	if len(e.Tags) > 0 {
		ctx = append(ctx, "tags: "+strings.Join(e.Tags, ", "))
	}
	if e.Consolidation != nil {
		ctx = append(ctx, fmt.Sprintf("merged: %d entries", e.Consolidation.MergedEntries))
	}
	if len(ctx) > 0 {
		fmt.Fprintf(b, "    %s\n", strings.Join(ctx, " | "))
	}
}
