// Package mcpserver exposes the memory store and conversation archive
// as MCP tools over stdio, so other agents can search and store
// memories without going through the file queue.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/engramd/engram/internal/archive"
	"github.com/engramd/engram/internal/compress"
	"github.com/engramd/engram/internal/memory"
)

const defaultSearchLimit = 10

// Deps carries the collaborators behind the MCP tools. Archive may be
// nil when the archive is disabled; memory_search then reports that.
type Deps struct {
	Store   *memory.Store
	Archive *archive.Archive
}

// New builds the MCP server with all tools registered.
func New(version string, deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"engram",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s.AddTool(storeTool(), storeHandler(deps.Store))
	s.AddTool(searchTool(), searchHandler(deps.Archive))
	s.AddTool(statsTool(), statsHandler(deps.Store))

	return s
}

// ServeStdio runs the server over stdin/stdout until EOF.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func storeTool() mcp.Tool {
	return mcp.NewTool("memory_store",
		mcp.WithDescription("Store a memory item in a hierarchy tier (core, working, reference, historical)."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Hierarchy tier to store into.")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Text to remember.")),
	)
}

func storeHandler(store *memory.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		category, err := req.RequireString("category")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		content, err := req.RequireString("content")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		cat, err := compress.ParseCategory(category)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		result, err := store.Store(ctx, cat, content)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("stored %s (ratio %.2f, ~%d tokens saved)",
			result.ItemID, result.CompressionRatio, result.TokensSaved)), nil
	}
}

func searchTool() mcp.Tool {
	return mcp.NewTool("memory_search",
		mcp.WithDescription("Full-text search over archived conversation turns."),
		mcp.WithString("query", mcp.Required(), mcp.Description("FTS query string.")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 10).")),
	)
}

func searchHandler(arch *archive.Archive) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if arch == nil {
			return mcp.NewToolResultError("archive is disabled in this configuration"), nil
		}

		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		limit := req.GetInt("limit", defaultSearchLimit)

		entries, err := arch.Search(ctx, query, limit)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func statsTool() mcp.Tool {
	return mcp.NewTool("memory_stats",
		mcp.WithDescription("Aggregate statistics over the memory store."),
	)
}

func statsHandler(store *memory.Store) server.ToolHandlerFunc {
	return func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := json.MarshalIndent(store.GetStats(), "", "  ")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}
