// Package mcp exposes the stored training history and sync controls as
// MCP tools, so an LLM client can query statistics or trigger a sync over
// stdio.
package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
	"github.com/meltforce/repsync/internal/stats"
	"github.com/meltforce/repsync/internal/storage"
	"github.com/meltforce/repsync/internal/syncer"
)

// New creates an MCP server with all tools registered.
func New(db *storage.DB, statsEngine *stats.Engine, syncEngine *syncer.Engine, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("repsync", version,
		server.WithToolCapabilities(false),
		server.WithInstructions("Hevy workout sync server. Query training statistics (summary, heatmap, streaks, top exercises), inspect sync runs, or trigger a sync against the Hevy API."),
	)

	h := &handlers{db: db, stats: statsEngine, syncer: syncEngine, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolGetSummary, Handler: h.getSummary},
		server.ServerTool{Tool: toolGetHeatmap, Handler: h.getHeatmap},
		server.ServerTool{Tool: toolGetStreaks, Handler: h.getStreaks},
		server.ServerTool{Tool: toolGetTopExercises, Handler: h.getTopExercises},
		server.ServerTool{Tool: toolListSyncRuns, Handler: h.listSyncRuns},
		server.ServerTool{Tool: toolSyncWorkouts, Handler: h.syncWorkouts},
	)

	return s
}

// handlers holds the tool dependencies.
type handlers struct {
	db     *storage.DB
	stats  *stats.Engine
	syncer *syncer.Engine
	log    *slog.Logger
}
