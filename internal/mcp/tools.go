package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/meltforce/repsync/internal/syncer"
)

// --- Tool definitions ---

var toolGetSummary = mcp.NewTool("get_summary",
	mcp.WithDescription("Aggregate training totals: session count, unique exercises, set count, total volume (kg), and active weeks."),
)

var toolGetHeatmap = mcp.NewTool("get_heatmap",
	mcp.WithDescription("Daily session counts for a trailing window ending today. Returns one entry per calendar date, zero-filled."),
	mcp.WithNumber("days", mcp.Description("Window size in days. Defaults to 365.")),
)

var toolGetStreaks = mcp.NewTool("get_streaks",
	mcp.WithDescription("Current and longest streaks of consecutive ISO weeks containing at least one session."),
)

var toolGetTopExercises = mcp.NewTool("get_top_exercises",
	mcp.WithDescription("Exercises ranked by the number of distinct sessions they appear in, descending; ties broken by name."),
	mcp.WithNumber("limit", mcp.Description("Number of exercises to return. Defaults to 10.")),
)

var toolListSyncRuns = mcp.NewTool("list_sync_runs",
	mcp.WithDescription("Recent sync runs from the journal: kind, status, imported count, pages, and failure reason if any."),
	mcp.WithNumber("limit", mcp.Description("Number of runs to return. Defaults to 20.")),
)

var toolSyncWorkouts = mcp.NewTool("sync_workouts",
	mcp.WithDescription("Trigger a sync against the Hevy API. Mode 'incremental' fetches only recent pages; 'full' backfills the entire history. Rejected if a sync is already running."),
	mcp.WithString("mode", mcp.Description("Sync mode. Defaults to 'incremental'."), mcp.Enum("incremental", "full")),
)

// --- Tool handlers ---

func (h *handlers) getSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary, err := h.stats.Summary(ctx)
	if err != nil {
		h.log.Error("mcp get_summary", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(summary)
}

func (h *handlers) getHeatmap(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	days := req.GetInt("days", 365)
	entries, err := h.stats.Heatmap(ctx, days)
	if err != nil {
		h.log.Error("mcp get_heatmap", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(entries)
}

func (h *handlers) getStreaks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	streaks, err := h.stats.Streaks(ctx)
	if err != nil {
		h.log.Error("mcp get_streaks", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(streaks)
}

func (h *handlers) getTopExercises(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 10)
	ranks, err := h.stats.TopExercises(ctx, limit)
	if err != nil {
		h.log.Error("mcp get_top_exercises", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(ranks)
}

func (h *handlers) listSyncRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)
	runs, err := h.db.QuerySyncRuns(ctx, limit)
	if err != nil {
		h.log.Error("mcp list_sync_runs", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(runs)
}

func (h *handlers) syncWorkouts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mode := req.GetString("mode", "incremental")

	var result *syncer.Result
	var err error
	switch mode {
	case "full":
		result, err = h.syncer.SyncFull(ctx)
	default:
		result, err = h.syncer.SyncIncremental(ctx)
	}
	if errors.Is(err, syncer.ErrSyncInProgress) {
		return mcp.NewToolResultError("a sync is already running; try again once it finishes"), nil
	}
	if err != nil {
		h.log.Error("mcp sync_workouts", "mode", mode, "error", err)
		return mcp.NewToolResultError("sync failed: " + err.Error()), nil
	}
	return jsonResult(result)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
