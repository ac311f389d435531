package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/meltforce/repsync/internal/backfill"
	"github.com/meltforce/repsync/internal/config"
	"github.com/meltforce/repsync/internal/hevy"
	"github.com/meltforce/repsync/internal/storage"
	"github.com/meltforce/repsync/internal/syncer"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	reset := flag.Bool("reset", false, "clear all session data before backfilling")
	stateDir := flag.String("state-dir", ".repsync", "directory for the local seen-session cache")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	dsn := cfg.Database.DSN()

	// Run migrations
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	ctx := context.Background()

	// Connect database
	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	// Local seen-session cache lets a re-run skip unchanged payloads.
	state, err := backfill.OpenStateDB(*stateDir)
	if err != nil {
		log.Error("failed to open state db", "dir", *stateDir, "error", err)
		os.Exit(1)
	}
	defer state.Close()

	headerName, headerValue := cfg.Hevy.AuthHeader()
	client := hevy.NewClient(cfg.Hevy.BaseURL, headerName, headerValue, cfg.Hevy.Timeout(), log)
	engine := syncer.New(client, db, cfg.Hevy.PageSize, cfg.Hevy.IncrementalPages, log)
	engine.SetSeenCache(state)

	var result *syncer.Result
	if *reset {
		result, err = engine.ResetAndResync(ctx)
	} else {
		result, err = engine.SyncFull(ctx)
	}
	if err != nil {
		log.Error("backfill failed", "error", err)
		os.Exit(1)
	}

	printResult(log, result)
	if result.Aborted {
		os.Exit(1)
	}
	log.Info("backfill complete")
}

func printResult(log *slog.Logger, result *syncer.Result) {
	log.Info("backfill result",
		"run_id", result.RunID,
		"kind", result.Kind,
		"imported", result.Imported,
		"pages", result.Pages,
		"tables_cleared", result.TablesCleared,
		"aborted", result.Aborted,
		"record_errors", len(result.Errors),
	)
	for _, msg := range result.Errors {
		log.Warn("skipped record", "detail", msg)
	}
	if result.Reason != "" {
		log.Warn("sync aborted early", "reason", result.Reason)
	}
}
