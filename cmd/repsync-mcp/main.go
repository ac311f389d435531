package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/meltforce/repsync/internal/config"
	"github.com/meltforce/repsync/internal/hevy"
	repsyncmcp "github.com/meltforce/repsync/internal/mcp"
	"github.com/meltforce/repsync/internal/stats"
	"github.com/meltforce/repsync/internal/storage"
	"github.com/meltforce/repsync/internal/syncer"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Stdout carries the MCP protocol; all logging goes to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := storage.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	headerName, headerValue := cfg.Hevy.AuthHeader()
	client := hevy.NewClient(cfg.Hevy.BaseURL, headerName, headerValue, cfg.Hevy.Timeout(), log)
	engine := syncer.New(client, db, cfg.Hevy.PageSize, cfg.Hevy.IncrementalPages, log)
	statsEngine := stats.New(db)

	s := repsyncmcp.New(db, statsEngine, engine, Version, log)

	log.Info("RepSync MCP server starting", "version", Version)
	if err := mcpserver.ServeStdio(s); err != nil {
		log.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
