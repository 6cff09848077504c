// Package main provides the entry point for the splunk-mcp MCP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/splunkgo/internal/config"
	"github.com/raphaelgruber/splunkgo/internal/kvstore"
	"github.com/raphaelgruber/splunkgo/internal/metrics"
	"github.com/raphaelgruber/splunkgo/internal/results"
	"github.com/raphaelgruber/splunkgo/internal/server"
	"github.com/raphaelgruber/splunkgo/internal/splunkd"
	"github.com/raphaelgruber/splunkgo/internal/surrealkv"
	"github.com/raphaelgruber/splunkgo/internal/tools"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg)
	defer cleanup()

	logger.Info("splunk-mcp starting",
		"version", version,
		"splunkd", cfg.Splunk.Host,
		"kv_backend", cfg.KVBackend,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	client, err := splunkd.New(ctx, cfg.Splunk, logger)
	if err != nil {
		logger.Error("failed to connect to splunkd", "error", err)
		os.Exit(1)
	}

	var registry kvstore.Registry = client
	if cfg.KVBackend == config.BackendSurreal {
		db, err := surrealkv.NewClient(ctx, cfg.Surreal, logger)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer func() {
			logger.Info("closing database connection")
			_ = db.Close(context.Background())
		}()

		if err := db.InitSchema(ctx); err != nil {
			logger.Error("failed to initialize database schema", "error", err)
			os.Exit(1)
		}
		registry = db
	}

	collector := metrics.NewCollector()

	srv := server.New(version, logger, collector)
	srv.Setup()

	tools.RegisterAll(srv.MCPServer(), &tools.Dependencies{
		Splunk:       client,
		Registry:     registry,
		Metrics:      collector,
		Decoder:      results.Decoder{Dir: cfg.ScratchDir, InMemory: cfg.ScratchInMemory},
		Logger:       logger,
		PollInterval: cfg.PollInterval,
	})

	logger.Info("server ready, awaiting connections")

	// Run server (blocks until disconnect or context cancelled)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
