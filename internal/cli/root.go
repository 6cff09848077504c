// Package cli provides the command-line interface for splunk.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/splunkgo/internal/config"
	"github.com/raphaelgruber/splunkgo/internal/kvstore"
	"github.com/raphaelgruber/splunkgo/internal/metrics"
	"github.com/raphaelgruber/splunkgo/internal/results"
	"github.com/raphaelgruber/splunkgo/internal/search"
	"github.com/raphaelgruber/splunkgo/internal/splunkd"
	"github.com/raphaelgruber/splunkgo/internal/surrealkv"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config and clients
	cfg        config.Config
	logger     *slog.Logger
	logCleanup func() error
	collector  *metrics.Collector

	// Lazily connected backends
	splunkClient  *splunkd.Client
	surrealClient *surrealkv.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "splunk",
	Short: "Run searches and manage KV store collections on Splunk",
	Long: `splunk is a convenience client for the splunkd management port.

It submits search jobs, waits for them, materializes their results in every
output mode, and manages KV store collections and records.

Connection settings come from SPLUNK_CONFIG (a YAML file) and SPLUNK_*
environment variables.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}

		logger, logCleanup = config.SetupLogger(cfg)
		collector = metrics.NewCollector()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if surrealClient != nil {
			if err := surrealClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
			surrealClient = nil
		}
		splunkClient = nil
		if logCleanup != nil {
			_ = logCleanup()
			logCleanup = nil
		}
	},
}

// connectSplunk returns the splunkd client, logging in on first use.
func connectSplunk(ctx context.Context) (*splunkd.Client, error) {
	if splunkClient != nil {
		return splunkClient, nil
	}
	c, err := splunkd.New(ctx, cfg.Splunk, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to splunkd: %w", err)
	}
	splunkClient = c
	return c, nil
}

// newSession creates a search session on the splunkd connection.
func newSession(ctx context.Context) (*search.Session, error) {
	c, err := connectSplunk(ctx)
	if err != nil {
		return nil, err
	}
	return search.NewSession(c,
		search.WithLogger(logger),
		search.WithMetrics(collector),
		search.WithDecoder(results.Decoder{Dir: cfg.ScratchDir, InMemory: cfg.ScratchInMemory}),
	), nil
}

// newStore creates a collection store on the configured KV backend.
func newStore(ctx context.Context) (*kvstore.Store, error) {
	registry, err := openRegistry(ctx)
	if err != nil {
		return nil, err
	}
	return kvstore.NewStore(registry, logger, collector), nil
}

func openRegistry(ctx context.Context) (kvstore.Registry, error) {
	if cfg.KVBackend != config.BackendSurreal {
		return connectSplunk(ctx)
	}
	if surrealClient != nil {
		return surrealClient, nil
	}

	c, err := surrealkv.NewClient(ctx, cfg.Surreal, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := c.InitSchema(ctx); err != nil {
		_ = c.Close(ctx)
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	surrealClient = c
	return c, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(kvCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "splunk %s\n", Version)
	},
}
