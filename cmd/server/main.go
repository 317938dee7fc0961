/*
main.go - Application entry point

PURPOSE:

	Command-line entry for the Settlement Engine. The root command loads
	configuration and opens the store; subcommands serve the HTTP API or run
	one-off reconciliation from the shell.

COMMANDS:

	serve                       Start the HTTP server and the reconciliation sweep
	reconcile --client ID       Reconcile one client and print its summary
	reconcile --all             Reconcile every client
	summary CLIENT_ID           Print a client's summary as JSON

GLOBAL FLAGS:

	--config     TOML config file (default: settlement.toml; missing file = defaults)
	--db         SQLite database path, overrides [database] path
	             Use ":memory:" for an in-memory database
	--log-level  Overrides [log] level

EXAMPLES:

	# Run with file database
	./server serve --db=./data/settlement.db

	# Reconcile one client after a bulk import
	./server reconcile --client acme

SEE ALSO:
  - config/config.go: Configuration file format
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/warp/settlement-engine/config"
	"github.com/warp/settlement-engine/settlement"
	"github.com/warp/settlement-engine/store/sqlite"
)

var (
	configPath string
	dbPath     string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Payment allocation and settlement reconciliation engine",
	Long: `Allocates client payments to billable jobs and materials oldest-first,
keeps settled flags and available credit consistent, and serves the result
over HTTP.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "settlement.toml", "Path to the TOML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds what every subcommand needs.
type app struct {
	cfg     config.Config
	logger  zerolog.Logger
	store   *sqlite.Store
	service *settlement.Service
}

func setup() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger := cfg.Log.NewLogger()

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	engine := settlement.NewEngine(logger)
	svc := settlement.NewService(store, engine, settlement.NewCoordinator(), logger)

	return &app{cfg: cfg, logger: logger, store: store, service: svc}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("close database")
	}
}
