package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/settlement-engine/api"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API and the periodic reconciliation sweep.

On SIGINT/SIGTERM the server stops accepting connections, waits for active
requests up to the configured shutdown timeout, stops the sweep and closes
the database.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP server port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	if servePort != 0 {
		a.cfg.Server.Port = servePort
	}

	handler := api.NewHandler(a.store, a.service, a.logger)
	router := api.NewRouter(handler, a.cfg.Server.AllowedOrigins)

	sweeper := api.NewReconciliationScheduler(a.service, a.logger)
	sweeper.Enabled = a.cfg.Scheduler.Enabled
	sweeper.CheckInterval = a.cfg.Scheduler.IntervalDuration()
	sweeper.RunRetention = a.cfg.Scheduler.RunRetention
	sweeper.Start()
	defer sweeper.Stop()

	server := &http.Server{
		Addr:         a.cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  a.cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: a.cfg.Server.WriteTimeoutDuration(),
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", server.Addr).Str("db", a.cfg.Database.Path).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			a.logger.Error().Err(err).Msg("server failed")
			return err
		}
	case sig := <-quit:
		a.logger.Info().Str("signal", sig.String()).Msg("shutting down server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeoutDuration())
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		a.logger.Error().Err(err).Msg("server forced to shutdown")
		return err
	}

	a.logger.Info().Msg("server stopped")
	return nil
}
