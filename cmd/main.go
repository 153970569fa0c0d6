package main

//
//  @title           flexpulse API
//  @version         1.0
//  @description     Flex Query trade reconciliation and P&L analytics service.
//  @termsOfService  https://github.com/guttosm/flexpulse
//  @contact.name    API Support
//  @contact.url     https://github.com/guttosm/flexpulse
//  @contact.email   support@example.com
//  @license.name    MIT
//  @license.url     https://opensource.org/licenses/MIT
//  @host            localhost:8080
//  @BasePath        /
//  @schemes         http
//
//  @tag.name        trades
//  @tag.description Reconciled trades
//
//  @tag.name        metrics
//  @tag.description Metric buckets and summary statistics
//
//  @tag.name        reports
//  @tag.description Report uploads and Flex Web Service refreshes
//
//  @tag.name        health
//  @tag.description Liveness and readiness probes

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/guttosm/flexpulse/config"
	_ "github.com/guttosm/flexpulse/docs" // swagger docs
	"github.com/guttosm/flexpulse/internal/app"
	"github.com/guttosm/flexpulse/internal/logger"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// startServer initializes and starts the HTTP server in a separate goroutine.
//
// Parameters:
//   - router (http.Handler): The HTTP router (Gin Engine) configured with all routes.
//   - port (string): The port where the server will listen for incoming requests.
//   - writeTimeout (time.Duration): must outlast the request timeout so refreshes can answer.
//
// Returns:
//   - *http.Server: The initialized HTTP server instance.
func startServer(router http.Handler, port string, writeTimeout time.Duration) *http.Server {
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.L().Info().Str("port", port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal().Err(err).Msg("server failed to start")
		}
	}()

	return server
}

// gracefulShutdown gracefully terminates the HTTP server and cleans up resources
// when an OS interrupt signal (SIGINT, SIGTERM) is received.
//
// Parameters:
//   - ctx (context.Context): A context with timeout for graceful shutdown.
//   - server (*http.Server): The HTTP server instance to shut down.
//   - cleanup (func()): Cleanup callback to release resources (e.g., DB connections).
func gracefulShutdown(ctx context.Context, server *http.Server, cleanup func()) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	logger.L().Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.L().Fatal().Err(err).Msg("server forced to shutdown")
	}

	cleanup()
	logger.L().Info().Msg("server exited gracefully")
}

// newRootCmd assembles the flexpulse command tree. Configuration and the
// logger are initialized once before any subcommand runs.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "flexpulse",
		Short: "Flex Query trade reconciliation and P&L analytics",
		Long: `flexpulse reads Interactive Brokers Flex Query reports, reconciles their
executions into trades with realized P&L and serves filterable analytics.

Commands:
  serve    Start the HTTP API
  import   Persist a directory of reports into PostgreSQL
  fetch    Download the configured Flex Query from the Flex Web Service
  summary  Reconcile a directory of reports offline and print metrics`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load configuration from environment or .env file
			config.LoadConfig()
			// Initialize JSON logger
			logger.Init()
		},
	}

	root.AddCommand(
		newServeCmd(),
		newImportCmd(),
		newFetchCmd(),
		newSummaryCmd(),
		newVersionCmd(),
	)
	return root
}

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port == "" {
				port = config.AppConfig.Server.Port
			}
			logger.L().Info().Msg("starting API server")

			router, cleanup, err := app.InitializeApp()
			if err != nil {
				return err
			}

			server := startServer(router, port, config.AppConfig.Server.RequestTimeout+5*time.Second)
			gracefulShutdown(cmd.Context(), server, cleanup)
			return nil
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "port to listen on (default SERVER_PORT)")
	return cmd
}

// main is the entry point of the flexpulse application.
func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		logger.L().Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
