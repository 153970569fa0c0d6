package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/flexpulse/config"
	"github.com/guttosm/flexpulse/internal/api"
	"github.com/guttosm/flexpulse/internal/diagnostics"
	"github.com/guttosm/flexpulse/internal/flexquery"
	"github.com/guttosm/flexpulse/internal/logger"
	"github.com/guttosm/flexpulse/internal/metrics"
	"github.com/guttosm/flexpulse/internal/middleware"
	"github.com/guttosm/flexpulse/internal/normalize"
	"github.com/guttosm/flexpulse/internal/reconcile"
	"github.com/guttosm/flexpulse/internal/service"
	"github.com/guttosm/flexpulse/internal/storage"
)

// startupTimeout bounds migrations and the initial rebuild.
const startupTimeout = time.Minute

// migrator is an indirection for unit testing; defaults to storage.Migrate.
var migrator = storage.Migrate

// NewPipeline builds the normalize/reconcile pipeline described by cfg.
// Diagnostics are logged and, when m is not nil, counted.
func NewPipeline(cfg config.Config, m *metrics.Metrics) (*service.Pipeline, error) {
	sep, err := normalize.ParseSeparator(cfg.Report.DateTimeSeparator)
	if err != nil {
		return nil, err
	}
	opts := normalize.Options{
		BaseCurrency:      cfg.Report.BaseCurrency,
		Location:          cfg.Report.Location,
		DateLayout:        cfg.Report.DateLayout,
		DateTimeSeparator: sep,
	}
	rc := reconcile.Config{
		Strategy:      cfg.Reconcile.MatchingStrategy,
		ZeroDTEExpiry: cfg.Reconcile.ZeroDTEExpiry,
		Location:      cfg.Report.Location,
		ExpiryClose:   cfg.Reconcile.ExpiryClose,
	}

	sinks := []diagnostics.Sink{diagnostics.NewLogSink(logger.Component("diagnostics"))}
	if m != nil {
		sinks = append(sinks, m)
	}
	return service.NewPipeline(opts, rc, diagnostics.Tee(sinks...))
}

// NewFetcher returns a Flex Web Service client, or nil when no credentials
// are configured.
func NewFetcher(cfg config.Config) (service.Fetcher, error) {
	if !cfg.Flex.Enabled() {
		return nil, nil
	}
	client, err := flexquery.NewClient(flexquery.ClientConfig{
		BaseURL:    cfg.Flex.BaseURL,
		Token:      cfg.Flex.Token,
		QueryID:    cfg.Flex.QueryID,
		Version:    cfg.Flex.Version,
		MaxRetries: cfg.Flex.MaxRetries,
		RetryDelay: cfg.Flex.RetryDelay,
		Timeout:    cfg.Flex.Timeout,
	}, nil)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// InitializeApp sets up all application dependencies and returns
// a fully configured Gin router, a cleanup function for graceful shutdown,
// and any error encountered during initialization.
//
// Responsibilities:
//   - Builds the metrics registry and the processing pipeline.
//   - When storage is enabled: connects to PostgreSQL, applies migrations
//     and rebuilds the trade set from the stored fills.
//   - Creates the Flex Web Service client when credentials are configured.
//   - Configures the Gin router with all API routes.
//   - Registers health and readiness probes.
//   - Provides a cleanup function to close resources (e.g., DB connection).
//
// Returns:
//   - *gin.Engine: the configured Gin HTTP router.
//   - func(): cleanup function to be executed on shutdown.
//   - error: any initialization error that occurred.
func InitializeApp() (*gin.Engine, func(), error) {
	// Load global configuration
	cfg := config.AppConfig
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	m := metrics.NewMetrics()

	pipeline, err := NewPipeline(cfg, m)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	fetcher, err := NewFetcher(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build flex client: %w", err)
	}

	var (
		db     *sql.DB
		store  storage.FillsRepository
		checks []api.Check
	)
	if cfg.Storage.Enabled {
		// indirection for unit testing
		db, err = postgresOpener(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize postgres: %w", err)
		}
		if cfg.Storage.AutoMigrate {
			if err := migrator(ctx, db); err != nil {
				_ = db.Close()
				return nil, nil, fmt.Errorf("failed to migrate postgres: %w", err)
			}
		}
		store = storage.NewFillsRepository(db)
		checks = append(checks, api.Check{Name: "postgres", Fn: db.PingContext})
	}

	svc := service.NewTradeService(pipeline, store, fetcher, m)
	if store != nil {
		if _, err := svc.Rebuild(ctx, "storage"); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to rebuild trades: %w", err)
		}
	}

	middleware.ConfigureRateLimit(cfg.Server.RateLimit, cfg.Server.RateWindow)

	// Setup Gin router with routes
	router := api.NewRouter(api.NewHandler(svc), m, cfg.Server.RequestTimeout)

	// Register health and readiness probes
	api.NewHealthHandler(checks...).Register(router)

	logger.L().Info().
		Bool("storage", store != nil).
		Bool("flex", fetcher != nil).
		Int("trades", len(svc.Current().Trades)).
		Msg("application initialized")

	// Cleanup resources on shutdown
	cleanup := func() {
		if db != nil {
			_ = db.Close()
		}
	}

	return router, cleanup, nil
}
