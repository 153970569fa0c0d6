package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/flexpulse/internal/metrics"
	"github.com/guttosm/flexpulse/internal/middleware"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const defaultRequestTimeout = 10 * time.Second

// NewRouter creates a Gin engine with routes configured.
// It receives a Handler instance with all business logic already injected.
//
// Responsibilities:
//   - Registers global middlewares (RequestID, Logger, Metrics, Recovery, ErrorHandler, RateLimiter).
//   - Adds a per-request timeout (timeout <= 0 means 10 seconds).
//   - Mounts Swagger docs (/swagger/*any) and the Prometheus endpoint (/metrics/prometheus).
//   - Configures API v1 routes (/api/v1).
//
// Note:
//   - Health and readiness endpoints (/healthz, /readyz) are registered in app.InitializeApp().
//
// Parameters:
//   - handler (*Handler): The HTTP handler with business logic.
//   - m (*metrics.Metrics): collectors; nil disables instrumentation.
//   - timeout (time.Duration): request deadline; refreshes from the Flex Web
//     Service need it longer than the retry budget.
//
// Returns:
//   - *gin.Engine: Configured Gin router.
func NewRouter(handler *Handler, m *metrics.Metrics, timeout time.Duration) *gin.Engine {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	router := gin.New()

	// ─── Middlewares ───────────────────────────────
	router.Use(
		middleware.RequestID(),
		middleware.RequestLogger(),
		middleware.RequestMetrics(m),
		middleware.RecoveryMiddleware(),
		middleware.ErrorHandler,
		middleware.RateLimiter(),
	)

	// ─── Timeout ──────────────────────────────────
	router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	// ─── Swagger & Prometheus ─────────────────────
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics/prometheus", gin.WrapH(m.Handler()))

	// ─── API v1 ───────────────────────────────────
	v1 := router.Group("/api/v1")
	{
		v1.GET("/trades", handler.GetTrades)
		v1.GET("/metrics", handler.GetMetrics)
		v1.GET("/summary", handler.GetSummary)
		v1.GET("/diagnostics", handler.GetDiagnostics)
		v1.POST("/reports", handler.PostReport)
		v1.POST("/refresh", handler.PostRefresh)
	}

	return router
}
