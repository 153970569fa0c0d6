package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/flexpulse/internal/metrics"
)

// RequestMetrics records request counts and latency per route template.
// Unmatched routes are folded into a single label to bound cardinality.
func RequestMetrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
