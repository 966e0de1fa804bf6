package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/certilog/certilog-api/internal/service"
)

// Metrics times every request. The route template is used as the path label
// so /certificates/:id stays one series instead of one per certificate.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			// Unmatched routes collapse into one label to keep cardinality down.
			route = "unmatched"
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
