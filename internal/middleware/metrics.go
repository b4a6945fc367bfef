package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/seduc-go/academia-api/internal/service"
)

// Metrics observes every request under its route template so path
// parameters do not explode label cardinality.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
