package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cdm-registrar/registrar-api/internal/service"
)

// Metrics records per-request duration and status. The route template from
// FullPath keeps label cardinality bounded; raw URLs are only used for
// requests that matched no route.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
