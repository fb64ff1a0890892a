package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/netpulse/webclient/internal/util"
)

// Metrics records request counts, latency and in-flight requests. Paths are
// labelled by route template so slot positions do not explode cardinality.
func Metrics(metrics *util.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		metrics.IncrementInFlight()
		defer metrics.DecrementInFlight()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
