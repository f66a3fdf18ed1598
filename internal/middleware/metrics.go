package middleware

import (
	"strconv"
	"time"

	"marketplace/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics records request count, latency and in-flight requests per route template
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		done := metrics.TrackInFlight()
		defer done()
		start := time.Now()
		c.Next()
		metrics.RecordHTTPRequest(c.Request.Method, c.FullPath(), strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
