package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/onegreenvn/storybook-services-backend/internal/metrics"
)

// Metrics records Prometheus request metrics labelled by route template
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		method := c.Request.Method

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size > 0 {
			metrics.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}
