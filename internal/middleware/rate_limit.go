package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/onegreenvn/storybook-services-backend/internal/cache"
	"github.com/onegreenvn/storybook-services-backend/internal/config"
	"github.com/onegreenvn/storybook-services-backend/internal/metrics"
)

// RateLimiter decides whether a request identified by key may proceed
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit throttles requests per client IP and route. Limiter errors let the request through.
func RateLimit(cfg config.RateLimitConfig, limiter RateLimiter) gin.HandlerFunc {
	if !cfg.Enabled || limiter == nil || cfg.Requests <= 0 {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}

	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		key := cache.RateLimitKey(c.ClientIP(), route)

		allowed, err := limiter.Allow(c.Request.Context(), key, cfg.Requests, window)
		if err != nil {
			logrus.Warnf("Rate limiter unavailable, allowing request: %v", err)
			c.Next()
			return
		}

		if !allowed {
			metrics.RateLimitRejections.Inc()
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			return
		}

		c.Next()
	}
}
