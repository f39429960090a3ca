package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onegreenvn/storybook-services-backend/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeValidator struct {
	enabled bool
	valid   string
}

func (v *fakeValidator) Enabled() bool { return v.enabled }

func (v *fakeValidator) ValidateAPIKey(key string) error {
	if key != v.valid {
		return errors.New("invalid")
	}
	return nil
}

func newTestRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"auth_type": c.GetString("auth_type")})
	})
	r.GET("/ping", handlers...)
	return r
}

func TestAPIKeyAuthMiddleware(t *testing.T) {
	validator := &fakeValidator{enabled: true, valid: "good"}
	r := newTestRouter(NewAPIKeyMiddleware(validator).APIKeyAuthMiddleware())

	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
	}{
		{"authorization header", map[string]string{"Authorization": "ApiKey good"}, http.StatusOK},
		{"x-api-key header", map[string]string{"X-API-Key": "good"}, http.StatusOK},
		{"missing header", nil, http.StatusUnauthorized},
		{"bearer scheme", map[string]string{"Authorization": "Bearer good"}, http.StatusUnauthorized},
		{"wrong key", map[string]string{"X-API-Key": "bad"}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}

	t.Run("disabled validator lets requests through", func(t *testing.T) {
		r := newTestRouter(NewAPIKeyMiddleware(&fakeValidator{}).APIKeyAuthMiddleware())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

type fakeLimiter struct {
	allowed bool
	err     error
	keys    []string
	limit   int
	window  time.Duration
}

func (l *fakeLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.keys = append(l.keys, key)
	l.limit = limit
	l.window = window
	return l.allowed, l.err
}

func TestRateLimit(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Requests: 3, Window: 30 * time.Second}

	t.Run("allows within limit", func(t *testing.T) {
		limiter := &fakeLimiter{allowed: true}
		r := newTestRouter(RateLimit(cfg, limiter))

		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		require.Len(t, limiter.keys, 1)
		assert.Equal(t, "storybook:ratelimit:10.0.0.1:/ping", limiter.keys[0])
		assert.Equal(t, 3, limiter.limit)
		assert.Equal(t, 30*time.Second, limiter.window)
	})

	t.Run("rejects over limit", func(t *testing.T) {
		r := newTestRouter(RateLimit(cfg, &fakeLimiter{allowed: false}))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "30", w.Header().Get("Retry-After"))
	})

	t.Run("fails open on limiter errors", func(t *testing.T) {
		r := newTestRouter(RateLimit(cfg, &fakeLimiter{err: errors.New("redis down")}))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("disabled config skips the limiter", func(t *testing.T) {
		limiter := &fakeLimiter{}
		r := newTestRouter(RateLimit(config.RateLimitConfig{Enabled: false, Requests: 3}, limiter))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, limiter.keys)
	})
}

func TestRequestID(t *testing.T) {
	r := newTestRouter(RequestID(), Logger(), Metrics())

	t.Run("keeps caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(RequestIDHeader, "abc")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, "abc", w.Header().Get(RequestIDHeader))
	})

	t.Run("assigns an id", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Len(t, w.Header().Get(RequestIDHeader), 36)
	})
}
