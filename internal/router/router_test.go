package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onegreenvn/storybook-services-backend/internal/config"
	"github.com/onegreenvn/storybook-services-backend/internal/handlers"
	"github.com/onegreenvn/storybook-services-backend/internal/services"
	"github.com/onegreenvn/storybook-services-backend/internal/services/excel"
)

type staticKeys struct{ key string }

func (k staticKeys) Enabled() bool { return k.key != "" }

func (k staticKeys) ValidateAPIKey(key string) error {
	if key != k.key {
		return errors.New("invalid API key")
	}
	return nil
}

type denyAll struct{}

func (denyAll) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return false, nil
}

func newTestDeps(t *testing.T) Dependencies {
	cfg := &config.Config{
		GinMode:            "test",
		CORSAllowedOrigins: []string{"*"},
		RateLimit:          config.RateLimitConfig{Enabled: true, Requests: 1, Window: time.Minute},
	}
	hub := services.NewSSEHub()
	storyService := services.NewStoryService(nil, services.StoryServiceOptions{Progress: hub})
	history := services.NewStoryHistoryService(nil, 0)

	return Dependencies{
		Config:         cfg,
		StoryService:   storyService,
		JobService:     services.NewStoryJobService(storyService, nil, nil),
		HistoryService: history,
		ExcelService:   excel.NewExcelService(history, t.TempDir()),
		SSEHub:         hub,
		APIKeys:        staticKeys{},
		HealthChecks: map[string]handlers.DependencyCheck{
			"database": nil,
			"redis":    func(ctx context.Context) error { return errors.New("down") },
		},
	}
}

func serve(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := SetupRouter(newTestDeps(t))

	w := serve(r, http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "not_initialized", body["model"])
	assert.Equal(t, map[string]interface{}{"database": "disabled", "redis": "down"}, body["dependencies"])
}

func TestMetricsEndpoint(t *testing.T) {
	r := SetupRouter(newTestDeps(t))
	serve(r, http.MethodGet, "/api/v1/health", "", nil)

	w := serve(r, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "storybook_http_requests_total")
}

func TestGenerateRoutes(t *testing.T) {
	t.Run("both generate paths reach the handler", func(t *testing.T) {
		r := SetupRouter(newTestDeps(t))

		for _, path := range []string{"/generate", "/api/v1/stories/generate"} {
			w := serve(r, http.MethodPost, path, `{"prompt":"a kitten"}`, nil)
			assert.Equal(t, http.StatusInternalServerError, w.Code, path)
			assert.Contains(t, w.Body.String(), "Backend AI models not initialized")
		}
	})

	t.Run("api key required when configured", func(t *testing.T) {
		deps := newTestDeps(t)
		deps.APIKeys = staticKeys{key: "secret"}
		r := SetupRouter(deps)

		assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/generate", `{"prompt":"a"}`, nil).Code)
		assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/v1/stories", "", nil).Code)
		assert.Equal(t, http.StatusInternalServerError,
			serve(r, http.MethodPost, "/generate", `{"prompt":"a"}`, map[string]string{"X-API-Key": "secret"}).Code)
		assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/v1/health", "", nil).Code)
	})

	t.Run("rate limited generation", func(t *testing.T) {
		deps := newTestDeps(t)
		deps.RateLimiter = denyAll{}
		r := SetupRouter(deps)

		assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodPost, "/api/v1/stories/generate", `{"prompt":"a"}`, nil).Code)
		assert.Equal(t, http.StatusServiceUnavailable, serve(r, http.MethodGet, "/api/v1/stories", "", nil).Code)
	})
}
