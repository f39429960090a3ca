package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// DependencyCheck reports the health of an optional dependency; nil means not configured
type DependencyCheck func(ctx context.Context) error

type HealthHandler struct {
	modelReady bool
	checks     map[string]DependencyCheck
}

func NewHealthHandler(modelReady bool, checks map[string]DependencyCheck) *HealthHandler {
	return &HealthHandler{modelReady: modelReady, checks: checks}
}

// Health godoc
// @Summary Health check
// @Description Liveness with the state of the model client and optional dependencies
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	dependencies := gin.H{}
	for name, check := range h.checks {
		switch {
		case check == nil:
			dependencies[name] = "disabled"
		case check(ctx) != nil:
			dependencies[name] = "down"
		default:
			dependencies[name] = "up"
		}
	}

	model := "ready"
	if !h.modelReady {
		model = "not_initialized"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"time":         time.Now().Format(time.RFC3339),
		"model":        model,
		"dependencies": dependencies,
	})
}
