package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/onegreenvn/storybook-services-backend/internal/services/api_key"
)

// APIKeyValidator checks a presented API key
type APIKeyValidator interface {
	Enabled() bool
	ValidateAPIKey(key string) error
}

// APIKeyMiddleware handles API key authentication
type APIKeyMiddleware struct {
	apiKeyService APIKeyValidator
}

// NewAPIKeyMiddleware creates a new API key middleware
func NewAPIKeyMiddleware(apiKeyService APIKeyValidator) *APIKeyMiddleware {
	return &APIKeyMiddleware{
		apiKeyService: apiKeyService,
	}
}

// APIKeyAuthMiddleware validates the key sent as "Authorization: ApiKey <key>" or "X-API-Key".
// Requests pass through untouched when no key is configured.
func (m *APIKeyMiddleware) APIKeyAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.apiKeyService == nil || !m.apiKeyService.Enabled() {
			c.Next()
			return
		}

		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "Authorization header is required",
				})
				return
			}
			if !strings.HasPrefix(authHeader, "ApiKey ") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "Invalid API key format",
				})
				return
			}
			apiKey = strings.TrimSpace(strings.TrimPrefix(authHeader, "ApiKey "))
		}

		if err := m.apiKeyService.ValidateAPIKey(apiKey); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": api_key.ErrInvalidAPIKey.Error(),
			})
			return
		}

		c.Set("auth_type", "api_key")
		c.Next()
	}
}
