package merchant

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dbeloglazov/fraudgate/internal/logging"
)

const (
	// ContextKeyAPIKey is the gin context key for the validated API key.
	ContextKeyAPIKey = "apiKey"
	// ContextKeyMerchantID is the gin context key for the authenticated merchant.
	ContextKeyMerchantID = "authMerchantID"
)

// Middleware extracts and validates the API key from the request.
// Sets apiKey and authMerchantID in context if valid.
func Middleware(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("Authorization")
		if apiKey == "" {
			apiKey = c.GetHeader("X-API-Key")
		}

		if apiKey != "" {
			key, err := m.ValidateKey(c.Request.Context(), apiKey)
			if err == nil {
				c.Set(ContextKeyAPIKey, key)
				c.Set(ContextKeyMerchantID, key.MerchantID)

				// Tag the request context so downstream log lines carry
				// the acting merchant.
				ctx := logging.WithMerchantID(c.Request.Context(), key.MerchantID)
				c.Request = c.Request.WithContext(ctx)
			}
		}

		c.Next()
	}
}

// RequireAuth rejects requests without a valid API key.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextKeyAPIKey); !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "API key required. Include 'Authorization: Bearer sk_...' header.",
			})
			return
		}
		c.Next()
	}
}
