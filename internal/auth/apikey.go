// Package auth guards the kiosk's operator surface. There is a single
// shared key; the kiosk has no per-user accounts.
package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// apiKeyHeader carries the operator key on /v1 requests.
const apiKeyHeader = "X-API-Key"

// APIKeyMiddleware rejects requests whose key does not match the configured
// one. An empty configured key disables the check, the usual setup when the
// kiosk is only reachable from the site LAN.
func APIKeyMiddleware(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}

		provided := c.GetHeader(apiKeyHeader)
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing API key",
			})
			return
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "invalid API key",
			})
			return
		}

		c.Next()
	}
}
