// Package middleware holds the gin middleware for the proxy endpoints.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cc-launcher/cc-launcher/internal/protocol"
	"github.com/cc-launcher/cc-launcher/internal/translator"
)

// ProxyAuth authenticates proxy clients against the configured access
// token. The key arrives in `x-api-key` (Anthropic style) or as a bearer
// token; comparison is constant-time.
func ProxyAuth(accessToken string) gin.HandlerFunc {
	expected := []byte(accessToken)

	return func(c *gin.Context) {
		key := c.GetHeader("x-api-key")
		if key == "" {
			if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				key = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				protocol.NewError(translator.ErrTypeAuthentication, "Missing API key"))
			return
		}

		if subtle.ConstantTimeCompare([]byte(key), expected) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				protocol.NewError(translator.ErrTypeAuthentication, "Invalid API key"))
			return
		}

		c.Next()
	}
}
