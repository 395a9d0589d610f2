// Package middleware provides HTTP middleware components for the local API server.
package middleware

import (
	"github.com/carlwiddowson/googleadsdashboard/internal/access"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// KeySource returns the currently accepted API keys. It is consulted per request
// so reloaded keys take effect immediately.
type KeySource func() []string

// APIKeyAuth rejects requests without a valid API key. When no keys are
// configured every request passes; the server binds to loopback by default.
func APIKeyAuth(keys KeySource) gin.HandlerFunc {
	return func(c *gin.Context) {
		var configured []string
		if keys != nil {
			configured = access.NormalizeKeys(keys())
		}
		if len(configured) == 0 {
			c.Next()
			return
		}
		result, authErr := access.Authenticate(c.Request, configured)
		if authErr != nil {
			log.WithField("path", c.Request.URL.Path).Debugf("api request rejected: %v", authErr)
			c.AbortWithStatusJSON(authErr.HTTPStatusCode(), gin.H{
				"error": gin.H{
					"message": authErr.Message,
					"type":    "authentication_error",
					"code":    string(authErr.Code),
				},
			})
			return
		}
		c.Set("apiKeyPrincipal", result.Principal)
		c.Next()
	}
}
