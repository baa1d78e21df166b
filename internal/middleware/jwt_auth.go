package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const bearerPrefix = "Bearer "

// tokenVerifier is satisfied by *jwtauth.Client. Declared locally so this
// package doesn't need to import the plugin directly — plugins depend on
// internal packages, not the other way around.
type tokenVerifier interface {
	Verify(token string) (map[string]any, error)
}

// JWTAuth populates request.authenticated and request.claims for a flux's
// own condition nodes to gate on (§4.4's auth/jwt adapter description):
// it never aborts the request itself, it only makes the outcome of
// verifying the bearer token available to ${request.authenticated}.
func JWTAuth(verifier tokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			c.Set("request.authenticated", false)
			c.Next()
			return
		}

		token := strings.TrimPrefix(header, bearerPrefix)
		claims, err := verifier.Verify(token)
		if err != nil {
			c.Set("request.authenticated", false)
			c.Next()
			return
		}

		c.Set("request.authenticated", true)
		c.Set("request.claims", claims)
		c.Next()
	}
}
