package middleware

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/orbitflux/flux/internal/config"
)

// CORS builds a CORS middleware from the engine's §6 `server.cors`
// config. Origin may be a bool (allow any/none), a single string, or a
// list of strings, matching the loosely-typed schema.
func CORS(cors *config.CORSConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if cors != nil && originAllowed(cors.Origin, origin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		if cors != nil && cors.Credentials {
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if cors != nil && len(cors.AllowedHeaders) > 0 {
			c.Writer.Header().Set("Access-Control-Allow-Headers", strings.Join(cors.AllowedHeaders, ", "))
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if cors != nil && len(cors.ExposedHeaders) > 0 {
			c.Writer.Header().Set("Access-Control-Expose-Headers", strings.Join(cors.ExposedHeaders, ", "))
		}
		if cors != nil && len(cors.Methods) > 0 {
			c.Writer.Header().Set("Access-Control-Allow-Methods", strings.Join(cors.Methods, ", "))
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		}
		if cors != nil && cors.MaxAge > 0 {
			c.Writer.Header().Set("Access-Control-Max-Age", strconv.Itoa(cors.MaxAge))
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func originAllowed(configured any, requestOrigin string) bool {
	switch v := configured.(type) {
	case nil:
		return requestOrigin != ""
	case bool:
		return v
	case string:
		return v == "*" || v == requestOrigin
	case []any:
		for _, o := range v {
			if s, ok := o.(string); ok && s == requestOrigin {
				return true
			}
		}
		return false
	case []string:
		for _, s := range v {
			if s == requestOrigin {
				return true
			}
		}
		return false
	default:
		return false
	}
}
