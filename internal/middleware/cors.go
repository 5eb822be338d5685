package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsMethods = "GET, POST, OPTIONS"
	corsHeaders = "Content-Type, Authorization"
)

// CORS allows browser clients from allowedOrigins ("*" or a comma-separated list)
// to call the feed and poll API. Preflight requests are answered here.
func CORS(allowedOrigins string) gin.HandlerFunc {
	allowAll, origins := parseOrigins(allowedOrigins)
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowAll:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "":
			c.Header("Vary", "Origin")
			if _, ok := origins[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
			}
		}
		if c.Writer.Header().Get("Access-Control-Allow-Origin") != "" {
			c.Header("Access-Control-Allow-Methods", corsMethods)
			c.Header("Access-Control-Allow-Headers", corsHeaders)
			c.Header("Access-Control-Max-Age", "86400")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// parseOrigins reports whether every origin is allowed, and otherwise the allowed set.
// An empty list allows every origin.
func parseOrigins(s string) (bool, map[string]struct{}) {
	set := make(map[string]struct{})
	for _, o := range strings.Split(s, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			return true, nil
		}
		if o != "" {
			set[o] = struct{}{}
		}
	}
	return len(set) == 0, set
}
