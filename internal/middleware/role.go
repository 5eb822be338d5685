package middleware

import (
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/civic-connect/portal/internal/models"
	"github.com/civic-connect/portal/pkg/response"
)

// Role returns the caller's role as set by JWT, and whether one was set.
func Role(c *gin.Context) (models.Role, bool) {
	v, ok := c.Get(ContextUserRole)
	if !ok {
		return "", false
	}
	role, ok := v.(models.Role)
	return role, ok
}

// RequireRole admits callers holding one of roles. Poll administration is mounted behind
// RequireRole(models.RoleAdmin); residents get 403.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := Role(c)
		if !ok {
			response.Unauthorized(c, "missing user context")
			return
		}
		if !slices.Contains(roles, role) {
			response.Forbidden(c, "insufficient permissions")
			return
		}
		c.Next()
	}
}
