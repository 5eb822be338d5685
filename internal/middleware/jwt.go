package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/civic-connect/portal/internal/auth"
	"github.com/civic-connect/portal/pkg/response"
)

const (
	// ContextUserID is the key for user ID (uuid.UUID) in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for the caller's models.Role in gin context.
	ContextUserRole = "user_role"
	// ContextUsername is the key for the username in gin context.
	ContextUsername = "username"
)

// JWT returns a middleware that validates the bearer token and sets the caller's identity in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextUsername, claims.Username)
		c.Next()
	}
}

// UserID returns the authenticated caller, or uuid.Nil outside the JWT middleware.
func UserID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(ContextUserID); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}
