package auth

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civic-connect/portal/internal/models"
	"github.com/civic-connect/portal/pkg/response"
)

// UserReader looks up provisioned accounts.
type UserReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Profile is the caller's identity as shown next to their messages.
type Profile struct {
	ID       uuid.UUID   `json:"id"`
	Username string      `json:"username"`
	Name     string      `json:"name"`
	Role     models.Role `json:"role"`
}

// Handler serves identity endpoints. Accounts are provisioned elsewhere.
type Handler struct {
	users  UserReader
	caller func(*gin.Context) uuid.UUID
	logger *zap.Logger
}

// NewHandler creates an auth handler. caller extracts the authenticated user id from the request.
func NewHandler(users UserReader, caller func(*gin.Context) uuid.UUID, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{users: users, caller: caller, logger: logger}
}

// Me handles GET /me.
func (h *Handler) Me(c *gin.Context) {
	u, err := h.users.GetByID(c.Request.Context(), h.caller(c))
	if errors.Is(err, ErrUserNotFound) {
		response.NotFound(c, "user not found")
		return
	}
	if err != nil {
		h.logger.Error("load profile", zap.Error(err))
		response.Internal(c, "failed to load profile")
		return
	}
	response.OK(c, Profile{ID: u.ID, Username: u.Username, Name: u.Name(), Role: u.Role})
}
