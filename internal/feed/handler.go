package feed

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/civic-connect/portal/internal/middleware"
	"github.com/civic-connect/portal/internal/realtime"
	"github.com/civic-connect/portal/pkg/response"
)

// Broadcaster pushes events to connected subscribers.
type Broadcaster interface {
	Publish(room, event string, payload interface{})
}

// PostRequest is the body for POST /feed/messages.
type PostRequest struct {
	Text string `json:"text"`
}

// Handler handles community feed HTTP endpoints.
type Handler struct {
	svc    *Service
	hub    Broadcaster
	logger *zap.Logger
}

// NewHandler creates a feed handler. hub may be nil.
func NewHandler(svc *Service, hub Broadcaster, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, hub: hub, logger: logger}
}

// Load handles GET /feed: recent messages, active poll with tally, and the sync cursor.
func (h *Handler) Load(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.BadRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	snap, err := h.svc.LoadFeed(c.Request.Context(), middleware.UserID(c), limit)
	if err != nil {
		h.logger.Error("load feed", zap.Error(err))
		response.Internal(c, "failed to load feed")
		return
	}
	response.OK(c, snap)
}

// Poll handles GET /feed/messages?cursor=N (last_id=N is accepted too).
func (h *Handler) Poll(c *gin.Context) {
	raw := c.Query("cursor")
	if raw == "" {
		raw = c.Query("last_id")
	}
	cursor, err := ParseCursor(raw)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	entries, err := h.svc.PollNew(c.Request.Context(), cursor)
	if err != nil {
		h.logger.Error("poll feed", zap.Int64("cursor", cursor), zap.Error(err))
		response.Internal(c, "failed to fetch messages")
		return
	}
	response.OK(c, gin.H{"messages": entries})
}

// Post handles POST /feed/messages.
func (h *Handler) Post(c *gin.Context) {
	var req PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	m, err := h.svc.Append(c.Request.Context(), middleware.UserID(c), req.Text)
	if err != nil {
		if IsValidation(err) {
			response.BadRequest(c, err.Error())
			return
		}
		h.logger.Error("append message", zap.Error(err))
		response.Internal(c, "failed to post message")
		return
	}

	entry := h.svc.Project(*m)
	if h.hub != nil {
		h.hub.Publish(realtime.CommunityRoom, realtime.EventChatMessage, entry)
	}
	response.Created(c, entry)
}
