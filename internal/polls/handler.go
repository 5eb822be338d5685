package polls

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civic-connect/portal/internal/middleware"
	"github.com/civic-connect/portal/internal/realtime"
	"github.com/civic-connect/portal/pkg/response"
)

// Broadcaster pushes events to connected subscribers.
type Broadcaster interface {
	Publish(room, event string, payload interface{})
}

// CreateRequest is the body for POST /polls.
type CreateRequest struct {
	Question string   `json:"question" binding:"required"`
	Options  []string `json:"options" binding:"required"`
}

// VoteRequest is the body for POST /polls/:id/votes.
type VoteRequest struct {
	OptionID int64 `json:"option_id" binding:"required"`
}

// VoteResponse reports the outcome of a vote submission.
type VoteResponse struct {
	PollID   int64   `json:"poll_id"`
	OptionID int64   `json:"option_id"`
	Outcome  Outcome `json:"outcome"`
}

// Handler handles poll HTTP endpoints.
type Handler struct {
	svc    *Service
	hub    Broadcaster
	logger *zap.Logger
}

// NewHandler creates a polls handler. hub may be nil.
func NewHandler(svc *Service, hub Broadcaster, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, hub: hub, logger: logger}
}

// Active handles GET /polls/active. Data is null when no poll is active.
func (h *Handler) Active(c *gin.Context) {
	res, err := h.svc.ActiveResults(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.logger.Error("active poll", zap.Error(err))
		response.Internal(c, "failed to load active poll")
		return
	}
	response.OK(c, res)
}

// Results handles GET /polls/:id/results.
func (h *Handler) Results(c *gin.Context) {
	pollID, ok := pollIDParam(c)
	if !ok {
		return
	}
	res, err := h.svc.Results(c.Request.Context(), pollID, middleware.UserID(c))
	if err != nil {
		h.fail(c, err, "failed to load poll results")
		return
	}
	response.OK(c, res)
}

// Vote handles POST /polls/:id/votes.
// A repeat vote is not an error: it answers 200 with outcome "already_voted".
func (h *Handler) Vote(c *gin.Context) {
	pollID, ok := pollIDParam(c)
	if !ok {
		return
	}
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: option_id is required")
		return
	}
	outcome, err := h.svc.CastVote(c.Request.Context(), pollID, req.OptionID, middleware.UserID(c))
	if err != nil {
		h.fail(c, err, "failed to record vote")
		return
	}

	body := VoteResponse{PollID: pollID, OptionID: req.OptionID, Outcome: outcome}
	if outcome == OutcomeAlreadyVoted {
		response.OK(c, body)
		return
	}
	h.publishResults(c, pollID)
	response.Created(c, body)
}

// Create handles POST /polls (admin).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p, err := h.svc.Create(c.Request.Context(), middleware.UserID(c), req.Question, req.Options)
	if err != nil {
		h.fail(c, err, "failed to create poll")
		return
	}
	h.publishResults(c, p.ID)
	response.Created(c, p)
}

// Open handles POST /polls/:id/open (admin).
func (h *Handler) Open(c *gin.Context) { h.setActive(c, true) }

// Close handles POST /polls/:id/close (admin).
func (h *Handler) Close(c *gin.Context) { h.setActive(c, false) }

func (h *Handler) setActive(c *gin.Context, active bool) {
	pollID, ok := pollIDParam(c)
	if !ok {
		return
	}
	p, err := h.svc.SetActive(c.Request.Context(), pollID, active)
	if err != nil {
		h.fail(c, err, "failed to update poll")
		return
	}
	if h.hub != nil {
		// The surfaced poll may have changed; push whatever is active now.
		res, err := h.svc.ActiveResults(c.Request.Context(), uuid.Nil)
		if err == nil {
			h.hub.Publish(realtime.CommunityRoom, realtime.EventPollResults, res)
		}
	}
	response.OK(c, p)
}

// publishResults pushes the recomputed tally of pollID to subscribers.
func (h *Handler) publishResults(c *gin.Context, pollID int64) {
	if h.hub == nil {
		return
	}
	res, err := h.svc.Results(c.Request.Context(), pollID, uuid.Nil)
	if err != nil {
		h.logger.Warn("results for push", zap.Int64("poll_id", pollID), zap.Error(err))
		return
	}
	h.hub.Publish(realtime.CommunityRoom, realtime.EventPollResults, res)
}

func (h *Handler) fail(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrInvalidOption), errors.Is(err, ErrInvalidPoll):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrPollClosed):
		response.Conflict(c, err.Error())
	default:
		h.logger.Error(msg, zap.Error(err))
		response.Internal(c, msg)
	}
}

func pollIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid poll id")
		return 0, false
	}
	return id, true
}
