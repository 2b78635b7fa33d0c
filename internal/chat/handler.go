package chat

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/seminar-portal/internal/middleware"
	"github.com/aura-webinar/seminar-portal/internal/models"
	"github.com/aura-webinar/seminar-portal/pkg/response"
)

// SubmitRequest is the body for POST /watch/:slug/chat.
type SubmitRequest struct {
	DisplayName string `json:"display_name"`
	Content     string `json:"content" binding:"required"`
}

// DecideRequest is the body for PATCH /admin/chat/:id.
type DecideRequest struct {
	Decision models.ChatStatus `json:"decision" binding:"required"`
}

// Handler handles chat HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a chat handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// History handles GET /watch/:slug/chat.
func (h *Handler) History(c *gin.Context) {
	items, err := h.svc.LoadHistory(c.Request.Context(), c.Param("slug"))
	if err != nil {
		response.Error(c, err, "failed to load chat")
		return
	}
	response.OK(c, gin.H{"messages": items})
}

// Submit handles POST /watch/:slug/chat.
func (h *Handler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	viewer, _ := middleware.Viewer(c)
	m, err := h.svc.Submit(c.Request.Context(), viewer, c.Param("slug"), req.DisplayName, req.Content)
	if err != nil {
		response.Error(c, err, "failed to send message")
		return
	}
	response.Created(c, m)
}

// ModerationQueue handles GET /admin/schedules/:id/chat?status=.
func (h *Handler) ModerationQueue(c *gin.Context) {
	scheduleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid schedule id")
		return
	}
	actor, _ := middleware.Viewer(c)
	list, err := h.svc.LoadModerationQueue(c.Request.Context(), actor, scheduleID, c.Query("status"))
	if err != nil {
		response.Error(c, err, "failed to load messages")
		return
	}
	response.OK(c, gin.H{"messages": list})
}

// Decide handles PATCH /admin/chat/:id.
func (h *Handler) Decide(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid message id")
		return
	}
	var req DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	actor, _ := middleware.Viewer(c)
	res, err := h.svc.Decide(c.Request.Context(), actor, id, req.Decision)
	if err != nil {
		h.logger.Debug("chat decision refused", zap.String("message_id", id.String()), zap.Error(err))
		response.Error(c, err, "decision did not take effect")
		return
	}
	response.OK(c, res)
}
