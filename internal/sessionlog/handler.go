package sessionlog

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/seminar-portal/internal/middleware"
	"github.com/aura-webinar/seminar-portal/pkg/response"
)

// HistoryReader lists durable session and access rows. *Repository implements it.
type HistoryReader interface {
	ListSessions(ctx context.Context, scheduleID uuid.UUID) ([]SessionRow, error)
	ListAccessLogs(ctx context.Context, scheduleID uuid.UUID) ([]AccessRow, error)
}

// BeaconRequest is the body for POST /api/session.
type BeaconRequest struct {
	SessionID uuid.UUID `json:"session_id" binding:"required"`
	LeftAt    time.Time `json:"left_at"`
}

// Handler handles viewer session endpoints.
type Handler struct {
	tracker *Tracker
	history HistoryReader
	logger  *zap.Logger
}

// NewHandler creates a session log handler.
func NewHandler(tracker *Tracker, history HistoryReader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{tracker: tracker, history: history, logger: logger}
}

// Attach handles POST /watch/:slug/sessions.
func (h *Handler) Attach(c *gin.Context) {
	viewer, _ := middleware.Viewer(c)
	res, err := h.tracker.Attach(c.Request.Context(), viewer, c.Param("slug"))
	if err != nil {
		response.Error(c, err, "failed to open session")
		return
	}
	response.Created(c, res)
}

// Beacon handles POST /api/session. It is unauthenticated and always answers quickly;
// a sendBeacon caller never reads the response.
func (h *Handler) Beacon(c *gin.Context) {
	var req BeaconRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	queued, err := h.tracker.Beacon(c.Request.Context(), req.SessionID, req.LeftAt)
	if err != nil {
		h.logger.Debug("session beacon", zap.String("session_id", req.SessionID.String()), zap.Error(err))
		response.Error(c, err, "failed to close session")
		return
	}
	response.Accepted(c, gin.H{"queued": queued})
}

func parseScheduleID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid schedule id")
		return uuid.Nil, false
	}
	return id, true
}

// Viewers handles GET /admin/schedules/:id/viewers.
func (h *Handler) Viewers(c *gin.Context) {
	id, ok := parseScheduleID(c)
	if !ok {
		return
	}
	v, err := h.tracker.CurrentViewers(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err, "failed to load viewers")
		return
	}
	response.OK(c, v)
}

// Sessions handles GET /admin/schedules/:id/sessions.
func (h *Handler) Sessions(c *gin.Context) {
	id, ok := parseScheduleID(c)
	if !ok {
		return
	}
	list, err := h.history.ListSessions(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("list sessions", zap.Error(err))
		response.Internal(c, "failed to list sessions")
		return
	}
	response.OK(c, gin.H{"sessions": list})
}

// AccessLogs handles GET /admin/schedules/:id/access-logs.
func (h *Handler) AccessLogs(c *gin.Context) {
	id, ok := parseScheduleID(c)
	if !ok {
		return
	}
	list, err := h.history.ListAccessLogs(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("list access logs", zap.Error(err))
		response.Internal(c, "failed to list access logs")
		return
	}
	response.OK(c, gin.H{"access_logs": list})
}
