package meeting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/seminar-portal/internal/middleware"
	"github.com/aura-webinar/seminar-portal/internal/models"
	"github.com/aura-webinar/seminar-portal/pkg/response"
)

// ScheduleLookup resolves a schedule by public slug.
type ScheduleLookup interface {
	GetBySlug(ctx context.Context, slug string) (*models.Schedule, error)
}

// Handler serves meeting join credentials to viewers.
type Handler struct {
	schedules ScheduleLookup
	signer    Signer
	logger    *zap.Logger
	now       func() time.Time
}

// NewHandler creates a meeting handler. signer may be nil when no provider is configured.
func NewHandler(schedules ScheduleLookup, signer Signer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{schedules: schedules, signer: signer, logger: logger, now: time.Now}
}

// JoinFor builds join credentials for viewer. The meeting is only handed out while the
// schedule is live or in test mode and has a room configured.
func (h *Handler) JoinFor(ctx context.Context, slug string, viewer models.Viewer) (*Join, error) {
	s, err := h.schedules.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if s.Status != models.StatusLive && !s.IsTestLive {
		return nil, models.ErrNotLive
	}
	if !s.HasMeetingRoom() {
		return nil, fmt.Errorf("%w: no meeting room configured", models.ErrConflict)
	}
	sig, err := h.signer.Sign(*s.MeetingNumber, viewer, h.now())
	if err != nil {
		return nil, fmt.Errorf("sign meeting join: %w", err)
	}
	j := &Join{
		Provider:    h.signer.Provider(),
		RoomID:      *s.MeetingNumber,
		DisplayName: viewer.Name,
		Signature:   sig,
		SDKKey:      h.signer.SDKKey(),
	}
	if s.MeetingPassword != nil {
		j.RoomSecret = *s.MeetingPassword
	}
	return j, nil
}

// Join handles GET /watch/:slug/meeting.
func (h *Handler) Join(c *gin.Context) {
	if h.signer == nil {
		response.ServiceUnavailable(c, "meeting provider not configured")
		return
	}
	viewer, _ := middleware.Viewer(c)
	j, err := h.JoinFor(c.Request.Context(), c.Param("slug"), viewer)
	if err != nil {
		if !isClientError(err) {
			h.logger.Error("meeting join failed", zap.Error(err), zap.String("slug", c.Param("slug")))
		}
		response.Error(c, err, "failed to prepare meeting")
		return
	}
	response.OK(c, j)
}

func isClientError(err error) bool {
	return errorsIsAny(err, models.ErrNotFound, models.ErrNotLive, models.ErrConflict)
}

func errorsIsAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}
