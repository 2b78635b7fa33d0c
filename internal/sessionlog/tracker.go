package sessionlog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/seminar-portal/internal/models"
	"github.com/aura-webinar/seminar-portal/internal/realtime"
	"github.com/aura-webinar/seminar-portal/pkg/queue"
)

// SessionStore is the durable side of the tracker. *Repository implements it.
type SessionStore interface {
	CreateSession(ctx context.Context, s *models.ViewerSession) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.ViewerSession, error)
	CloseSession(ctx context.Context, s *models.ViewerSession) (bool, error)
}

// ScheduleLookup resolves schedules by slug or id.
type ScheduleLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Schedule, error)
	GetBySlug(ctx context.Context, slug string) (*models.Schedule, error)
}

// PresenceReader exposes channel membership. *realtime.Hub implements it.
type PresenceReader interface {
	Members(topic string) []realtime.Member
}

// CloseDispatcher hands a leave beacon to the worker. *queue.Queue implements it.
type CloseDispatcher interface {
	EnqueueSessionClose(ctx context.Context, payload queue.SessionClosePayload) error
}

// Attachment is returned by Attach. Session is nil for admins, who are not counted in analytics.
type Attachment struct {
	Session   *models.ViewerSession `json:"session"`
	ChatTopic string                `json:"chat_topic"`
}

// Viewers is the live presence of a schedule.
type Viewers struct {
	Count   int               `json:"count"`
	Members []realtime.Member `json:"members"`
}

// Tracker opens and closes viewing sessions and reads live presence.
type Tracker struct {
	sessions  SessionStore
	schedules ScheduleLookup
	presence  PresenceReader
	closer    CloseDispatcher
	logger    *zap.Logger
	now       func() time.Time
}

// NewTracker creates a tracker. closer may be nil, in which case beacons close sessions inline.
func NewTracker(sessions SessionStore, schedules ScheduleLookup, presence PresenceReader, closer CloseDispatcher, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{sessions: sessions, schedules: schedules, presence: presence, closer: closer, logger: logger, now: time.Now}
}

// Attach opens a ViewingSession for a viewer that has started rendering a live (or test live)
// schedule. The caller then tracks presence on the returned chat topic.
func (t *Tracker) Attach(ctx context.Context, viewer models.Viewer, slug string) (*Attachment, error) {
	sched, err := t.schedules.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if sched.Status != models.StatusLive && !sched.IsTestLive {
		return nil, models.ErrNotLive
	}
	res := &Attachment{ChatTopic: realtime.ChatTopic(sched.Slug)}
	if viewer.IsAdmin() {
		return res, nil
	}
	s := &models.ViewerSession{
		ScheduleID: sched.ID,
		CustomerID: viewer.ID,
		JoinedAt:   t.now().UTC(),
		IsActive:   true,
	}
	if err := t.sessions.CreateSession(ctx, s); err != nil {
		return nil, err
	}
	res.Session = s
	return res, nil
}

// Detach closes a session at leftAt. Tab-hide and unload both send a leave, so a
// later leftAt replaces an earlier one; an older leftAt leaves the row unchanged.
func (t *Tracker) Detach(ctx context.Context, sessionID uuid.UUID, leftAt time.Time) (*models.ViewerSession, error) {
	s, err := t.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if leftAt.IsZero() {
		leftAt = t.now()
	}
	s.Close(leftAt.UTC())
	changed, err := t.sessions.CloseSession(ctx, s)
	if err != nil {
		return nil, err
	}
	if !changed {
		return t.sessions.GetSession(ctx, sessionID)
	}
	return s, nil
}

// Beacon accepts a best-effort leave notification. It is queued for the worker when a
// queue is configured; otherwise, or if queueing fails, it is applied inline.
func (t *Tracker) Beacon(ctx context.Context, sessionID uuid.UUID, leftAt time.Time) (queued bool, err error) {
	if leftAt.IsZero() {
		leftAt = t.now().UTC()
	}
	if t.closer != nil {
		err := t.closer.EnqueueSessionClose(ctx, queue.SessionClosePayload{SessionID: sessionID, LeftAt: leftAt})
		if err == nil {
			return true, nil
		}
		t.logger.Warn("session close enqueue failed; closing inline", zap.String("session_id", sessionID.String()), zap.Error(err))
	}
	_, err = t.Detach(ctx, sessionID, leftAt)
	return false, err
}

// CurrentViewers returns the live presence on a schedule's chat topic.
func (t *Tracker) CurrentViewers(ctx context.Context, scheduleID uuid.UUID) (*Viewers, error) {
	sched, err := t.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	members := t.presence.Members(realtime.ChatTopic(sched.Slug))
	return &Viewers{Count: len(members), Members: members}, nil
}
