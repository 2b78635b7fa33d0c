package chat

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/seminar-portal/internal/models"
	"github.com/aura-webinar/seminar-portal/internal/realtime"
)

// AnonymousName is used when a viewer submits without a display name.
const AnonymousName = "anonymous"

const broadcastTimeout = 5 * time.Second

// MessageStore is the chat persistence the pipeline depends on. *Repository implements it.
type MessageStore interface {
	Create(ctx context.Context, m *models.ChatMessage) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ChatMessage, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from []models.ChatStatus, to models.ChatStatus, approvedAt *time.Time, approvedBy *string) (*models.ChatMessage, error)
	ListApproved(ctx context.Context, scheduleID uuid.UUID, limit int) ([]models.ChatMessage, error)
	ListForModeration(ctx context.Context, scheduleID uuid.UUID, status *models.ChatStatus, limit int) ([]models.ChatMessage, error)
}

// ScheduleLookup resolves the schedule a message belongs to.
type ScheduleLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Schedule, error)
	GetBySlug(ctx context.Context, slug string) (*models.Schedule, error)
}

// PresenceChecker reports whether a viewer is tracked on a topic. *realtime.Hub implements it.
type PresenceChecker interface {
	Attached(topic, viewerID string) bool
}

// Publisher delivers an event to every subscriber of a topic.
type Publisher interface {
	Publish(ctx context.Context, topic, event string, payload interface{}) error
}

// Limits bounds message size and list lengths.
type Limits struct {
	History    int
	Moderation int
	MaxContent int
	MaxName    int
}

// DefaultLimits are the portal's fixed caps.
var DefaultLimits = Limits{History: 100, Moderation: 200, MaxContent: 500, MaxName: 30}

// DecisionResult reports what Decide did. Changed is false when the decision was
// already in effect; nothing is broadcast in that case.
type DecisionResult struct {
	Message            *models.ChatMessage `json:"message"`
	Changed            bool                `json:"changed"`
	BroadcastDelivered bool                `json:"broadcast_delivered"`
}

// Service is the chat moderation pipeline.
type Service struct {
	messages  MessageStore
	schedules ScheduleLookup
	presence  PresenceChecker
	pub       Publisher
	limits    Limits
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates the pipeline. presence may be nil to skip the attachment check.
func NewService(messages MessageStore, schedules ScheduleLookup, presence PresenceChecker, pub Publisher, limits Limits, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limits.History <= 0 {
		limits.History = DefaultLimits.History
	}
	if limits.Moderation <= 0 {
		limits.Moderation = DefaultLimits.Moderation
	}
	if limits.MaxContent <= 0 {
		limits.MaxContent = DefaultLimits.MaxContent
	}
	if limits.MaxName <= 0 {
		limits.MaxName = DefaultLimits.MaxName
	}
	return &Service{
		messages:  messages,
		schedules: schedules,
		presence:  presence,
		pub:       pub,
		limits:    limits,
		logger:    logger,
		now:       time.Now,
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Submit stores a pending message. Nothing is broadcast until an admin approves it.
func (s *Service) Submit(ctx context.Context, viewer models.Viewer, slug, displayName, content string) (*models.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is empty", models.ErrValidation)
	}
	if utf8.RuneCountInString(content) > s.limits.MaxContent {
		return nil, fmt.Errorf("%w: content exceeds %d characters", models.ErrValidation, s.limits.MaxContent)
	}
	displayName = truncateRunes(strings.TrimSpace(displayName), s.limits.MaxName)
	if displayName == "" {
		displayName = AnonymousName
	}

	sched, err := s.schedules.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if sched.Status != models.StatusLive && !sched.IsTestLive {
		return nil, models.ErrNotLive
	}
	if s.presence != nil && !s.presence.Attached(realtime.ChatTopic(sched.Slug), viewer.ID) {
		return nil, models.ErrNotAttached
	}

	m := &models.ChatMessage{
		ScheduleID:  sched.ID,
		CustomerID:  viewer.ID,
		DisplayName: displayName,
		Content:     content,
		Status:      models.ChatPending,
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Decide applies an admin decision (approved, rejected or deleted) and broadcasts
// new_message for approvals and delete_message for deletions.
func (s *Service) Decide(ctx context.Context, actor models.Viewer, id uuid.UUID, decision models.ChatStatus) (*DecisionResult, error) {
	if !actor.IsAdmin() {
		return nil, models.ErrForbidden
	}
	if decision == models.ChatPending || !decision.Valid() {
		return nil, fmt.Errorf("%w: unknown decision %q", models.ErrValidation, decision)
	}
	current, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == decision {
		return &DecisionResult{Message: current}, nil
	}
	if !current.Status.CanDecide(decision) {
		return nil, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, current.Status, decision)
	}

	var approvedAt *time.Time
	var approvedBy *string
	if decision == models.ChatApproved {
		now := s.now().UTC()
		by := actor.ID
		approvedAt, approvedBy = &now, &by
	}
	updated, err := s.messages.UpdateStatus(ctx, id, models.DecisionSources(decision), decision, approvedAt, approvedBy)
	if err != nil {
		return nil, err
	}

	res := &DecisionResult{Message: updated, Changed: true}
	switch decision {
	case models.ChatApproved:
		res.BroadcastDelivered = s.broadcast(ctx, updated, models.EventNewMessage, updated.ToItem())
	case models.ChatDeleted:
		res.BroadcastDelivered = s.broadcast(ctx, updated, models.EventDeleteMessage, models.DeleteMessagePayload{ID: updated.ID})
	}
	return res, nil
}

func (s *Service) broadcast(ctx context.Context, m *models.ChatMessage, event string, payload interface{}) bool {
	if s.pub == nil {
		return false
	}
	sched, err := s.schedules.GetByID(ctx, m.ScheduleID)
	if err != nil {
		s.logger.Warn("broadcast skipped; schedule lookup failed", zap.String("message_id", m.ID.String()), zap.Error(err))
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, broadcastTimeout)
	defer cancel()
	topic := realtime.ChatTopic(sched.Slug)
	if err := s.pub.Publish(ctx, topic, event, payload); err != nil {
		s.logger.Warn("broadcast failed; viewers stale until reload",
			zap.String("topic", topic),
			zap.String("event", event),
			zap.String("message_id", m.ID.String()),
			zap.Error(err),
		)
		return false
	}
	return true
}

// LoadHistory returns the most recent approved messages of a schedule, oldest first.
func (s *Service) LoadHistory(ctx context.Context, slug string) ([]models.ChatMessageItem, error) {
	sched, err := s.schedules.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	list, err := s.messages.ListApproved(ctx, sched.ID, s.limits.History)
	if err != nil {
		return nil, err
	}
	items := make([]models.ChatMessageItem, 0, len(list))
	for i := range list {
		if list[i].Status != models.ChatApproved {
			continue
		}
		items = append(items, list[i].ToItem())
	}
	return items, nil
}

// LoadModerationQueue returns the most recent messages of a schedule, newest first.
// An empty filter returns every status.
func (s *Service) LoadModerationQueue(ctx context.Context, actor models.Viewer, scheduleID uuid.UUID, filter string) ([]models.ChatMessage, error) {
	if !actor.IsAdmin() {
		return nil, models.ErrForbidden
	}
	var status *models.ChatStatus
	if filter != "" {
		st := models.ChatStatus(filter)
		if !st.Valid() {
			return nil, fmt.Errorf("%w: unknown status filter %q", models.ErrValidation, filter)
		}
		status = &st
	}
	if _, err := s.schedules.GetByID(ctx, scheduleID); err != nil {
		return nil, err
	}
	return s.messages.ListForModeration(ctx, scheduleID, status, s.limits.Moderation)
}
