package schedules

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/seminar-portal/internal/models"
	"github.com/aura-webinar/seminar-portal/internal/realtime"
)

const broadcastTimeout = 5 * time.Second

// Publisher delivers an event to every subscriber of a topic. *realtime.Hub implements it.
type Publisher interface {
	Publish(ctx context.Context, topic, event string, payload interface{}) error
}

// Result is returned by lifecycle operations. BroadcastDelivered is false when the
// store write succeeded but the broadcast could not be sent; viewers then only see
// the change after a reload.
type Result struct {
	Schedule           *models.Schedule `json:"schedule"`
	BroadcastDelivered bool             `json:"broadcast_delivered"`
}

// Controller owns status, is_test_live and the actual_* timestamps of a schedule.
type Controller struct {
	store  Store
	pub    Publisher
	logger *zap.Logger
	now    func() time.Time
}

// NewController creates a lifecycle controller.
func NewController(store Store, pub Publisher, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{store: store, pub: pub, logger: logger, now: time.Now}
}

// Transition applies one edge of upcoming -> live -> ended -> upcoming, persists it,
// then broadcasts status_change. A failed write sends nothing.
func (c *Controller) Transition(ctx context.Context, actor models.Viewer, id uuid.UUID, target models.ScheduleStatus) (*Result, error) {
	if !actor.IsAdmin() {
		return nil, models.ErrForbidden
	}
	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrValidation, target)
	}
	current, err := c.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(target) {
		return nil, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, current.Status, target)
	}

	now := c.now().UTC()
	var start, end *time.Time
	switch target {
	case models.StatusLive:
		start = &now
	case models.StatusEnded:
		start, end = current.ActualStart, &now
	}

	updated, err := c.store.UpdateStatus(ctx, id, current.Status, target, start, end)
	if err != nil {
		return nil, err
	}
	c.logger.Info("schedule status changed",
		zap.String("schedule_id", id.String()),
		zap.String("from", string(current.Status)),
		zap.String("to", string(target)),
		zap.String("actor", actor.ID),
	)

	payload := models.StatusChangePayload{Status: updated.Status, ActualStart: updated.ActualStart}
	return &Result{
		Schedule:           updated,
		BroadcastDelivered: c.broadcast(ctx, updated, models.EventStatusChange, payload),
	}, nil
}

// SetTestLive toggles is_test_live without touching status, then broadcasts test_live_change.
func (c *Controller) SetTestLive(ctx context.Context, actor models.Viewer, id uuid.UUID, enabled bool) (*Result, error) {
	if !actor.IsAdmin() {
		return nil, models.ErrForbidden
	}
	updated, err := c.store.SetTestLive(ctx, id, enabled)
	if err != nil {
		return nil, err
	}
	if enabled && updated.Status == models.StatusLive {
		c.logger.Info("test live enabled on a live schedule", zap.String("schedule_id", id.String()))
	}
	payload := models.TestLiveChangePayload{IsTestLive: updated.IsTestLive}
	return &Result{
		Schedule:           updated,
		BroadcastDelivered: c.broadcast(ctx, updated, models.EventTestLiveChange, payload),
	}, nil
}

func (c *Controller) broadcast(ctx context.Context, s *models.Schedule, event string, payload interface{}) bool {
	if c.pub == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, broadcastTimeout)
	defer cancel()
	topic := realtime.StatusTopic(s.Slug)
	if err := c.pub.Publish(ctx, topic, event, payload); err != nil {
		c.logger.Warn("broadcast failed; viewers stale until reload",
			zap.String("topic", topic),
			zap.String("event", event),
			zap.String("schedule_id", s.ID.String()),
			zap.Error(err),
		)
		return false
	}
	return true
}
