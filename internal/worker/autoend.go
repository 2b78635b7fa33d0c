package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/aura-webinar/seminar-portal/internal/models"
	"github.com/aura-webinar/seminar-portal/internal/realtime"
)

// DefaultAutoEndSchedule is the cron spec used when AUTO_END_CRON is unset.
const DefaultAutoEndSchedule = "@every 1m"

const sweepTimeout = 30 * time.Second

// OverdueLister finds live schedules past their auto-end instant. *schedules.Repository implements it.
type OverdueLister interface {
	ListOverdueLive(ctx context.Context, now time.Time) ([]models.Schedule, error)
}

// AutoEndMonitor tells admin consoles about schedules that are still stored as live after
// their auto-end instant. It never changes the stored status.
type AutoEndMonitor struct {
	schedules OverdueLister
	pub       realtime.RelayPublisher
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	notified map[uuid.UUID]time.Time // schedule id -> auto_end_at already announced
}

// NewAutoEndMonitor creates an overdue-live monitor.
func NewAutoEndMonitor(schedules OverdueLister, pub realtime.RelayPublisher, logger *zap.Logger) *AutoEndMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutoEndMonitor{
		schedules: schedules,
		pub:       pub,
		logger:    logger,
		now:       time.Now,
		notified:  make(map[uuid.UUID]time.Time),
	}
}

// Sweep publishes auto_end_due once per schedule run and returns how many were announced.
func (m *AutoEndMonitor) Sweep(ctx context.Context) (int, error) {
	list, err := m.schedules.ListOverdueLive(ctx, m.now())
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[uuid.UUID]struct{}, len(list))
	sent := 0
	for i := range list {
		s := &list[i]
		at, ok := s.AutoEndAt()
		if !ok {
			continue
		}
		seen[s.ID] = struct{}{}
		if prev, done := m.notified[s.ID]; done && prev.Equal(at) {
			continue
		}
		payload, err := json.Marshal(models.AutoEndDuePayload{ScheduleID: s.ID, AutoEndAt: at})
		if err != nil {
			return sent, err
		}
		if err := m.pub.PublishTopicEvent(ctx, realtime.StatusTopic(s.Slug), models.EventAutoEndDue, payload); err != nil {
			m.logger.Warn("auto_end_due publish failed", zap.String("schedule_id", s.ID.String()), zap.Error(err))
			continue
		}
		m.notified[s.ID] = at
		sent++
		m.logger.Info("schedule past auto-end", zap.String("schedule_id", s.ID.String()), zap.String("slug", s.Slug), zap.Time("auto_end_at", at))
	}
	for id := range m.notified {
		if _, ok := seen[id]; !ok {
			delete(m.notified, id)
		}
	}
	return sent, nil
}

// Start schedules Sweep on spec and returns the running cron. Stop it on shutdown.
func (m *AutoEndMonitor) Start(spec string) (*cron.Cron, error) {
	if spec == "" {
		spec = DefaultAutoEndSchedule
	}
	l := cronLogger(m.logger)
	c := cron.New(cron.WithLogger(l), cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if _, err := m.Sweep(ctx); err != nil {
			m.logger.Error("auto-end sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	m.logger.Info("auto-end monitor started", zap.String("schedule", spec))
	return c, nil
}

// cronLogger routes cron's own logging (skipped runs, recovered panics) into zap.
func cronLogger(logger *zap.Logger) cron.Logger {
	return cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
}
