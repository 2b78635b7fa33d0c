package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/seminar-portal/internal/models"
	"github.com/aura-webinar/seminar-portal/internal/realtime"
)

type memMessages struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]*models.ChatMessage
	clock     time.Time
	failWrite error
}

func newMemMessages() *memMessages {
	return &memMessages{byID: map[uuid.UUID]*models.ChatMessage{}, clock: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (m *memMessages) Create(_ context.Context, msg *models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Second)
	msg.ID = uuid.New()
	msg.CreatedAt = m.clock
	cp := *msg
	m.byID[msg.ID] = &cp
	return nil
}

func (m *memMessages) GetByID(_ context.Context, id uuid.UUID) (*models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *msg
	return &cp, nil
}

func (m *memMessages) UpdateStatus(_ context.Context, id uuid.UUID, from []models.ChatStatus, to models.ChatStatus, at *time.Time, by *string) (*models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite != nil {
		return nil, m.failWrite
	}
	msg, ok := m.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	allowed := false
	for _, s := range from {
		allowed = allowed || s == msg.Status
	}
	if !allowed {
		return nil, models.ErrConflict
	}
	msg.Status = to
	if at != nil {
		msg.ApprovedAt = at
	}
	if by != nil {
		msg.ApprovedBy = by
	}
	cp := *msg
	return &cp, nil
}

func (m *memMessages) sorted(scheduleID uuid.UUID, keep func(*models.ChatMessage) bool) []models.ChatMessage {
	var out []models.ChatMessage
	for _, msg := range m.byID {
		if msg.ScheduleID == scheduleID && keep(msg) {
			out = append(out, *msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *memMessages) ListApproved(_ context.Context, scheduleID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sorted(scheduleID, func(msg *models.ChatMessage) bool { return msg.Status == models.ChatApproved })
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memMessages) ListForModeration(_ context.Context, scheduleID uuid.UUID, status *models.ChatStatus, limit int) ([]models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sorted(scheduleID, func(msg *models.ChatMessage) bool { return status == nil || msg.Status == *status })
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type stubSchedules map[uuid.UUID]*models.Schedule

func (s stubSchedules) GetByID(_ context.Context, id uuid.UUID) (*models.Schedule, error) {
	if sc, ok := s[id]; ok {
		return sc, nil
	}
	return nil, models.ErrNotFound
}

func (s stubSchedules) GetBySlug(_ context.Context, slug string) (*models.Schedule, error) {
	for _, sc := range s {
		if sc.Slug == slug {
			return sc, nil
		}
	}
	return nil, models.ErrNotFound
}

type stubPresence map[string]bool

func (p stubPresence) Attached(topic, viewerID string) bool { return p[topic+"|"+viewerID] }

type published struct {
	Topic, Event string
	Payload      interface{}
}

type recordingPublisher struct {
	sent []published
	fail bool
}

func (p *recordingPublisher) Publish(_ context.Context, topic, event string, payload interface{}) error {
	if p.fail {
		return errors.New("relay unavailable")
	}
	p.sent = append(p.sent, published{topic, event, payload})
	return nil
}

var (
	admin = models.Viewer{Kind: models.KindAdmin, ID: "admin-1", Name: "Ops"}
	taro  = models.Viewer{Kind: models.KindCustomer, ID: "TARO01", Name: "Taro"}
)

type fixture struct {
	svc      *Service
	messages *memMessages
	pub      *recordingPublisher
	presence stubPresence
	schedule *models.Schedule
}

func newFixture(limits Limits) *fixture {
	sched := &models.Schedule{ID: uuid.New(), Slug: "live0001-abc", Status: models.StatusLive}
	f := &fixture{
		messages: newMemMessages(),
		pub:      &recordingPublisher{},
		presence: stubPresence{realtime.ChatTopic(sched.Slug) + "|" + taro.ID: true},
		schedule: sched,
	}
	f.svc = NewService(f.messages, stubSchedules{sched.ID: sched}, f.presence, f.pub, limits, nil)
	return f
}

func (f *fixture) submit(t *testing.T, content string) *models.ChatMessage {
	t.Helper()
	m, err := f.svc.Submit(context.Background(), taro, f.schedule.Slug, "Taro", content)
	require.NoError(t, err)
	return m
}

func TestSubmitStoresPendingWithoutBroadcast(t *testing.T) {
	f := newFixture(DefaultLimits)
	m := f.submit(t, "  hello  ")
	assert.Equal(t, models.ChatPending, m.Status)
	assert.Equal(t, "hello", m.Content)
	assert.Equal(t, taro.ID, m.CustomerID)
	assert.Empty(t, f.pub.sent)

	got, err := f.messages.GetByID(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.Content, got.Content)
	assert.Equal(t, m.DisplayName, got.DisplayName)
	assert.Equal(t, m.Status, got.Status)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(Limits{MaxContent: 5, MaxName: 3})
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, taro, f.schedule.Slug, "x", "   ")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.svc.Submit(ctx, taro, f.schedule.Slug, "x", "123456")
	assert.ErrorIs(t, err, models.ErrValidation)

	m, err := f.svc.Submit(ctx, taro, f.schedule.Slug, "", "こんにちは")
	require.NoError(t, err)
	assert.Equal(t, AnonymousName, m.DisplayName)

	m, err = f.svc.Submit(ctx, taro, f.schedule.Slug, "Hanako", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Han", m.DisplayName)

	_, err = f.svc.Submit(ctx, taro, "missing", "x", "hi")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSubmitRequiresLiveAndAttachment(t *testing.T) {
	f := newFixture(DefaultLimits)
	ctx := context.Background()

	stranger := models.Viewer{Kind: models.KindCustomer, ID: "OTHER1"}
	_, err := f.svc.Submit(ctx, stranger, f.schedule.Slug, "x", "hi")
	assert.ErrorIs(t, err, models.ErrNotAttached)

	f.schedule.Status = models.StatusUpcoming
	_, err = f.svc.Submit(ctx, taro, f.schedule.Slug, "x", "hi")
	assert.ErrorIs(t, err, models.ErrNotLive)

	f.schedule.IsTestLive = true
	_, err = f.svc.Submit(ctx, taro, f.schedule.Slug, "x", "hi")
	assert.NoError(t, err)
}

func TestApproveBroadcastsNewMessage(t *testing.T) {
	f := newFixture(DefaultLimits)
	now := time.Date(2026, 5, 1, 11, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }
	m := f.submit(t, "hello")

	res, err := f.svc.Decide(context.Background(), admin, m.ID, models.ChatApproved)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.True(t, res.BroadcastDelivered)
	assert.Equal(t, models.ChatApproved, res.Message.Status)
	require.NotNil(t, res.Message.ApprovedAt)
	assert.True(t, res.Message.ApprovedAt.Equal(now))
	assert.Equal(t, admin.ID, *res.Message.ApprovedBy)

	require.Len(t, f.pub.sent, 1)
	assert.Equal(t, realtime.ChatTopic(f.schedule.Slug), f.pub.sent[0].Topic)
	assert.Equal(t, models.EventNewMessage, f.pub.sent[0].Event)
	item := f.pub.sent[0].Payload.(models.ChatMessageItem)
	assert.Equal(t, "hello", item.Content)
	assert.Equal(t, "Taro", item.DisplayName)
	assert.Equal(t, taro.ID, item.CustomerID)

	res, err = f.svc.Decide(context.Background(), admin, m.ID, models.ChatApproved)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Len(t, f.pub.sent, 1)
}

func TestRejectIsSilentAndTerminal(t *testing.T) {
	f := newFixture(DefaultLimits)
	m := f.submit(t, "spam")
	ctx := context.Background()

	res, err := f.svc.Decide(ctx, admin, m.ID, models.ChatRejected)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Empty(t, f.pub.sent)

	_, err = f.svc.Decide(ctx, admin, m.ID, models.ChatApproved)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	got, _ := f.messages.GetByID(ctx, m.ID)
	assert.Equal(t, models.ChatRejected, got.Status)

	res, err = f.svc.Decide(ctx, admin, m.ID, models.ChatRejected)
	require.NoError(t, err)
	assert.False(t, res.Changed)
}

func TestDeleteFromAnyLiveState(t *testing.T) {
	for _, start := range []models.ChatStatus{models.ChatPending, models.ChatApproved, models.ChatRejected} {
		t.Run(string(start), func(t *testing.T) {
			f := newFixture(DefaultLimits)
			m := f.submit(t, "x")
			ctx := context.Background()
			if start != models.ChatPending {
				_, err := f.svc.Decide(ctx, admin, m.ID, start)
				require.NoError(t, err)
			}
			f.pub.sent = nil

			res, err := f.svc.Decide(ctx, admin, m.ID, models.ChatDeleted)
			require.NoError(t, err)
			assert.Equal(t, models.ChatDeleted, res.Message.Status)
			require.Len(t, f.pub.sent, 1)
			assert.Equal(t, models.EventDeleteMessage, f.pub.sent[0].Event)
			assert.Equal(t, models.DeleteMessagePayload{ID: m.ID}, f.pub.sent[0].Payload)

			_, err = f.svc.Decide(ctx, admin, m.ID, models.ChatApproved)
			assert.ErrorIs(t, err, models.ErrInvalidTransition)
		})
	}
}

func TestDecideFailuresAndGuards(t *testing.T) {
	f := newFixture(DefaultLimits)
	m := f.submit(t, "x")
	ctx := context.Background()

	_, err := f.svc.Decide(ctx, taro, m.ID, models.ChatApproved)
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = f.svc.Decide(ctx, admin, m.ID, models.ChatPending)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.svc.Decide(ctx, admin, uuid.New(), models.ChatApproved)
	assert.ErrorIs(t, err, models.ErrNotFound)

	f.messages.failWrite = errors.New("store down")
	_, err = f.svc.Decide(ctx, admin, m.ID, models.ChatApproved)
	assert.Error(t, err)
	assert.Empty(t, f.pub.sent)

	f.messages.failWrite = nil
	f.pub.fail = true
	res, err := f.svc.Decide(ctx, admin, m.ID, models.ChatApproved)
	require.NoError(t, err)
	assert.False(t, res.BroadcastDelivered)
	assert.Equal(t, models.ChatApproved, res.Message.Status)
}

func TestLoadHistoryOnlyApprovedAscending(t *testing.T) {
	f := newFixture(Limits{History: 2})
	ctx := context.Background()
	var ids []uuid.UUID
	for i, decision := range []models.ChatStatus{models.ChatApproved, models.ChatRejected, models.ChatApproved, models.ChatPending, models.ChatApproved, models.ChatDeleted} {
		m := f.submit(t, strings.Repeat("m", i+1))
		if decision != models.ChatPending {
			_, err := f.svc.Decide(ctx, admin, m.ID, decision)
			require.NoError(t, err)
		}
		if decision == models.ChatApproved {
			ids = append(ids, m.ID)
		}
	}

	items, err := f.svc.LoadHistory(ctx, f.schedule.Slug)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, ids[1], items[0].ID)
	assert.Equal(t, ids[2], items[1].ID)
	assert.True(t, items[0].CreatedAt.Before(items[1].CreatedAt))
}

func TestModerationQueue(t *testing.T) {
	f := newFixture(Limits{Moderation: 2})
	ctx := context.Background()
	first := f.submit(t, "a")
	f.submit(t, "b")
	third := f.submit(t, "c")
	_, err := f.svc.Decide(ctx, admin, first.ID, models.ChatRejected)
	require.NoError(t, err)

	list, err := f.svc.LoadModerationQueue(ctx, admin, f.schedule.ID, "pending")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, third.ID, list[0].ID)

	list, err = f.svc.LoadModerationQueue(ctx, admin, f.schedule.ID, "")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = f.svc.LoadModerationQueue(ctx, admin, f.schedule.ID, "bogus")
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = f.svc.LoadModerationQueue(ctx, taro, f.schedule.ID, "")
	assert.ErrorIs(t, err, models.ErrForbidden)
}
