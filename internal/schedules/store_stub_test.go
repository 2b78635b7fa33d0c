package schedules

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aura-webinar/seminar-portal/internal/models"
	"github.com/aura-webinar/seminar-portal/pkg/storage"
)

// memStore is an in-memory Store.
type memStore struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]*models.Schedule
	failWrite error
}

func newMemStore(list ...*models.Schedule) *memStore {
	m := &memStore{byID: make(map[uuid.UUID]*models.Schedule)}
	for _, s := range list {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		m.byID[s.ID] = s
	}
	return m
}

func (m *memStore) get(id uuid.UUID) (*models.Schedule, error) {
	s, ok := m.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) Create(_ context.Context, s *models.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	cp := *s
	m.byID[s.ID] = &cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(id)
}

func (m *memStore) GetBySlug(_ context.Context, slug string) (*models.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.byID {
		if s.Slug == slug {
			return m.get(id)
		}
	}
	return nil, models.ErrNotFound
}

func (m *memStore) List(context.Context) ([]models.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Schedule{}
	for _, s := range m.byID {
		out = append(out, *s)
	}
	return out, nil
}

func (m *memStore) mutate(id uuid.UUID, fn func(s *models.Schedule) error) (*models.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite != nil {
		return nil, m.failWrite
	}
	s, ok := m.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	s.UpdatedAt = time.Now()
	return m.get(id)
}

func (m *memStore) UpdateInfo(_ context.Context, id uuid.UUID, in InfoInput) (*models.Schedule, error) {
	return m.mutate(id, func(s *models.Schedule) error {
		s.Title, s.Speaker, s.Description = in.Title, in.Speaker, in.Description
		s.ScheduledStart, s.ScheduledEnd, s.AutoEndHours = in.ScheduledStart, in.ScheduledEnd, in.AutoEndHours
		return nil
	})
}

func (m *memStore) UpdateMeeting(_ context.Context, id uuid.UUID, number, password *string) (*models.Schedule, error) {
	return m.mutate(id, func(s *models.Schedule) error {
		s.MeetingNumber, s.MeetingPassword = number, password
		return nil
	})
}

func (m *memStore) UpdateImage(_ context.Context, id uuid.UUID, kind storage.ImageKind, url string) (*models.Schedule, error) {
	return m.mutate(id, func(s *models.Schedule) error {
		if kind == storage.ImageEnded {
			s.EndedImageURL = url
		} else {
			s.WaitingImageURL = url
		}
		return nil
	})
}

func (m *memStore) UpdateStatus(_ context.Context, id uuid.UUID, from, to models.ScheduleStatus, start, end *time.Time) (*models.Schedule, error) {
	return m.mutate(id, func(s *models.Schedule) error {
		if s.Status != from {
			return models.ErrConflict
		}
		s.Status, s.ActualStart, s.ActualEnd = to, start, end
		return nil
	})
}

func (m *memStore) SetTestLive(_ context.Context, id uuid.UUID, enabled bool) (*models.Schedule, error) {
	return m.mutate(id, func(s *models.Schedule) error {
		s.IsTestLive = enabled
		return nil
	})
}

func (m *memStore) Purge(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memStore) Dashboard(context.Context) (*Dashboard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := &Dashboard{Schedules: int64(len(m.byID))}
	for _, s := range m.byID {
		switch s.Status {
		case models.StatusUpcoming:
			d.Upcoming++
		case models.StatusLive:
			d.Live++
		case models.StatusEnded:
			d.Ended++
		}
	}
	return d, nil
}

type published struct {
	Topic   string
	Event   string
	Payload interface{}
}

// recordingPublisher captures broadcasts.
type recordingPublisher struct {
	mu   sync.Mutex
	sent []published
	fail bool
}

func (p *recordingPublisher) Publish(_ context.Context, topic, event string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("relay unavailable")
	}
	p.sent = append(p.sent, published{Topic: topic, Event: event, Payload: payload})
	return nil
}
