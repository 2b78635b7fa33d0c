// Package viewer is the client side of a schedule's broadcast channel: a disposable local
// projection of one schedule, fed by channel events, and a WebSocket connection that feeds it.
package viewer

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aura-webinar/seminar-portal/internal/models"
	"github.com/aura-webinar/seminar-portal/internal/realtime"
)

// State is a point-in-time copy of a projection.
type State struct {
	Status        models.ScheduleStatus
	ActualStart   *time.Time
	AutoEndHours  int
	IsTestLive    bool
	Messages      []models.ChatMessageItem
	PresenceCount int
	Members       []realtime.Member
}

// Projection caches one schedule as a viewer sees it. It only changes through Reset
// (a page reload) and Apply (a broadcast event); it is never written back.
type Projection struct {
	mu    sync.RWMutex
	state State
}

// NewProjection returns a projection loaded from s and the approved chat history.
func NewProjection(s models.SchedulePublic, history []models.ChatMessageItem) *Projection {
	p := &Projection{}
	p.Reset(s, history)
	return p
}

// Reset replaces the cached state with freshly loaded data.
func (p *Projection) Reset(s models.SchedulePublic, history []models.ChatMessageItem) {
	msgs := make([]models.ChatMessageItem, len(history))
	copy(msgs, history)
	p.mu.Lock()
	p.state = State{
		Status:       s.Status,
		ActualStart:  s.ActualStart,
		AutoEndHours: s.AutoEndHours,
		IsTestLive:   s.IsTestLive,
		Messages:     msgs,
	}
	p.mu.Unlock()
}

// Apply folds one channel event into the projection. Events it does not track are ignored.
func (p *Projection) Apply(msg realtime.WSMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch msg.Event {
	case models.EventStatusChange:
		var v models.StatusChangePayload
		if err := decode(msg, &v); err != nil {
			return err
		}
		p.state.Status = v.Status
		p.state.ActualStart = v.ActualStart
	case models.EventTestLiveChange:
		var v models.TestLiveChangePayload
		if err := decode(msg, &v); err != nil {
			return err
		}
		p.state.IsTestLive = v.IsTestLive
	case models.EventNewMessage:
		var v models.ChatMessageItem
		if err := decode(msg, &v); err != nil {
			return err
		}
		if p.indexOf(v.ID) < 0 {
			p.state.Messages = append(p.state.Messages, v)
		}
	case models.EventDeleteMessage:
		var v models.DeleteMessagePayload
		if err := decode(msg, &v); err != nil {
			return err
		}
		if i := p.indexOf(v.ID); i >= 0 {
			p.state.Messages = append(p.state.Messages[:i], p.state.Messages[i+1:]...)
		}
	case realtime.EventPresenceSync:
		var v realtime.PresenceSync
		if err := decode(msg, &v); err != nil {
			return err
		}
		p.state.PresenceCount = v.Count
		p.state.Members = v.Members
	}
	return nil
}

func (p *Projection) indexOf(id uuid.UUID) int {
	for i := range p.state.Messages {
		if p.state.Messages[i].ID == id {
			return i
		}
	}
	return -1
}

func decode(msg realtime.WSMessage, v interface{}) error {
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", msg.Event, err)
	}
	return nil
}

// State returns a copy of the cached state.
func (p *Projection) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.state
	s.Messages = append([]models.ChatMessageItem(nil), p.state.Messages...)
	s.Members = append([]realtime.Member(nil), p.state.Members...)
	return s
}

// AutoEndAt returns when a live schedule is shown as ended locally.
func (p *Projection) AutoEndAt() (time.Time, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.state
	if s.Status != models.StatusLive || s.ActualStart == nil || s.AutoEndHours <= 0 {
		return time.Time{}, false
	}
	return s.ActualStart.Add(time.Duration(s.AutoEndHours) * time.Hour), true
}

// DisplayedStatus is the status to render at now. A live schedule past its auto-end
// instant is shown as ended even though the stored status is still live.
func (p *Projection) DisplayedStatus(now time.Time) models.ScheduleStatus {
	if at, ok := p.AutoEndAt(); ok && !now.Before(at) {
		return models.StatusEnded
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.Status
}

// ChatOpen reports whether the chat panel is usable at now.
func (p *Projection) ChatOpen(now time.Time) bool {
	if p.DisplayedStatus(now) == models.StatusLive {
		return true
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.IsTestLive
}
