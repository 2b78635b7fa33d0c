package models

import (
	"time"

	"github.com/google/uuid"
)

// ViewerSession is the durable record of one attach/detach window.
type ViewerSession struct {
	ID              uuid.UUID  `json:"id"`
	ScheduleID      uuid.UUID  `json:"schedule_id"`
	CustomerID      string     `json:"customer_id"`
	JoinedAt        time.Time  `json:"joined_at"`
	LeftAt          *time.Time `json:"left_at"`
	DurationSeconds *int64     `json:"duration_seconds"`
	IsActive        bool       `json:"is_active"`
}

// Close marks the session as left at leftAt and computes the whole-second duration.
// A leftAt before joined_at yields a zero duration.
func (s *ViewerSession) Close(leftAt time.Time) {
	d := int64(leftAt.Sub(s.JoinedAt).Round(time.Second) / time.Second)
	if d < 0 {
		d = 0
	}
	s.LeftAt = &leftAt
	s.DurationSeconds = &d
	s.IsActive = false
}

// ViewerAccessLog records one page load of a schedule by a customer.
type ViewerAccessLog struct {
	ID         uuid.UUID `json:"id"`
	ScheduleID uuid.UUID `json:"schedule_id"`
	CustomerID string    `json:"customer_id"`
	AccessedAt time.Time `json:"accessed_at"`
}
