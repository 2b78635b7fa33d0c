package models

import (
	"time"

	"github.com/google/uuid"
)

// ScheduleStatus is the stored broadcast status of a schedule.
type ScheduleStatus string

const (
	StatusUpcoming ScheduleStatus = "upcoming"
	StatusLive     ScheduleStatus = "live"
	StatusEnded    ScheduleStatus = "ended"
)

const (
	// DefaultAutoEndHours is applied when a schedule is created without auto_end_hours.
	DefaultAutoEndHours = 3
	MinAutoEndHours     = 1
	MaxAutoEndHours     = 24
)

// Valid reports whether s is one of the known statuses.
func (s ScheduleStatus) Valid() bool {
	switch s {
	case StatusUpcoming, StatusLive, StatusEnded:
		return true
	}
	return false
}

// CanTransitionTo reports whether the stored state machine allows s -> target:
// upcoming -> live -> ended -> upcoming (reset).
func (s ScheduleStatus) CanTransitionTo(target ScheduleStatus) bool {
	switch s {
	case StatusUpcoming:
		return target == StatusLive
	case StatusLive:
		return target == StatusEnded
	case StatusEnded:
		return target == StatusUpcoming
	}
	return false
}

// Schedule is one live seminar occurrence.
type Schedule struct {
	ID              uuid.UUID      `json:"id"`
	Title           string         `json:"title"`
	Speaker         string         `json:"speaker"`
	Description     string         `json:"description"`
	Slug            string         `json:"slug"`
	ScheduledStart  time.Time      `json:"scheduled_start"`
	ScheduledEnd    *time.Time     `json:"scheduled_end,omitempty"`
	AutoEndHours    int            `json:"auto_end_hours"`
	ActualStart     *time.Time     `json:"actual_start"`
	ActualEnd       *time.Time     `json:"actual_end"`
	Status          ScheduleStatus `json:"status"`
	IsTestLive      bool           `json:"is_test_live"`
	MeetingNumber   *string        `json:"meeting_number,omitempty"`
	MeetingPassword *string        `json:"meeting_password,omitempty"`
	WaitingImageURL string         `json:"waiting_image_url"`
	EndedImageURL   string         `json:"ended_image_url"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// AutoEndAt returns actual_start + auto_end_hours. ok is false unless the
// schedule is live with a recorded start.
func (s *Schedule) AutoEndAt() (t time.Time, ok bool) {
	if s.Status != StatusLive || s.ActualStart == nil || s.AutoEndHours <= 0 {
		return time.Time{}, false
	}
	return s.ActualStart.Add(time.Duration(s.AutoEndHours) * time.Hour), true
}

// HasMeetingRoom reports whether a meeting room has been configured.
func (s *Schedule) HasMeetingRoom() bool {
	return s.MeetingNumber != nil && *s.MeetingNumber != ""
}

// SchedulePublic is the viewer-facing projection of a schedule (no meeting secret).
type SchedulePublic struct {
	ID              uuid.UUID      `json:"id"`
	Title           string         `json:"title"`
	Speaker         string         `json:"speaker"`
	Description     string         `json:"description"`
	Slug            string         `json:"slug"`
	ScheduledStart  time.Time      `json:"scheduled_start"`
	AutoEndHours    int            `json:"auto_end_hours"`
	ActualStart     *time.Time     `json:"actual_start"`
	Status          ScheduleStatus `json:"status"`
	IsTestLive      bool           `json:"is_test_live"`
	HasMeetingRoom  bool           `json:"has_meeting_room"`
	WaitingImageURL string         `json:"waiting_image_url"`
	EndedImageURL   string         `json:"ended_image_url"`
}

// ToPublic converts Schedule to SchedulePublic.
func (s *Schedule) ToPublic() SchedulePublic {
	return SchedulePublic{
		ID:              s.ID,
		Title:           s.Title,
		Speaker:         s.Speaker,
		Description:     s.Description,
		Slug:            s.Slug,
		ScheduledStart:  s.ScheduledStart,
		AutoEndHours:    s.AutoEndHours,
		ActualStart:     s.ActualStart,
		Status:          s.Status,
		IsTestLive:      s.IsTestLive,
		HasMeetingRoom:  s.HasMeetingRoom(),
		WaitingImageURL: s.WaitingImageURL,
		EndedImageURL:   s.EndedImageURL,
	}
}
