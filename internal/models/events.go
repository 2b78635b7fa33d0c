package models

import (
	"time"

	"github.com/google/uuid"
)

// Broadcast event names carried on a schedule's status and chat topics.
const (
	EventStatusChange   = "status_change"
	EventTestLiveChange = "test_live_change"
	EventAutoEndDue     = "auto_end_due"
	EventNewMessage     = "new_message"
	EventDeleteMessage  = "delete_message"
)

// StatusChangePayload is broadcast after a stored status transition.
type StatusChangePayload struct {
	Status      ScheduleStatus `json:"status"`
	ActualStart *time.Time     `json:"actual_start"`
}

// TestLiveChangePayload is broadcast after the test-live flag is toggled.
type TestLiveChangePayload struct {
	IsTestLive bool `json:"is_test_live"`
}

// AutoEndDuePayload tells admin consoles that a live schedule has run past its auto-end instant.
type AutoEndDuePayload struct {
	ScheduleID uuid.UUID `json:"schedule_id"`
	AutoEndAt  time.Time `json:"auto_end_at"`
}

// DeleteMessagePayload instructs viewers to drop a message from their local list.
type DeleteMessagePayload struct {
	ID uuid.UUID `json:"id"`
}
