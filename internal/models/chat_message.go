package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatStatus is the moderation state of a chat message.
type ChatStatus string

const (
	ChatPending  ChatStatus = "pending"
	ChatApproved ChatStatus = "approved"
	ChatRejected ChatStatus = "rejected"
	ChatDeleted  ChatStatus = "deleted"
)

// Valid reports whether s is one of the known chat statuses.
func (s ChatStatus) Valid() bool {
	switch s {
	case ChatPending, ChatApproved, ChatRejected, ChatDeleted:
		return true
	}
	return false
}

// DecisionSources returns the statuses a message may be in for decision d to apply.
// approved and rejected only leave pending; deleted leaves anything but deleted.
func DecisionSources(d ChatStatus) []ChatStatus {
	switch d {
	case ChatApproved, ChatRejected:
		return []ChatStatus{ChatPending}
	case ChatDeleted:
		return []ChatStatus{ChatPending, ChatApproved, ChatRejected}
	}
	return nil
}

// CanDecide reports whether decision d may move a message out of status s.
func (s ChatStatus) CanDecide(d ChatStatus) bool {
	for _, from := range DecisionSources(d) {
		if from == s {
			return true
		}
	}
	return false
}

// ChatMessage is a viewer-submitted message bound to a schedule.
type ChatMessage struct {
	ID          uuid.UUID  `json:"id"`
	ScheduleID  uuid.UUID  `json:"schedule_id"`
	CustomerID  string     `json:"customer_id"`
	DisplayName string     `json:"display_name"`
	Content     string     `json:"content"`
	Status      ChatStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ApprovedAt  *time.Time `json:"approved_at"`
	ApprovedBy  *string    `json:"approved_by"`
}

// ChatMessageItem is what ordinary viewers see of an approved message.
type ChatMessageItem struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
	CustomerID  string    `json:"customer_id"`
}

// ToItem converts ChatMessage to the viewer-facing item.
func (m *ChatMessage) ToItem() ChatMessageItem {
	return ChatMessageItem{
		ID:          m.ID,
		DisplayName: m.DisplayName,
		Content:     m.Content,
		CreatedAt:   m.CreatedAt,
		CustomerID:  m.CustomerID,
	}
}
