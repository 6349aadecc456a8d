package model

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType enumerates outbound notification categories.
type NotificationType string

const (
	NotificationAttendance NotificationType = "attendance"
	NotificationGrade      NotificationType = "grade"
	NotificationExam       NotificationType = "exam"
	NotificationAssignment NotificationType = "assignment"
)

// Notification is a fire-and-forget message handed to the dispatcher
// after a state change. Delivery failures never roll back the mutation
// that produced it.
type Notification struct {
	ID          uuid.UUID        `json:"id"`
	RecipientID int              `json:"recipient_id"`
	Type        NotificationType `json:"type"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	EntityType  string           `json:"entity_type,omitempty"`
	EntityID    string           `json:"entity_id,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}
