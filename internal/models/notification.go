package models

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationMessage       NotificationType = "message"
	NotificationFriendRequest NotificationType = "friend_request"
	NotificationSystem        NotificationType = "system"
	NotificationReply         NotificationType = "reply"
)

// Notification is a pending alert for a recipient.
type Notification struct {
	ID          uuid.UUID        `db:"id" json:"id"`
	RecipientID int              `db:"recipient_id" json:"recipient_id"`
	SenderID    *int             `db:"sender_id" json:"sender_id"`
	MessageID   *int             `db:"message_id" json:"message_id,omitempty"`
	IsRead      bool             `db:"is_read" json:"is_read"`
	Type        NotificationType `db:"notification_type" json:"notification_type"`
	Title       string           `db:"title" json:"title"`
	Body        string           `db:"body" json:"body"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}

// NotificationEvent is pushed over the notification websocket.
type NotificationEvent struct {
	Type         string        `json:"type"`
	Notification *Notification `json:"notification,omitempty"`
}
