package models

import "time"

// MaxContentLength bounds message content.
const MaxContentLength = 5000

// Message is a directed message from one user to another. ReceiverID becomes
// nil when the receiver account is deleted.
type Message struct {
	ID              int       `db:"id" json:"id"`
	SenderID        int       `db:"sender_id" json:"sender_id"`
	ReceiverID      *int      `db:"receiver_id" json:"receiver_id"`
	Content         string    `db:"content" json:"content"`
	Edited          bool      `db:"edited" json:"edited"`
	IsRead          bool      `db:"is_read" json:"is_read"`
	ParentMessageID *int      `db:"parent_message_id" json:"parent_message_id,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`

	// Populated only by queries that join the sender.
	SenderUsername string `db:"sender_username" json:"sender_username,omitempty"`
}

// IsReply reports whether the message answers another message.
func (m Message) IsReply() bool {
	return m.ParentMessageID != nil
}

// HasReceiver reports whether the message still has a live receiver.
func (m Message) HasReceiver() bool {
	return m.ReceiverID != nil
}

// IsParticipant reports whether userID sent or received the message.
func (m Message) IsParticipant(userID int) bool {
	return m.SenderID == userID || (m.ReceiverID != nil && *m.ReceiverID == userID)
}

// MessageHistory stores the content a message had before an edit.
type MessageHistory struct {
	ID        int       `db:"id" json:"id"`
	MessageID int       `db:"message_id" json:"message_id"`
	Content   string    `db:"content" json:"content"`
	EditedAt  time.Time `db:"edited_at" json:"edited_at"`
	EditedBy  *int      `db:"edited_by" json:"edited_by"`
}

// MessageEvent is pushed to websocket clients and published to the event bus.
type MessageEvent struct {
	Type      string   `json:"type"`
	Message   *Message `json:"message,omitempty"`
	MessageID int      `json:"message_id,omitempty"`
}
