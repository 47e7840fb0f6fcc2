package models

// SendMessageInput describes a new message. ReceiverID may be omitted for
// replies; it then defaults to the sender of the parent message.
type SendMessageInput struct {
	SenderID        int    `json:"-" validate:"gt=0"`
	ReceiverID      *int   `json:"receiver_id" validate:"omitempty,gt=0"`
	ParentMessageID *int   `json:"parent_message_id" validate:"omitempty,gt=0"`
	Content         string `json:"content" validate:"required,max=5000"`
}

// RegisterInput describes a new account.
type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,max=150"`
	Email    string `json:"email" validate:"omitempty,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}
