package repositories

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"messaging-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

const messageColumns = `id, sender_id, receiver_id, content, edited, is_read, parent_message_id, created_at`

// MessageRepository defines interactions for direct messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	Get(ctx context.Context, messageID int) (models.Message, error)
	Update(ctx context.Context, msg *models.Message) error
	Delete(ctx context.Context, messageID int) error
	DeleteBySender(ctx context.Context, senderID int) (int64, error)
	ListSent(ctx context.Context, senderID int) ([]models.Message, error)
	ListReplies(ctx context.Context, parentID int) ([]models.Message, error)

	UnreadFor(ctx context.Context, receiverID int) ([]models.Message, error)
	MarkAllReadFor(ctx context.Context, receiverID int) (int64, error)
	UnreadCountFor(ctx context.Context, receiverID int) (int, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	q sqlx.ExtContext
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(q sqlx.ExtContext) *MessageRepo {
	return &MessageRepo{q: q}
}

// Create stores a new message and fills in the generated columns.
func (r *MessageRepo) Create(ctx context.Context, msg *models.Message) error {
	err := r.q.QueryRowxContext(ctx, `INSERT INTO messages (sender_id, receiver_id, content, parent_message_id) VALUES ($1, $2, $3, $4) RETURNING id, edited, is_read, created_at`,
		msg.SenderID, msg.ReceiverID, msg.Content, msg.ParentMessageID).
		Scan(&msg.ID, &msg.Edited, &msg.IsRead, &msg.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "messageRepo.Create")
	}
	return nil
}

// Get retrieves a single message.
func (r *MessageRepo) Get(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := sqlx.GetContext(ctx, r.q, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, errors.Wrap(err, "messageRepo.Get")
	}
	return msg, nil
}

// Update persists the mutable columns of an existing message.
func (r *MessageRepo) Update(ctx context.Context, msg *models.Message) error {
	res, err := r.q.ExecContext(ctx, `UPDATE messages SET content=$2, edited=$3, is_read=$4 WHERE id=$1`,
		msg.ID, msg.Content, msg.Edited, msg.IsRead)
	if err != nil {
		return errors.Wrap(err, "messageRepo.Update")
	}
	return expectRow(res, ErrMessageNotFound)
}

// Delete removes a message. History rows and replies go with it by cascade.
func (r *MessageRepo) Delete(ctx context.Context, messageID int) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM messages WHERE id=$1`, messageID)
	if err != nil {
		return errors.Wrap(err, "messageRepo.Delete")
	}
	return expectRow(res, ErrMessageNotFound)
}

// DeleteBySender removes every message sent by the user.
func (r *MessageRepo) DeleteBySender(ctx context.Context, senderID int) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM messages WHERE sender_id=$1`, senderID)
	if err != nil {
		return 0, errors.Wrap(err, "messageRepo.DeleteBySender")
	}
	return res.RowsAffected()
}

// ListSent returns messages sent by the user, newest first.
func (r *MessageRepo) ListSent(ctx context.Context, senderID int) ([]models.Message, error) {
	var msgs []models.Message
	err := sqlx.SelectContext(ctx, r.q, &msgs, `SELECT `+messageColumns+` FROM messages WHERE sender_id=$1 ORDER BY created_at DESC, id DESC`, senderID)
	if err != nil {
		return nil, errors.Wrap(err, "messageRepo.ListSent")
	}
	return msgs, nil
}

// ListReplies returns direct replies to a message in thread order.
func (r *MessageRepo) ListReplies(ctx context.Context, parentID int) ([]models.Message, error) {
	var msgs []models.Message
	err := sqlx.SelectContext(ctx, r.q, &msgs, `SELECT `+messageColumns+` FROM messages WHERE parent_message_id=$1 ORDER BY created_at ASC, id ASC`, parentID)
	if err != nil {
		return nil, errors.Wrap(err, "messageRepo.ListReplies")
	}
	return msgs, nil
}

// UnreadFor returns unread messages received by the user, newest first, with
// the sender's username joined in.
func (r *MessageRepo) UnreadFor(ctx context.Context, receiverID int) ([]models.Message, error) {
	query := `SELECT m.id, m.sender_id, m.receiver_id, m.content, m.edited, m.is_read, m.parent_message_id, m.created_at,
            u.username AS sender_username
        FROM messages m
        JOIN users u ON u.id = m.sender_id
        WHERE m.receiver_id=$1 AND m.is_read = FALSE
        ORDER BY m.created_at DESC, m.id DESC`
	var msgs []models.Message
	if err := sqlx.SelectContext(ctx, r.q, &msgs, query, receiverID); err != nil {
		return nil, errors.Wrap(err, "messageRepo.UnreadFor")
	}
	return msgs, nil
}

// MarkAllReadFor flags every unread message of the receiver as read in one
// statement and returns how many rows changed.
func (r *MessageRepo) MarkAllReadFor(ctx context.Context, receiverID int) (int64, error) {
	res, err := r.q.ExecContext(ctx, `UPDATE messages SET is_read = TRUE WHERE receiver_id=$1 AND is_read = FALSE`, receiverID)
	if err != nil {
		return 0, errors.Wrap(err, "messageRepo.MarkAllReadFor")
	}
	return res.RowsAffected()
}

// UnreadCountFor counts unread messages without loading them.
func (r *MessageRepo) UnreadCountFor(ctx context.Context, receiverID int) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, r.q, &count, `SELECT COUNT(*) FROM messages WHERE receiver_id=$1 AND is_read = FALSE`, receiverID)
	if err != nil {
		return 0, errors.Wrap(err, "messageRepo.UnreadCountFor")
	}
	return count, nil
}

func expectRow(res sql.Result, notFound error) error {
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return notFound
	}
	return nil
}
