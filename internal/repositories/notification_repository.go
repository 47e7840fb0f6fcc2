package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"messaging-service/internal/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

const notificationColumns = `id, recipient_id, sender_id, message_id, is_read, notification_type, title, body, created_at`

// NotificationRepository abstracts notification persistence.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListForRecipient(ctx context.Context, recipientID int, unreadOnly bool) ([]models.Notification, error)
	UnreadCount(ctx context.Context, recipientID int) (int, error)
	MarkRead(ctx context.Context, id uuid.UUID, recipientID int) error
	MarkReadForMessage(ctx context.Context, messageID int, recipientID int) (int64, error)
	DeleteForMessage(ctx context.Context, messageID int) (int64, error)
	DeleteForUser(ctx context.Context, userID int) (int64, error)
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationRepo is a sqlx implementation of NotificationRepository.
type NotificationRepo struct {
	q sqlx.ExtContext
}

// NewNotificationRepo constructs a NotificationRepo.
func NewNotificationRepo(q sqlx.ExtContext) *NotificationRepo {
	return &NotificationRepo{q: q}
}

// Create inserts the notification, assigning an id when it has none.
func (r *NotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	err := r.q.QueryRowxContext(ctx, `INSERT INTO notifications (id, recipient_id, sender_id, message_id, is_read, notification_type, title, body)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at`,
		n.ID, n.RecipientID, n.SenderID, n.MessageID, n.IsRead, n.Type, n.Title, n.Body).Scan(&n.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "notificationRepo.Create")
	}
	return nil
}

// ListForRecipient returns the recipient's notifications, newest first.
func (r *NotificationRepo) ListForRecipient(ctx context.Context, recipientID int, unreadOnly bool) ([]models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE recipient_id=$1`
	if unreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC`

	var list []models.Notification
	if err := sqlx.SelectContext(ctx, r.q, &list, query, recipientID); err != nil {
		return nil, errors.Wrap(err, "notificationRepo.ListForRecipient")
	}
	return list, nil
}

func (r *NotificationRepo) UnreadCount(ctx context.Context, recipientID int) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, r.q, &count, `SELECT COUNT(*) FROM notifications WHERE recipient_id=$1 AND is_read = FALSE`, recipientID)
	if err != nil {
		return 0, errors.Wrap(err, "notificationRepo.UnreadCount")
	}
	return count, nil
}

// MarkRead flags a single notification owned by the recipient as read.
func (r *NotificationRepo) MarkRead(ctx context.Context, id uuid.UUID, recipientID int) error {
	res, err := r.q.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id=$1 AND recipient_id=$2`, id, recipientID)
	if err != nil {
		return errors.Wrap(err, "notificationRepo.MarkRead")
	}
	return expectRow(res, ErrNotificationNotFound)
}

// MarkReadForMessage closes the recipient's unread notifications about a message.
func (r *NotificationRepo) MarkReadForMessage(ctx context.Context, messageID int, recipientID int) (int64, error) {
	res, err := r.q.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE message_id=$1 AND recipient_id=$2 AND is_read = FALSE`, messageID, recipientID)
	if err != nil {
		return 0, errors.Wrap(err, "notificationRepo.MarkReadForMessage")
	}
	return res.RowsAffected()
}

func (r *NotificationRepo) DeleteForMessage(ctx context.Context, messageID int) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM notifications WHERE message_id=$1`, messageID)
	if err != nil {
		return 0, errors.Wrap(err, "notificationRepo.DeleteForMessage")
	}
	return res.RowsAffected()
}

// DeleteForUser removes notifications the user sent or received.
func (r *NotificationRepo) DeleteForUser(ctx context.Context, userID int) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM notifications WHERE recipient_id=$1 OR sender_id=$1`, userID)
	if err != nil {
		return 0, errors.Wrap(err, "notificationRepo.DeleteForUser")
	}
	return res.RowsAffected()
}

// DeleteReadBefore purges read notifications created before cutoff.
func (r *NotificationRepo) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM notifications WHERE is_read = TRUE AND created_at < $1`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "notificationRepo.DeleteReadBefore")
	}
	return res.RowsAffected()
}
