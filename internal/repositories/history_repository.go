package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"messaging-service/internal/models"
)

// HistoryRepository stores superseded message content.
type HistoryRepository interface {
	Create(ctx context.Context, entry *models.MessageHistory) error
	ListForMessage(ctx context.Context, messageID int) ([]models.MessageHistory, error)
	CountForMessage(ctx context.Context, messageID int) (int, error)
	ClearEditor(ctx context.Context, userID int) (int64, error)
}

// HistoryRepo is a sqlx implementation of HistoryRepository.
type HistoryRepo struct {
	q sqlx.ExtContext
}

// NewHistoryRepo constructs a HistoryRepo.
func NewHistoryRepo(q sqlx.ExtContext) *HistoryRepo {
	return &HistoryRepo{q: q}
}

func (r *HistoryRepo) Create(ctx context.Context, entry *models.MessageHistory) error {
	err := r.q.QueryRowxContext(ctx, `INSERT INTO message_history (message_id, content, edited_by) VALUES ($1, $2, $3) RETURNING id, edited_at`,
		entry.MessageID, entry.Content, entry.EditedBy).Scan(&entry.ID, &entry.EditedAt)
	if err != nil {
		return errors.Wrap(err, "historyRepo.Create")
	}
	return nil
}

// ListForMessage returns the edits of a message, most recent first.
func (r *HistoryRepo) ListForMessage(ctx context.Context, messageID int) ([]models.MessageHistory, error) {
	var entries []models.MessageHistory
	err := sqlx.SelectContext(ctx, r.q, &entries, `SELECT id, message_id, content, edited_at, edited_by FROM message_history WHERE message_id=$1 ORDER BY edited_at DESC, id DESC`, messageID)
	if err != nil {
		return nil, errors.Wrap(err, "historyRepo.ListForMessage")
	}
	return entries, nil
}

func (r *HistoryRepo) CountForMessage(ctx context.Context, messageID int) (int, error) {
	var count int
	if err := sqlx.GetContext(ctx, r.q, &count, `SELECT COUNT(*) FROM message_history WHERE message_id=$1`, messageID); err != nil {
		return 0, errors.Wrap(err, "historyRepo.CountForMessage")
	}
	return count, nil
}

// ClearEditor detaches the user from the edits they made, keeping the text.
func (r *HistoryRepo) ClearEditor(ctx context.Context, userID int) (int64, error) {
	res, err := r.q.ExecContext(ctx, `UPDATE message_history SET edited_by = NULL WHERE edited_by=$1`, userID)
	if err != nil {
		return 0, errors.Wrap(err, "historyRepo.ClearEditor")
	}
	return res.RowsAffected()
}
