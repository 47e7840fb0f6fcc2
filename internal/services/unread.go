package services

import (
	"context"

	"go.uber.org/zap"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// UnreadMessages answers inbox queries for a receiver. Every method rejects a
// missing user with INVALID_ARGUMENT.
type UnreadMessages struct {
	store  repositories.Store
	logger *zap.Logger
}

func NewUnreadMessages(store repositories.Store, logger *zap.Logger) *UnreadMessages {
	return &UnreadMessages{store: store, logger: logger.Named("unread")}
}

// UnreadFor lists unread messages received by userID, newest first, with the
// sender's username filled in.
func (u *UnreadMessages) UnreadFor(ctx context.Context, userID int) ([]models.Message, error) {
	if err := requireUserID(userID); err != nil {
		return nil, err
	}
	msgs, err := u.store.Messages().UnreadFor(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to load unread messages", err)
	}
	return msgs, nil
}

// MarkAllReadFor flags every unread message of userID as read in one update.
// The per-message read hook does not run, so notifications about these
// messages stay unread.
func (u *UnreadMessages) MarkAllReadFor(ctx context.Context, userID int) (int64, error) {
	if err := requireUserID(userID); err != nil {
		return 0, err
	}
	count, err := u.store.Messages().MarkAllReadFor(ctx, userID)
	if err != nil {
		return 0, apperrors.Internal("failed to mark messages as read", err)
	}
	u.logger.Info("marked messages as read", zap.Int("user_id", userID), zap.Int64("count", count))
	return count, nil
}

func (u *UnreadMessages) UnreadCountFor(ctx context.Context, userID int) (int, error) {
	if err := requireUserID(userID); err != nil {
		return 0, err
	}
	count, err := u.store.Messages().UnreadCountFor(ctx, userID)
	if err != nil {
		return 0, apperrors.Internal("failed to count unread messages", err)
	}
	return count, nil
}
