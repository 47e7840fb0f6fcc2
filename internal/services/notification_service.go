package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

type NotificationService struct {
	store repositories.Store
}

func NewNotificationService(store repositories.Store) *NotificationService {
	return &NotificationService{store: store}
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID int, unreadOnly bool) ([]models.Notification, error) {
	if err := requireUserID(userID); err != nil {
		return nil, err
	}
	list, err := s.store.Notifications().ListForRecipient(ctx, userID, unreadOnly)
	if err != nil {
		return nil, apperrors.Internal("failed to load notifications", err)
	}
	return list, nil
}

// MarkRead closes one notification owned by userID.
func (s *NotificationService) MarkRead(ctx context.Context, userID int, id uuid.UUID) error {
	if err := requireUserID(userID); err != nil {
		return err
	}
	err := s.store.Notifications().MarkRead(ctx, id, userID)
	if errors.Is(err, repositories.ErrNotificationNotFound) {
		return apperrors.NotFound("notification not found")
	}
	if err != nil {
		return apperrors.Internal("failed to update notification", err)
	}
	return nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID int) (int, error) {
	if err := requireUserID(userID); err != nil {
		return 0, err
	}
	count, err := s.store.Notifications().UnreadCount(ctx, userID)
	if err != nil {
		return 0, apperrors.Internal("failed to count notifications", err)
	}
	return count, nil
}
