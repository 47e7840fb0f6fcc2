package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/consistency"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// MessageService owns every message write. Each write goes through the
// consistency engine so history and notifications stay in step.
type MessageService struct {
	store  repositories.Store
	engine *consistency.Engine
	logger *zap.Logger
}

func NewMessageService(store repositories.Store, engine *consistency.Engine, logger *zap.Logger) *MessageService {
	return &MessageService{store: store, engine: engine, logger: logger.Named("messages")}
}

// Send validates and stores a new message, then derives its notification.
func (s *MessageService) Send(ctx context.Context, in models.SendMessageInput) (models.Message, error) {
	if err := validate.Struct(in); err != nil {
		return models.Message{}, validationError(err)
	}

	if _, err := s.lookupUser(ctx, in.SenderID, "sender"); err != nil {
		return models.Message{}, err
	}

	receiverID := in.ReceiverID
	if in.ParentMessageID != nil {
		parent, err := s.store.Messages().Get(ctx, *in.ParentMessageID)
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return models.Message{}, apperrors.InvalidArg("parent message does not exist")
		}
		if err != nil {
			return models.Message{}, apperrors.Internal("failed to load parent message", err)
		}
		if receiverID == nil {
			sender := parent.SenderID
			receiverID = &sender
		}
		if parent.SenderID != *receiverID || parent.ReceiverID == nil || *parent.ReceiverID != in.SenderID {
			return models.Message{}, apperrors.InvalidArg("reply must answer a message the receiver sent to the sender")
		}
	}

	if receiverID == nil {
		return models.Message{}, apperrors.InvalidArg("receiver is required")
	}
	if *receiverID == in.SenderID {
		return models.Message{}, apperrors.InvalidArg("cannot send a message to yourself")
	}
	if _, err := s.lookupUser(ctx, *receiverID, "receiver"); err != nil {
		return models.Message{}, err
	}

	msg := models.Message{
		SenderID:        in.SenderID,
		ReceiverID:      receiverID,
		ParentMessageID: in.ParentMessageID,
		Content:         in.Content,
	}
	if err := s.store.Messages().Create(ctx, &msg); err != nil {
		return models.Message{}, apperrors.Internal("failed to store message", err)
	}

	s.engine.AfterMessageSave(ctx, s.store, msg, true)
	publish(ctx, s.logger, routingMessageCreated, "message_events", "message_created", models.MessageEvent{Type: "created", Message: &msg})
	return msg, nil
}

// Get returns a message visible to userID.
func (s *MessageService) Get(ctx context.Context, userID, messageID int) (models.Message, error) {
	msg, err := s.loadMessage(ctx, s.store, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if !msg.IsParticipant(userID) {
		return models.Message{}, apperrors.Forbidden("not a participant of this message")
	}
	return msg, nil
}

// Edit replaces the content of a message. Only the sender may edit.
func (s *MessageService) Edit(ctx context.Context, userID, messageID int, content string) (models.Message, error) {
	if err := validate.Var(content, fmt.Sprintf("required,max=%d", models.MaxContentLength)); err != nil {
		return models.Message{}, apperrors.InvalidArg(fmt.Sprintf("content must be between 1 and %d characters", models.MaxContentLength))
	}

	var msg models.Message
	err := s.store.WithTx(ctx, func(tx repositories.Store) error {
		var err error
		msg, err = s.loadMessage(ctx, tx, messageID)
		if err != nil {
			return err
		}
		if msg.SenderID != userID {
			return apperrors.Forbidden("only the sender can edit a message")
		}
		msg.Content = content
		return s.save(ctx, tx, &msg)
	})
	if err != nil {
		return models.Message{}, err
	}

	s.engine.AfterMessageSave(ctx, s.store, msg, false)
	publish(ctx, s.logger, routingMessageEdited, "message_events", "message_edited", models.MessageEvent{Type: "edited", Message: &msg})
	return msg, nil
}

// MarkRead flags a message as read by its receiver. Marking an already read
// message again is harmless.
func (s *MessageService) MarkRead(ctx context.Context, userID, messageID int) (models.Message, error) {
	var (
		msg       models.Message
		wasUnread bool
	)
	err := s.store.WithTx(ctx, func(tx repositories.Store) error {
		var err error
		msg, err = s.loadMessage(ctx, tx, messageID)
		if err != nil {
			return err
		}
		if msg.ReceiverID == nil || *msg.ReceiverID != userID {
			return apperrors.Forbidden("only the receiver can mark a message as read")
		}
		wasUnread = !msg.IsRead
		msg.IsRead = true
		return s.save(ctx, tx, &msg)
	})
	if err != nil {
		return models.Message{}, err
	}

	s.engine.AfterMessageSave(ctx, s.store, msg, false)
	if wasUnread {
		publish(ctx, s.logger, routingMessageRead, "message_events", "message_read", models.MessageEvent{Type: "read", MessageID: msg.ID})
	}
	return msg, nil
}

// Delete removes a message sent by userID along with its replies and history.
func (s *MessageService) Delete(ctx context.Context, userID, messageID int) error {
	msg, err := s.loadMessage(ctx, s.store, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return apperrors.Forbidden("only the sender can delete a message")
	}

	if err := s.store.Messages().Delete(ctx, messageID); err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return apperrors.NotFound("message not found")
		}
		return apperrors.Internal("failed to delete message", err)
	}

	s.engine.AfterMessageDelete(ctx, s.store, msg)
	publish(ctx, s.logger, routingMessageDeleted, "message_events", "message_deleted", models.MessageEvent{Type: "deleted", MessageID: msg.ID})
	return nil
}

// ListSent returns the messages userID sent, newest first.
func (s *MessageService) ListSent(ctx context.Context, userID int) ([]models.Message, error) {
	if err := requireUserID(userID); err != nil {
		return nil, err
	}
	msgs, err := s.store.Messages().ListSent(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to load sent messages", err)
	}
	return msgs, nil
}

// Replies returns the direct replies to a message, oldest first.
func (s *MessageService) Replies(ctx context.Context, userID, messageID int) ([]models.Message, error) {
	if _, err := s.Get(ctx, userID, messageID); err != nil {
		return nil, err
	}
	msgs, err := s.store.Messages().ListReplies(ctx, messageID)
	if err != nil {
		return nil, apperrors.Internal("failed to load replies", err)
	}
	return msgs, nil
}

// History returns the superseded versions of a message, oldest first.
func (s *MessageService) History(ctx context.Context, userID, messageID int) ([]models.MessageHistory, error) {
	if _, err := s.Get(ctx, userID, messageID); err != nil {
		return nil, err
	}
	entries, err := s.store.History().ListForMessage(ctx, messageID)
	if err != nil {
		return nil, apperrors.Internal("failed to load message history", err)
	}
	return entries, nil
}

// save persists an existing message after edit detection.
func (s *MessageService) save(ctx context.Context, tx repositories.Store, msg *models.Message) error {
	if err := s.engine.BeforeMessageSave(ctx, tx, msg); err != nil {
		return apperrors.Internal("failed to record edit history", err)
	}
	if err := tx.Messages().Update(ctx, msg); err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return apperrors.NotFound("message not found")
		}
		return apperrors.Internal("failed to update message", err)
	}
	return nil
}

func (s *MessageService) loadMessage(ctx context.Context, store repositories.Store, messageID int) (models.Message, error) {
	msg, err := store.Messages().Get(ctx, messageID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return models.Message{}, apperrors.NotFound("message not found")
	}
	if err != nil {
		return models.Message{}, apperrors.Internal("failed to load message", err)
	}
	return msg, nil
}

func (s *MessageService) lookupUser(ctx context.Context, userID int, role string) (models.User, error) {
	user, err := s.store.Users().Get(ctx, userID)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return models.User{}, apperrors.InvalidArg(role + " does not exist")
	}
	if err != nil {
		return models.User{}, apperrors.Internal("failed to load "+role, err)
	}
	return user, nil
}
