// Package consistency keeps message history and notifications in step with
// message and user mutations. The service layer calls its hooks synchronously
// around every write.
package consistency

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

const (
	hookEditDetection  = "edit_detection"
	hookNotifyCreate   = "notification_create"
	hookNotifyRead     = "notification_read"
	hookUserCleanup    = "user_cleanup"
	hookMessageCleanup = "message_cleanup"

	outcomeOK      = "ok"
	outcomeSkipped = "skipped"
	outcomeError   = "error"

	bodyPreviewLength = 100
)

// Notifier delivers freshly stored notifications to connected clients.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

// Engine derives history and notification rows from primary writes.
type Engine struct {
	logger   *zap.Logger
	notifier Notifier
	tracer   trace.Tracer
}

// NewEngine builds an Engine. notifier may be nil.
func NewEngine(logger *zap.Logger, notifier Notifier) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		logger:   logger.Named("consistency"),
		notifier: notifier,
		tracer:   otel.Tracer("messaging-service/consistency"),
	}
}

// BeforeMessageSave runs before an existing message is updated. When the
// content changed it records the previous content and marks msg as edited.
// The caller runs it in the same transaction as the update, so a failed
// history write aborts the save.
func (e *Engine) BeforeMessageSave(ctx context.Context, store repositories.Store, msg *models.Message) error {
	if msg.ID == 0 {
		return nil
	}
	ctx, span := e.tracer.Start(ctx, "consistency.BeforeMessageSave", trace.WithAttributes(attribute.Int("message.id", msg.ID)))
	defer span.End()

	old, err := store.Messages().Get(ctx, msg.ID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		e.logger.Warn("message not found during edit detection", zap.Int("message_id", msg.ID))
		observability.ObserveHook(hookEditDetection, outcomeSkipped)
		return nil
	}
	if err != nil {
		e.fail(span, hookEditDetection, err)
		return fmt.Errorf("load message %d: %w", msg.ID, err)
	}

	if old.Content == msg.Content {
		observability.ObserveHook(hookEditDetection, outcomeSkipped)
		return nil
	}

	editor := msg.SenderID
	entry := models.MessageHistory{
		MessageID: msg.ID,
		Content:   old.Content,
		EditedBy:  &editor,
	}
	if err := store.History().Create(ctx, &entry); err != nil {
		e.fail(span, hookEditDetection, err)
		e.logger.Error("failed to create edit history", zap.Int("message_id", msg.ID), zap.Error(err))
		return fmt.Errorf("record history for message %d: %w", msg.ID, err)
	}
	msg.Edited = true

	observability.IncHistoryRecord()
	observability.ObserveHook(hookEditDetection, outcomeOK)
	e.logger.Info("created edit history", zap.Int("message_id", msg.ID), zap.Int("history_id", entry.ID))
	return nil
}

// AfterMessageSave runs once a message write is committed. Creation derives a
// notification for the receiver; an update that leaves the message read
// closes the receiver's notifications about it. Failures are logged only.
func (e *Engine) AfterMessageSave(ctx context.Context, store repositories.Store, msg models.Message, created bool) {
	if created {
		e.notifyReceiver(ctx, store, msg)
		return
	}
	if msg.IsRead {
		e.closeNotifications(ctx, store, msg)
	}
}

func (e *Engine) notifyReceiver(ctx context.Context, store repositories.Store, msg models.Message) {
	if !msg.HasReceiver() || *msg.ReceiverID == msg.SenderID {
		observability.ObserveHook(hookNotifyCreate, outcomeSkipped)
		return
	}
	ctx, span := e.tracer.Start(ctx, "consistency.NotifyReceiver", trace.WithAttributes(attribute.Int("message.id", msg.ID)))
	defer span.End()

	sender, err := store.Users().Get(ctx, msg.SenderID)
	if err != nil {
		e.fail(span, hookNotifyCreate, err)
		e.logger.Error("failed to create notification", zap.Int("message_id", msg.ID), zap.Error(err))
		return
	}

	n := BuildMessageNotification(msg, sender.Username)
	if err := store.Notifications().Create(ctx, &n); err != nil {
		e.fail(span, hookNotifyCreate, err)
		e.logger.Error("failed to create notification", zap.Int("message_id", msg.ID), zap.Error(err))
		return
	}

	observability.IncNotificationCreated(string(n.Type))
	observability.ObserveHook(hookNotifyCreate, outcomeOK)
	e.logger.Info("created notification", zap.String("notification_id", n.ID.String()), zap.Int("message_id", msg.ID))

	if e.notifier != nil {
		e.notifier.Notify(ctx, n)
	}
}

func (e *Engine) closeNotifications(ctx context.Context, store repositories.Store, msg models.Message) {
	if !msg.HasReceiver() {
		observability.ObserveHook(hookNotifyRead, outcomeSkipped)
		return
	}
	ctx, span := e.tracer.Start(ctx, "consistency.CloseNotifications", trace.WithAttributes(attribute.Int("message.id", msg.ID)))
	defer span.End()

	count, err := store.Notifications().MarkReadForMessage(ctx, msg.ID, *msg.ReceiverID)
	if err != nil {
		e.fail(span, hookNotifyRead, err)
		e.logger.Error("failed to update notifications", zap.Int("message_id", msg.ID), zap.Error(err))
		return
	}
	if count == 0 {
		observability.ObserveHook(hookNotifyRead, outcomeSkipped)
		return
	}

	observability.ObserveHook(hookNotifyRead, outcomeOK)
	e.logger.Info("marked notifications as read", zap.Int64("count", count), zap.Int("message_id", msg.ID))
}

// AfterUserDelete clears everything that still points at a deleted user. It
// must run in the transaction that deleted the user; a returned error means
// the caller has to roll that deletion back.
func (e *Engine) AfterUserDelete(ctx context.Context, tx repositories.Store, user models.User) error {
	ctx, span := e.tracer.Start(ctx, "consistency.AfterUserDelete", trace.WithAttributes(attribute.Int("user.id", user.ID)))
	defer span.End()

	messages, err := tx.Messages().DeleteBySender(ctx, user.ID)
	if err != nil {
		return e.cleanupFailed(span, user, fmt.Errorf("delete sent messages: %w", err))
	}
	history, err := tx.History().ClearEditor(ctx, user.ID)
	if err != nil {
		return e.cleanupFailed(span, user, fmt.Errorf("detach history editor: %w", err))
	}
	notifications, err := tx.Notifications().DeleteForUser(ctx, user.ID)
	if err != nil {
		return e.cleanupFailed(span, user, fmt.Errorf("delete notifications: %w", err))
	}

	observability.AddCleanupRows("message", messages)
	observability.AddCleanupRows("history", history)
	observability.AddCleanupRows("notification", notifications)
	observability.ObserveHook(hookUserCleanup, outcomeOK)
	e.logger.Info("cleaned up user data",
		zap.String("username", user.Username),
		zap.Int64("messages", messages),
		zap.Int64("history_records", history),
		zap.Int64("notifications", notifications),
	)
	return nil
}

func (e *Engine) cleanupFailed(span trace.Span, user models.User, err error) error {
	e.fail(span, hookUserCleanup, err)
	e.logger.Error("failed to clean up user data", zap.String("username", user.Username), zap.Error(err))
	return err
}

// AfterMessageDelete removes notifications about a deleted message. The
// store's ON DELETE CASCADE normally removes them, along with history rows,
// before this runs, so the hook only catches rows the cascade left behind.
func (e *Engine) AfterMessageDelete(ctx context.Context, store repositories.Store, msg models.Message) {
	ctx, span := e.tracer.Start(ctx, "consistency.AfterMessageDelete", trace.WithAttributes(attribute.Int("message.id", msg.ID)))
	defer span.End()

	count, err := store.Notifications().DeleteForMessage(ctx, msg.ID)
	if err != nil {
		e.fail(span, hookMessageCleanup, err)
		e.logger.Error("failed to clean up message references", zap.Int("message_id", msg.ID), zap.Error(err))
		return
	}

	if count == 0 {
		observability.ObserveHook(hookMessageCleanup, outcomeSkipped)
		e.logger.Debug("no message references left after cascade", zap.Int("message_id", msg.ID))
		return
	}

	observability.AddCleanupRows("notification", count)
	observability.ObserveHook(hookMessageCleanup, outcomeOK)
	e.logger.Info("cleaned up message references", zap.Int("message_id", msg.ID), zap.Int64("notifications", count))
}

func (e *Engine) fail(span trace.Span, hook string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	observability.ObserveHook(hook, outcomeError)
}

// BuildMessageNotification describes a new message to its receiver. The
// caller guarantees msg has a receiver.
func BuildMessageNotification(msg models.Message, senderUsername string) models.Notification {
	kind, noun := models.NotificationMessage, "message"
	if msg.IsReply() {
		kind, noun = models.NotificationReply, "reply"
	}

	sender := msg.SenderID
	messageID := msg.ID
	return models.Notification{
		RecipientID: *msg.ReceiverID,
		SenderID:    &sender,
		MessageID:   &messageID,
		Type:        kind,
		Title:       fmt.Sprintf("New %s from %s", noun, senderUsername),
		Body:        preview(msg.Content),
	}
}

func preview(content string) string {
	if utf8.RuneCountInString(content) <= bodyPreviewLength {
		return content
	}
	return string([]rune(content)[:bodyPreviewLength]) + "..."
}
