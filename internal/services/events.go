package services

import (
	"context"

	"go.uber.org/zap"

	"messaging-service/internal/observability"
)

const (
	routingMessageCreated = "message_events.created"
	routingMessageEdited  = "message_events.edited"
	routingMessageRead    = "message_events.read"
	routingMessageDeleted = "message_events.deleted"
	routingUserDeleted    = "user_events.deleted"
)

// publish sends a domain event. Delivery failures never fail the request.
func publish(ctx context.Context, logger *zap.Logger, routingKey, eventType, eventName string, payload interface{}) {
	envelope := observability.NewEnvelope(eventType, eventName, observability.RequestIDFromContext(ctx), payload)
	if err := observability.PublishEvent(ctx, routingKey, envelope); err != nil {
		logger.Warn("event publish failed", zap.String("routing_key", routingKey), zap.Error(err))
	}
}
