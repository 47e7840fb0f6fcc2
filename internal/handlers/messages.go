package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/models"
)

type MessageService interface {
	Send(ctx context.Context, in models.SendMessageInput) (models.Message, error)
	Get(ctx context.Context, userID, messageID int) (models.Message, error)
	Edit(ctx context.Context, userID, messageID int, content string) (models.Message, error)
	MarkRead(ctx context.Context, userID, messageID int) (models.Message, error)
	Delete(ctx context.Context, userID, messageID int) error
	ListSent(ctx context.Context, userID int) ([]models.Message, error)
	Replies(ctx context.Context, userID, messageID int) ([]models.Message, error)
	History(ctx context.Context, userID, messageID int) ([]models.MessageHistory, error)
}

type UnreadService interface {
	UnreadFor(ctx context.Context, userID int) ([]models.Message, error)
	MarkAllReadFor(ctx context.Context, userID int) (int64, error)
	UnreadCountFor(ctx context.Context, userID int) (int, error)
}

// MessageHandler manages direct message endpoints.
type MessageHandler struct {
	messages MessageService
	unread   UnreadService
}

func NewMessageHandler(messages MessageService, unread UnreadService) *MessageHandler {
	return &MessageHandler{messages: messages, unread: unread}
}

// SendMessage stores a message or a reply from the authenticated user.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req struct {
		ReceiverID      *int   `json:"receiver_id"`
		ParentMessageID *int   `json:"parent_message_id"`
		Content         string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), models.SendMessageInput{
		SenderID:        c.GetInt("userID"),
		ReceiverID:      req.ReceiverID,
		ParentMessageID: req.ParentMessageID,
		Content:         req.Content,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *MessageHandler) GetMessage(c *gin.Context) {
	messageID, ok := parseID(c, "message_id")
	if !ok {
		return
	}
	msg, err := h.messages.Get(c.Request.Context(), c.GetInt("userID"), messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// EditMessage replaces the content of a message the caller sent.
func (h *MessageHandler) EditMessage(c *gin.Context) {
	messageID, ok := parseID(c, "message_id")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messages.Edit(c.Request.Context(), c.GetInt("userID"), messageID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	messageID, ok := parseID(c, "message_id")
	if !ok {
		return
	}
	msg, err := h.messages.MarkRead(c.Request.Context(), c.GetInt("userID"), messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	messageID, ok := parseID(c, "message_id")
	if !ok {
		return
	}
	if err := h.messages.Delete(c.Request.Context(), c.GetInt("userID"), messageID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *MessageHandler) ListSent(c *gin.Context) {
	msgs, err := h.messages.ListSent(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": nonNil(msgs)})
}

func (h *MessageHandler) ListReplies(c *gin.Context) {
	messageID, ok := parseID(c, "message_id")
	if !ok {
		return
	}
	msgs, err := h.messages.Replies(c.Request.Context(), c.GetInt("userID"), messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": nonNil(msgs)})
}

func (h *MessageHandler) GetHistory(c *gin.Context) {
	messageID, ok := parseID(c, "message_id")
	if !ok {
		return
	}
	entries, err := h.messages.History(c.Request.Context(), c.GetInt("userID"), messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	if entries == nil {
		entries = []models.MessageHistory{}
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

// ListUnread returns the caller's inbox of unread messages.
func (h *MessageHandler) ListUnread(c *gin.Context) {
	msgs, err := h.unread.UnreadFor(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": nonNil(msgs)})
}

func (h *MessageHandler) UnreadCount(c *gin.Context) {
	count, err := h.unread.UnreadCountFor(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *MessageHandler) MarkAllRead(c *gin.Context) {
	count, err := h.unread.MarkAllReadFor(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": count})
}

func nonNil(msgs []models.Message) []models.Message {
	if msgs == nil {
		return []models.Message{}
	}
	return msgs
}
