package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
)

func intPtr(v int) *int { return &v }

func withUser(userID int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	}
}

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withUser(1))
	r.POST("/messages", handler.SendMessage)
	r.GET("/messages/sent", handler.ListSent)
	r.GET("/messages/unread", handler.ListUnread)
	r.GET("/messages/unread/count", handler.UnreadCount)
	r.POST("/messages/unread/read-all", handler.MarkAllRead)
	r.GET("/messages/:message_id", handler.GetMessage)
	r.PATCH("/messages/:message_id", handler.EditMessage)
	r.POST("/messages/:message_id/read", handler.MarkRead)
	r.DELETE("/messages/:message_id", handler.DeleteMessage)
	r.GET("/messages/:message_id/replies", handler.ListReplies)
	r.GET("/messages/:message_id/history", handler.GetHistory)
	return r
}

func TestSendMessageSuccess(t *testing.T) {
	messages := new(mocks.MessageServiceMock)
	router := setupMessageRouter(NewMessageHandler(messages, nil))

	messages.On("Send", mock.Anything, models.SendMessageInput{SenderID: 1, ReceiverID: intPtr(2), Content: "hi"}).
		Return(models.Message{ID: 3, SenderID: 1, ReceiverID: intPtr(2), Content: "hi"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewBufferString(`{"receiver_id":2,"content":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 3, resp.ID)
	messages.AssertExpectations(t)
}

func TestSendMessageMissingContent(t *testing.T) {
	messages := new(mocks.MessageServiceMock)
	router := setupMessageRouter(NewMessageHandler(messages, nil))

	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewBufferString(`{"receiver_id":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	messages.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestSendMessageValidationError(t *testing.T) {
	messages := new(mocks.MessageServiceMock)
	router := setupMessageRouter(NewMessageHandler(messages, nil))

	messages.On("Send", mock.Anything, mock.Anything).Return(nil, apperrors.InvalidArg("cannot send a message to yourself")).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewBufferString(`{"receiver_id":1,"content":"me"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"cannot send a message to yourself"}`, rec.Body.String())
}

func TestEditMessageForbidden(t *testing.T) {
	messages := new(mocks.MessageServiceMock)
	router := setupMessageRouter(NewMessageHandler(messages, nil))

	messages.On("Edit", mock.Anything, 1, 5, "new").Return(nil, apperrors.Forbidden("only the sender can edit a message")).Once()

	req := httptest.NewRequest(http.MethodPatch, "/messages/5", bytes.NewBufferString(`{"content":"new"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messages.AssertExpectations(t)
}

func TestMarkReadSuccess(t *testing.T) {
	messages := new(mocks.MessageServiceMock)
	router := setupMessageRouter(NewMessageHandler(messages, nil))

	messages.On("MarkRead", mock.Anything, 1, 5).Return(models.Message{ID: 5, IsRead: true}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages/5/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messages.AssertExpectations(t)
}

func TestDeleteMessage(t *testing.T) {
	messages := new(mocks.MessageServiceMock)
	router := setupMessageRouter(NewMessageHandler(messages, nil))

	messages.On("Delete", mock.Anything, 1, 5).Return(nil).Once()
	messages.On("Delete", mock.Anything, 1, 6).Return(apperrors.NotFound("message not found")).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/messages/5", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/messages/6", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	messages.AssertExpectations(t)
}

func TestInvalidMessageID(t *testing.T) {
	messages := new(mocks.MessageServiceMock)
	router := setupMessageRouter(NewMessageHandler(messages, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/messages/abc/history", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetHistoryEmpty(t *testing.T) {
	messages := new(mocks.MessageServiceMock)
	router := setupMessageRouter(NewMessageHandler(messages, nil))

	messages.On("History", mock.Anything, 1, 5).Return(nil, nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/messages/5/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"history":[]}`, rec.Body.String())
}

func TestUnreadEndpoints(t *testing.T) {
	unread := new(mocks.UnreadServiceMock)
	router := setupMessageRouter(NewMessageHandler(new(mocks.MessageServiceMock), unread))

	unread.On("UnreadFor", mock.Anything, 1).Return([]models.Message{{ID: 4, SenderUsername: "bob"}}, nil).Once()
	unread.On("UnreadCountFor", mock.Anything, 1).Return(1, nil).Once()
	unread.On("MarkAllReadFor", mock.Anything, 1).Return(int64(1), nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/messages/unread", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/messages/unread/count", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":1}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/messages/unread/read-all", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated":1}`, rec.Body.String())

	unread.AssertExpectations(t)
}

func TestListSentInternalError(t *testing.T) {
	messages := new(mocks.MessageServiceMock)
	router := setupMessageRouter(NewMessageHandler(messages, nil))

	messages.On("ListSent", mock.Anything, 1).Return(nil, apperrors.Internal("failed to load sent messages", assert.AnError)).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/messages/sent", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}
