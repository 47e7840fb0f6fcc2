package consistency

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

func intPtr(v int) *int { return &v }

func TestBuildMessageNotification(t *testing.T) {
	msg := models.Message{ID: 9, SenderID: 1, ReceiverID: intPtr(2), Content: "hi"}

	n := BuildMessageNotification(msg, "alice")
	assert.Equal(t, 2, n.RecipientID)
	assert.Equal(t, 1, *n.SenderID)
	assert.Equal(t, 9, *n.MessageID)
	assert.Equal(t, models.NotificationMessage, n.Type)
	assert.Equal(t, "New message from alice", n.Title)
	assert.Equal(t, "hi", n.Body)

	msg.ParentMessageID = intPtr(4)
	n = BuildMessageNotification(msg, "alice")
	assert.Equal(t, models.NotificationReply, n.Type)
	assert.Equal(t, "New reply from alice", n.Title)
}

func TestBuildMessageNotificationTruncatesBody(t *testing.T) {
	exact := strings.Repeat("é", 100)
	n := BuildMessageNotification(models.Message{SenderID: 1, ReceiverID: intPtr(2), Content: exact}, "a")
	assert.Equal(t, exact, n.Body)

	long := strings.Repeat("é", 101)
	n = BuildMessageNotification(models.Message{SenderID: 1, ReceiverID: intPtr(2), Content: long}, "a")
	assert.Equal(t, exact+"...", n.Body)
}

func TestBeforeMessageSaveRecordsHistory(t *testing.T) {
	store := mocks.NewStoreMock()
	engine := NewEngine(zap.NewNop(), nil)

	store.MessageRepo.On("Get", mock.Anything, 5).Return(models.Message{ID: 5, SenderID: 1, Content: "old"}, nil).Once()
	store.HistoryRepo.On("Create", mock.Anything, mock.MatchedBy(func(h *models.MessageHistory) bool {
		return h.MessageID == 5 && h.Content == "old" && h.EditedBy != nil && *h.EditedBy == 1
	})).Return(nil).Once()

	msg := models.Message{ID: 5, SenderID: 1, Content: "new"}
	require.NoError(t, engine.BeforeMessageSave(context.Background(), store, &msg))
	assert.True(t, msg.Edited)
	store.AssertExpectations(t)
}

func TestBeforeMessageSaveSameContentIsNoop(t *testing.T) {
	store := mocks.NewStoreMock()
	engine := NewEngine(zap.NewNop(), nil)

	store.MessageRepo.On("Get", mock.Anything, 5).Return(models.Message{ID: 5, SenderID: 1, Content: "same"}, nil).Once()

	msg := models.Message{ID: 5, SenderID: 1, Content: "same", IsRead: true}
	require.NoError(t, engine.BeforeMessageSave(context.Background(), store, &msg))
	assert.False(t, msg.Edited)
	store.HistoryRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestBeforeMessageSaveSkipsNewMessages(t *testing.T) {
	store := mocks.NewStoreMock()
	engine := NewEngine(zap.NewNop(), nil)

	msg := models.Message{SenderID: 1, Content: "fresh"}
	require.NoError(t, engine.BeforeMessageSave(context.Background(), store, &msg))
	store.MessageRepo.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestBeforeMessageSaveMissingRowIsNoop(t *testing.T) {
	store := mocks.NewStoreMock()
	engine := NewEngine(zap.NewNop(), nil)

	store.MessageRepo.On("Get", mock.Anything, 5).Return(nil, repositories.ErrMessageNotFound).Once()

	msg := models.Message{ID: 5, SenderID: 1, Content: "new"}
	require.NoError(t, engine.BeforeMessageSave(context.Background(), store, &msg))
	assert.False(t, msg.Edited)
	store.HistoryRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestBeforeMessageSaveHistoryFailureFails(t *testing.T) {
	store := mocks.NewStoreMock()
	engine := NewEngine(zap.NewNop(), nil)

	store.MessageRepo.On("Get", mock.Anything, 5).Return(models.Message{ID: 5, SenderID: 1, Content: "old"}, nil).Once()
	store.HistoryRepo.On("Create", mock.Anything, mock.Anything).Return(assert.AnError).Once()

	msg := models.Message{ID: 5, SenderID: 1, Content: "new"}
	err := engine.BeforeMessageSave(context.Background(), store, &msg)
	require.ErrorIs(t, err, assert.AnError)
	assert.False(t, msg.Edited)
}

func TestAfterMessageSaveCreatesNotification(t *testing.T) {
	store := mocks.NewStoreMock()
	notifier := new(mocks.NotifierMock)
	engine := NewEngine(zap.NewNop(), notifier)

	store.UserRepo.On("Get", mock.Anything, 1).Return(models.User{ID: 1, Username: "alice"}, nil).Once()
	store.NotificationRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.Notification")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*models.Notification).ID = uuid.New()
		}).Return(nil).Once()
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(n models.Notification) bool {
		return n.RecipientID == 2 && n.Title == "New message from alice" && n.ID != uuid.Nil
	})).Once()

	engine.AfterMessageSave(context.Background(), store, models.Message{ID: 3, SenderID: 1, ReceiverID: intPtr(2), Content: "hello"}, true)

	store.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestAfterMessageSaveSkipsMissingOrSelfReceiver(t *testing.T) {
	store := mocks.NewStoreMock()
	notifier := new(mocks.NotifierMock)
	engine := NewEngine(zap.NewNop(), notifier)

	engine.AfterMessageSave(context.Background(), store, models.Message{ID: 3, SenderID: 1, Content: "x"}, true)
	engine.AfterMessageSave(context.Background(), store, models.Message{ID: 4, SenderID: 1, ReceiverID: intPtr(1), Content: "x"}, true)

	store.NotificationRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestAfterMessageSaveSwallowsNotificationFailure(t *testing.T) {
	store := mocks.NewStoreMock()
	notifier := new(mocks.NotifierMock)
	engine := NewEngine(zap.NewNop(), notifier)

	store.UserRepo.On("Get", mock.Anything, 1).Return(models.User{ID: 1, Username: "alice"}, nil).Once()
	store.NotificationRepo.On("Create", mock.Anything, mock.Anything).Return(assert.AnError).Once()

	assert.NotPanics(t, func() {
		engine.AfterMessageSave(context.Background(), store, models.Message{ID: 3, SenderID: 1, ReceiverID: intPtr(2), Content: "x"}, true)
	})
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestAfterMessageSaveReadClosesNotifications(t *testing.T) {
	store := mocks.NewStoreMock()
	engine := NewEngine(zap.NewNop(), nil)

	store.NotificationRepo.On("MarkReadForMessage", mock.Anything, 3, 2).Return(int64(1), nil).Once()
	store.NotificationRepo.On("MarkReadForMessage", mock.Anything, 3, 2).Return(int64(0), nil).Once()

	msg := models.Message{ID: 3, SenderID: 1, ReceiverID: intPtr(2), IsRead: true}
	engine.AfterMessageSave(context.Background(), store, msg, false)
	engine.AfterMessageSave(context.Background(), store, msg, false)

	store.AssertExpectations(t)
}

func TestAfterMessageSaveUnreadUpdateDoesNothing(t *testing.T) {
	store := mocks.NewStoreMock()
	engine := NewEngine(zap.NewNop(), nil)

	engine.AfterMessageSave(context.Background(), store, models.Message{ID: 3, SenderID: 1, ReceiverID: intPtr(2)}, false)
	store.NotificationRepo.AssertNotCalled(t, "MarkReadForMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestAfterUserDeleteCleansUp(t *testing.T) {
	store := mocks.NewStoreMock()
	engine := NewEngine(zap.NewNop(), nil)

	store.MessageRepo.On("DeleteBySender", mock.Anything, 7).Return(int64(3), nil).Once()
	store.HistoryRepo.On("ClearEditor", mock.Anything, 7).Return(int64(1), nil).Once()
	store.NotificationRepo.On("DeleteForUser", mock.Anything, 7).Return(int64(2), nil).Once()

	require.NoError(t, engine.AfterUserDelete(context.Background(), store, models.User{ID: 7, Username: "gone"}))
	store.AssertExpectations(t)
}

func TestAfterUserDeleteReturnsFailure(t *testing.T) {
	store := mocks.NewStoreMock()
	engine := NewEngine(zap.NewNop(), nil)

	store.MessageRepo.On("DeleteBySender", mock.Anything, 7).Return(int64(3), nil).Once()
	store.HistoryRepo.On("ClearEditor", mock.Anything, 7).Return(int64(0), assert.AnError).Once()

	err := engine.AfterUserDelete(context.Background(), store, models.User{ID: 7, Username: "gone"})
	require.ErrorIs(t, err, assert.AnError)
	store.NotificationRepo.AssertNotCalled(t, "DeleteForUser", mock.Anything, mock.Anything)
}

func TestAfterMessageDelete(t *testing.T) {
	store := mocks.NewStoreMock()
	engine := NewEngine(zap.NewNop(), nil)

	store.NotificationRepo.On("DeleteForMessage", mock.Anything, 3).Return(int64(0), assert.AnError).Once()
	assert.NotPanics(t, func() {
		engine.AfterMessageDelete(context.Background(), store, models.Message{ID: 3})
	})

	store.NotificationRepo.On("DeleteForMessage", mock.Anything, 4).Return(int64(1), nil).Once()
	engine.AfterMessageDelete(context.Background(), store, models.Message{ID: 4})
	store.AssertExpectations(t)
}

func TestAfterMessageDeleteAfterCascade(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	store := mocks.NewStoreMock()
	engine := NewEngine(zap.New(core), nil)

	store.NotificationRepo.On("DeleteForMessage", mock.Anything, 5).Return(int64(0), nil).Once()
	engine.AfterMessageDelete(context.Background(), store, models.Message{ID: 5})

	assert.Zero(t, logs.FilterMessage("cleaned up message references").Len())
	assert.Equal(t, 1, logs.FilterMessage("no message references left after cascade").Len())

	store.NotificationRepo.On("DeleteForMessage", mock.Anything, 6).Return(int64(2), nil).Once()
	engine.AfterMessageDelete(context.Background(), store, models.Message{ID: 6})

	cleaned := logs.FilterMessage("cleaned up message references").All()
	require.Len(t, cleaned, 1)
	assert.Equal(t, int64(2), cleaned[0].ContextMap()["notifications"])
	store.AssertExpectations(t)
}
