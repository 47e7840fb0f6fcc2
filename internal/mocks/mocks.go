package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepositoryMock) Get(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetByUsername(ctx context.Context, username string) (models.User, error) {
	args := m.Called(ctx, username)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) Delete(ctx context.Context, userID int) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Create(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) Update(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MessageRepositoryMock) Delete(ctx context.Context, messageID int) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) DeleteBySender(ctx context.Context, senderID int) (int64, error) {
	args := m.Called(ctx, senderID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MessageRepositoryMock) ListSent(ctx context.Context, senderID int) ([]models.Message, error) {
	args := m.Called(ctx, senderID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) ListReplies(ctx context.Context, parentID int) ([]models.Message, error) {
	args := m.Called(ctx, parentID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) UnreadFor(ctx context.Context, receiverID int) ([]models.Message, error) {
	args := m.Called(ctx, receiverID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) MarkAllReadFor(ctx context.Context, receiverID int) (int64, error) {
	args := m.Called(ctx, receiverID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MessageRepositoryMock) UnreadCountFor(ctx context.Context, receiverID int) (int, error) {
	args := m.Called(ctx, receiverID)
	return args.Int(0), args.Error(1)
}

type HistoryRepositoryMock struct {
	mock.Mock
}

func (m *HistoryRepositoryMock) Create(ctx context.Context, entry *models.MessageHistory) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *HistoryRepositoryMock) ListForMessage(ctx context.Context, messageID int) ([]models.MessageHistory, error) {
	args := m.Called(ctx, messageID)
	var entries []models.MessageHistory
	if val := args.Get(0); val != nil {
		entries = val.([]models.MessageHistory)
	}
	return entries, args.Error(1)
}

func (m *HistoryRepositoryMock) CountForMessage(ctx context.Context, messageID int) (int, error) {
	args := m.Called(ctx, messageID)
	return args.Int(0), args.Error(1)
}

func (m *HistoryRepositoryMock) ClearEditor(ctx context.Context, userID int) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

type NotificationRepositoryMock struct {
	mock.Mock
}

func (m *NotificationRepositoryMock) Create(ctx context.Context, n *models.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *NotificationRepositoryMock) ListForRecipient(ctx context.Context, recipientID int, unreadOnly bool) ([]models.Notification, error) {
	args := m.Called(ctx, recipientID, unreadOnly)
	var list []models.Notification
	if val := args.Get(0); val != nil {
		list = val.([]models.Notification)
	}
	return list, args.Error(1)
}

func (m *NotificationRepositoryMock) UnreadCount(ctx context.Context, recipientID int) (int, error) {
	args := m.Called(ctx, recipientID)
	return args.Int(0), args.Error(1)
}

func (m *NotificationRepositoryMock) MarkRead(ctx context.Context, id uuid.UUID, recipientID int) error {
	args := m.Called(ctx, id, recipientID)
	return args.Error(0)
}

func (m *NotificationRepositoryMock) MarkReadForMessage(ctx context.Context, messageID int, recipientID int) (int64, error) {
	args := m.Called(ctx, messageID, recipientID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *NotificationRepositoryMock) DeleteForMessage(ctx context.Context, messageID int) (int64, error) {
	args := m.Called(ctx, messageID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *NotificationRepositoryMock) DeleteForUser(ctx context.Context, userID int) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *NotificationRepositoryMock) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// StoreMock hands out the embedded repository mocks. WithTx runs fn against
// the same mocks and returns its error, or TxErr when fn succeeded, which
// simulates a failing commit.
type StoreMock struct {
	UserRepo         *UserRepositoryMock
	MessageRepo      *MessageRepositoryMock
	HistoryRepo      *HistoryRepositoryMock
	NotificationRepo *NotificationRepositoryMock

	TxErr   error
	TxCalls int
}

func NewStoreMock() *StoreMock {
	return &StoreMock{
		UserRepo:         new(UserRepositoryMock),
		MessageRepo:      new(MessageRepositoryMock),
		HistoryRepo:      new(HistoryRepositoryMock),
		NotificationRepo: new(NotificationRepositoryMock),
	}
}

func (s *StoreMock) Users() repositories.UserRepository { return s.UserRepo }

func (s *StoreMock) Messages() repositories.MessageRepository { return s.MessageRepo }

func (s *StoreMock) History() repositories.HistoryRepository { return s.HistoryRepo }

func (s *StoreMock) Notifications() repositories.NotificationRepository { return s.NotificationRepo }

func (s *StoreMock) WithTx(ctx context.Context, fn func(tx repositories.Store) error) error {
	s.TxCalls++
	if err := fn(s); err != nil {
		return err
	}
	return s.TxErr
}

// AssertExpectations checks every repository mock.
func (s *StoreMock) AssertExpectations(t mock.TestingT) {
	s.UserRepo.AssertExpectations(t)
	s.MessageRepo.AssertExpectations(t)
	s.HistoryRepo.AssertExpectations(t)
	s.NotificationRepo.AssertExpectations(t)
}

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) Notify(ctx context.Context, n models.Notification) {
	m.Called(ctx, n)
}
