package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/consistency"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

func newUserService(store *mocks.StoreMock, tokens TokenIssuer, auditor Auditor) *UserService {
	return NewUserService(store, consistency.NewEngine(zap.NewNop(), nil), tokens, auditor, zap.NewNop())
}

func TestRegisterHashesPassword(t *testing.T) {
	store := mocks.NewStoreMock()
	store.UserRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
		return u.Username == "alice" && bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("password1")) == nil
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*models.User).ID = 1
	}).Return(nil).Once()

	user, err := newUserService(store, nil, nil).Register(context.Background(), models.RegisterInput{Username: "alice", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, 1, user.ID)
	store.AssertExpectations(t)
}

func TestRegisterRejectsTakenUsername(t *testing.T) {
	store := mocks.NewStoreMock()
	store.UserRepo.On("Create", mock.Anything, mock.Anything).Return(repositories.ErrUsernameTaken).Once()

	_, err := newUserService(store, nil, nil).Register(context.Background(), models.RegisterInput{Username: "alice", Password: "password1"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeAlreadyExists))
}

func TestRegisterValidatesInput(t *testing.T) {
	store := mocks.NewStoreMock()

	_, err := newUserService(store, nil, nil).Register(context.Background(), models.RegisterInput{Username: "al", Password: "short"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidArgument))
	store.UserRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.MinCost)
	require.NoError(t, err)

	store := mocks.NewStoreMock()
	tokens := new(mocks.TokenIssuerMock)
	store.UserRepo.On("GetByUsername", mock.Anything, "alice").Return(models.User{ID: 1, Username: "alice", PasswordHash: string(hash)}, nil)
	tokens.On("GenerateToken", 1, "alice").Return("tok", nil).Once()

	svc := newUserService(store, tokens, nil)
	token, user, err := svc.Login(context.Background(), "alice", "password1")
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
	assert.Equal(t, 1, user.ID)

	_, _, err = svc.Login(context.Background(), "alice", "wrong-password")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthenticated))
	tokens.AssertExpectations(t)
}

func TestDeleteUserRunsCleanupInTransaction(t *testing.T) {
	store := mocks.NewStoreMock()
	auditor := new(mocks.AuditorMock)

	store.UserRepo.On("Get", mock.Anything, 7).Return(models.User{ID: 7, Username: "gone"}, nil).Once()
	store.UserRepo.On("Delete", mock.Anything, 7).Return(nil).Once()
	store.MessageRepo.On("DeleteBySender", mock.Anything, 7).Return(int64(2), nil).Once()
	store.HistoryRepo.On("ClearEditor", mock.Anything, 7).Return(int64(1), nil).Once()
	store.NotificationRepo.On("DeleteForUser", mock.Anything, 7).Return(int64(3), nil).Once()
	auditor.On("Emit", mock.Anything, "INFO", "user account deleted", mock.Anything, mock.Anything).Once()

	require.NoError(t, newUserService(store, nil, auditor).Delete(context.Background(), 7))
	assert.Equal(t, 1, store.TxCalls)
	store.AssertExpectations(t)
	auditor.AssertExpectations(t)
}

func TestDeleteUserAbortsWhenCleanupFails(t *testing.T) {
	store := mocks.NewStoreMock()
	auditor := new(mocks.AuditorMock)

	store.UserRepo.On("Get", mock.Anything, 7).Return(models.User{ID: 7, Username: "gone"}, nil).Once()
	store.UserRepo.On("Delete", mock.Anything, 7).Return(nil).Once()
	store.MessageRepo.On("DeleteBySender", mock.Anything, 7).Return(int64(0), assert.AnError).Once()

	err := newUserService(store, nil, auditor).Delete(context.Background(), 7)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInternal))
	assert.ErrorIs(t, err, assert.AnError)
	auditor.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteUserSurfacesCommitFailure(t *testing.T) {
	store := mocks.NewStoreMock()
	store.TxErr = assert.AnError

	store.UserRepo.On("Get", mock.Anything, 7).Return(models.User{ID: 7, Username: "gone"}, nil).Once()
	store.UserRepo.On("Delete", mock.Anything, 7).Return(nil).Once()
	store.MessageRepo.On("DeleteBySender", mock.Anything, 7).Return(int64(0), nil).Once()
	store.HistoryRepo.On("ClearEditor", mock.Anything, 7).Return(int64(0), nil).Once()
	store.NotificationRepo.On("DeleteForUser", mock.Anything, 7).Return(int64(0), nil).Once()

	err := newUserService(store, nil, nil).Delete(context.Background(), 7)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInternal))
}

func TestDeleteUnknownUser(t *testing.T) {
	store := mocks.NewStoreMock()
	store.UserRepo.On("Get", mock.Anything, 7).Return(nil, repositories.ErrUserNotFound).Once()

	err := newUserService(store, nil, nil).Delete(context.Background(), 7)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
	assert.Zero(t, store.TxCalls)
}
