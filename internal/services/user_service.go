package services

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/consistency"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	GenerateToken(userID int, username string) (string, error)
}

// Auditor records security relevant actions.
type Auditor interface {
	Emit(ctx context.Context, level, text, requestID string, userID *string)
}

type UserService struct {
	store   repositories.Store
	engine  *consistency.Engine
	tokens  TokenIssuer
	auditor Auditor
	logger  *zap.Logger
}

// NewUserService builds a UserService. auditor may be nil.
func NewUserService(store repositories.Store, engine *consistency.Engine, tokens TokenIssuer, auditor Auditor, logger *zap.Logger) *UserService {
	return &UserService{
		store:   store,
		engine:  engine,
		tokens:  tokens,
		auditor: auditor,
		logger:  logger.Named("users"),
	}
}

// Register creates an account with a bcrypt password hash.
func (s *UserService) Register(ctx context.Context, in models.RegisterInput) (models.User, error) {
	if err := validate.Struct(in); err != nil {
		return models.User{}, validationError(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, apperrors.Internal("failed to hash password", err)
	}

	user := models.User{Username: in.Username, Email: in.Email, PasswordHash: string(hash)}
	if err := s.store.Users().Create(ctx, &user); err != nil {
		if errors.Is(err, repositories.ErrUsernameTaken) {
			return models.User{}, apperrors.AlreadyExists("username already taken")
		}
		return models.User{}, apperrors.Internal("failed to create user", err)
	}

	s.logger.Info("user registered", zap.Int("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

// Login checks credentials and returns a signed token.
func (s *UserService) Login(ctx context.Context, username, password string) (string, models.User, error) {
	user, err := s.store.Users().GetByUsername(ctx, username)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return "", models.User{}, apperrors.Unauthorized("invalid credentials")
	}
	if err != nil {
		return "", models.User{}, apperrors.Internal("failed to load user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", models.User{}, apperrors.Unauthorized("invalid credentials")
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Username)
	if err != nil {
		return "", models.User{}, apperrors.Internal("failed to issue token", err)
	}
	return token, user, nil
}

func (s *UserService) Get(ctx context.Context, userID int) (models.User, error) {
	if err := requireUserID(userID); err != nil {
		return models.User{}, err
	}
	user, err := s.store.Users().Get(ctx, userID)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return models.User{}, apperrors.NotFound("user not found")
	}
	if err != nil {
		return models.User{}, apperrors.Internal("failed to load user", err)
	}
	return user, nil
}

// Delete removes the account and everything that references it in one
// transaction. If the cleanup fails the account is kept.
func (s *UserService) Delete(ctx context.Context, userID int) error {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}

	err = s.store.WithTx(ctx, func(tx repositories.Store) error {
		if err := tx.Users().Delete(ctx, user.ID); err != nil {
			return err
		}
		return s.engine.AfterUserDelete(ctx, tx, user)
	})
	if errors.Is(err, repositories.ErrUserNotFound) {
		return apperrors.NotFound("user not found")
	}
	if err != nil {
		s.logger.Error("user deletion rolled back", zap.Int("user_id", user.ID), zap.Error(err))
		return apperrors.Internal("failed to delete user", err)
	}

	if s.auditor != nil {
		id := strconv.Itoa(user.ID)
		s.auditor.Emit(ctx, "INFO", "user account deleted", observability.RequestIDFromContext(ctx), &id)
	}
	publish(ctx, s.logger, routingUserDeleted, "user_events", "user_deleted", map[string]interface{}{
		"user_id":  user.ID,
		"username": user.Username,
	})
	return nil
}
