package repositories

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"messaging-service/internal/models"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUsernameTaken   = errors.New("username already taken")
	uniqueViolationSQL = pq.ErrorCode("23505")
)

// UserRepository abstracts user persistence.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	Get(ctx context.Context, userID int) (models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	Delete(ctx context.Context, userID int) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	q sqlx.ExtContext
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(q sqlx.ExtContext) *UserRepo {
	return &UserRepo{q: q}
}

// Create inserts the user and fills in its id and creation time.
func (r *UserRepo) Create(ctx context.Context, user *models.User) error {
	err := r.q.QueryRowxContext(ctx, `INSERT INTO users (username, email, password_hash) VALUES ($1, $2, $3) RETURNING id, created_at`,
		user.Username, user.Email, user.PasswordHash).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationSQL {
			return ErrUsernameTaken
		}
		return errors.Wrap(err, "userRepo.Create")
	}
	return nil
}

// Get fetches a user by id.
func (r *UserRepo) Get(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, r.q, &user, `SELECT id, username, email, password_hash, created_at FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, errors.Wrap(err, "userRepo.Get")
	}
	return user, nil
}

// GetByUsername fetches a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, r.q, &user, `SELECT id, username, email, password_hash, created_at FROM users WHERE username=$1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, errors.Wrap(err, "userRepo.GetByUsername")
	}
	return user, nil
}

// Delete removes the user row. Received messages lose their receiver through
// ON DELETE SET NULL; everything else is left to the caller's transaction.
func (r *UserRepo) Delete(ctx context.Context, userID int) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, userID)
	if err != nil {
		return errors.Wrap(err, "userRepo.Delete")
	}
	count, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "userRepo.Delete.RowsAffected")
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}
