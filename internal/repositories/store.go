package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// Store groups the repositories so multi-row writes can share a transaction.
type Store interface {
	Users() UserRepository
	Messages() MessageRepository
	History() HistoryRepository
	Notifications() NotificationRepository
	// WithTx runs fn inside one transaction. Nested calls reuse the outer one.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

// SQLStore is the sqlx implementation of Store.
type SQLStore struct {
	db   *sqlx.DB
	q    sqlx.ExtContext
	inTx bool
}

// NewSQLStore constructs a SQLStore.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, q: db}
}

func (s *SQLStore) Users() UserRepository { return NewUserRepo(s.q) }

func (s *SQLStore) Messages() MessageRepository { return NewMessageRepo(s.q) }

func (s *SQLStore) History() HistoryRepository { return NewHistoryRepo(s.q) }

func (s *SQLStore) Notifications() NotificationRepository { return NewNotificationRepo(s.q) }

// WithTx commits when fn returns nil and rolls back otherwise.
func (s *SQLStore) WithTx(ctx context.Context, fn func(tx Store) error) (err error) {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "store.WithTx.Begin")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&SQLStore{db: s.db, q: tx, inTx: true}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "store.WithTx.Commit")
	}
	return nil
}
