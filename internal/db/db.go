package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Connect opens the database and applies migrations.
func Connect(dsn string, logger *zap.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations applied")

	return db, nil
}

// Migrate creates the schema. References the consistency engine cleans up on
// user deletion are DEFERRABLE INITIALLY DEFERRED so a deletion transaction
// that skipped the cleanup fails at commit.
func Migrate(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id SERIAL PRIMARY KEY,
            username VARCHAR(150) NOT NULL UNIQUE,
            email VARCHAR(254) NOT NULL DEFAULT '',
            password_hash TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id SERIAL PRIMARY KEY,
            sender_id INT NOT NULL REFERENCES users(id) DEFERRABLE INITIALLY DEFERRED,
            receiver_id INT REFERENCES users(id) ON DELETE SET NULL,
            content VARCHAR(5000) NOT NULL,
            edited BOOLEAN NOT NULL DEFAULT FALSE,
            is_read BOOLEAN NOT NULL DEFAULT FALSE,
            parent_message_id INT REFERENCES messages(id) ON DELETE CASCADE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            CHECK (receiver_id IS NULL OR receiver_id <> sender_id)
        );`,
		`CREATE INDEX IF NOT EXISTS messages_is_read_idx ON messages (is_read);`,
		`CREATE INDEX IF NOT EXISTS messages_created_at_idx ON messages (created_at);`,
		`CREATE INDEX IF NOT EXISTS messages_receiver_read_idx ON messages (receiver_id, is_read);`,
		`CREATE INDEX IF NOT EXISTS messages_sender_created_idx ON messages (sender_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS message_history (
            id SERIAL PRIMARY KEY,
            message_id INT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            content TEXT NOT NULL,
            edited_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            edited_by INT REFERENCES users(id) DEFERRABLE INITIALLY DEFERRED
        );`,
		`CREATE INDEX IF NOT EXISTS message_history_message_idx ON message_history (message_id);`,
		`CREATE TABLE IF NOT EXISTS notifications (
            id UUID PRIMARY KEY,
            recipient_id INT NOT NULL REFERENCES users(id) DEFERRABLE INITIALLY DEFERRED,
            sender_id INT REFERENCES users(id) DEFERRABLE INITIALLY DEFERRED,
            message_id INT REFERENCES messages(id) ON DELETE CASCADE,
            is_read BOOLEAN NOT NULL DEFAULT FALSE,
            notification_type VARCHAR(20) NOT NULL
                CHECK (notification_type IN ('message', 'friend_request', 'system', 'reply')),
            title VARCHAR(255) NOT NULL,
            body TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS notifications_is_read_idx ON notifications (is_read);`,
		`CREATE INDEX IF NOT EXISTS notifications_created_at_idx ON notifications (created_at);`,
		`CREATE INDEX IF NOT EXISTS notifications_recipient_read_idx ON notifications (recipient_id, is_read);`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}
