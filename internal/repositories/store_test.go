package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/db/dbtest"
	"messaging-service/internal/models"
)

func createUser(t *testing.T, store Store, username string) models.User {
	t.Helper()
	user := models.User{Username: username, PasswordHash: "x"}
	require.NoError(t, store.Users().Create(context.Background(), &user))
	return user
}

func createMessage(t *testing.T, store Store, from, to int, content string) models.Message {
	t.Helper()
	msg := models.Message{SenderID: from, ReceiverID: &to, Content: content}
	require.NoError(t, store.Messages().Create(context.Background(), &msg))
	return msg
}

func TestSQLStore(t *testing.T) {
	database := dbtest.NewPostgres(t)
	store := NewSQLStore(database)
	ctx := context.Background()

	t.Run("duplicate username", func(t *testing.T) {
		dbtest.Truncate(t, database)
		createUser(t, store, "alice")
		err := store.Users().Create(ctx, &models.User{Username: "alice"})
		assert.ErrorIs(t, err, ErrUsernameTaken)
	})

	t.Run("unread queries", func(t *testing.T) {
		dbtest.Truncate(t, database)
		alice := createUser(t, store, "alice")
		bob := createUser(t, store, "bob")
		first := createMessage(t, store, alice.ID, bob.ID, "one")
		second := createMessage(t, store, alice.ID, bob.ID, "two")
		createMessage(t, store, bob.ID, alice.ID, "back")

		unread, err := store.Messages().UnreadFor(ctx, bob.ID)
		require.NoError(t, err)
		require.Len(t, unread, 2)
		assert.Equal(t, second.ID, unread[0].ID)
		assert.Equal(t, first.ID, unread[1].ID)
		assert.Equal(t, "alice", unread[0].SenderUsername)

		updated, err := store.Messages().MarkAllReadFor(ctx, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), updated)

		count, err := store.Messages().UnreadCountFor(ctx, bob.ID)
		require.NoError(t, err)
		assert.Zero(t, count)

		count, err = store.Messages().UnreadCountFor(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("deleting a user without cleanup fails at commit", func(t *testing.T) {
		dbtest.Truncate(t, database)
		alice := createUser(t, store, "alice")
		bob := createUser(t, store, "bob")
		createMessage(t, store, alice.ID, bob.ID, "hello")

		err := store.WithTx(ctx, func(tx Store) error {
			return tx.Users().Delete(ctx, alice.ID)
		})
		require.Error(t, err)

		_, err = store.Users().Get(ctx, alice.ID)
		assert.NoError(t, err)
	})

	t.Run("receiver deletion nulls the receiver", func(t *testing.T) {
		dbtest.Truncate(t, database)
		alice := createUser(t, store, "alice")
		bob := createUser(t, store, "bob")
		msg := createMessage(t, store, alice.ID, bob.ID, "hello")

		err := store.WithTx(ctx, func(tx Store) error {
			if err := tx.Users().Delete(ctx, bob.ID); err != nil {
				return err
			}
			_, err := tx.Notifications().DeleteForUser(ctx, bob.ID)
			return err
		})
		require.NoError(t, err)

		got, err := store.Messages().Get(ctx, msg.ID)
		require.NoError(t, err)
		assert.Nil(t, got.ReceiverID)
	})

	t.Run("notifications", func(t *testing.T) {
		dbtest.Truncate(t, database)
		alice := createUser(t, store, "alice")
		bob := createUser(t, store, "bob")
		msg := createMessage(t, store, alice.ID, bob.ID, "hello")

		sender, messageID := alice.ID, msg.ID
		n := models.Notification{RecipientID: bob.ID, SenderID: &sender, MessageID: &messageID, Type: models.NotificationMessage, Title: "New message from alice", Body: "hello"}
		require.NoError(t, store.Notifications().Create(ctx, &n))

		count, err := store.Notifications().UnreadCount(ctx, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		closed, err := store.Notifications().MarkReadForMessage(ctx, msg.ID, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), closed)

		closed, err = store.Notifications().MarkReadForMessage(ctx, msg.ID, bob.ID)
		require.NoError(t, err)
		assert.Zero(t, closed)

		assert.ErrorIs(t, store.Notifications().MarkRead(ctx, n.ID, alice.ID), ErrNotificationNotFound)

		purged, err := store.Notifications().DeleteReadBefore(ctx, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), purged)
	})

	t.Run("message deletion cascades history", func(t *testing.T) {
		dbtest.Truncate(t, database)
		alice := createUser(t, store, "alice")
		bob := createUser(t, store, "bob")
		msg := createMessage(t, store, alice.ID, bob.ID, "hello")

		editor := alice.ID
		require.NoError(t, store.History().Create(ctx, &models.MessageHistory{MessageID: msg.ID, Content: "hello", EditedBy: &editor}))
		require.NoError(t, store.Messages().Delete(ctx, msg.ID))

		count, err := store.History().CountForMessage(ctx, msg.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
		assert.ErrorIs(t, store.Messages().Delete(ctx, msg.ID), ErrMessageNotFound)
	})
}
