package ws

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const relayChannelPrefix = "notifications:"

// RedisRelay fans notifications out through Redis pub/sub so a user connected
// to any instance receives them.
type RedisRelay struct {
	rdb    *redis.Client
	hub    *Hub
	logger *zap.Logger
}

func NewRedisRelay(rdb *redis.Client, hub *Hub, logger *zap.Logger) *RedisRelay {
	return &RedisRelay{rdb: rdb, hub: hub, logger: logger.Named("relay")}
}

// Publish implements Fanout.
func (r *RedisRelay) Publish(ctx context.Context, userID int, payload []byte) error {
	return r.rdb.Publish(ctx, relayChannelPrefix+strconv.Itoa(userID), payload).Err()
}

// Run delivers relayed payloads to local sockets until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) {
	pubsub := r.rdb.PSubscribe(ctx, relayChannelPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			userID, err := userFromChannel(msg.Channel)
			if err != nil {
				r.logger.Warn("ignoring relay message", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			r.hub.SendToUser(userID, []byte(msg.Payload))
		}
	}
}

func userFromChannel(channel string) (int, error) {
	raw, ok := strings.CutPrefix(channel, relayChannelPrefix)
	if !ok {
		return 0, fmt.Errorf("unexpected channel %q", channel)
	}
	userID, err := strconv.Atoi(raw)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("invalid user in channel %q", channel)
	}
	return userID, nil
}
