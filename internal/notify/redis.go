package notify

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redisEnvelope wraps a notification for cross-node fanout.
type redisEnvelope struct {
	UserID  uuid.UUID       `json:"user_id"`
	Payload json.RawMessage `json:"payload"`
}

// RedisFanout relays notifications through a Redis channel so gateway
// nodes that hold the user's WebSocket connection can deliver them.
type RedisFanout struct {
	logger  *zap.Logger
	client  *redis.Client
	channel string
}

// NewRedisFanout connects to Redis at addr and publishes on channel.
func NewRedisFanout(logger *zap.Logger, addr, channel string) *RedisFanout {
	return &RedisFanout{
		logger:  logger,
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		channel: channel,
	}
}

// PublishToUser forwards the payload to the Redis channel.
func (f *RedisFanout) PublishToUser(userID uuid.UUID, payload []byte) {
	data, err := json.Marshal(redisEnvelope{UserID: userID, Payload: payload})
	if err != nil {
		f.logger.Error("failed to marshal notification envelope", zap.Error(err))
		return
	}
	if err := f.client.Publish(context.Background(), f.channel, data).Err(); err != nil {
		f.logger.Error("failed to publish notification to redis", zap.Error(err))
	}
}

// Subscribe feeds envelopes from the Redis channel into the local hub.
// Run it on every gateway node holding WebSocket connections.
func (f *RedisFanout) Subscribe(ctx context.Context, hub *Hub) {
	sub := f.client.Subscribe(ctx, f.channel)
	ch := sub.Channel()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env redisEnvelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					f.logger.Error("invalid notification envelope", zap.Error(err))
					continue
				}
				hub.PublishToUser(env.UserID, env.Payload)
			}
		}
	}()
}
