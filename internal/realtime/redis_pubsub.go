package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "portal:"

// subscribeTimeout bounds the wait for Redis to confirm a subscription.
const subscribeTimeout = 5 * time.Second

// relayEnvelope is the message published to Redis for cross-process broadcast.
type relayEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	At    int64           `json:"at"`
}

// RedisPubSub implements RelayPublisher and RelaySubscriber using Redis pub/sub.
// The worker uses it publish-only to reach viewers connected to the server.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for topic events.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{client: client, logger: logger}
}

func encodeEnvelope(event string, payload []byte, at time.Time) ([]byte, error) {
	return json.Marshal(relayEnvelope{Event: event, Data: payload, At: at.Unix()})
}

func decodeEnvelope(raw string) (relayEnvelope, error) {
	var env relayEnvelope
	err := json.Unmarshal([]byte(raw), &env)
	return env, err
}

// PublishTopicEvent publishes an event to the topic's Redis channel.
func (r *RedisPubSub) PublishTopicEvent(ctx context.Context, topic, event string, payload []byte) error {
	body, err := encodeEnvelope(event, payload, time.Now())
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, channelPrefix+topic, body).Err()
}

// SubscribeTopic subscribes to a topic's Redis channel and calls handler for each message.
// Returns a cancel function to stop the subscription.
func (r *RedisPubSub) SubscribeTopic(topic string, handler func(event string, payload []byte)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, channelPrefix+topic)
	ackCtx, ackCancel := context.WithTimeout(ctx, subscribeTimeout)
	_, err = pubsub.Receive(ackCtx)
	ackCancel()
	if err != nil {
		cancelCtx()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				env, err := decodeEnvelope(msg.Payload)
				if err != nil {
					r.logger.Warn("relay message dropped", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				handler(env.Event, env.Data)
			}
		}
	}()
	return cancelCtx, nil
}
