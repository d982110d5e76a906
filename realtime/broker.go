package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/pielancer314/PizzaForPi/logger"
)

// Envelope is what travels between instances.
type Envelope struct {
	Topic string          `json:"topic"`
	Event string          `json:"event"`
	Frame json.RawMessage `json:"frame"`
}

// Broker fans events out across instances.
type Broker interface {
	Publish(ctx context.Context, env Envelope) error
	Run(ctx context.Context, deliver func(Envelope)) error
}

type RedisBroker struct {
	client  *redis.Client
	channel string
	log     logger.ILogger
}

var _ Broker = (*RedisBroker)(nil)

func NewRedisBroker(client *redis.Client, channel string, log logger.ILogger) *RedisBroker {
	return &RedisBroker{
		client:  client,
		channel: channel,
		log:     log.With(logger.String("component", "redis-broker")),
	}
}

func (b *RedisBroker) Publish(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

func (b *RedisBroker) Run(ctx context.Context, deliver func(Envelope)) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.log.Info("listening for events", logger.String("channel", b.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.Warning("malformed broker message", logger.Error(err))
				continue
			}
			deliver(env)
		}
	}
}
