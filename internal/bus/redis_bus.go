package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JunyongPark97/SIIOT-chat-server/internal/config"
	"github.com/JunyongPark97/SIIOT-chat-server/pkg/log"
)

// RedisBus implements Bus over a single Redis pub/sub channel. One channel
// for all rooms keeps per-room publish order intact: Redis delivers
// messages on a channel in publish order, and the hub's run loop preserves
// it downstream.
type RedisBus struct {
	client  *redis.Client
	channel string
}

// NewRedisBus creates a Redis-backed broadcast bus.
func NewRedisBus(cfg config.RedisConfig) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisBus{
		client:  client,
		channel: cfg.EventChannel,
	}, nil
}

// Publish sends an event to the shared channel.
func (b *RedisBus) Publish(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

// Subscribe starts a receive loop that decodes events into the returned
// channel. Reconnects on receive errors until ctx is done.
func (b *RedisBus) Subscribe(ctx context.Context) (<-chan *Event, error) {
	eventCh := make(chan *Event, 256)

	go func() {
		defer close(eventCh)
		for {
			if err := b.runSubscription(ctx, eventCh); err != nil && ctx.Err() == nil {
				l := log.L()
				l.Warn().Err(err).Msg("bus subscription error, reconnecting in 2s")
				select {
				case <-ctx.Done():
					return
				case <-time.After(2 * time.Second):
					continue
				}
			}
			return
		}
	}()

	return eventCh, nil
}

func (b *RedisBus) runSubscription(ctx context.Context, eventCh chan<- *Event) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	// Wait for the subscription to be active.
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				l := log.L()
				l.Warn().Err(err).Msg("bus: invalid event payload")
				continue
			}

			select {
			case eventCh <- &event:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// Close closes the Redis client.
func (b *RedisBus) Close() error {
	return b.client.Close()
}
