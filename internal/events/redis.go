package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisChannel = "tablebook:reservations"

// RedisBus relays events through Redis pub/sub so every server instance sees
// changes committed by any other. Local fan-out is done by a MemoryBus.
type RedisBus struct {
	client *redis.Client
	pubsub *redis.PubSub
	local  *MemoryBus
	done   chan struct{}
}

func NewRedisBus(url string) (*RedisBus, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	pubsub := client.Subscribe(context.Background(), redisChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", redisChannel, err)
	}

	b := &RedisBus{
		client: client,
		pubsub: pubsub,
		local:  NewMemoryBus(),
		done:   make(chan struct{}),
	}
	go b.relay()

	slog.Info("redis event bus connected", "channel", redisChannel)
	return b, nil
}

func (b *RedisBus) relay() {
	defer close(b.done)
	for msg := range b.pubsub.Channel() {
		var event Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			slog.Warn("discarding malformed event", "component", "events", "error", err)
			continue
		}
		if err := b.local.Publish(context.Background(), &event); err != nil {
			slog.Warn("local event publish failed", "component", "events", "error", err)
		}
	}
}

func (b *RedisBus) Publish(ctx context.Context, event *Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return b.client.Publish(ctx, redisChannel, payload).Err()
}

func (b *RedisBus) Subscribe(buffer int) Subscriber {
	return b.local.Subscribe(buffer)
}

func (b *RedisBus) Unsubscribe(sub Subscriber) {
	b.local.Unsubscribe(sub)
}

func (b *RedisBus) Close() error {
	err := b.pubsub.Close()
	<-b.done
	b.local.Close()
	if cerr := b.client.Close(); err == nil {
		err = cerr
	}
	return err
}
