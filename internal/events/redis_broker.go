package events

import (
	"context"
	"encoding/json"
	"fmt"

	"rental_app_backend/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// RedisBroker publishes over a Redis channel so that every server instance
// sees every change, then fans out locally through a MemoryBroker.
type RedisBroker struct {
	client  *redis.Client
	channel string
	local   *MemoryBroker
}

// NewRedisBroker creates a broker on channel. Call Run to start relaying.
func NewRedisBroker(client *redis.Client, channel string) *RedisBroker {
	return &RedisBroker{client: client, channel: channel, local: NewMemoryBroker()}
}

// Publish sends ev to all instances.
func (b *RedisBroker) Publish(ctx context.Context, ev ApplicationChanged) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe registers a local subscriber.
func (b *RedisBroker) Subscribe(ctx context.Context, applicationID string) (<-chan ApplicationChanged, func(), error) {
	return b.local.Subscribe(ctx, applicationID)
}

// Run relays channel messages to local subscribers until ctx is done.
// ready is closed once the Redis subscription is confirmed.
func (b *RedisBroker) Run(ctx context.Context, ready chan<- struct{}) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", b.channel, err)
	}
	if ready != nil {
		close(ready)
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
			var ev ApplicationChanged
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				utils.LogWarn(err, "Dropping malformed application event", map[string]interface{}{"channel": b.channel})
				continue
			}
			b.local.deliver(ev)
		}
	}
}
