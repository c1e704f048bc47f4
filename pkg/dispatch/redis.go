package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Mindburn-Labs/surety/pkg/flight"
)

// DefaultChannel is the pub/sub channel status requests are published on.
const DefaultChannel = "surety:status_requests"

// RedisBroadcaster publishes status requests as JSON on a Redis pub/sub
// channel so oracle fleets outside this process can observe them.
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
}

// NewRedisBroadcaster connects to Redis at addr. An empty channel selects
// DefaultChannel.
func NewRedisBroadcaster(addr, password string, db int, channel string) *RedisBroadcaster {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBroadcaster{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		channel: channel,
	}
}

// Broadcast publishes the request envelope.
func (b *RedisBroadcaster) Broadcast(ctx context.Context, req flight.StatusRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish request: %w", err)
	}
	return nil
}

// Listen subscribes to the channel and forwards decoded requests until ctx
// is cancelled. Malformed payloads are skipped.
func (b *RedisBroadcaster) Listen(ctx context.Context, out chan<- flight.StatusRequest) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var req flight.StatusRequest
			if err := json.Unmarshal([]byte(msg.Payload), &req); err != nil {
				continue
			}
			select {
			case out <- req:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Close releases the underlying client.
func (b *RedisBroadcaster) Close() error {
	return b.client.Close()
}
