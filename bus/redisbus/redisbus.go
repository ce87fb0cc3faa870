// Package redisbus implements the event bus on Redis Streams with a
// consumer group, giving at-least-once fan-in across multiple engine
// instances.
package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coreledger/dispatch/bus"
	"github.com/coreledger/dispatch/event"
)

const (
	defaultStream = "dispatch:events"
	defaultGroup  = "dispatch-workers"

	// Pending messages idle longer than this are reclaimed from dead
	// consumers on the next Consume.
	claimMinIdle = 30 * time.Second

	blockInterval = time.Second
)

// Option configures a Bus.
type Option func(*Bus)

// WithStream overrides the stream key.
func WithStream(stream string) Option {
	return func(b *Bus) { b.stream = stream }
}

// WithGroup overrides the consumer group name.
func WithGroup(group string) Option {
	return func(b *Bus) { b.group = group }
}

// WithConsumerName sets this instance's consumer name within the group.
// Defaults to the hostname.
func WithConsumerName(name string) Option {
	return func(b *Bus) { b.consumer = name }
}

// Bus is a Redis Streams event bus.
type Bus struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
}

// New creates a Redis Streams bus and ensures the consumer group exists.
func New(ctx context.Context, client *redis.Client, opts ...Option) (*Bus, error) {
	b := &Bus{
		client: client,
		stream: defaultStream,
		group:  defaultGroup,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.consumer == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "dispatch"
		}
		b.consumer = host
	}

	// BUSYGROUP means the group already exists, which is fine.
	if err := client.XGroupCreateMkStream(ctx, b.stream, b.group, "0").Err(); err != nil && !isBusyGroup(err) {
		return nil, fmt.Errorf("creating consumer group: %w", err)
	}

	return b, nil
}

// Publish appends an event to the stream.
func (b *Bus) Publish(ctx context.Context, ev *event.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	err = b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		Values: map[string]interface{}{
			"event_id":   ev.ID.String(),
			"event_type": ev.Type,
			"event":      string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("adding to stream: %w", err)
	}
	return nil
}

// Consume returns up to max pending messages. Messages abandoned by dead
// consumers are reclaimed before new ones are read.
func (b *Bus) Consume(ctx context.Context, max int) ([]bus.Message, error) {
	if max <= 0 {
		max = 1
	}

	claimed, _, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   b.stream,
		Group:    b.group,
		Consumer: b.consumer,
		MinIdle:  claimMinIdle,
		Start:    "0",
		Count:    int64(max),
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("claiming stale messages: %w", err)
	}
	if len(claimed) > 0 {
		return b.decode(claimed)
	}

	streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    b.group,
		Consumer: b.consumer,
		Streams:  []string{b.stream, ">"},
		Count:    int64(max),
		Block:    blockInterval,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading from stream: %w", err)
	}
	if len(streams) == 0 {
		return nil, nil
	}

	return b.decode(streams[0].Messages)
}

// Ack acknowledges a message in the consumer group.
func (b *Bus) Ack(ctx context.Context, msg bus.Message) error {
	if err := b.client.XAck(ctx, b.stream, b.group, msg.ID).Err(); err != nil {
		return fmt.Errorf("acknowledging message: %w", err)
	}
	return nil
}

// Close is a no-op: the Redis client is owned by the caller.
func (b *Bus) Close() error { return nil }

func (b *Bus) decode(msgs []redis.XMessage) ([]bus.Message, error) {
	out := make([]bus.Message, 0, len(msgs))
	for _, msg := range msgs {
		raw, ok := msg.Values["event"].(string)
		if !ok {
			// Malformed entry; ack it so it doesn't wedge the group.
			_ = b.client.XAck(context.Background(), b.stream, b.group, msg.ID).Err()
			continue
		}
		var ev event.Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			_ = b.client.XAck(context.Background(), b.stream, b.group, msg.ID).Err()
			continue
		}
		out = append(out, bus.Message{ID: msg.ID, Event: &ev})
	}
	return out, nil
}

func isBusyGroup(err error) bool {
	return err != nil && len(err.Error()) >= 9 && err.Error()[:9] == "BUSYGROUP"
}
