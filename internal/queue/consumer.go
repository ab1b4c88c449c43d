package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"reviewstats.app/listener/common/logger"
	"reviewstats.app/listener/internal/domain"
)

var (
	// ErrMalformedEvent wraps payloads that cannot be decoded into an event.
	ErrMalformedEvent = errors.New("malformed event payload")
	// ErrAckFailed means a message was read but could not be acknowledged. It
	// stays pending and is never re-read, so the returned Delivery is its
	// only trace.
	ErrAckFailed = errors.New("acknowledging message")
)

type ConsumerConfig struct {
	Stream   string        // Redis stream name
	Group    string        // Redis consumer group name
	Consumer string        // Redis consumer name
	Block    time.Duration // How long one XREADGROUP call blocks
}

type Message struct {
	ID        string
	EventType string
	TraceID   string
	Payload   []byte
}

// Delivery is one event taken off the stream, with the message it came from.
type Delivery struct {
	Message Message
	Event   domain.Event
}

type RedisConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
}

func NewRedisConsumer(ctx context.Context, client *redis.Client, cfg ConsumerConfig) (*RedisConsumer, error) {
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	consumer := &RedisConsumer{
		client: client,
		cfg:    cfg,
	}

	if err := consumer.ensureGroup(ctx); err != nil {
		return nil, err
	}

	return consumer, nil
}

func (c *RedisConsumer) ensureGroup(ctx context.Context) error {
	// "$" rather than "0": a fresh group starts at the live tail, events
	// already in the stream before the listener existed are not replayed.
	if err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "$").Err(); err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}

// Next blocks until one event is available. Messages are acknowledged as soon
// as they are read, so an event is delivered at most once even if handling it
// later fails or the process dies mid-way.
//
// A vanished stream or consumer group is reported as a domain.ErrorEvent.
func (c *RedisConsumer) Next(ctx context.Context) (Delivery, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "reviewstats.queue.consumer",
	})

	for {
		if err := ctx.Err(); err != nil {
			return Delivery{}, err
		}

		msg, err := c.read(ctx)
		if err != nil {
			if strings.HasPrefix(err.Error(), "NOGROUP") {
				slog.ErrorContext(ctx, "consumer group is gone", "error", err, "stream", c.cfg.Stream)
				return Delivery{Event: domain.ErrorEvent{Reason: err.Error()}}, nil
			}
			return Delivery{}, fmt.Errorf("reading from stream: %w", err)
		}
		if msg == nil {
			continue
		}

		if err := c.ack(ctx, msg.ID); err != nil {
			return Delivery{Message: *msg}, fmt.Errorf("%w %s: %w", ErrAckFailed, msg.ID, err)
		}

		ev, err := domain.ParseEvent(msg.Payload)
		if err != nil {
			return Delivery{Message: *msg}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
		}
		return Delivery{Message: *msg, Event: ev}, nil
	}
}

func (c *RedisConsumer) read(ctx context.Context) (*Message, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		// ">" = only messages never delivered to this group. Pending entries
		// are deliberately not re-read: no replay.
		Streams: []string{c.cfg.Stream, ">"},
		Count:   1,
		Block:   c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	for _, stream := range streams {
		for _, raw := range stream.Messages {
			msg := toMessage(raw)
			slog.DebugContext(ctx, "read message from stream",
				"message_id", msg.ID,
				"event_type", msg.EventType)
			return &msg, nil
		}
	}
	return nil, nil
}

func (c *RedisConsumer) ack(ctx context.Context, id string) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, id).Err(); err != nil {
		return fmt.Errorf("xack (stream=%s): %w", c.cfg.Stream, err)
	}
	return nil
}

func toMessage(raw redis.XMessage) Message {
	return Message{
		ID:        raw.ID,
		EventType: stringValue(raw.Values, "event_type"),
		TraceID:   stringValue(raw.Values, "trace_id"),
		Payload:   []byte(stringValue(raw.Values, "payload")),
	}
}

func stringValue(values map[string]any, key string) string {
	raw, ok := values[key]
	if !ok {
		return ""
	}
	return fmt.Sprint(raw)
}
