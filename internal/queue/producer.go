package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

type EventMessage struct {
	EventType string
	Payload   []byte
	TraceID   *string
}

type Producer interface {
	Enqueue(ctx context.Context, msg EventMessage) (string, error)
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

// Enqueue appends one raw event to the stream and returns its message id.
func (p *redisProducer) Enqueue(ctx context.Context, msg EventMessage) (string, error) {
	fields := map[string]any{
		"event_type": msg.EventType,
		"payload":    string(msg.Payload),
	}

	if msg.TraceID != nil && *msg.TraceID != "" {
		fields["trace_id"] = *msg.TraceID
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: fields,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("enqueue event: %w", err)
	}

	p.logger.InfoContext(ctx, "enqueued gerrit event", "message_id", id, "event_type", msg.EventType)
	return id, nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
