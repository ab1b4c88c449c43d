package worker

import (
	"context"

	"reviewstats.app/listener/internal/domain"
	"reviewstats.app/listener/internal/queue"
)

// EventSource abstracts the event stream for testability.
type EventSource interface {
	Next(ctx context.Context) (queue.Delivery, error)
}

// Enricher turns one event into its analytics record.
type Enricher interface {
	Enrich(ctx context.Context, ev domain.Event) (domain.EnrichedRecord, error)
}

// Sink persists a finished record.
type Sink interface {
	Submit(ctx context.Context, rec domain.EnrichedRecord) (domain.Document, error)
}
