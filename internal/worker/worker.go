package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"reviewstats.app/listener/common/logger"
	"reviewstats.app/listener/internal/enricher"
	"reviewstats.app/listener/internal/filestats"
	"reviewstats.app/listener/internal/queue"
)

// ErrTerminated is returned by Run when the stream delivered an error-event.
var ErrTerminated = errors.New("event stream terminated")

const maxLoggedPayload = 4096

type Config struct {
	// ReadBackoff is the pause after a failed stream read.
	ReadBackoff time.Duration
}

// Worker consumes events strictly one at a time, in arrival order.
type Worker struct {
	source   EventSource
	enricher Enricher
	sink     Sink
	metrics  *Metrics
	cfg      Config

	seq atomic.Uint64
}

func New(source EventSource, enricher Enricher, sink Sink, metrics *Metrics, cfg Config) *Worker {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if cfg.ReadBackoff <= 0 {
		cfg.ReadBackoff = time.Second
	}
	return &Worker{
		source:   source,
		enricher: enricher,
		sink:     sink,
		metrics:  metrics,
		cfg:      cfg,
	}
}

// Run loops until ctx is cancelled or an error-event arrives. A failing event
// is logged and dropped; it never stops the loop.
func (w *Worker) Run(ctx context.Context) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "reviewstats.worker"})
	slog.InfoContext(ctx, "worker started")

	for {
		delivery, err := w.source.Next(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				slog.InfoContext(ctx, "worker stopping")
				return ctxErr
			}
			if errors.Is(err, queue.ErrMalformedEvent) {
				seq := w.seq.Add(1)
				w.metrics.lastSeq.Set(float64(seq))
				w.metrics.observe(delivery.Message.EventType, outcomeMalformed)
				slog.ErrorContext(ctx, "dropping malformed event",
					"error", err,
					"event_seq", seq,
					"message_id", delivery.Message.ID,
					"payload", logger.Truncate(string(delivery.Message.Payload), maxLoggedPayload))
				continue
			}

			if errors.Is(err, queue.ErrAckFailed) {
				seq := w.seq.Add(1)
				w.metrics.lastSeq.Set(float64(seq))
				w.metrics.observe(delivery.Message.EventType, outcomeLost)
				slog.ErrorContext(ctx, "event lost, message could not be acknowledged",
					"error", err,
					"event_seq", seq,
					"message_id", delivery.Message.ID,
					"payload", logger.Truncate(string(delivery.Message.Payload), maxLoggedPayload))
			} else {
				slog.ErrorContext(ctx, "stream read error", "error", err)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.cfg.ReadBackoff):
			}
			continue
		}

		if err := w.handle(ctx, delivery); errors.Is(err, enricher.ErrTerminalEvent) {
			slog.WarnContext(ctx, "error-event received, stopping worker", "reason", err)
			return ErrTerminated
		}
	}
}

// Seq returns how many events have been taken off the stream.
func (w *Worker) Seq() uint64 {
	return w.seq.Load()
}

func (w *Worker) handle(ctx context.Context, d queue.Delivery) error {
	seq := w.seq.Add(1)
	w.metrics.lastSeq.Set(float64(seq))
	eventType := string(d.Event.Kind())

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID: logger.Ptr(d.Message.ID),
		EventType: logger.Ptr(eventType),
		EventSeq:  logger.Ptr(seq),
	})

	span := logger.StartEventSpan(ctx, d.Message.TraceID, "worker.handle_event")
	defer span.End()
	ctx = span.Context()

	start := time.Now()
	err := w.process(ctx, d)
	w.metrics.duration.Observe(time.Since(start).Seconds())
	span.Fail(err)

	switch {
	case err == nil:
		w.metrics.observe(eventType, outcomeIndexed)
	case errors.Is(err, enricher.ErrTerminalEvent):
		w.metrics.observe(eventType, outcomeTerminal)
	case errors.Is(err, filestats.ErrUnknownCategory):
		w.metrics.observe(eventType, outcomeContractViolation)
		slog.ErrorContext(ctx, "review server reported an unknown file change category, event dropped",
			"error", err,
			"payload", logger.Truncate(string(d.Message.Payload), maxLoggedPayload))
	default:
		w.metrics.observe(eventType, outcomeFailed)
		slog.ErrorContext(ctx, "event processing failed, event dropped",
			"error", err,
			"payload", logger.Truncate(string(d.Message.Payload), maxLoggedPayload))
	}
	return err
}

// process runs enrichment and indexing for one event, turning a panic into an
// error so one bad event cannot take the loop down.
func (w *Worker) process(ctx context.Context, d queue.Delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in event processing", "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	slog.InfoContext(ctx, "processing event")

	rec, err := w.enricher.Enrich(ctx, d.Event)
	if err != nil {
		return err
	}

	if _, err := w.sink.Submit(ctx, rec); err != nil {
		return err
	}
	return nil
}
