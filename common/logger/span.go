package logger

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "reviewstats-worker"

// EventSpan is the span covering the handling of one stream event.
type EventSpan struct {
	ctx  context.Context
	span trace.Span
}

// StartEventSpan starts a consumer span for one event. traceID is the id the
// webhook server stamped on the message; a valid one is kept as a link.
//
//	sp := logger.StartEventSpan(ctx, msg.TraceID, "worker.handle_event")
//	defer sp.End()
//	ctx = sp.Context()
func StartEventSpan(ctx context.Context, traceID string, name string) *EventSpan {
	tracer := otel.Tracer(tracerName)
	opts := []trace.SpanStartOption{trace.WithSpanKind(trace.SpanKindConsumer)}

	if traceID != "" {
		opts = append(opts, trace.WithAttributes(attribute.String("reviewstats.upstream_trace_id", traceID)))
	}
	if parsed, err := trace.TraceIDFromHex(traceID); err == nil {
		opts = append(opts, trace.WithLinks(trace.Link{SpanContext: trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: parsed,
			Remote:  true,
		})}))
	}

	ctx, span := tracer.Start(ctx, name, opts...)
	return &EventSpan{ctx: ctx, span: span}
}

func (s *EventSpan) Context() context.Context {
	return s.ctx
}

// Fail marks the span as errored.
func (s *EventSpan) Fail(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

func (s *EventSpan) End() {
	s.span.End()
}
