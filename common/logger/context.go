package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
type LogFields struct {
	ChangeID  *int64  // Gerrit change number
	EventType *string // Gerrit event type (e.g., "patchset-created")
	MessageID *string // Redis stream message ID
	EventSeq  *uint64 // Position of the event in this process's stream
	Component string  // Component name (OTel semantic convention style, e.g., "reviewstats.worker")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.ChangeID != nil {
		result.ChangeID = next.ChangeID
	}
	if next.EventType != nil {
		result.EventType = next.EventType
	}
	if next.MessageID != nil {
		result.MessageID = next.MessageID
	}
	if next.EventSeq != nil {
		result.EventSeq = next.EventSeq
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{ChangeID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if truncated.
// Raw event payloads can be large; failures log them truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
