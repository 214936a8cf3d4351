package logger

import (
	"context"

	"github.com/oklog/ulid/v2"
)

type contextKey string

const TraceIDKey contextKey = "trace_id"
const SenderIDKey contextKey = "sender_id"

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}

// EnsureTraceID returns ctx carrying a trace id, minting a new one when absent.
func EnsureTraceID(ctx context.Context) (context.Context, string) {
	if id := GetTraceID(ctx); id != "" {
		return ctx, id
	}
	id := ulid.Make().String()
	return WithTraceID(ctx, id), id
}

func GetTraceID(ctx context.Context) string {
	if id, ok := ctx.Value(TraceIDKey).(string); ok {
		return id
	}
	return ""
}

func WithSenderID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SenderIDKey, id)
}

func GetSenderID(ctx context.Context) string {
	if id, ok := ctx.Value(SenderIDKey).(string); ok {
		return id
	}
	return ""
}
