package log

import (
	"context"

	"go.uber.org/zap"
)

type requestIDKey struct{}

// WithRequestID returns a context annotated with a request id. A request id
// tracks the lifecycle of a single peer message across goroutines.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// ExtractRequestID extracts the request id from a context object.
func ExtractRequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok
}

// ZContext returns a zap field with the request id stored in the context,
// if any.
func ZContext(ctx context.Context) zap.Field {
	if id, ok := ExtractRequestID(ctx); ok {
		return zap.String("requestId", id)
	}
	return zap.Skip()
}

type shortStringer interface {
	ShortString() string
}

// ZShortStringer logs only a short prefix of long identifiers (hashes,
// addresses) to keep console output readable.
func ZShortStringer(key string, val shortStringer) zap.Field {
	return zap.String(key, val.ShortString())
}
