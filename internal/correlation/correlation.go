// Package correlation threads the per-request correlation identifier through
// call signatures via context.Context. The identifier arrives on the
// X-Correlation-Id header, is generated when absent, and is forwarded on
// every downstream call.
package correlation

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Header is the HTTP header carrying the correlation identifier.
const Header = "X-Correlation-Id"

type ctxKey struct{}

// NewID returns a fresh identifier.
func NewID() string {
	return uuid.NewString()
}

// WithID returns a copy of ctx carrying id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identifier carried by ctx, if any.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// Ensure returns ctx unchanged when it already carries an identifier,
// otherwise a copy carrying a generated one.
func Ensure(ctx context.Context) (context.Context, string) {
	if id, ok := FromContext(ctx); ok {
		return ctx, id
	}
	id := NewID()
	return WithID(ctx, id), id
}

// Attr is the log attribute for the identifier carried by ctx.
func Attr(ctx context.Context) slog.Attr {
	id, _ := FromContext(ctx)
	return slog.String("correlation_id", id)
}
