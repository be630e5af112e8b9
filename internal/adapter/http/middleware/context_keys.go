package middleware

import (
	"context"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/listing/domain"
)

// ContextKey is a private type for context keys set by this package.
type ContextKey string

const (
	CallerCtxKey        = ContextKey("caller")
	RequestIDCtxKey     = ContextKey("request_id")
	TokenRejectedCtxKey = ContextKey("token_rejected")
)

// WithCaller stores the authenticated caller in ctx.
func WithCaller(ctx context.Context, caller domain.Caller) context.Context {
	return context.WithValue(ctx, CallerCtxKey, caller)
}

// CallerFromContext returns the authenticated caller, if any.
func CallerFromContext(ctx context.Context) (domain.Caller, bool) {
	caller, ok := ctx.Value(CallerCtxKey).(domain.Caller)
	return caller, ok
}

func withTokenRejected(ctx context.Context) context.Context {
	return context.WithValue(ctx, TokenRejectedCtxKey, true)
}

// TokenRejected reports whether the request carried a token that failed to parse.
func TokenRejected(ctx context.Context) bool {
	rejected, _ := ctx.Value(TokenRejectedCtxKey).(bool)
	return rejected
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDCtxKey).(string)
	return id
}
