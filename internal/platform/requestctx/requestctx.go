// Package requestctx carries per-request identity values through context.
package requestctx

import "context"

type usernameContextKey struct{}

type requestIDContextKey struct{}

// WithUsername stores the authenticated username in context.
func WithUsername(ctx context.Context, username string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, usernameContextKey{}, username)
}

// UsernameFromContext returns the username stored in context.
func UsernameFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(usernameContextKey{}).(string)
	return value
}

// WithRequestID stores the request correlation ID in context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

// RequestIDFromContext returns the request correlation ID stored in context.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDContextKey{}).(string)
	return value
}
