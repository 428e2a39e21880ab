// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services consume them. Keeping this package
// free of net/http lets services read reviewer identity and request metadata
// without pulling in transport code.
//
// Usage in services (read values):
//
//	reviewerID := requestcontext.ReviewerID(ctx)
//	requestID := requestcontext.RequestID(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithReviewerID(ctx, reviewerID)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
package requestcontext

import (
	"context"
	"time"

	id "attest/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	reviewerIDKey  struct{}
	requestIDKey   struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	clientInfoKey  struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyReviewerID  = reviewerIDKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyClientIP    = clientIPKey{}
	ContextKeyUserAgent   = userAgentKey{}
	ContextKeyClientInfo  = clientInfoKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// ReviewerID retrieves the authenticated reviewer from the context.
// Returns the empty ID if not set.
func ReviewerID(ctx context.Context) id.ReviewerID {
	if reviewerID, ok := ctx.Value(ContextKeyReviewerID).(id.ReviewerID); ok {
		return reviewerID
	}
	return ""
}

// WithReviewerID injects a reviewer ID into the context.
func WithReviewerID(ctx context.Context, reviewerID id.ReviewerID) context.Context {
	return context.WithValue(ctx, ContextKeyReviewerID, reviewerID)
}

// RequestID retrieves the correlation ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a correlation ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the raw User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// ClientInfo retrieves the parsed client description ("Firefox 130 / Linux")
// from the context. Audit payloads record it alongside the actor.
func ClientInfo(ctx context.Context) string {
	if info, ok := ctx.Value(ContextKeyClientInfo).(string); ok {
		return info
	}
	return ""
}

// WithClientMetadata injects client IP, raw User-Agent, and the parsed client
// description into a context. Useful for service unit tests that don't run
// the full HTTP middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent, clientInfo string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	return context.WithValue(ctx, ContextKeyClientInfo, clientInfo)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for non-HTTP contexts (workers, tests, CLI).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a fixed time into a context for deterministic tests and
// batch workers.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
