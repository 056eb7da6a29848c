package types

import (
	"context"
)

// CallerType identifies the kind of authenticated entity making a request.
type CallerType string

const (
	CallerTypeAPIKey CallerType = "api_key"
	CallerTypeSystem CallerType = "system"
)

// Caller represents the authenticated entity performing an operation.
type Caller struct {
	ID     string
	Type   CallerType
	Name   string
	Scopes []string
}

// HasScope reports whether the caller possesses the given scope.
// System callers implicitly hold every scope.
func (c Caller) HasScope(scope string) bool {
	if c.Type == CallerTypeSystem {
		return true
	}
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Context Keys
type contextKey string

const (
	callerKey    contextKey = "caller"
	requestIDKey contextKey = "request_id"
	loggerKey    contextKey = "logger"
)

// WithCaller stores the Caller in the context.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// GetCaller retrieves the Caller from the context.
func GetCaller(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerKey).(Caller)
	return caller, ok
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithLogger stores a Logger in the context.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext retrieves the Logger from the context.
// The returned logger is expected to have been pre-enriched with request-scoped
// fields (e.g., RequestID) by middleware before storage.
// Returns nil if no logger has been set.
func LoggerFromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return nil
}
