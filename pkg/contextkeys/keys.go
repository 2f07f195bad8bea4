// Package contextkeys provides centralized context key definitions
//
// All request-scoped values travel through these keys. Nothing in the
// service keeps the authenticated identity in a package-level variable.
//
// USAGE PATTERN:
//
//	import "github.com/udea/innosistemas/pkg/contextkeys"
//	ctx = contextkeys.WithPrincipal(ctx, principal)
//	principal, _ := ctx.Value(contextkeys.PrincipalKey).(*auth.Principal)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains *auth.Principal
	// Set by: middleware.Authenticator (pkg/middleware/auth.go)
	// Required by: GraphQL resolvers, rbac.RouteGuard
	// Type: *auth.Principal
	PrincipalKey Key = "principal"

	// BearerTokenKey contains the raw bearer token string of the request
	// Set by: middleware.Authenticator
	// Used by: logout, which falls back to the header token
	// Type: string
	BearerTokenKey Key = "bearer_token"

	// RequestIDKey contains request ID string (UUID)
	// Set by: middleware.RequestID
	// Used by: Logger, audit trail
	// Type: string
	RequestIDKey Key = "request_id"

	// UserEmailKey contains the authenticated subject (email)
	// Set by: middleware.Authenticator
	// Used by: Logger
	// Type: string
	UserEmailKey Key = "user_email"

	// LoggerKey contains logrus.FieldLogger
	// Set by: middleware.RequestID
	// Type: logrus.FieldLogger
	LoggerKey Key = "logger"

	// ClientIPKey contains the originating client address
	// Set by: middleware.RequestContext
	// Used by: rate limiting of GraphQL login/refresh, audit trail
	// Type: string
	ClientIPKey Key = "client_ip"

	// RequestStartTimeKey contains request start timestamp
	// Type: time.Time
	RequestStartTimeKey Key = "request_start_time"
)

// WithPrincipal adds the authenticated principal to the context
func WithPrincipal(ctx context.Context, principal interface{}) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}

// WithBearerToken adds the raw bearer token to the context
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, BearerTokenKey, token)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserEmail adds the authenticated subject to the context
func WithUserEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, UserEmailKey, email)
}

// WithClientIP adds the client address to the context
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ClientIPKey, ip)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// WithRequestStartTime adds request start time to the context
func WithRequestStartTime(ctx context.Context, startTime interface{}) context.Context {
	return context.WithValue(ctx, RequestStartTimeKey, startTime)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserEmail retrieves the authenticated subject from context
func GetUserEmail(ctx context.Context) string {
	if email, ok := ctx.Value(UserEmailKey).(string); ok {
		return email
	}
	return ""
}

// GetBearerToken retrieves the raw bearer token from context
func GetBearerToken(ctx context.Context) string {
	if token, ok := ctx.Value(BearerTokenKey).(string); ok {
		return token
	}
	return ""
}

// GetClientIP retrieves the client address from context
func GetClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ClientIPKey).(string); ok {
		return ip
	}
	return ""
}
