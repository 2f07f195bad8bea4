package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/udea/innosistemas/pkg/auth"
	"github.com/udea/innosistemas/pkg/contextkeys"
)

// LimitRecorder counts rejected requests
type LimitRecorder interface {
	RecordRateLimited(route string)
}

type nopLimitRecorder struct{}

func (nopLimitRecorder) RecordRateLimited(string) {}

// Decision is the outcome of one rate limit check
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Duration
}

// RateLimiter is a fixed-window counter shared across instances through Redis.
// Redis errors fail open: the request is allowed and the error returned.
type RateLimiter struct {
	redis    *redis.Client
	limit    int
	window   time.Duration
	timeout  time.Duration
	prefix   string
	logger   logrus.FieldLogger
	recorder LimitRecorder
	audit    *auth.AuditLogger
}

// RateLimitOption configures a RateLimiter
type RateLimitOption func(*RateLimiter)

// WithLimitRecorder sets the rejection counter
func WithLimitRecorder(rec LimitRecorder) RateLimitOption {
	return func(rl *RateLimiter) {
		if rec != nil {
			rl.recorder = rec
		}
	}
}

// WithAuditLogger records rejections to the audit stream
func WithAuditLogger(audit *auth.AuditLogger) RateLimitOption {
	return func(rl *RateLimiter) { rl.audit = audit }
}

// WithKeyPrefix changes the Redis key namespace (default "ratelimit")
func WithKeyPrefix(prefix string) RateLimitOption {
	return func(rl *RateLimiter) {
		if prefix != "" {
			rl.prefix = prefix
		}
	}
}

// NewRateLimiter allows limit requests per key in each window
func NewRateLimiter(client *redis.Client, limit int, window, timeout time.Duration, logger logrus.FieldLogger, opts ...RateLimitOption) *RateLimiter {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	rl := &RateLimiter{
		redis:    client,
		limit:    limit,
		window:   window,
		timeout:  timeout,
		prefix:   "ratelimit",
		logger:   logger.WithField("component", "rate_limiter"),
		recorder: nopLimitRecorder{},
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

func (rl *RateLimiter) key(scope string) string {
	return rl.prefix + ":" + scope
}

// Allow counts one request against scope
func (rl *RateLimiter) Allow(ctx context.Context, scope string) (Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, rl.timeout)
	defer cancel()

	key := rl.key(scope)
	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, key)
	pttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{Allowed: true, Limit: rl.limit, Remaining: rl.limit}, fmt.Errorf("rate limit check: %w", err)
	}

	// first hit of a window, or a counter that lost its expiry
	reset := pttl.Val()
	if reset < 0 {
		if err := rl.redis.PExpire(ctx, key, rl.window).Err(); err != nil {
			return Decision{Allowed: true, Limit: rl.limit, Remaining: rl.limit}, fmt.Errorf("rate limit expiry: %w", err)
		}
		reset = rl.window
	}

	count := int(incr.Val())
	remaining := rl.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= rl.limit,
		Limit:     rl.limit,
		Remaining: remaining,
		Reset:     reset,
	}, nil
}

// Check counts one request of the client in ctx against scope and returns a
// RATE_LIMITED error when the window is exhausted. Used by GraphQL resolvers.
func (rl *RateLimiter) Check(ctx context.Context, scope string) error {
	ip := contextkeys.GetClientIP(ctx)
	d, err := rl.Allow(ctx, scope+":"+ip)
	if err != nil {
		rl.logger.WithError(err).Warn("rate limiter unavailable, allowing request")
		return nil
	}
	if d.Allowed {
		return nil
	}

	rl.recorder.RecordRateLimited(scope)
	if rl.audit != nil {
		rl.audit.Record(ctx, &auth.AuditEvent{
			Action:    auth.ActionRateLimited,
			Status:    auth.StatusDenied,
			IPAddress: ip,
			Resource:  scope,
		})
	}
	return auth.NewError(auth.KindRateLimited, nil)
}

// Reset clears the counter of scope
func (rl *RateLimiter) Reset(ctx context.Context, scope string) error {
	return rl.redis.Del(ctx, rl.key(scope)).Err()
}

// Handler limits requests per client address on route
func (rl *RateLimiter) Handler(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := auth.ClientIP(r)
			d, err := rl.Allow(r.Context(), route+":"+ip)
			if err != nil {
				rl.logger.WithError(err).WithField("route", route).Warn("rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(d.Reset).Unix(), 10))

			if !d.Allowed {
				rl.recorder.RecordRateLimited(route)
				if rl.audit != nil {
					rl.audit.RecordFromRequest(r, auth.ActionRateLimited, "", auth.StatusDenied, nil)
				}
				retryAfter := int((d.Reset + time.Second - 1) / time.Second)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeAuthError(w, auth.NewError(auth.KindRateLimited, nil))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
