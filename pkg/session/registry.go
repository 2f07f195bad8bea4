package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	// UserKeyPrefix namespaces the per-user session sets
	UserKeyPrefix = "session:user:"
	// CountKeyPrefix namespaces the informational per-user counters
	CountKeyPrefix = "session:count:"
)

// ErrStoreUnavailable is returned when Redis cannot be reached within the store timeout
var ErrStoreUnavailable = errors.New("session store unavailable")

// Session is one login of a user
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// ErrorRecorder counts store failures
type ErrorRecorder interface {
	RecordStoreError(store, operation string)
}

type nopRecorder struct{}

func (nopRecorder) RecordStoreError(string, string) {}

// Registry tracks active sessions per user in Redis sets of "<sessionId>:<createdAtMillis>"
type Registry struct {
	client   *redis.Client
	ttl      time.Duration
	timeout  time.Duration
	now      func() time.Time
	logger   logrus.FieldLogger
	recorder ErrorRecorder
}

// Option configures a Registry
type Option func(*Registry)

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithErrorRecorder sets the failure counter
func WithErrorRecorder(rec ErrorRecorder) Option {
	return func(r *Registry) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// NewRegistry creates a registry whose sets live as long as an access token (ttl)
func NewRegistry(client *redis.Client, ttl, timeout time.Duration, logger logrus.FieldLogger, opts ...Option) *Registry {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	r := &Registry{
		client:   client,
		ttl:      ttl,
		timeout:  timeout,
		now:      time.Now,
		logger:   logger.WithField("component", "session_registry"),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func userKey(email string) string  { return UserKeyPrefix + email }
func countKey(email string) string { return CountKeyPrefix + email }

func (r *Registry) storeError(operation string, err error) error {
	r.recorder.RecordStoreError("session", operation)
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, operation, err)
}

// Register adds a session for email and renews the set expiry to the access-token lifetime
func (r *Registry) Register(ctx context.Context, email, sessionID string) error {
	if sessionID == "" || strings.Contains(sessionID, ":") {
		return fmt.Errorf("invalid session id %q", sessionID)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	member := sessionID + ":" + strconv.FormatInt(r.now().UnixMilli(), 10)

	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, userKey(email), member)
	pipe.Expire(ctx, userKey(email), r.ttl)
	pipe.Incr(ctx, countKey(email))
	pipe.Expire(ctx, countKey(email), r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return r.storeError("register", err)
	}

	r.logger.WithFields(logrus.Fields{"email": email, "session_id": sessionID}).Debug("session registered")
	return nil
}

// InvalidateAll removes every session of email and returns how many were removed
func (r *Registry) InvalidateAll(ctx context.Context, email string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	pipe := r.client.TxPipeline()
	card := pipe.SCard(ctx, userKey(email))
	pipe.Del(ctx, userKey(email), countKey(email))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, r.storeError("invalidate_all", err)
	}

	count := card.Val()
	r.logger.WithFields(logrus.Fields{"email": email, "count": count}).Info("sessions invalidated")
	return count, nil
}

// HasActive reports whether email has at least one session
func (r *Registry) HasActive(ctx context.Context, email string) (bool, error) {
	n, err := r.Count(ctx, email)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Count returns the number of sessions of email
func (r *Registry) Count(ctx context.Context, email string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	n, err := r.client.SCard(ctx, userKey(email)).Result()
	if err != nil {
		return 0, r.storeError("count", err)
	}
	return n, nil
}

// Remove deletes the session whose id is sessionID. It reports false if no such session existed.
func (r *Registry) Remove(ctx context.Context, email, sessionID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	members, err := r.client.SMembers(ctx, userKey(email)).Result()
	if err != nil {
		return false, r.storeError("remove", err)
	}

	var matched []interface{}
	for _, m := range members {
		if strings.HasPrefix(m, sessionID+":") {
			matched = append(matched, m)
		}
	}
	if len(matched) == 0 {
		return false, nil
	}

	pipe := r.client.TxPipeline()
	pipe.SRem(ctx, userKey(email), matched...)
	pipe.DecrBy(ctx, countKey(email), int64(len(matched)))
	if _, err := pipe.Exec(ctx); err != nil {
		return false, r.storeError("remove", err)
	}

	r.logger.WithFields(logrus.Fields{"email": email, "session_id": sessionID}).Debug("session removed")
	return true, nil
}

// List returns the sessions of email, oldest first
func (r *Registry) List(ctx context.Context, email string) ([]Session, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	members, err := r.client.SMembers(ctx, userKey(email)).Result()
	if err != nil {
		return nil, r.storeError("list", err)
	}

	sessions := make([]Session, 0, len(members))
	for _, m := range members {
		s, ok := parseMember(m)
		if !ok {
			r.logger.WithField("member", m).Warn("skipping malformed session member")
			continue
		}
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// IsActive reports whether sessionID is a current session of email
func (r *Registry) IsActive(ctx context.Context, email, sessionID string) (bool, error) {
	sessions, err := r.List(ctx, email)
	if err != nil {
		return false, err
	}
	for _, s := range sessions {
		if s.ID == sessionID {
			return true, nil
		}
	}
	return false, nil
}

// ActiveUsers counts users with at least one session
func (r *Registry) ActiveUsers(ctx context.Context) (int64, error) {
	var total int64
	iter := r.client.Scan(ctx, 0, UserKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		total++
	}
	if err := iter.Err(); err != nil {
		return 0, r.storeError("active_users", err)
	}
	return total, nil
}

// Sweep removes sessions older than the access-token lifetime and returns how many were removed.
// It is best-effort: a failing key is logged and skipped.
func (r *Registry) Sweep(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.ttl)
	removed := 0

	iter := r.client.Scan(ctx, 0, UserKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		n, err := r.sweepKey(ctx, key, cutoff)
		if err != nil {
			r.logger.WithError(err).WithField("key", key).Warn("session sweep skipped key")
			continue
		}
		removed += n
	}
	if err := iter.Err(); err != nil {
		return removed, r.storeError("sweep", err)
	}

	if removed > 0 {
		r.logger.WithField("removed", removed).Info("expired sessions swept")
	}
	return removed, nil
}

func (r *Registry) sweepKey(ctx context.Context, key string, cutoff time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	members, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return 0, err
	}

	var stale []interface{}
	for _, m := range members {
		s, ok := parseMember(m)
		if !ok || s.CreatedAt.Before(cutoff) {
			stale = append(stale, m)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	email := strings.TrimPrefix(key, UserKeyPrefix)
	pipe := r.client.TxPipeline()
	pipe.SRem(ctx, key, stale...)
	if len(stale) == len(members) {
		pipe.Del(ctx, countKey(email))
	} else {
		pipe.DecrBy(ctx, countKey(email), int64(len(stale)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(stale), nil
}

func parseMember(member string) (Session, bool) {
	idx := strings.LastIndex(member, ":")
	if idx <= 0 || idx == len(member)-1 {
		return Session{}, false
	}
	millis, err := strconv.ParseInt(member[idx+1:], 10, 64)
	if err != nil {
		return Session{}, false
	}
	return Session{ID: member[:idx], CreatedAt: time.UnixMilli(millis)}, true
}
