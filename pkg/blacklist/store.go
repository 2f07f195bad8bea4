package blacklist

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
)

const (
	// KeyPrefix namespaces revocation entries in Redis
	KeyPrefix = "token:blacklist:"

	revokedValue = "revoked"
)

// ErrStoreUnavailable is returned when Redis cannot be reached within the store timeout
var ErrStoreUnavailable = errors.New("revocation store unavailable")

// ErrorRecorder counts store failures
type ErrorRecorder interface {
	RecordStoreError(store, operation string)
}

type nopRecorder struct{}

func (nopRecorder) RecordStoreError(string, string) {}

// Config controls timeouts, failure policy and the local cache
type Config struct {
	// Timeout bounds each Redis call
	Timeout time.Duration
	// FailOpen reports unreachable-store reads as "not revoked"
	FailOpen bool
	// CacheSize is the number of revoked tokens remembered locally (0 disables)
	CacheSize int
	// CacheTTL caps how long a locally cached entry lives
	CacheTTL time.Duration
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		Timeout:   2 * time.Second,
		FailOpen:  true,
		CacheSize: 10000,
		CacheTTL:  7 * 24 * time.Hour,
	}
}

// Store keeps revoked tokens in Redis until they would have expired anyway.
// Tokens are keyed by their SHA-256 digest so no usable credential is stored.
type Store struct {
	client   *redis.Client
	cfg      Config
	cache    *expirable.LRU[string, time.Time]
	now      func() time.Time
	logger   logrus.FieldLogger
	recorder ErrorRecorder
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithErrorRecorder sets the failure counter
func WithErrorRecorder(r ErrorRecorder) Option {
	return func(s *Store) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewStore creates a revocation store on client
func NewStore(client *redis.Client, cfg Config, logger logrus.FieldLogger, opts ...Option) *Store {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultConfig().CacheTTL
	}

	s := &Store{
		client:   client,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger.WithField("component", "blacklist"),
		recorder: nopRecorder{},
	}
	if cfg.CacheSize > 0 {
		s.cache = expirable.NewLRU[string, time.Time](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the Redis key for token
func Key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return KeyPrefix + hex.EncodeToString(sum[:])
}

// Revoke records token as revoked until expiresAt. Already-expired tokens are not written.
func (s *Store) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		s.logger.Debug("token already expired, nothing to revoke")
		return nil
	}

	key := Key(token)
	if s.cache != nil {
		s.cache.Add(key, expiresAt)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.client.Set(ctx, key, revokedValue, ttl).Err(); err != nil {
		s.recorder.RecordStoreError("blacklist", "revoke")
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.logger.WithField("ttl", ttl.Round(time.Second)).Debug("token revoked")
	return nil
}

// IsRevoked reports whether token has been revoked.
// When Redis is unreachable the answer follows Config.FailOpen and the error is returned alongside it.
func (s *Store) IsRevoked(ctx context.Context, token string) (bool, error) {
	key := Key(token)
	if s.cachedRevoked(key) {
		return true, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		s.recorder.RecordStoreError("blacklist", "check")
		s.logger.WithError(err).WithField("fail_open", s.cfg.FailOpen).Warn("revocation lookup failed")
		return !s.cfg.FailOpen, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	switch {
	case ttl == -2: // missing
		return false, nil
	case ttl == -1: // present without expiry
		return true, nil
	case ttl > 0:
		if s.cache != nil {
			s.cache.Add(key, s.now().Add(ttl))
		}
		return true, nil
	default:
		return false, nil
	}
}

// Remove deletes a revocation entry
func (s *Store) Remove(ctx context.Context, token string) error {
	key := Key(token)
	if s.cache != nil {
		s.cache.Remove(key)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.recorder.RecordStoreError("blacklist", "remove")
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Clear deletes every revocation entry and returns how many were removed
func (s *Store) Clear(ctx context.Context) (int, error) {
	if s.cache != nil {
		s.cache.Purge()
	}

	removed := 0
	iter := s.client.Scan(ctx, 0, KeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, fmt.Errorf("failed to delete key %s: %w", iter.Val(), err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		s.recorder.RecordStoreError("blacklist", "clear")
		return removed, fmt.Errorf("%w: scan failed: %v", ErrStoreUnavailable, err)
	}

	s.logger.WithField("removed", removed).Info("revocation entries cleared")
	return removed, nil
}

func (s *Store) cachedRevoked(key string) bool {
	if s.cache == nil {
		return false
	}
	exp, ok := s.cache.Get(key)
	if !ok {
		return false
	}
	if !exp.After(s.now()) {
		s.cache.Remove(key)
		return false
	}
	return true
}
