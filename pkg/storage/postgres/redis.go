package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/udea/innosistemas/pkg/auth"
	"github.com/udea/innosistemas/pkg/storage"
)

const userCachePrefix = "user:email:"

// RedisClient owns the shared Redis connection and caches user lookups
type RedisClient struct {
	client  *redis.Client
	userTTL time.Duration
}

// NewRedisClient connects to Redis and verifies the connection with a ping
func NewRedisClient(config storage.Config) (*RedisClient, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	// Explicit settings win over the URL
	if config.RedisPassword != "" {
		opts.Password = config.RedisPassword
	}
	if config.RedisDB > 0 {
		opts.DB = config.RedisDB
	}
	if config.RedisMaxRetries > 0 {
		opts.MaxRetries = config.RedisMaxRetries
	}
	if config.RedisPoolSize > 0 {
		opts.PoolSize = config.RedisPoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisClientFrom(client), nil
}

// NewRedisClientFrom wraps an existing client
func NewRedisClientFrom(client *redis.Client) *RedisClient {
	return &RedisClient{client: client, userTTL: time.Minute}
}

// GetUser returns a cached user, or nil on a cache miss
func (c *RedisClient) GetUser(ctx context.Context, email string) (*auth.User, error) {
	key := userCachePrefix + email

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cached cachedUser
	if err := json.Unmarshal(data, &cached); err != nil {
		c.client.Del(ctx, key)
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return cached.toUser(), nil
}

// SetUser caches u for a short time
func (c *RedisClient) SetUser(ctx context.Context, u *auth.User) error {
	data, err := json.Marshal(newCachedUser(u))
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	return c.client.Set(ctx, userCachePrefix+u.Email, data, c.userTTL).Err()
}

// InvalidateUser drops the cached record for email
func (c *RedisClient) InvalidateUser(ctx context.Context, email string) error {
	return c.client.Del(ctx, userCachePrefix+email).Err()
}

// Ping checks Redis connectivity
func (c *RedisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// GetClient returns the underlying client shared by the session registry, blacklist and rate limiter
func (c *RedisClient) GetClient() *redis.Client {
	return c.client
}

// Close closes the Redis connection
func (c *RedisClient) Close() error {
	return c.client.Close()
}

// GetPoolStats returns connection pool statistics
func (c *RedisClient) GetPoolStats() *redis.PoolStats {
	return c.client.PoolStats()
}

// cachedUser keeps the password hash, which auth.User hides from JSON
type cachedUser struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Role         auth.Role `json:"role"`
	TeamID       *int64    `json:"team_id,omitempty"`
	CourseID     *int64    `json:"course_id,omitempty"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func newCachedUser(u *auth.User) cachedUser {
	return cachedUser{
		ID: u.ID, Email: u.Email, PasswordHash: u.PasswordHash, Role: u.Role,
		TeamID: u.TeamID, CourseID: u.CourseID, FirstName: u.FirstName, LastName: u.LastName,
		Enabled: u.Enabled, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt,
	}
}

func (c cachedUser) toUser() *auth.User {
	return &auth.User{
		ID: c.ID, Email: c.Email, PasswordHash: c.PasswordHash, Role: c.Role,
		TeamID: c.TeamID, CourseID: c.CourseID, FirstName: c.FirstName, LastName: c.LastName,
		Enabled: c.Enabled, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
	}
}
