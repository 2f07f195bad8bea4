package storage

import (
	"context"
	"time"

	"github.com/udea/innosistemas/pkg/auth"
)

// UserReader is the read side of the identity store
type UserReader interface {
	GetByEmail(ctx context.Context, email string) (*auth.User, error)
	GetByID(ctx context.Context, id int64) (*auth.User, error)
}

// MemberLister lists the users assigned to a team or course
type MemberLister interface {
	ListByTeam(ctx context.Context, teamID int64) ([]*auth.User, error)
	ListByCourse(ctx context.Context, courseID int64) ([]*auth.User, error)
}

// UserWriter creates identity records. Used by seeding and tests.
type UserWriter interface {
	CreateUser(ctx context.Context, user *auth.User) error
}

// HealthChecker reports backend health
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// UserStore composes every capability of a user backend
type UserStore interface {
	UserReader
	MemberLister
	UserWriter
	HealthChecker
}

// Config for storage backends
type Config struct {
	// Database config
	Driver      string // "postgres" or "sqlite3"
	DatabaseURL string
	ReplicaURLs string // comma separated
	MaxConns    int
	MinConns    int
	Timeout     time.Duration

	// Redis config
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Driver:          "postgres",
		MaxConns:        20,
		MinConns:        2,
		Timeout:         10 * time.Second,
		RedisURL:        "redis://localhost:6379/0",
		RedisDB:         0,
		RedisMaxRetries: 3,
		RedisPoolSize:   10,
	}
}
