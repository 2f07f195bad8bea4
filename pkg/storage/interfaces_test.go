package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestDefaultConfig tests the DefaultConfig function
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "postgres", cfg.Driver)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, 20, cfg.MaxConns)
	assert.Equal(t, 2, cfg.MinConns)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, 3, cfg.RedisMaxRetries)
	assert.Equal(t, 10, cfg.RedisPoolSize)
}

// TestMemoryUserStore_ImplementsUserStore tests interface satisfaction
func TestMemoryUserStore_ImplementsUserStore(t *testing.T) {
	var _ UserStore = NewMemoryUserStore()
}
