package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/udea/innosistemas/pkg/storage"
)

// MinSecretBytes is the minimum HMAC key size accepted for HS512 signing (256 bits)
const MinSecretBytes = 32

// ErrWeakSecret is returned when the configured JWT secret is missing or too short
var ErrWeakSecret = errors.New("jwt secret must be at least 256 bits")

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration (database and redis)
	Storage storage.Config

	// Auth holds token, revocation and session settings
	Auth AuthConfig

	// RBAC holds access-rule settings
	RBAC RBACConfig

	// RateLimit holds limits for the public auth endpoints
	RateLimit RateLimitConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// AuthConfig holds token, blacklist and session settings
type AuthConfig struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// StoreTimeout bounds every revocation/session store call
	StoreTimeout time.Duration

	// RevocationFailOpen treats an unreachable blacklist as "not revoked"
	RevocationFailOpen bool

	// RevokedCacheSize is the size of the local revoked-token cache (0 disables it)
	RevokedCacheSize int

	// SessionSweepSchedule is a cron spec for the expired-session sweep
	SessionSweepSchedule string
}

// RBACConfig holds access-rule settings
type RBACConfig struct {
	RulesFile  string
	WatchRules bool
}

// RateLimitConfig holds fixed-window limits for login/refresh
type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Window   time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel  logrus.Level
	LogFormat string

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	authCfg, err := loadAuthConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Auth:          authCfg,
		RBAC:          loadRBACConfig(),
		RateLimit:     loadRateLimitConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("INNO_HOST", "0.0.0.0"),
		Port:            getEnv("INNO_PORT", "8080"),
		ReadTimeout:     getEnvDuration("INNO_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("INNO_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("INNO_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("INNO_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("INNO_HEALTH_PORT", "9090"),
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	if driver := getEnv("INNO_DB_DRIVER", ""); driver != "" {
		cfg.Driver = driver
	}
	if dbURL := getEnv("INNO_DATABASE_URL", ""); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if replicaURLs := getEnv("INNO_DATABASE_REPLICA_URLS", ""); replicaURLs != "" {
		cfg.ReplicaURLs = replicaURLs
	}
	if maxConns := getEnvInt("INNO_DB_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns := getEnvInt("INNO_DB_MIN_CONNS", 0); minConns > 0 {
		cfg.MinConns = minConns
	}
	if timeout := getEnvDuration("INNO_DB_TIMEOUT", 0); timeout > 0 {
		cfg.Timeout = timeout
	}

	// Redis config
	if redisURL := getEnv("INNO_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnvSecret("INNO_REDIS_PASSWORD"); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("INNO_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("INNO_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("INNO_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	return cfg
}

// loadAuthConfig loads token and session settings from environment
func loadAuthConfig() (AuthConfig, error) {
	cfg := AuthConfig{
		JWTSecret:            getEnvSecret("INNO_JWT_SECRET"),
		AccessTokenTTL:       getEnvDuration("INNO_ACCESS_TOKEN_TTL", 24*time.Hour),
		RefreshTokenTTL:      getEnvDuration("INNO_REFRESH_TOKEN_TTL", 7*24*time.Hour),
		StoreTimeout:         getEnvDuration("INNO_STORE_TIMEOUT", 2*time.Second),
		RevocationFailOpen:   getEnvBool("INNO_REVOCATION_FAIL_OPEN", true),
		RevokedCacheSize:     getEnvInt("INNO_REVOKED_CACHE_SIZE", 10000),
		SessionSweepSchedule: getEnv("INNO_SESSION_SWEEP_SCHEDULE", "@every 15m"),
	}

	if err := ValidateSecret(cfg.JWTSecret); err != nil {
		return AuthConfig{}, err
	}

	return cfg, nil
}

func loadRBACConfig() RBACConfig {
	return RBACConfig{
		RulesFile:  getEnv("INNO_ACCESS_RULES_FILE", ""),
		WatchRules: getEnvBool("INNO_ACCESS_RULES_WATCH", false),
	}
}

func loadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:  getEnvBool("INNO_RATE_LIMIT_ENABLED", true),
		Requests: getEnvInt("INNO_RATE_LIMIT_REQUESTS", 10),
		Window:   getEnvDuration("INNO_RATE_LIMIT_WINDOW", time.Minute),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("INNO_LOG_LEVEL", "info")),
		LogFormat:          getEnv("INNO_LOG_FORMAT", "json"),
		MetricsEnabled:     getEnvBool("INNO_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("INNO_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("INNO_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("INNO_OTEL_SERVICE_NAME", "innosistemas-auth"),
		OTelServiceVersion: getEnv("INNO_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("INNO_OTEL_INSECURE", true),
	}
}

// ValidateSecret rejects a missing or sub-256-bit signing secret
func ValidateSecret(secret string) error {
	if len(secret) < MinSecretBytes {
		return fmt.Errorf("%w: got %d bytes", ErrWeakSecret, len(secret))
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Storage.Driver {
	case "postgres", "sqlite3":
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for driver %s", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres or sqlite3)", c.Storage.Driver)
	}
	if c.Storage.RedisURL == "" {
		return fmt.Errorf("redis URL is required")
	}

	if err := ValidateSecret(c.Auth.JWTSecret); err != nil {
		return err
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	if c.Auth.RefreshTokenTTL < c.Auth.AccessTokenTTL {
		return fmt.Errorf("refresh token lifetime must not be shorter than access token lifetime")
	}
	if c.Auth.StoreTimeout <= 0 {
		return fmt.Errorf("store timeout must be positive")
	}
	if _, err := cron.ParseStandard(c.Auth.SessionSweepSchedule); err != nil {
		return fmt.Errorf("invalid session sweep schedule %q: %w", c.Auth.SessionSweepSchedule, err)
	}

	if c.RateLimit.Enabled && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("rate limit requires positive requests and window")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string, falling back to info
func parseLogLevel(level string) logrus.Level {
	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return logrus.InfoLevel
	}
	return parsed
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvSecret reads KEY, or the contents of the file named by KEY_FILE
func getEnvSecret(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if path := os.Getenv(key + "_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(data))
	}
	return ""
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
