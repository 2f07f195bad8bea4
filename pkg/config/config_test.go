package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/udea/innosistemas/pkg/storage"
)

var testSecret = strings.Repeat("k", 64)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "INNO_TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "INNO_TEST_VAR_NOT_SET",
			defaultValue: "default",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvBool tests the getEnvBool helper function
func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		defaultValue bool
		envValue     string
		want         bool
	}{
		{name: "returns true for 'true'", envValue: "true", want: true},
		{name: "returns true for '1'", envValue: "1", want: true},
		{name: "returns true for 'TRUE' (case insensitive)", envValue: "TRUE", want: true},
		{name: "returns false for 'false'", defaultValue: true, envValue: "false", want: false},
		{name: "returns default when not set", defaultValue: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv("INNO_TEST_BOOL")
			if tt.envValue != "" {
				t.Setenv("INNO_TEST_BOOL", tt.envValue)
			}

			got := getEnvBool("INNO_TEST_BOOL", tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvInt tests the getEnvInt helper function
func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		want     int
	}{
		{name: "returns parsed int", envValue: "42", want: 42},
		{name: "returns default for invalid int", envValue: "invalid", want: 10},
		{name: "returns default when not set", want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv("INNO_TEST_INT")
			if tt.envValue != "" {
				t.Setenv("INNO_TEST_INT", tt.envValue)
			}

			got := getEnvInt("INNO_TEST_INT", 10)
			if got != tt.want {
				t.Errorf("getEnvInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvDuration tests the getEnvDuration helper function
func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		want     time.Duration
	}{
		{name: "parses hours", envValue: "24h", want: 24 * time.Hour},
		{name: "parses seconds", envValue: "90s", want: 90 * time.Second},
		{name: "returns default for garbage", envValue: "soon", want: time.Minute},
		{name: "returns default when not set", want: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv("INNO_TEST_DURATION")
			if tt.envValue != "" {
				t.Setenv("INNO_TEST_DURATION", tt.envValue)
			}

			got := getEnvDuration("INNO_TEST_DURATION", time.Minute)
			if got != tt.want {
				t.Errorf("getEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvSecret(t *testing.T) {
	t.Run("direct value wins", func(t *testing.T) {
		t.Setenv("INNO_TEST_SECRET", "direct")
		t.Setenv("INNO_TEST_SECRET_FILE", "/does/not/exist")
		if got := getEnvSecret("INNO_TEST_SECRET"); got != "direct" {
			t.Errorf("getEnvSecret() = %q, want %q", got, "direct")
		}
	})

	t.Run("reads and trims file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "secret")
		if err := os.WriteFile(path, []byte("from-file\n"), 0o600); err != nil {
			t.Fatalf("write secret: %v", err)
		}
		os.Unsetenv("INNO_TEST_SECRET")
		t.Setenv("INNO_TEST_SECRET_FILE", path)
		if got := getEnvSecret("INNO_TEST_SECRET"); got != "from-file" {
			t.Errorf("getEnvSecret() = %q, want %q", got, "from-file")
		}
	})

	t.Run("missing file yields empty", func(t *testing.T) {
		os.Unsetenv("INNO_TEST_SECRET")
		t.Setenv("INNO_TEST_SECRET_FILE", filepath.Join(t.TempDir(), "missing"))
		if got := getEnvSecret("INNO_TEST_SECRET"); got != "" {
			t.Errorf("getEnvSecret() = %q, want empty", got)
		}
	})
}

// TestParseLogLevel tests log level parsing
func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"INFO", logrus.InfoLevel},
		{"warn", logrus.WarnLevel},
		{"warning", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"nonsense", logrus.InfoLevel},
		{"", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLogLevel(tt.input); got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateSecret(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		wantErr bool
	}{
		{name: "empty", secret: "", wantErr: true},
		{name: "31 bytes", secret: strings.Repeat("a", 31), wantErr: true},
		{name: "exactly 256 bits", secret: strings.Repeat("a", 32)},
		{name: "512 bits", secret: strings.Repeat("a", 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSecret(tt.secret)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateSecret() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrWeakSecret) {
				t.Errorf("expected ErrWeakSecret, got %v", err)
			}
		})
	}
}

// TestLoadAuthConfig tests defaults and overrides of the auth section
func TestLoadAuthConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("INNO_JWT_SECRET", testSecret)

		cfg, err := loadAuthConfig()
		if err != nil {
			t.Fatalf("loadAuthConfig() error = %v", err)
		}
		if cfg.AccessTokenTTL != 24*time.Hour {
			t.Errorf("AccessTokenTTL = %v, want 24h", cfg.AccessTokenTTL)
		}
		if cfg.RefreshTokenTTL != 7*24*time.Hour {
			t.Errorf("RefreshTokenTTL = %v, want 168h", cfg.RefreshTokenTTL)
		}
		if !cfg.RevocationFailOpen {
			t.Error("RevocationFailOpen should default to true")
		}
		if cfg.StoreTimeout != 2*time.Second {
			t.Errorf("StoreTimeout = %v, want 2s", cfg.StoreTimeout)
		}
		if cfg.SessionSweepSchedule != "@every 15m" {
			t.Errorf("SessionSweepSchedule = %q", cfg.SessionSweepSchedule)
		}
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("INNO_JWT_SECRET", testSecret)
		t.Setenv("INNO_ACCESS_TOKEN_TTL", "1h")
		t.Setenv("INNO_REFRESH_TOKEN_TTL", "48h")
		t.Setenv("INNO_REVOCATION_FAIL_OPEN", "false")

		cfg, err := loadAuthConfig()
		if err != nil {
			t.Fatalf("loadAuthConfig() error = %v", err)
		}
		if cfg.AccessTokenTTL != time.Hour || cfg.RefreshTokenTTL != 48*time.Hour {
			t.Errorf("unexpected lifetimes %v / %v", cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
		}
		if cfg.RevocationFailOpen {
			t.Error("RevocationFailOpen should be false")
		}
	})

	t.Run("missing secret is fatal", func(t *testing.T) {
		os.Unsetenv("INNO_JWT_SECRET")
		os.Unsetenv("INNO_JWT_SECRET_FILE")

		_, err := loadAuthConfig()
		if !errors.Is(err, ErrWeakSecret) {
			t.Errorf("expected ErrWeakSecret, got %v", err)
		}
	})
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", HealthPort: "9090"},
		Storage: storage.Config{
			Driver:      "postgres",
			DatabaseURL: "postgres://localhost/innosistemas",
			RedisURL:    "redis://localhost:6379",
		},
		Auth: AuthConfig{
			JWTSecret:            testSecret,
			AccessTokenTTL:       24 * time.Hour,
			RefreshTokenTTL:      7 * 24 * time.Hour,
			StoreTimeout:         2 * time.Second,
			SessionSweepSchedule: "@every 15m",
		},
		RateLimit: RateLimitConfig{Enabled: true, Requests: 10, Window: time.Minute},
	}
}

// TestConfigValidate tests configuration validation
func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing port", mutate: func(c *Config) { c.Server.Port = "" }, wantErr: "server port is required"},
		{name: "same ports", mutate: func(c *Config) { c.Server.HealthPort = "8080" }, wantErr: "must be different"},
		{name: "bad driver", mutate: func(c *Config) { c.Storage.Driver = "mysql" }, wantErr: "invalid database driver"},
		{name: "sqlite ok", mutate: func(c *Config) { c.Storage.Driver = "sqlite3"; c.Storage.DatabaseURL = ":memory:" }},
		{name: "missing database url", mutate: func(c *Config) { c.Storage.DatabaseURL = "" }, wantErr: "database URL is required"},
		{name: "missing redis", mutate: func(c *Config) { c.Storage.RedisURL = "" }, wantErr: "redis URL is required"},
		{name: "weak secret", mutate: func(c *Config) { c.Auth.JWTSecret = "short" }, wantErr: "256 bits"},
		{name: "refresh shorter than access", mutate: func(c *Config) { c.Auth.RefreshTokenTTL = time.Hour }, wantErr: "must not be shorter"},
		{name: "zero store timeout", mutate: func(c *Config) { c.Auth.StoreTimeout = 0 }, wantErr: "store timeout"},
		{name: "bad cron", mutate: func(c *Config) { c.Auth.SessionSweepSchedule = "every now and then" }, wantErr: "invalid session sweep schedule"},
		{name: "bad rate limit", mutate: func(c *Config) { c.RateLimit.Requests = 0 }, wantErr: "rate limit"},
		{name: "rate limit disabled skips check", mutate: func(c *Config) { c.RateLimit = RateLimitConfig{} }},
		{
			name: "otel without endpoint",
			mutate: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelServiceName = "svc"
			},
			wantErr: "endpoint is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

// TestLoadConfig tests loading a full config from environment
func TestLoadConfig(t *testing.T) {
	t.Setenv("INNO_JWT_SECRET", testSecret)
	t.Setenv("INNO_DB_DRIVER", "sqlite3")
	t.Setenv("INNO_DATABASE_URL", "file::memory:?cache=shared")
	t.Setenv("INNO_REDIS_URL", "redis://cache:6379/2")
	t.Setenv("INNO_PORT", "8000")
	t.Setenv("INNO_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Server.Port != "8000" {
		t.Errorf("Port = %q", cfg.Server.Port)
	}
	if cfg.Storage.Driver != "sqlite3" {
		t.Errorf("Driver = %q", cfg.Storage.Driver)
	}
	if cfg.Storage.RedisURL != "redis://cache:6379/2" {
		t.Errorf("RedisURL = %q", cfg.Storage.RedisURL)
	}
	if cfg.Observability.LogLevel != logrus.DebugLevel {
		t.Errorf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}
