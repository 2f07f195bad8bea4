// Package config provides application configuration management from environment variables.
//
// # Overview
//
// Configuration is read once at startup from INNO_* environment variables and
// validated. A missing or weak JWT secret aborts startup.
//
// # Configuration Structure
//
// Server settings:
//
//	INNO_HOST="0.0.0.0"
//	INNO_PORT="8080"
//	INNO_HEALTH_PORT="9090"
//
// Storage settings:
//
//	INNO_DB_DRIVER="postgres"  # postgres, sqlite3
//	INNO_DATABASE_URL="postgres://localhost/innosistemas?sslmode=disable"
//	INNO_REDIS_URL="redis://localhost:6379/0"
//
// Auth settings:
//
//	INNO_JWT_SECRET="..."              # or INNO_JWT_SECRET_FILE, at least 32 bytes
//	INNO_ACCESS_TOKEN_TTL="24h"
//	INNO_REFRESH_TOKEN_TTL="168h"
//	INNO_STORE_TIMEOUT="2s"
//	INNO_REVOCATION_FAIL_OPEN="true"
//	INNO_SESSION_SWEEP_SCHEDULE="@every 15m"
//
// Access rules:
//
//	INNO_ACCESS_RULES_FILE="/etc/innosistemas/access-rules.yaml"
//	INNO_ACCESS_RULES_WATCH="true"
package config
