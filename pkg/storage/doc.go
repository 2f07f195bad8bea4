// Package storage defines the identity store used by the auth service and
// the GraphQL member queries.
//
// The store is a collaborator of authentication: it owns user records and
// the team and course assignments that drive ownership checks. The auth
// core only ever reads from it.
//
// Capabilities are split into small interfaces (UserReader, MemberLister,
// UserWriter, HealthChecker) that compose into UserStore. Two backends exist:
//
//   - MemoryUserStore: a mutex-guarded map, for tests and local runs.
//   - postgres.UserStore: database/sql over lib/pq or go-sqlite3, with an
//     optional pool of read replicas.
//
// Config also carries the Redis settings shared by the session registry,
// the revocation store and the rate limiter:
//
//	cfg := storage.DefaultConfig()
//	cfg.Driver = "sqlite3"
//	cfg.DatabaseURL = "file:innosistemas.db?_foreign_keys=on"
//	cfg.RedisURL = "redis://localhost:6379/0"
package storage
