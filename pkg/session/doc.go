// Package session keeps the per-user registry of active logins in Redis.
//
// Each user owns a set at session:user:<email> whose members are
// "<sessionId>:<createdAtMillis>". The set expires with the access-token
// lifetime and every new login renews it. A counter at session:count:<email>
// mirrors the set size for dashboards; the set is authoritative.
//
// Logout clears the whole set in one MULTI/EXEC so concurrent logins either
// land before the clear or survive it intact. Sweeper removes members older
// than the access-token lifetime on a cron schedule.
package session
