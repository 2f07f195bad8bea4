// Package blacklist stores revoked tokens in Redis.
//
// An entry lives at token:blacklist:<sha256(token)> with value "revoked" and a
// TTL equal to the token's remaining lifetime, so entries disappear on their
// own once the token could no longer be used. Revoking an already-expired
// token writes nothing.
//
// Reads are bounded by Config.Timeout. When Redis cannot be reached,
// IsRevoked returns ErrStoreUnavailable together with a verdict chosen by
// Config.FailOpen. A small expirable LRU remembers tokens this instance has
// revoked or seen revoked, and those stay rejected during an outage.
package blacklist
