// Package session stores server-side login sessions in Redis.
//
// A session record lives under <prefix>:<session id> with a TTL equal to the
// refresh token lifetime and holds the owner and the current refresh jti. Each
// user additionally has a set <prefix>:user:<user id> listing their session
// ids; the set has no TTL, so an id in it may point at an expired record and
// callers treat that as "no session".
//
// # Binary encoding
//
// Records use a compact versioned binary format. New versions may append
// fields; old versions are never reinterpreted.
//
// This package does not decode tokens or apply authentication policy.
package session
