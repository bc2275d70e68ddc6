// Package revocation keeps the token blacklist: a set of revoked jti values
// stored in Redis with a TTL equal to the remaining lifetime of the token.
//
// # Key layout
//
//	<prefix>:<jti> = "1"   (prefix defaults to "blacklist")
//
// Entries expire on their own once the token would have expired anyway, so
// the package never sweeps.
//
// # Failure policy
//
// Every Redis failure is returned wrapped in [ErrRedisUnavailable]. Callers
// must treat that as "unknown", not as "not revoked".
package revocation
