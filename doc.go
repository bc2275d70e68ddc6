// Package authcore is the authentication and session core of the tracker API:
// Argon2id password hashing, signed access and refresh tokens with rotation,
// Redis-backed sessions and token blacklist, account lockout, and the
// sliding-window limiter that gates login.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config] and
// value types ([User], [AuthResult], [TokenPair], [Principal]). The caller
// owns the Redis client and the [UserRepository]; the Engine never creates or
// closes either.
//
// # What this package must NOT do
//
//   - Know about HTTP status codes, headers or cookies.
//   - Hold package-level connections or other mutable globals.
//   - Return raw Redis or JWT library errors; every failure maps to one of
//     the sentinels in errors.go.
package authcore
