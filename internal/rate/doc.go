// Package rate implements the Redis sliding-window log limiter that gates
// login and the general API budget.
//
// # Window semantics
//
// Each bucket is a sorted set scored by request time in microseconds, read
// from the Redis clock so that every process agrees on "now". One Lua script
// trims entries older than the window, counts what is left and adds the new
// request only when the count is under the limit. Keys:
//   - <prefix>:login:<ip>   login attempts per client address
//   - <prefix>:api:<key>    general request budget
//
// # Failure policy
//
// Limiting is not worth an outage: when Redis cannot be reached the request
// is allowed and the decision is flagged FailedOpen.
package rate
