// Package limiters holds the account lockout policy applied by Authenticate.
//
// [LockoutPolicy] is pure: it turns a failure count into a new count and an
// optional lock deadline. The user repository stores both fields, so the
// lock survives restarts and is shared by every process that reads the same
// user row.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import authcore or any sibling package.
package limiters
