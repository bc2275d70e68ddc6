// Package middleware adapts [authcore.Engine] to net/http.
//
// # Guards
//
//   - [Guard] validates the bearer access token and stores the
//     [authcore.Principal] in the request context.
//   - [RequirePermission] and [RequireAnyPermission] check the principal's role
//     against the permission table.
//   - [RateLimit] charges requests to the general API window.
//
// Errors are written as {"error": {"code", "message"}} JSON.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Every decision is
// delegated to the Engine.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Access Redis.
//   - Decide authorization beyond what [authcore.Can] reports.
package middleware
