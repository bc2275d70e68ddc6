// Package jwt issues and decodes the signed access and refresh tokens.
//
// Both token types carry sub, session_id, iat, exp, jti and a type
// discriminator; access tokens add role. Decoding verifies signature, algorithm
// and expiry in one step, and [Manager.DecodeAccess] / [Manager.DecodeRefresh]
// additionally check the type and required claims so callers work with typed
// [AccessClaims] and [RefreshClaims] instead of a claim map.
//
// Every issued token gets a fresh uuid jti; the jti is the unit of revocation.
package jwt
