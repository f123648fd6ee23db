// Package jwt implements the token capability: compact JWS tokens signed with
// HS256 or Ed25519 carrying a subject and an opaque "data" claim.
//
// Tokens are self-contained. There is no revocation list; a token stays valid
// until it expires.
package jwt
