// Package middleware adapts slateauth to net/http.
//
//   - [Attach] resolves the request's session slot and puts it in the context.
//   - [RequireFlags] gates a handler on session flags (401 / 403).
//   - [RequireToken] gates a handler on a verified bearer token.
//
// # What this package must NOT do
//
//   - Make authorization decisions itself. Outcomes come from Auth.Authorize
//     and Engine.VerifyUserToken.
//   - Read or write the session store directly.
package middleware
