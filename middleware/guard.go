package middleware

import (
	"net/http"

	"github.com/slatekit/slateauth"
	"github.com/slatekit/slateauth/permission"
)

// SlotResolver picks the session slot for a request, typically from a
// cookie. Returning nil leaves the request without a session.
type SlotResolver func(r *http.Request) slateauth.SessionSlot

// Attach stores the resolved slot in the request context for [slateauth.Auth].
func Attach(resolve SlotResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if resolve != nil {
				if slot := resolve(r); slot != nil {
					r = r.WithContext(slateauth.WithSession(r.Context(), slot))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireFlags rejects requests whose session lacks any bit of required:
// 401 without a session, 403 with insufficient flags.
func RequireFlags(auth *slateauth.Auth, required ...permission.Flags) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			switch auth.Authorize(r.Context(), required...) {
			case slateauth.GateAllowed:
				next.ServeHTTP(w, r)
			case slateauth.GateForbidden:
				http.Error(w, "forbidden", http.StatusForbidden)
			default:
				http.Error(w, "unauthorized", http.StatusUnauthorized)
			}
		})
	}
}
