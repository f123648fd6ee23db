package middleware

import (
	"net/http"
	"strings"

	"github.com/slatekit/slateauth"
)

// RequireToken accepts only requests carrying a bearer token that the
// engine's signer verifies. It is the stateless alternative to
// [RequireFlags] for service-to-service calls.
func RequireToken(engine *slateauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok || !engine.VerifyUserToken(token) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
