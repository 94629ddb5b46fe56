package chi

import (
	"context"
	"net/http"
)

// DefaultUserHeader carries the authenticated user id set by the fronting
// auth proxy.
const DefaultUserHeader = "X-Docdex-User"

type userKey struct{}

// exemptPaths are routes that bypass user identification (health, metrics).
var exemptPaths = map[string]struct{}{
	"/healthz": {},
	"/metrics": {},
}

// UserMiddleware returns a middleware that extracts the caller identity from
// the given header and stores it in the request context. Requests without an
// identity are rejected.
func UserMiddleware(header string) func(http.Handler) http.Handler {
	if header == "" {
		header = DefaultUserHeader
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			user := r.Header.Get(header)
			if user == "" {
				writeError(w, http.StatusUnauthorized, "bad_request", "missing "+header+" header")
				return
			}

			ctx := context.WithValue(r.Context(), userKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the caller identity stored by UserMiddleware, or
// the empty string.
func UserFromContext(ctx context.Context) string {
	user, _ := ctx.Value(userKey{}).(string)
	return user
}
