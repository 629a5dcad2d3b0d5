package httpx

import (
	"net/http"
	"strings"
)

// RequireAnyRole lets the request through when the principal holds at
// least one of roles. It must run after AuthnMiddleware.
func RequireAnyRole(roles ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				writeBearerError(w, r, "invalid_token", "authentication required")
				return
			}
			for _, role := range roles {
				if p.HasRole(role) {
					next.ServeHTTP(w, r)
					return
				}
			}

			w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope", scope="`+strings.Join(roles, " ")+`"`)
			WriteError(w, r, http.StatusForbidden, "access_denied", "insufficient role")
		})
	}
}
