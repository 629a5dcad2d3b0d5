package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/sessionauth/pkg/jwtx"
	"github.com/aussiebroadwan/sessionauth/pkg/slogx"
)

// TokenVerifier is the slice of *jwtx.Codec the middleware needs.
type TokenVerifier interface {
	ExtractSubject(token string) (string, error)
	ValidateStrict(token, expectedSubject string) error
}

// ErrUnknownPrincipal is returned by a PrincipalResolver when the subject
// names no usable account. Any other resolver error is a server failure.
var ErrUnknownPrincipal = errors.New("httpx: unknown principal")

// PrincipalResolver loads the account named by a verified token subject.
type PrincipalResolver func(ctx context.Context, subject string) (Principal, error)

// AuthnMiddleware authenticates "Authorization: Bearer" requests. The token
// subject is resolved to an account and the token is then strictly
// validated against that account's username before the principal is put in
// the request context.
func AuthnMiddleware(v TokenVerifier, resolve PrincipalResolver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw, ok := BearerToken(r)
			if !ok {
				writeBearerError(w, r, "invalid_token", "missing bearer token")
				return
			}

			subject, err := v.ExtractSubject(raw)
			if err != nil {
				log.Debug("bearer token rejected", "err", err)
				writeBearerError(w, r, tokenCode(err), "token verification failed")
				return
			}

			p, err := resolve(ctx, subject)
			if errors.Is(err, ErrUnknownPrincipal) {
				log.Info("bearer subject rejected", "err", err)
				writeBearerError(w, r, "invalid_token", "unknown subject")
				return
			}
			if err != nil {
				log.Error("failed to resolve bearer subject", "err", err)
				WriteError(w, r, http.StatusInternalServerError, "server_error", "internal server error")
				return
			}

			if err := v.ValidateStrict(raw, p.Username); err != nil {
				writeBearerError(w, r, tokenCode(err), "token verification failed")
				return
			}

			ctx = slogx.With(WithPrincipal(ctx, p), "user_id", p.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if len(authz) < len("Bearer ") || !strings.EqualFold(authz[:len("Bearer ")], "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(authz[len("Bearer "):])
	return raw, raw != ""
}

func tokenCode(err error) string {
	if code := jwtx.Code(err); code != "" {
		return code
	}
	return "invalid_token"
}

// RFC 6750 challenge plus a JSON body carrying the specific error code.
func writeBearerError(w http.ResponseWriter, r *http.Request, code, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteError(w, r, http.StatusUnauthorized, code, desc)
}
