package httpx

import "context"

type ctxKey string

const (
	CtxKeyUserID    ctxKey = "user_id"
	CtxKeyPrincipal ctxKey = "principal"
)

// Principal is the authenticated caller as seen by handlers.
type Principal struct {
	ID       string
	Username string
	Roles    []string // e.g. "ROLE_USER"
}

func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, p.ID)
	return context.WithValue(ctx, CtxKeyPrincipal, p)
}

// PrincipalFrom returns the caller injected by AuthnMiddleware.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(CtxKeyPrincipal).(Principal)
	return p, ok
}
