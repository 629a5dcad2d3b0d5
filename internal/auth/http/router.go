package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/sessionauth/internal/auth/service"
	"github.com/aussiebroadwan/sessionauth/internal/auth/store"
	"github.com/aussiebroadwan/sessionauth/pkg/httpx"
	"github.com/aussiebroadwan/sessionauth/pkg/jwtx"
	"github.com/aussiebroadwan/sessionauth/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/aussiebroadwan/sessionauth/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	codec        *jwtx.Codec
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	AuthService    *service.AuthService
	SessionService *service.SessionService

	Cookie     httpx.CookieConfig
	RateLimits httpx.RateLimitProfiles

	// Gatherer backs /metrics. Nil leaves the route unregistered.
	Gatherer prometheus.Gatherer

	// CachePing is checked by /readyz when a redis lock is configured.
	CachePing func(context.Context) error

	// Clock stamps cookie Max-Age. Defaults to time.Now.
	Clock func() time.Time
}

func NewRouter(
	codec *jwtx.Codec,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		codec:        codec,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		RateLimits:   httpx.DefaultRateLimitProfiles(),
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerUsers()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Session Auth Service API
//	@version		0.1.0
//	@description	Issues short-lived HS256 access tokens and long-lived refresh sessions.
//	@description
//	@description				The refresh secret is only ever sent in an HttpOnly cookie scoped to /api/auth.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/sessionauth
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) authn() httpx.Middleware {
	return httpx.AuthnMiddleware(r.codec, r.resolvePrincipal)
}

// resolvePrincipal loads the account behind a token subject. Locked and
// disabled accounts are refused even while their access tokens are unexpired.
func (r *Router) resolvePrincipal(ctx context.Context, username string) (httpx.Principal, error) {
	user, err := r.AuthService.CurrentUser(ctx, username)
	if errors.Is(err, service.ErrUserNotFound) {
		return httpx.Principal{}, fmt.Errorf("%w: %v", httpx.ErrUnknownPrincipal, err)
	}
	if err != nil {
		return httpx.Principal{}, err
	}
	if user.Locked || !user.Active {
		return httpx.Principal{}, fmt.Errorf("%w: account not usable", httpx.ErrUnknownPrincipal)
	}

	return httpx.Principal{
		ID:       user.ID,
		Username: user.Username,
		Roles:    user.Authorities(),
	}, nil
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		Auth:   r.AuthService,
		Cookie: r.Cookie,
		Clock:  r.Clock,
	}

	// Credential endpoints are limited by IP and username to slow down
	// password guessing across accounts and from one address.
	r.Mux.Handle("POST /api/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(r.RateLimits.Credentials),
		),
	)
	r.Mux.Handle("POST /api/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndJSONField(r.RateLimits.Credentials, "username"),
		),
	)

	r.Mux.Handle("POST /api/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(r.RateLimits.Session),
		),
	)
	r.Mux.Handle("POST /api/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(r.RateLimits.Session),
		),
	)
	r.Mux.Handle("POST /api/auth/logout-all",
		httpx.Chain(http.HandlerFunc(h.HandleLogoutAll),
			httpx.RateLimitByIP(r.RateLimits.Session),
		),
	)

	sessions := &SessionsHandler{Sessions: r.SessionService}
	r.Mux.Handle("GET /api/auth/sessions",
		httpx.Chain(sessions,
			r.authn(),
			httpx.RateLimitByUser(r.RateLimits.Authenticated),
		),
	)
}

func (r *Router) registerUsers() {
	h := &MeHandler{Auth: r.AuthService}

	r.Mux.Handle("GET /api/me",
		httpx.Chain(h,
			r.authn(),
			httpx.RequireAnyRole("ROLE_USER", "ROLE_ADMIN"),
			httpx.RateLimitByUser(r.RateLimits.Authenticated),
		),
	)
}

func (r *Router) registerSystem() {
	// Health checks are unlimited; orchestrators poll them constantly.
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.CachePing))

	if r.Gatherer != nil {
		r.Mux.Handle("GET /metrics", promhttp.HandlerFor(r.Gatherer, promhttp.HandlerOpts{}))
	}
}
