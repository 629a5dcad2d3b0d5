package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/sessionauth/internal/auth/http"
	"github.com/aussiebroadwan/sessionauth/internal/auth/service"
	"github.com/aussiebroadwan/sessionauth/internal/auth/store"
	"github.com/aussiebroadwan/sessionauth/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/sessionauth/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/sessionauth/pkg/cryptox"
	"github.com/aussiebroadwan/sessionauth/pkg/httpx"
	"github.com/aussiebroadwan/sessionauth/pkg/jwtx"
	"github.com/aussiebroadwan/sessionauth/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// BuildVersion is overridden at build time via -ldflags.
var BuildVersion = "v0.1.0"

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	codec    *jwtx.Codec
	redis    *redis.Client // nil without REDIS_ADDR
	registry *prometheus.Registry

	// Services
	sessionService      *service.SessionService
	authService         *service.AuthService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "sessionauth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	codec, err := jwtx.NewCodec(jwtx.CodecOptions{
		Secret: cfg.JWTSecret,
		TTL:    cfg.AccessTokenTTL(),
		Issuer: cfg.Issuer,
	})
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}
	app.codec = codec

	if err := app.initRedis(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initHTTP(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeepingService.Stop()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and any
// running sweep, then closes the backends.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// initDatabase opens the configured driver and applies migrations
func (app *Application) initDatabase() error {
	var (
		db  store.Store
		err error
	)
	switch app.cfg.DatabaseDriver {
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		db, err = postgres.NewStore(ctx, app.cfg.DatabaseURL)
	default:
		db, err = sqlite.NewStore(sqlite.DSN(app.cfg.DatabaseFile))
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DatabaseDriver)
	return nil
}

// initRedis connects the optional lock backend. A configured but
// unreachable redis is a startup failure.
func (app *Application) initRedis() error {
	if app.cfg.RedisAddr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     app.cfg.RedisAddr,
		Password: app.cfg.RedisPassword,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	app.redis = client
	app.logger.Info("redis connected", "addr", app.cfg.RedisAddr)
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() error {
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := service.NewMetrics(app.registry)

	app.sessionService = service.NewSessionService(app.db, service.SessionConfig{
		StandardTTL:       app.cfg.StandardSessionTTL(),
		ExtendedTTL:       app.cfg.ExtendedSessionTTL(),
		Rotate:            app.cfg.RefreshRotate,
		MaxActiveSessions: app.cfg.RefreshMaxActiveSessions,
		Retention:         app.cfg.SweepRetention(),
	}, metrics)

	app.authService = &service.AuthService{
		Store:    app.db,
		Codec:    app.codec,
		Sessions: app.sessionService,
		Metrics:  metrics,
	}

	interval, err := ParseSchedule(app.cfg.SweepInterval)
	if err != nil {
		return fmt.Errorf("invalid sweep schedule: %w", err)
	}
	app.housekeepingService = service.NewHousekeepingService(app.sessionService, app.logger, interval)
	if app.redis != nil {
		app.housekeepingService.Lock = service.NewRedisLocker(app.redis)
	}

	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() error {
	sameSite, err := httpx.ParseSameSite(app.cfg.CookieSameSite)
	if err != nil {
		return fmt.Errorf("invalid cookie config: %w", err)
	}

	router := httpapi.NewRouter(app.codec, BuildVersion, app.db, app.logger)
	router.AuthService = app.authService
	router.SessionService = app.sessionService
	router.Cookie = httpx.CookieConfig{
		Name:     app.cfg.CookieName,
		Path:     app.cfg.CookiePath,
		Domain:   app.cfg.CookieDomain,
		Secure:   app.cfg.CookieSecure,
		SameSite: sameSite,
	}
	if !app.cfg.RateLimitEnabled {
		router.RateLimits = httpx.RateLimitProfiles{}
	}
	if app.cfg.MetricsEnabled {
		router.Gatherer = app.registry
	}
	if app.redis != nil {
		router.CachePing = func(ctx context.Context) error { return app.redis.Ping(ctx).Err() }
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}
