package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MinSecretBytes is the shortest JWT_SECRET accepted for HS256.
const MinSecretBytes = 32

type Config struct {
	Env                 string        `mapstructure:"ENV"`                   // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        `mapstructure:"LOG_LEVEL"`             // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        `mapstructure:"LOG_FORMAT"`            // Log format (json, text) (default: json)
	Port                int           `mapstructure:"PORT"`                  // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration `mapstructure:"SHUTDOWN_GRACE_PERIOD"` // Graceful shutdown timeout (default: 10s)

	DatabaseDriver string `mapstructure:"DATABASE_DRIVER"` // sqlite or postgres (default: sqlite)
	DatabaseFile   string `mapstructure:"DATABASE_FILE"`   // SQLite database path (default: ./auth.db)
	DatabaseURL    string `mapstructure:"DATABASE_URL"`    // Postgres DSN, required for the postgres driver
	PepperFile     string `mapstructure:"PEPPER_FILE"`     // Password pepper file (default: ./pepper)

	Issuer          string `mapstructure:"AUTH_ISSUER"`       // "iss" claim (default: sessionauth)
	JWTSecret       string `mapstructure:"JWT_SECRET"`        // Required: HS256 key, at least 32 bytes
	JWTExpirationMS int64  `mapstructure:"JWT_EXPIRATION_MS"` // Access token lifetime (default: 900000)

	RefreshDays              int    `mapstructure:"REFRESH_DAYS"`                // Standard session lifetime (default: 30)
	RefreshRememberDays      int    `mapstructure:"REFRESH_REMEMBER_DAYS"`       // Extended session lifetime (default: 90)
	RefreshRotate            bool   `mapstructure:"REFRESH_ROTATE"`              // Rotate on every refresh (default: true)
	RefreshMaxActiveSessions int    `mapstructure:"REFRESH_MAX_ACTIVE_SESSIONS"` // Per-user cap, 0 disables (default: 5)
	SweepRetentionDays       int    `mapstructure:"SWEEP_RETENTION_DAYS"`        // Keep expired sessions this long (default: 7)
	SweepInterval            string `mapstructure:"SWEEP_INTERVAL"`              // Duration, @hourly, @daily or "@every <dur>" (default: 24h)

	CookieName     string `mapstructure:"REFRESH_COOKIE_NAME"`      // default: refresh_token
	CookiePath     string `mapstructure:"REFRESH_COOKIE_PATH"`      // default: /api/auth
	CookieDomain   string `mapstructure:"REFRESH_COOKIE_DOMAIN"`    // Optional
	CookieSecure   bool   `mapstructure:"REFRESH_COOKIE_SECURE"`    // default: false
	CookieSameSite string `mapstructure:"REFRESH_COOKIE_SAME_SITE"` // Strict, Lax or None (default: Lax)

	RateLimitEnabled bool `mapstructure:"RATE_LIMIT_ENABLED"` // default: true

	RedisAddr     string `mapstructure:"REDIS_ADDR"`     // Optional: enables the distributed sweep lock
	RedisPassword string `mapstructure:"REDIS_PASSWORD"` // Optional

	MetricsEnabled bool `mapstructure:"METRICS_ENABLED"` // Expose /metrics (default: true)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", "dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("PORT", 8080)
	v.SetDefault("SHUTDOWN_GRACE_PERIOD", "10s")

	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_FILE", "auth.db")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("PEPPER_FILE", "pepper")

	v.SetDefault("AUTH_ISSUER", "sessionauth")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_EXPIRATION_MS", 900000)

	v.SetDefault("REFRESH_DAYS", 30)
	v.SetDefault("REFRESH_REMEMBER_DAYS", 90)
	v.SetDefault("REFRESH_ROTATE", true)
	v.SetDefault("REFRESH_MAX_ACTIVE_SESSIONS", 5)
	v.SetDefault("SWEEP_RETENTION_DAYS", 7)
	v.SetDefault("SWEEP_INTERVAL", "24h")

	v.SetDefault("REFRESH_COOKIE_NAME", "refresh_token")
	v.SetDefault("REFRESH_COOKIE_PATH", "/api/auth")
	v.SetDefault("REFRESH_COOKIE_DOMAIN", "")
	v.SetDefault("REFRESH_COOKIE_SECURE", false)
	v.SetDefault("REFRESH_COOKIE_SAME_SITE", "Lax")

	v.SetDefault("RATE_LIMIT_ENABLED", true)

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")

	v.SetDefault("METRICS_ENABLED", true)
}

// LoadConfig reads .env (if present), then the environment. Environment
// variables win over .env.
func LoadConfig() (Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing .env is fine

	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if len(c.JWTSecret) < MinSecretBytes {
		errs = append(errs, fmt.Errorf("config: JWT_SECRET must be at least %d bytes", MinSecretBytes))
	}
	if c.JWTExpirationMS <= 0 {
		errs = append(errs, errors.New("config: JWT_EXPIRATION_MS must be positive"))
	}
	if c.RefreshDays <= 0 || c.RefreshRememberDays <= 0 {
		errs = append(errs, errors.New("config: REFRESH_DAYS and REFRESH_REMEMBER_DAYS must be positive"))
	}
	if c.RefreshMaxActiveSessions < 0 {
		errs = append(errs, errors.New("config: REFRESH_MAX_ACTIVE_SESSIONS must not be negative"))
	}
	if c.SweepRetentionDays < 0 {
		errs = append(errs, errors.New("config: SWEEP_RETENTION_DAYS must not be negative"))
	}
	if _, err := ParseSchedule(c.SweepInterval); err != nil {
		errs = append(errs, fmt.Errorf("config: SWEEP_INTERVAL: %w", err))
	}

	switch c.DatabaseDriver {
	case "sqlite":
		if c.DatabaseFile == "" {
			errs = append(errs, errors.New("config: DATABASE_FILE must be set for the sqlite driver"))
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("config: DATABASE_URL must be set for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown DATABASE_DRIVER %q", c.DatabaseDriver))
	}

	switch strings.ToLower(c.CookieSameSite) {
	case "strict", "lax":
	case "none":
		if !c.CookieSecure {
			errs = append(errs, errors.New("config: REFRESH_COOKIE_SAME_SITE=None requires REFRESH_COOKIE_SECURE"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown REFRESH_COOKIE_SAME_SITE %q", c.CookieSameSite))
	}

	if c.Env == "prod" && !c.CookieSecure {
		errs = append(errs, errors.New("config: REFRESH_COOKIE_SECURE must be true when ENV=prod"))
	}

	return errors.Join(errs...)
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.JWTExpirationMS) * time.Millisecond
}

func (c Config) StandardSessionTTL() time.Duration {
	return time.Duration(c.RefreshDays) * 24 * time.Hour
}

func (c Config) ExtendedSessionTTL() time.Duration {
	return time.Duration(c.RefreshRememberDays) * 24 * time.Hour
}

func (c Config) SweepRetention() time.Duration {
	return time.Duration(c.SweepRetentionDays) * 24 * time.Hour
}

// ParseSchedule turns a sweep schedule into a fixed interval. Accepted forms
// are a Go duration ("6h"), "@hourly", "@daily" and "@every <duration>".
func ParseSchedule(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	var d time.Duration
	switch {
	case s == "@hourly":
		return time.Hour, nil
	case s == "@daily", s == "@midnight":
		return 24 * time.Hour, nil
	case strings.HasPrefix(s, "@every "):
		var err error
		if d, err = time.ParseDuration(strings.TrimSpace(strings.TrimPrefix(s, "@every "))); err != nil {
			return 0, err
		}
	default:
		var err error
		if d, err = time.ParseDuration(s); err != nil {
			return 0, fmt.Errorf("unsupported schedule %q", s)
		}
	}

	if d < time.Minute {
		return 0, fmt.Errorf("schedule %q is shorter than one minute", s)
	}
	return d, nil
}
