package service_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/sessionauth/internal/auth/domain"
	"github.com/aussiebroadwan/sessionauth/internal/auth/service"
	"github.com/aussiebroadwan/sessionauth/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/sessionauth/pkg/cryptox"
	"github.com/aussiebroadwan/sessionauth/pkg/idx"
	"github.com/aussiebroadwan/sessionauth/pkg/jwtx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const (
	testPassword = "correct-horse-battery"
	testSecret   = "0123456789abcdef0123456789abcdef-service-test"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "service-pepper")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	store    *sqlite.Store
	clock    *fakeClock
	metrics  *service.Metrics
	sessions *service.SessionService
	auth     *service.AuthService
	codec    *jwtx.Codec
}

func newHarness(t *testing.T, cfg service.SessionConfig) *harness {
	t.Helper()

	s, err := sqlite.NewStore(sqlite.DSN(filepath.Join(t.TempDir(), "auth.db")))
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })

	clock := &fakeClock{now: t0}
	metrics := service.NewMetrics(prometheus.NewRegistry())

	sessions := service.NewSessionService(s, cfg, metrics)
	sessions.Clock = clock.Now

	codec, err := jwtx.NewCodec(jwtx.CodecOptions{Secret: testSecret, Issuer: "sessionauth-test"})
	require.NoError(t, err)

	return &harness{
		store:    s,
		clock:    clock,
		metrics:  metrics,
		sessions: sessions,
		codec:    codec,
		auth: &service.AuthService{
			Store:    s,
			Codec:    codec,
			Sessions: sessions,
			Metrics:  metrics,
		},
	}
}

// seedUser stores an active USER account whose password is testPassword.
func (h *harness) seedUser(t *testing.T, username string) domain.User {
	t.Helper()

	hash, err := cryptox.HashPassword(testPassword)
	require.NoError(t, err)

	u := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Active:       true,
		CreatedAt:    t0,
		UpdatedAt:    t0,
	}
	require.NoError(t, h.store.Users().CreateUser(context.Background(), u))
	return u
}

func (h *harness) countValid(t *testing.T, userID string) int {
	t.Helper()
	n, err := h.store.RefreshSessions().CountValid(context.Background(), userID, h.clock.Now())
	require.NoError(t, err)
	return n
}

func (h *harness) findSession(t *testing.T, secret string) domain.RefreshSession {
	t.Helper()
	s, err := h.store.RefreshSessions().FindBySecretHash(context.Background(), cryptox.HashSecret(secret))
	require.NoError(t, err)
	return s
}

var testRC = domain.NewRequestContext("203.0.113.7", "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0)")
