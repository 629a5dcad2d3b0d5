package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/sessionauth/internal/auth/service"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, service.DefaultSessionConfig())
	u := h.seedUser(t, "alice")

	res, err := h.auth.Login(ctx, service.LoginInput{Username: "alice", Password: testPassword}, testRC)
	require.NoError(t, err)
	require.Equal(t, "alice", res.Username)
	require.NotEmpty(t, res.RefreshSecret)
	require.InDelta(t, 900, res.ExpiresIn, 2)
	require.WithinDuration(t, t0.Add(30*24*time.Hour), res.RefreshExpiresAt, time.Second)

	sub, err := h.codec.ExtractSubject(res.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "alice", sub)
	require.NoError(t, h.codec.ValidateStrict(res.AccessToken, "alice"))

	claims, err := h.codec.Parse(res.AccessToken)
	require.NoError(t, err)
	require.Equal(t, []string{"ROLE_USER"}, claims.Roles)

	_, err = h.sessions.Validate(ctx, res.RefreshSecret)
	require.NoError(t, err)

	stored, err := h.store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)

	require.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Logins.WithLabelValues("success")))
}

func TestLoginRememberMe(t *testing.T) {
	h := newHarness(t, service.DefaultSessionConfig())
	h.seedUser(t, "alice")

	res, err := h.auth.Login(context.Background(),
		service.LoginInput{Username: "alice", Password: testPassword, RememberMe: true}, testRC)
	require.NoError(t, err)
	require.WithinDuration(t, t0.Add(90*24*time.Hour), res.RefreshExpiresAt, time.Second)
}

func TestLoginFailures(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, service.DefaultSessionConfig())
	u := h.seedUser(t, "alice")
	locked := h.seedUser(t, "lockie")
	disabled := h.seedUser(t, "dora")
	require.NoError(t, h.store.Users().UpdateStatus(ctx, locked.ID, true, true))
	require.NoError(t, h.store.Users().UpdateStatus(ctx, disabled.ID, false, false))

	tests := []struct {
		name     string
		username string
		password string
		want     error
	}{
		{"unknown user", "nobody", testPassword, service.ErrInvalidCredentials},
		{"wrong password", "alice", "wrong-password", service.ErrInvalidCredentials},
		{"username is case sensitive", "ALICE", testPassword, service.ErrInvalidCredentials},
		{"locked", "lockie", testPassword, service.ErrAccountLocked},
		{"locked with wrong password", "lockie", "wrong-password", service.ErrInvalidCredentials},
		{"disabled", "dora", testPassword, service.ErrAccountDisabled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.auth.Login(ctx, service.LoginInput{Username: tt.username, Password: tt.password}, testRC)
			require.ErrorIs(t, err, tt.want)
		})
	}

	require.Zero(t, h.countValid(t, u.ID))
	require.Zero(t, h.countValid(t, locked.ID))
	require.Equal(t, 4.0, testutil.ToFloat64(h.metrics.Logins.WithLabelValues("invalid_credentials")))
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, service.DefaultSessionConfig())
	h.seedUser(t, "alice")

	first, err := h.auth.Login(ctx, service.LoginInput{Username: "alice", Password: testPassword}, testRC)
	require.NoError(t, err)

	h.clock.Advance(time.Minute)
	second, err := h.auth.Refresh(ctx, first.RefreshSecret, testRC)
	require.NoError(t, err)
	require.Equal(t, "alice", second.Username)
	require.NotEqual(t, first.RefreshSecret, second.RefreshSecret)
	require.NoError(t, h.codec.ValidateStrict(second.AccessToken, "alice"))

	_, err = h.auth.Refresh(ctx, first.RefreshSecret, testRC)
	require.ErrorIs(t, err, service.ErrRefreshTokenRevoked)

	_, err = h.auth.Refresh(ctx, "garbage", testRC)
	require.ErrorIs(t, err, service.ErrRefreshTokenInvalid)
}

func TestRefreshRechecksAccount(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, service.DefaultSessionConfig())
	u := h.seedUser(t, "alice")

	res, err := h.auth.Login(ctx, service.LoginInput{Username: "alice", Password: testPassword}, testRC)
	require.NoError(t, err)

	require.NoError(t, h.store.Users().UpdateStatus(ctx, u.ID, true, true))
	_, err = h.auth.Refresh(ctx, res.RefreshSecret, testRC)
	require.ErrorIs(t, err, service.ErrAccountLocked)
	require.Zero(t, h.countValid(t, u.ID), "no usable session is left behind")
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, service.DefaultSessionConfig())
	h.seedUser(t, "alice")

	require.NoError(t, h.auth.Logout(ctx, ""))
	require.NoError(t, h.auth.Logout(ctx, "garbage"))

	res, err := h.auth.Login(ctx, service.LoginInput{Username: "alice", Password: testPassword}, testRC)
	require.NoError(t, err)

	require.NoError(t, h.auth.Logout(ctx, res.RefreshSecret))
	require.NoError(t, h.auth.Logout(ctx, res.RefreshSecret))

	_, err = h.auth.Refresh(ctx, res.RefreshSecret, testRC)
	require.ErrorIs(t, err, service.ErrRefreshTokenRevoked)
}

func TestLogoutAll(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, service.DefaultSessionConfig())
	u := h.seedUser(t, "alice")

	a, err := h.auth.Login(ctx, service.LoginInput{Username: "alice", Password: testPassword}, testRC)
	require.NoError(t, err)
	b, err := h.auth.Login(ctx, service.LoginInput{Username: "alice", Password: testPassword, RememberMe: true}, testRC)
	require.NoError(t, err)

	require.ErrorIs(t, h.auth.LogoutAll(ctx, "garbage"), service.ErrRefreshTokenInvalid)
	require.Equal(t, 2, h.countValid(t, u.ID))

	require.NoError(t, h.auth.LogoutAll(ctx, a.RefreshSecret))
	require.Zero(t, h.countValid(t, u.ID))

	_, err = h.auth.Refresh(ctx, b.RefreshSecret, testRC)
	require.ErrorIs(t, err, service.ErrRefreshTokenRevoked)

	require.ErrorIs(t, h.auth.LogoutAll(ctx, a.RefreshSecret), service.ErrRefreshTokenRevoked)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, service.DefaultSessionConfig())

	u, err := h.auth.Register(ctx, service.RegisterInput{
		Username: " newbie ",
		Email:    "Newbie@Example.com",
		Password: testPassword,
	})
	require.NoError(t, err)
	require.Equal(t, "newbie", u.Username)
	require.Equal(t, "newbie@example.com", u.Email)
	require.True(t, u.Active)
	require.NotContains(t, u.PasswordHash, testPassword)

	_, err = h.auth.Register(ctx, service.RegisterInput{Username: "newbie", Email: "x@example.com", Password: testPassword})
	require.ErrorIs(t, err, service.ErrUserExists)

	_, err = h.auth.Login(ctx, service.LoginInput{Username: "newbie", Password: testPassword}, testRC)
	require.NoError(t, err)

	got, err := h.auth.CurrentUser(ctx, "newbie")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	_, err = h.auth.CurrentUser(ctx, "ghost")
	require.ErrorIs(t, err, service.ErrUserNotFound)
}

func TestCustomMatcher(t *testing.T) {
	h := newHarness(t, service.DefaultSessionConfig())
	h.seedUser(t, "alice")
	h.auth.Matcher = func(password, hash string) bool { return password == "letmein" }

	_, err := h.auth.Login(context.Background(), service.LoginInput{Username: "alice", Password: "letmein"}, testRC)
	require.NoError(t, err)
}

func TestLoginAndRegisterUseSessionClock(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, service.DefaultSessionConfig())
	h.clock.Set(t0.Add(90 * time.Minute))

	u, err := h.auth.Register(ctx, service.RegisterInput{
		Username: "clocked",
		Email:    "clocked@example.com",
		Password: testPassword,
	})
	require.NoError(t, err)
	require.True(t, t0.Add(90*time.Minute).Equal(u.CreatedAt), "created at %s", u.CreatedAt)
	require.True(t, t0.Add(90*time.Minute).Equal(u.UpdatedAt))

	h.clock.Advance(time.Hour)
	_, err = h.auth.Login(ctx, service.LoginInput{Username: "clocked", Password: testPassword}, testRC)
	require.NoError(t, err)

	stored, err := h.store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)
	require.True(t, t0.Add(150*time.Minute).Equal(*stored.LastLoginAt), "last login at %s", *stored.LastLoginAt)
}
