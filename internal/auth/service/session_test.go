package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/sessionauth/internal/auth/domain"
	"github.com/aussiebroadwan/sessionauth/internal/auth/service"
	"github.com/aussiebroadwan/sessionauth/internal/auth/store"
	"github.com/aussiebroadwan/sessionauth/pkg/cryptox"
	"github.com/aussiebroadwan/sessionauth/pkg/idx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestIssueThenValidate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, service.DefaultSessionConfig())
	u := h.seedUser(t, "alice")

	issued, err := h.sessions.Issue(ctx, u.ID, false, testRC)
	require.NoError(t, err)
	require.Equal(t, domain.SessionStandard, issued.Kind)
	require.Equal(t, u.ID, issued.UserID)
	require.WithinDuration(t, t0.Add(30*24*time.Hour), issued.ExpiresAt, time.Second)

	got, err := h.sessions.Validate(ctx, issued.Secret)
	require.NoError(t, err)
	require.Equal(t, issued.SessionID, got.ID)
	require.True(t, got.LastUsedAt.Equal(got.CreatedAt))
	require.Equal(t, "Mac", got.DeviceName)
	require.Equal(t, "203.0.113.7", got.IPAddress)

	require.Equal(t, 1.0, testutil.ToFloat64(h.metrics.SessionsIssued.WithLabelValues("STANDARD")))
}

func TestIssueExtended(t *testing.T) {
	h := newHarness(t, service.DefaultSessionConfig())
	u := h.seedUser(t, "alice")

	issued, err := h.sessions.Issue(context.Background(), u.ID, true, testRC)
	require.NoError(t, err)
	require.Equal(t, domain.SessionExtended, issued.Kind)
	require.WithinDuration(t, t0.Add(90*24*time.Hour), issued.ExpiresAt, time.Second)
}

func TestIssueStoresOnlyTheHash(t *testing.T) {
	h := newHarness(t, service.DefaultSessionConfig())
	u := h.seedUser(t, "alice")

	issued, err := h.sessions.Issue(context.Background(), u.ID, false, testRC)
	require.NoError(t, err)

	rec := h.findSession(t, issued.Secret)
	require.Len(t, rec.SecretHash, cryptox.SecretHashLength)
	require.NotEqual(t, issued.Secret, rec.SecretHash)
	require.True(t, cryptox.SecretMatchesHash(issued.Secret, rec.SecretHash))

	_, err = idx.Parse(issued.SessionID)
	require.NoError(t, err)
}

func TestValidateRejects(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, service.DefaultSessionConfig())
	u := h.seedUser(t, "alice")

	for _, raw := range []string{"", "   ", "\t\n"} {
		_, err := h.sessions.Validate(ctx, raw)
		require.ErrorIs(t, err, service.ErrRefreshTokenInvalid, "blank %q", raw)
	}

	_, err := h.sessions.Validate(ctx, "not-a-real-secret")
	require.ErrorIs(t, err, service.ErrRefreshTokenInvalid)

	issued, err := h.sessions.Issue(ctx, u.ID, false, testRC)
	require.NoError(t, err)

	h.clock.Set(issued.ExpiresAt)
	_, err = h.sessions.Validate(ctx, issued.Secret)
	require.ErrorIs(t, err, service.ErrRefreshTokenExpired, "expiry instant is already expired")

	require.Equal(t, 1.0, testutil.ToFloat64(h.metrics.RefreshFailures.WithLabelValues("refresh_token_expired")))
}

func TestValidateAdvancesLastUsed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, service.DefaultSessionConfig())
	u := h.seedUser(t, "alice")

	issued, err := h.sessions.Issue(ctx, u.ID, false, testRC)
	require.NoError(t, err)

	h.clock.Advance(time.Hour)
	got, err := h.sessions.Validate(ctx, issued.Secret)
	require.NoError(t, err)
	require.True(t, got.LastUsedAt.Equal(t0.Add(time.Hour)))

	rec := h.findSession(t, issued.Secret)
	require.True(t, rec.LastUsedAt.Equal(t0.Add(time.Hour)), "touch is persisted")
	require.True(t, rec.CreatedAt.Equal(t0))
}

func TestRevokeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, service.DefaultSessionConfig())
	u := h.seedUser(t, "alice")

	issued, err := h.sessions.Issue(ctx, u.ID, false, testRC)
	require.NoError(t, err)

	require.NoError(t, h.sessions.Revoke(ctx, issued.Secret))
	require.NoError(t, h.sessions.Revoke(ctx, issued.Secret))
	require.True(t, h.findSession(t, issued.Secret).Revoked)

	_, err = h.sessions.Validate(ctx, issued.Secret)
	require.ErrorIs(t, err, service.ErrRefreshTokenRevoked)

	require.NoError(t, h.sessions.Revoke(ctx, ""))
	require.NoError(t, h.sessions.Revoke(ctx, "unknown-secret"))
	require.Equal(t, 1.0, testutil.ToFloat64(h.metrics.SessionsRevoked.WithLabelValues("logout")))
}

func TestRotate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, service.DefaultSessionConfig())
	u := h.seedUser(t, "alice")

	old, err := h.sessions.Issue(ctx, u.ID, true, testRC)
	require.NoError(t, err)

	h.clock.Advance(time.Minute)
	next, err := h.sessions.Rotate(ctx, old.Secret, testRC)
	require.NoError(t, err)
	require.NotEqual(t, old.Secret, next.Secret)
	require.NotEqual(t, old.SessionID, next.SessionID)
	require.Equal(t, domain.SessionExtended, next.Kind, "kind is preserved")
	require.WithinDuration(t, t0.Add(time.Minute+90*24*time.Hour), next.ExpiresAt, time.Second)

	_, err = h.sessions.Validate(ctx, old.Secret)
	require.ErrorIs(t, err, service.ErrRefreshTokenRevoked)

	_, err = h.sessions.Validate(ctx, next.Secret)
	require.NoError(t, err)

	_, err = h.sessions.Rotate(ctx, old.Secret, testRC)
	require.ErrorIs(t, err, service.ErrRefreshTokenRevoked, "replayed secret")

	require.Equal(t, 1.0, testutil.ToFloat64(h.metrics.SessionsRotated))
}

func TestRotateDisabledReturnsPresentedSecret(t *testing.T) {
	ctx := context.Background()
	cfg := service.DefaultSessionConfig()
	cfg.Rotate = false
	h := newHarness(t, cfg)
	u := h.seedUser(t, "alice")

	old, err := h.sessions.Issue(ctx, u.ID, false, testRC)
	require.NoError(t, err)

	h.clock.Advance(time.Hour)
	got, err := h.sessions.Rotate(ctx, old.Secret, testRC)
	require.NoError(t, err)
	require.Equal(t, old.Secret, got.Secret)
	require.Equal(t, old.SessionID, got.SessionID)
	require.True(t, old.ExpiresAt.Equal(got.ExpiresAt))

	_, err = h.sessions.Validate(ctx, old.Secret)
	require.NoError(t, err, "secret stays usable")
	require.Equal(t, 1, h.countValid(t, u.ID))
}

func TestRotateBlank(t *testing.T) {
	h := newHarness(t, service.DefaultSessionConfig())
	_, err := h.sessions.Rotate(context.Background(), " ", testRC)
	require.ErrorIs(t, err, service.ErrRefreshTokenInvalid)
}

func TestCapEvictsOldest(t *testing.T) {
	ctx := context.Background()
	cfg := service.DefaultSessionConfig()
	cfg.MaxActiveSessions = 3
	h := newHarness(t, cfg)
	u := h.seedUser(t, "alice")

	var issued []string
	for i := 0; i < 4; i++ {
		s, err := h.sessions.Issue(ctx, u.ID, false, testRC)
		require.NoError(t, err)
		issued = append(issued, s.Secret)
		h.clock.Advance(time.Second)
	}

	require.Equal(t, 3, h.countValid(t, u.ID))
	require.True(t, h.findSession(t, issued[0]).Revoked, "oldest is evicted")
	for _, secret := range issued[1:] {
		require.False(t, h.findSession(t, secret).Revoked)
	}
	require.Equal(t, 1.0, testutil.ToFloat64(h.metrics.SessionsRevoked.WithLabelValues("eviction")))
}

func TestCapOfOne(t *testing.T) {
	ctx := context.Background()
	cfg := service.DefaultSessionConfig()
	cfg.MaxActiveSessions = 1
	h := newHarness(t, cfg)
	u := h.seedUser(t, "alice")

	a, err := h.sessions.Issue(ctx, u.ID, false, testRC)
	require.NoError(t, err)
	h.clock.Advance(time.Second)
	b, err := h.sessions.Issue(ctx, u.ID, false, testRC)
	require.NoError(t, err)

	require.True(t, h.findSession(t, a.Secret).Revoked)
	_, err = h.sessions.Validate(ctx, b.Secret)
	require.NoError(t, err)
	_, err = h.sessions.Validate(ctx, a.Secret)
	require.ErrorIs(t, err, service.ErrRefreshTokenRevoked)
}

func TestCapTieBreaksOnLowestID(t *testing.T) {
	ctx := context.Background()
	cfg := service.DefaultSessionConfig()
	cfg.MaxActiveSessions = 2
	h := newHarness(t, cfg)
	u := h.seedUser(t, "alice")

	// Same clock reading for all three, so CreatedAt ties.
	a, err := h.sessions.Issue(ctx, u.ID, false, testRC)
	require.NoError(t, err)
	b, err := h.sessions.Issue(ctx, u.ID, false, testRC)
	require.NoError(t, err)
	require.Negative(t, idx.Compare(idx.ID(a.SessionID), idx.ID(b.SessionID)))

	_, err = h.sessions.Issue(ctx, u.ID, false, testRC)
	require.NoError(t, err)

	require.True(t, h.findSession(t, a.Secret).Revoked)
	require.False(t, h.findSession(t, b.Secret).Revoked)
}

func TestCapDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := service.DefaultSessionConfig()
	cfg.MaxActiveSessions = 0
	h := newHarness(t, cfg)
	u := h.seedUser(t, "alice")

	for i := 0; i < 8; i++ {
		_, err := h.sessions.Issue(ctx, u.ID, false, testRC)
		require.NoError(t, err)
	}
	require.Equal(t, 8, h.countValid(t, u.ID))
}

func TestCapIsSoftUnderConcurrentIssue(t *testing.T) {
	ctx := context.Background()
	cfg := service.DefaultSessionConfig()
	cfg.MaxActiveSessions = 2
	h := newHarness(t, cfg)
	u := h.seedUser(t, "alice")

	const workers = 6
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.sessions.Issue(ctx, u.ID, false, testRC)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// Racing issues may each pass the cap check before the others commit, so
	// the cap can be overshot by at most workers-1. Drivers that serialize
	// writers land exactly on the cap.
	n := h.countValid(t, u.ID)
	require.GreaterOrEqual(t, n, 1)
	require.LessOrEqual(t, n, cfg.MaxActiveSessions+workers-1)
}

func TestRevokeAll(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, service.DefaultSessionConfig())
	u := h.seedUser(t, "alice")
	other := h.seedUser(t, "bob")

	for i := 0; i < 3; i++ {
		_, err := h.sessions.Issue(ctx, u.ID, i%2 == 0, testRC)
		require.NoError(t, err)
	}
	_, err := h.sessions.Issue(ctx, other.ID, false, testRC)
	require.NoError(t, err)

	require.Equal(t, 3, h.countValid(t, u.ID))
	require.NoError(t, h.sessions.RevokeAll(ctx, u.ID))
	require.Zero(t, h.countValid(t, u.ID))
	require.Equal(t, 1, h.countValid(t, other.ID), "other users untouched")
	require.Equal(t, 3.0, testutil.ToFloat64(h.metrics.SessionsRevoked.WithLabelValues("logout_all")))
}

func TestSweepExpired(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, service.DefaultSessionConfig())
	u := h.seedUser(t, "alice")

	// Standard sessions live 30 days; back-date issuance so one expired 8
	// days before t0 and the other 6 days before t0.
	h.clock.Set(t0.Add(-38 * 24 * time.Hour))
	old, err := h.sessions.Issue(ctx, u.ID, false, testRC)
	require.NoError(t, err)

	h.clock.Set(t0.Add(-36 * 24 * time.Hour))
	recent, err := h.sessions.Issue(ctx, u.ID, false, testRC)
	require.NoError(t, err)

	h.clock.Set(t0)
	n, err := h.sessions.SweepExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = h.store.RefreshSessions().FindBySecretHash(ctx, cryptox.HashSecret(old.Secret))
	require.Error(t, err)
	require.True(t, h.findSession(t, recent.Secret).Expired(t0))
	require.Equal(t, 1.0, testutil.ToFloat64(h.metrics.SessionsSwept))
}

func TestListActive(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, service.DefaultSessionConfig())
	u := h.seedUser(t, "alice")

	a, err := h.sessions.Issue(ctx, u.ID, false, testRC)
	require.NoError(t, err)
	h.clock.Advance(time.Second)
	b, err := h.sessions.Issue(ctx, u.ID, true, testRC)
	require.NoError(t, err)
	h.clock.Advance(time.Second)
	c, err := h.sessions.Issue(ctx, u.ID, false, testRC)
	require.NoError(t, err)
	require.NoError(t, h.sessions.Revoke(ctx, c.Secret))

	list, err := h.sessions.ListActive(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, a.SessionID, list[0].ID)
	require.Equal(t, b.SessionID, list[1].ID)
}

func TestStoreFailureIsNotAnAuthFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, service.DefaultSessionConfig())
	require.NoError(t, h.store.Close())

	_, err := h.sessions.Validate(ctx, "some-secret")
	require.Error(t, err)
	require.False(t, service.IsRefreshError(err))

	require.Error(t, h.sessions.Revoke(ctx, "some-secret"), "store failures surface from revoke")
}

// digestMismatchStore hands back sessions whose stored digest belongs to a
// different secret, as a lookup collision would.
type digestMismatchStore struct{ store.Store }

func (s digestMismatchStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		return fn(digestMismatchTx{tx})
	})
}

// innerTx names the embedded field so it does not shadow the Tx method.
type innerTx = store.Tx

type digestMismatchTx struct{ innerTx }

func (t digestMismatchTx) RefreshSessions() store.RefreshSessions {
	return digestMismatchRepo{t.innerTx.RefreshSessions()}
}

type digestMismatchRepo struct{ store.RefreshSessions }

func (r digestMismatchRepo) FindBySecretHash(ctx context.Context, hash string) (domain.RefreshSession, error) {
	s, err := r.RefreshSessions.FindBySecretHash(ctx, hash)
	s.SecretHash = cryptox.HashSecret("a-different-secret")
	return s, err
}

func TestLookupConfirmsStoredDigest(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, service.DefaultSessionConfig())
	u := h.seedUser(t, "alice")

	issued, err := h.sessions.Issue(ctx, u.ID, false, testRC)
	require.NoError(t, err)

	mismatched := service.NewSessionService(digestMismatchStore{h.store}, service.DefaultSessionConfig(), h.metrics)
	mismatched.Clock = h.clock.Now

	_, err = mismatched.Validate(ctx, issued.Secret)
	require.ErrorIs(t, err, service.ErrRefreshTokenInvalid)

	_, err = mismatched.Rotate(ctx, issued.Secret, testRC)
	require.ErrorIs(t, err, service.ErrRefreshTokenInvalid)

	require.NoError(t, mismatched.Revoke(ctx, issued.Secret))
	require.False(t, h.findSession(t, issued.Secret).Revoked, "mismatched digest must not be revoked")

	_, err = h.sessions.Validate(ctx, issued.Secret)
	require.NoError(t, err)
}
