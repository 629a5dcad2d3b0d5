package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/sessionauth/internal/auth/domain"
	"github.com/aussiebroadwan/sessionauth/internal/auth/store"
	"github.com/aussiebroadwan/sessionauth/pkg/cryptox"
	"github.com/aussiebroadwan/sessionauth/pkg/slogx"
)

const (
	DefaultStandardTTL       = 30 * 24 * time.Hour
	DefaultExtendedTTL       = 90 * 24 * time.Hour
	DefaultMaxActiveSessions = 5
	DefaultRetention         = 7 * 24 * time.Hour
)

type SessionConfig struct {
	StandardTTL time.Duration
	ExtendedTTL time.Duration // "remember me"

	// Rotate replaces the refresh secret on every refresh. When false the
	// presented secret keeps working until it expires.
	Rotate bool

	// MaxActiveSessions caps valid sessions per user. Zero or less disables
	// the cap.
	MaxActiveSessions int

	// Retention is how long expired sessions are kept before the sweep
	// deletes them.
	Retention time.Duration
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		StandardTTL:       DefaultStandardTTL,
		ExtendedTTL:       DefaultExtendedTTL,
		Rotate:            true,
		MaxActiveSessions: DefaultMaxActiveSessions,
		Retention:         DefaultRetention,
	}
}

// SessionService owns the refresh session lifecycle. Every mutation runs in
// a single store transaction.
//
// The per-user cap is a soft bound: two concurrent issues for a user at the
// cap can both pass the check and both insert.
type SessionService struct {
	Store   store.Store
	Config  SessionConfig
	Metrics *Metrics
	Clock   func() time.Time
}

func NewSessionService(s store.Store, cfg SessionConfig, m *Metrics) *SessionService {
	return &SessionService{Store: s, Config: cfg, Metrics: m}
}

// now is UTC at millisecond precision, the finest every driver keeps.
func (s *SessionService) now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC().Truncate(time.Millisecond)
	}
	return time.Now().UTC().Truncate(time.Millisecond)
}

func (s *SessionService) ttlFor(kind domain.SessionKind) time.Duration {
	if kind == domain.SessionExtended {
		return s.Config.ExtendedTTL
	}
	return s.Config.StandardTTL
}

// Issue creates a new refresh session for userID, evicting the user's oldest
// valid sessions first when they are at the cap. The raw secret in the
// result is never stored.
func (s *SessionService) Issue(
	ctx context.Context,
	userID string,
	extended bool,
	rc domain.RequestContext,
) (domain.IssuedSession, error) {
	var issued domain.IssuedSession
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		issued, err = s.issueTx(ctx, tx, userID, domain.KindFor(extended), rc, s.now())
		return err
	})
	if err != nil {
		return domain.IssuedSession{}, err
	}
	return issued, nil
}

func (s *SessionService) issueTx(
	ctx context.Context,
	tx store.Tx,
	userID string,
	kind domain.SessionKind,
	rc domain.RequestContext,
	now time.Time,
) (domain.IssuedSession, error) {
	if err := s.enforceCap(ctx, tx, userID, now); err != nil {
		return domain.IssuedSession{}, err
	}

	secret, err := cryptox.NewSessionSecret()
	if err != nil {
		return domain.IssuedSession{}, fmt.Errorf("generate refresh secret: %w", err)
	}

	saved, err := tx.RefreshSessions().Save(ctx, domain.RefreshSession{
		SecretHash: cryptox.HashSecret(secret),
		UserID:     userID,
		Kind:       kind,
		CreatedAt:  now,
		LastUsedAt: now,
		ExpiresAt:  now.Add(s.ttlFor(kind)),
		IPAddress:  rc.IPAddress,
		UserAgent:  rc.UserAgent,
		DeviceName: rc.DeviceName,
	})
	if err != nil {
		return domain.IssuedSession{}, fmt.Errorf("save refresh session: %w", err)
	}

	s.Metrics.issued(string(kind))
	slogx.FromContext(ctx).Debug("refresh session issued",
		slog.String("session_id", saved.ID),
		slog.String("user_id", userID),
		slog.String("kind", string(kind)),
	)

	return domain.IssuedSession{
		SessionID: saved.ID,
		Secret:    secret,
		ExpiresAt: saved.ExpiresAt,
		Kind:      kind,
		UserID:    userID,
	}, nil
}

// enforceCap revokes the oldest valid sessions until one more fits under
// MaxActiveSessions. Oldest is smallest CreatedAt, ties broken by lowest ID.
func (s *SessionService) enforceCap(ctx context.Context, tx store.Tx, userID string, now time.Time) error {
	limit := s.Config.MaxActiveSessions
	if limit <= 0 {
		return nil
	}

	count, err := tx.RefreshSessions().CountValid(ctx, userID, now)
	if err != nil {
		return fmt.Errorf("count sessions: %w", err)
	}
	if count < limit {
		return nil
	}

	valid, err := tx.RefreshSessions().ListValid(ctx, userID, now)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	excess := len(valid) - limit + 1
	for i := 0; i < excess && i < len(valid); i++ {
		victim := valid[i]
		victim.Revoked = true
		if _, err := tx.RefreshSessions().Save(ctx, victim); err != nil {
			return fmt.Errorf("evict session: %w", err)
		}
		slogx.FromContext(ctx).Info("refresh session evicted",
			slog.String("session_id", victim.ID),
			slog.String("user_id", userID),
			slog.Int("limit", limit),
		)
	}
	s.Metrics.revoked(revokeEviction, int64(excess))
	return nil
}

// Validate checks a raw secret and records its use. Blank input fails
// without touching the store.
func (s *SessionService) Validate(ctx context.Context, raw string) (domain.RefreshSession, error) {
	if isBlank(raw) {
		return domain.RefreshSession{}, ErrRefreshTokenInvalid
	}

	var session domain.RefreshSession
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		session, err = s.validateTx(ctx, tx, raw, s.now())
		return err
	})
	if err != nil {
		s.Metrics.refreshFailed(err)
		return domain.RefreshSession{}, err
	}
	return session, nil
}

// findBySecret looks up the session for raw and confirms the stored digest
// in constant time. A row whose digest does not match is ErrNotFound.
func findBySecret(ctx context.Context, tx store.Tx, raw string) (domain.RefreshSession, error) {
	session, err := tx.RefreshSessions().FindBySecretHash(ctx, cryptox.HashSecret(raw))
	if err != nil {
		return domain.RefreshSession{}, err
	}
	if !cryptox.SecretMatchesHash(raw, session.SecretHash) {
		return domain.RefreshSession{}, store.ErrNotFound
	}
	return session, nil
}

func (s *SessionService) validateTx(
	ctx context.Context,
	tx store.Tx,
	raw string,
	now time.Time,
) (domain.RefreshSession, error) {
	session, err := findBySecret(ctx, tx, raw)
	if errors.Is(err, store.ErrNotFound) {
		return domain.RefreshSession{}, ErrRefreshTokenInvalid
	}
	if err != nil {
		return domain.RefreshSession{}, fmt.Errorf("find refresh session: %w", err)
	}

	if session.Revoked {
		slogx.FromContext(ctx).Warn("revoked refresh session presented",
			slog.String("session_id", session.ID),
			slog.String("user_id", session.UserID),
		)
		return domain.RefreshSession{}, ErrRefreshTokenRevoked
	}
	if session.Expired(now) {
		return domain.RefreshSession{}, ErrRefreshTokenExpired
	}

	session.LastUsedAt = now
	session, err = tx.RefreshSessions().Save(ctx, session)
	if err != nil {
		return domain.RefreshSession{}, fmt.Errorf("touch refresh session: %w", err)
	}
	return session, nil
}

// Rotate exchanges a raw secret for a new session of the same kind and
// revokes the old one, atomically. With rotation disabled the presented
// secret and its original expiry are handed back unchanged.
func (s *SessionService) Rotate(
	ctx context.Context,
	raw string,
	rc domain.RequestContext,
) (domain.IssuedSession, error) {
	if isBlank(raw) {
		s.Metrics.refreshFailed(ErrRefreshTokenInvalid)
		return domain.IssuedSession{}, ErrRefreshTokenInvalid
	}

	var issued domain.IssuedSession
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		now := s.now()
		old, err := s.validateTx(ctx, tx, raw, now)
		if err != nil {
			return err
		}

		if !s.Config.Rotate {
			issued = domain.IssuedSession{
				SessionID: old.ID,
				Secret:    raw,
				ExpiresAt: old.ExpiresAt,
				Kind:      old.Kind,
				UserID:    old.UserID,
			}
			return nil
		}

		old.Revoked = true
		if _, err := tx.RefreshSessions().Save(ctx, old); err != nil {
			return fmt.Errorf("revoke rotated session: %w", err)
		}

		issued, err = s.issueTx(ctx, tx, old.UserID, old.Kind, rc, now)
		if err != nil {
			return err
		}

		slogx.FromContext(ctx).Info("refresh session rotated",
			slog.String("old_session_id", old.ID),
			slog.String("new_session_id", issued.SessionID),
			slog.String("user_id", old.UserID),
		)
		return nil
	})
	if err != nil {
		s.Metrics.refreshFailed(err)
		return domain.IssuedSession{}, err
	}

	if s.Config.Rotate {
		s.Metrics.rotated()
		s.Metrics.revoked(revokeRotation, 1)
	}
	return issued, nil
}

// Revoke marks the session behind raw as revoked. Blank and unknown secrets
// are ignored so callers learn nothing about which secrets exist.
func (s *SessionService) Revoke(ctx context.Context, raw string) error {
	if isBlank(raw) {
		return nil
	}

	var revokedID string
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		session, err := findBySecret(ctx, tx, raw)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("find refresh session: %w", err)
		}
		if session.Revoked {
			return nil
		}

		session.Revoked = true
		if _, err := tx.RefreshSessions().Save(ctx, session); err != nil {
			return fmt.Errorf("revoke refresh session: %w", err)
		}
		revokedID = session.ID
		return nil
	})
	if err != nil {
		return err
	}

	if revokedID != "" {
		s.Metrics.revoked(revokeLogout, 1)
		slogx.FromContext(ctx).Info("refresh session revoked", slog.String("session_id", revokedID))
	}
	return nil
}

// RevokeAll revokes every session of userID.
func (s *SessionService) RevokeAll(ctx context.Context, userID string) error {
	var n int64
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		n, err = tx.RefreshSessions().RevokeAllForUser(ctx, userID)
		return err
	})
	if err != nil {
		return fmt.Errorf("revoke all sessions: %w", err)
	}

	s.Metrics.revoked(revokeLogoutAll, n)
	slogx.FromContext(ctx).Info("refresh sessions revoked",
		slog.String("user_id", userID),
		slog.Int64("count", n),
	)
	return nil
}

// SweepExpired deletes sessions that expired more than Retention ago and
// returns how many were removed.
func (s *SessionService) SweepExpired(ctx context.Context) (int64, error) {
	threshold := s.now().Add(-s.Config.Retention)

	n, err := s.Store.RefreshSessions().DeleteExpiredBefore(ctx, threshold)
	if err != nil {
		return 0, fmt.Errorf("sweep expired sessions: %w", err)
	}

	s.Metrics.swept(n)
	slogx.FromContext(ctx).Info("expired refresh sessions swept",
		slog.Int64("deleted", n),
		slog.Time("threshold", threshold),
	)
	return n, nil
}

// ListActive returns the user's valid sessions, oldest first.
func (s *SessionService) ListActive(ctx context.Context, userID string) ([]domain.RefreshSession, error) {
	sessions, err := s.Store.RefreshSessions().ListValid(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
