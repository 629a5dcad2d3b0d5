package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/aussiebroadwan/sessionauth/internal/auth/domain"
	"github.com/aussiebroadwan/sessionauth/internal/auth/store"
	"github.com/aussiebroadwan/sessionauth/pkg/cryptox"
	"github.com/aussiebroadwan/sessionauth/pkg/idx"
	"github.com/aussiebroadwan/sessionauth/pkg/jwtx"
	"github.com/aussiebroadwan/sessionauth/pkg/slogx"
)

// PasswordMatcher reports whether password matches the stored hash.
type PasswordMatcher func(password, hash string) bool

type LoginInput struct {
	Username   string
	Password   string
	RememberMe bool
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// AuthService ties credentials, access tokens and refresh sessions together.
// Failures from the session layer are returned unchanged.
type AuthService struct {
	Store    store.Store
	Codec    *jwtx.Codec
	Sessions *SessionService
	Matcher  PasswordMatcher
	Metrics  *Metrics
}

func (s *AuthService) matches(password, hash string) bool {
	if s.Matcher != nil {
		return s.Matcher(password, hash)
	}
	return cryptox.PasswordMatches(password, hash)
}

var (
	decoyOnce sync.Once
	decoyHash string
)

// decoy burns one hash verification for unknown usernames so they cost the
// same as a wrong password.
func (s *AuthService) decoy(password string) {
	decoyOnce.Do(func() {
		decoyHash, _ = cryptox.HashPassword(idx.New().String())
	})
	if decoyHash != "" {
		_ = s.matches(password, decoyHash)
	}
}

// Login checks the credentials, then account state, and opens a new
// refresh session. Unknown usernames and wrong passwords both fail with
// ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, in LoginInput, rc domain.RequestContext) (domain.AuthResult, error) {
	l := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByUsername(ctx, in.Username)
	if errors.Is(err, store.ErrNotFound) {
		s.decoy(in.Password)
		s.Metrics.login("invalid_credentials")
		l.Info("login failed", slog.String("reason", "unknown_user"))
		return domain.AuthResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.AuthResult{}, fmt.Errorf("load user: %w", err)
	}

	if !s.matches(in.Password, user.PasswordHash) {
		s.Metrics.login("invalid_credentials")
		l.Info("login failed", slog.String("reason", "bad_password"), slog.String("user_id", user.ID))
		return domain.AuthResult{}, ErrInvalidCredentials
	}

	if err := assertAccountOK(user); err != nil {
		s.Metrics.login(err.Error())
		l.Info("login refused", slog.String("reason", err.Error()), slog.String("user_id", user.ID))
		return domain.AuthResult{}, err
	}

	issued, err := s.Sessions.Issue(ctx, user.ID, in.RememberMe, rc)
	if err != nil {
		return domain.AuthResult{}, err
	}

	if err := s.Store.Users().UpdateLastLogin(ctx, user.ID, s.Sessions.now()); err != nil {
		l.Warn("failed to record last login", slog.String("user_id", user.ID), slog.Any("error", err))
	}

	s.Metrics.login("success")
	l.Info("login succeeded", slog.String("user_id", user.ID), slog.String("session_id", issued.SessionID))
	return s.result(user, issued)
}

// Refresh rotates the presented refresh secret and mints a new access token.
// The owning account is re-checked because it may have been locked or
// disabled since the session was issued.
func (s *AuthService) Refresh(ctx context.Context, raw string, rc domain.RequestContext) (domain.AuthResult, error) {
	issued, err := s.Sessions.Rotate(ctx, raw, rc)
	if err != nil {
		return domain.AuthResult{}, err
	}

	user, err := s.Store.Users().GetUserByID(ctx, issued.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.AuthResult{}, ErrUserNotFound
	}
	if err != nil {
		return domain.AuthResult{}, fmt.Errorf("load user: %w", err)
	}

	if err := assertAccountOK(user); err != nil {
		// Do not leave a usable session behind for a refused account.
		if rerr := s.Sessions.Revoke(ctx, issued.Secret); rerr != nil {
			slogx.FromContext(ctx).Warn("failed to revoke session of refused account",
				slog.String("session_id", issued.SessionID),
				slog.Any("error", rerr),
			)
		}
		return domain.AuthResult{}, err
	}

	return s.result(user, issued)
}

// Logout revokes one session. It never fails on bad input.
func (s *AuthService) Logout(ctx context.Context, raw string) error {
	return s.Sessions.Revoke(ctx, raw)
}

// LogoutAll uses the presented secret to find its owner and revokes every
// session that owner has.
func (s *AuthService) LogoutAll(ctx context.Context, raw string) error {
	session, err := s.Sessions.Validate(ctx, raw)
	if err != nil {
		return err
	}
	return s.Sessions.RevokeAll(ctx, session.UserID)
}

// Register creates an active USER account.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.Sessions.now()
	user := domain.User{
		ID:           idx.NewAt(now).String(),
		Username:     strings.TrimSpace(in.Username),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrUserExists
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	slogx.FromContext(ctx).Info("user registered", slog.String("user_id", user.ID))
	return user, nil
}

// CurrentUser resolves the subject of a verified access token.
func (s *AuthService) CurrentUser(ctx context.Context, username string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

func (s *AuthService) result(user domain.User, issued domain.IssuedSession) (domain.AuthResult, error) {
	token, err := s.Codec.Issue(user.Username, user.Authorities(), nil)
	if err != nil {
		return domain.AuthResult{}, fmt.Errorf("issue access token: %w", err)
	}

	return domain.AuthResult{
		AccessToken:      token,
		ExpiresIn:        s.Codec.TimeUntilExpirySeconds(token),
		Username:         user.Username,
		RefreshSecret:    issued.Secret,
		RefreshExpiresAt: issued.ExpiresAt,
	}, nil
}

func assertAccountOK(u domain.User) error {
	if u.Locked {
		return ErrAccountLocked
	}
	if !u.Active {
		return ErrAccountDisabled
	}
	return nil
}
