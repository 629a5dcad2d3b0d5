package authsdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is a logged-in user. Its methods refresh the access token when it
// is about to expire, rotating the refresh cookie in the client's jar.
type Session struct {
	client *SDKClient

	mu          sync.RWMutex
	accessToken string
	username    string
	roles       []string
	expiresAt   time.Time
}

func newSession(client *SDKClient, auth *AuthResponse) *Session {
	s := &Session{client: client}
	s.apply(auth)
	return s
}

// apply stores a fresh token. Callers hold mu or own s exclusively.
func (s *Session) apply(auth *AuthResponse) {
	s.accessToken = auth.AccessToken
	s.username = auth.Username
	s.expiresAt = time.Now().Add(time.Duration(auth.ExpiresIn)*time.Second - s.client.RefreshLeeway)
	s.roles = unverifiedRoles(auth.AccessToken)
}

// unverifiedRoles reads the roles claim for client-side display only. The
// server verifies the token on every request.
func unverifiedRoles(token string) []string {
	var claims struct {
		jwt.RegisteredClaims
		Roles []string `json:"roles"`
	}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil
	}
	return claims.Roles
}

// AccessToken returns the current access token without checking expiration.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// HasRole reports whether the current token carries role, e.g. "ROLE_ADMIN".
func (s *Session) HasRole(role string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.roles, role)
}

// Refresh rotates the refresh cookie and replaces the access token.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Session) refreshLocked(ctx context.Context) error {
	auth, err := s.client.refresh(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}
	s.apply(auth)
	return nil
}

// getValidToken returns a valid access token, automatically refreshing if expired.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if time.Now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed while we waited.
	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}
	if err := s.refreshLocked(ctx); err != nil {
		return "", err
	}
	return s.accessToken, nil
}

// Me returns the account behind the session.
func (s *Session) Me(ctx context.Context) (*MeResponse, error) {
	resp, err := s.sendAuthed(ctx, http.MethodGet, "/api/me")
	if err != nil {
		return nil, err
	}

	var me MeResponse
	if err := readJSON(resp, &me, http.StatusOK); err != nil {
		return nil, err
	}
	return &me, nil
}

// Sessions lists the user's active refresh sessions.
func (s *Session) Sessions(ctx context.Context) ([]SessionInfo, error) {
	resp, err := s.sendAuthed(ctx, http.MethodGet, "/api/auth/sessions")
	if err != nil {
		return nil, err
	}

	var out SessionsResponse
	if err := readJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// Logout revokes this session's refresh cookie. The access token stays
// valid until it expires.
func (s *Session) Logout(ctx context.Context) error {
	return s.end(ctx, "/api/auth/logout")
}

// LogoutAll revokes every session of the user, on every device.
func (s *Session) LogoutAll(ctx context.Context) error {
	return s.end(ctx, "/api/auth/logout-all")
}

func (s *Session) end(ctx context.Context, path string) error {
	resp, err := s.client.send(ctx, http.MethodPost, path, nil, "")
	if err != nil {
		return err
	}
	if err := expectNoContent(resp); err != nil {
		return err
	}

	s.mu.Lock()
	s.accessToken = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()
	return nil
}

// IsAuthError reports whether err means the user has to log in again.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized
}
