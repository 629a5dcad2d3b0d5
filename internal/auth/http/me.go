package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/sessionauth/internal/auth/service"
	"github.com/aussiebroadwan/sessionauth/pkg/authsdk"
	"github.com/aussiebroadwan/sessionauth/pkg/httpx"
)

type MeHandler struct {
	Auth *service.AuthService
}

// ServeHTTP godoc
//
//	@Summary		Current user
//	@Description	Returns the account behind the bearer token.
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.MeResponse		"id, username, email, role"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Failure		500	{object}	authsdk.ErrorResponse	"Internal server error"
//	@Router			/api/me [get].
func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.PrincipalFrom(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w, r)
		return
	}

	user, err := h.Auth.CurrentUser(r.Context(), p.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MeResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     string(user.Role),
	})
}

type SessionsHandler struct {
	Sessions *service.SessionService
}

// ServeHTTP godoc
//
//	@Summary		Active sessions
//	@Description	Lists the caller's unrevoked, unexpired refresh sessions, oldest first. Secrets are never returned.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.SessionsResponse	"sessions"
//	@Failure		401	{object}	authsdk.ErrorResponse		"Invalid or missing access token"
//	@Router			/api/auth/sessions [get].
func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.PrincipalFrom(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w, r)
		return
	}

	sessions, err := h.Sessions.ListActive(r.Context(), p.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := authsdk.SessionsResponse{Sessions: make([]authsdk.SessionInfo, 0, len(sessions))}
	for _, s := range sessions {
		out.Sessions = append(out.Sessions, authsdk.SessionInfo{
			ID:         s.ID,
			Kind:       string(s.Kind),
			CreatedAt:  s.CreatedAt.UTC().Format(time.RFC3339),
			LastUsedAt: s.LastUsedAt.UTC().Format(time.RFC3339),
			ExpiresAt:  s.ExpiresAt.UTC().Format(time.RFC3339),
			IPAddress:  s.IPAddress,
			DeviceName: s.DeviceName,
		})
	}

	httpx.WriteJSON(w, http.StatusOK, out)
}
