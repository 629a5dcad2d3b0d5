package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/sessionauth/internal/auth/domain"
	"github.com/aussiebroadwan/sessionauth/internal/auth/service"
	"github.com/aussiebroadwan/sessionauth/pkg/authsdk"
	"github.com/aussiebroadwan/sessionauth/pkg/httpx"
)

// AuthHandler serves the credential and refresh-session endpoints under
// /api/auth. The refresh secret only ever travels in the refresh cookie.
type AuthHandler struct {
	Auth   *service.AuthService
	Cookie httpx.CookieConfig
	Clock  func() time.Time
}

func (h *AuthHandler) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

func requestContext(r *http.Request) domain.RequestContext {
	return domain.NewRequestContext(httpx.ClientIP(r), r.UserAgent())
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(w, r, dst); err != nil {
		authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, err.Error()).WriteError(w, r)
		return false
	}
	return true
}

// HandleRegister godoc
//
//	@Summary		Register an account
//	@Description	Creates an active USER account. Usernames are 3-32 characters of a-z, A-Z, 0-9, _, . or -.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest		true	"username, email, password"
//	@Success		201		{object}	authsdk.RegisterResponse	"id, username"
//	@Failure		400		{object}	authsdk.ErrorResponse		"Malformed body or invalid fields"
//	@Failure		409		{object}	authsdk.ErrorResponse		"Username or email already registered"
//	@Failure		429		{object}	authsdk.ErrorResponse		"Rate limit exceeded"
//	@Router			/api/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := authsdk.ValidateRegister(req).Err(); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.Auth.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, authsdk.RegisterResponse{ID: user.ID, Username: user.Username})
}

// HandleLogin godoc
//
//	@Summary		Log in
//	@Description	Verifies the credentials and opens a refresh session. rememberMe selects the extended session lifetime.
//	@Description	The refresh secret is returned only in the Set-Cookie header.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"username, password, rememberMe"
//	@Success		200		{object}	authsdk.AuthResponse	"accessToken, tokenType, expiresIn, username"
//	@Header			200		{string}	Set-Cookie				"HttpOnly refresh cookie"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Malformed body or missing fields"
//	@Failure		401		{object}	authsdk.ErrorResponse	"invalid_credentials"
//	@Failure		403		{object}	authsdk.ErrorResponse	"account_locked or account_disabled"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Rate limit exceeded"
//	@Router			/api/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := authsdk.ValidateLogin(req).Err(); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.Auth.Login(r.Context(), service.LoginInput{
		Username:   req.Username,
		Password:   req.Password,
		RememberMe: req.RememberMe,
	}, requestContext(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.writeAuth(w, res)
}

// HandleRefresh godoc
//
//	@Summary		Refresh the access token
//	@Description	Exchanges the refresh cookie for a new access token. With rotation enabled the cookie is replaced and the old secret stops working.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	authsdk.AuthResponse	"accessToken, tokenType, expiresIn, username"
//	@Header			200	{string}	Set-Cookie				"Rotated HttpOnly refresh cookie"
//	@Failure		401	{object}	authsdk.ErrorResponse	"refresh_token_invalid, refresh_token_revoked or refresh_token_expired"
//	@Failure		403	{object}	authsdk.ErrorResponse	"account_locked or account_disabled"
//	@Router			/api/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.Auth.Refresh(r.Context(), h.Cookie.Read(r), requestContext(r))
	if err != nil {
		if service.IsRefreshError(err) {
			h.Cookie.Clear(w)
		}
		writeError(w, r, err)
		return
	}

	h.writeAuth(w, res)
}

// HandleLogout godoc
//
//	@Summary		Log out
//	@Description	Revokes the session behind the refresh cookie and clears the cookie. Succeeds for missing or unknown cookies.
//	@Tags			Auth
//	@Success		204	"Logged out"
//	@Failure		500	{object}	authsdk.ErrorResponse	"Internal server error"
//	@Router			/api/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.Logout(r.Context(), h.Cookie.Read(r)); err != nil {
		writeError(w, r, err)
		return
	}

	h.Cookie.Clear(w)
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandleLogoutAll godoc
//
//	@Summary		Log out everywhere
//	@Description	Uses the refresh cookie to identify the user, then revokes every one of their sessions.
//	@Tags			Auth
//	@Success		204	"All sessions revoked"
//	@Failure		401	{object}	authsdk.ErrorResponse	"refresh_token_invalid, refresh_token_revoked or refresh_token_expired"
//	@Router			/api/auth/logout-all [post].
func (h *AuthHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.LogoutAll(r.Context(), h.Cookie.Read(r)); err != nil {
		if service.IsRefreshError(err) {
			h.Cookie.Clear(w)
		}
		writeError(w, r, err)
		return
	}

	h.Cookie.Clear(w)
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) writeAuth(w http.ResponseWriter, res domain.AuthResult) {
	h.Cookie.Set(w, res.RefreshSecret, res.RefreshExpiresAt, h.now())
	httpx.WriteJSON(w, http.StatusOK, authsdk.AuthResponse{
		AccessToken: res.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   res.ExpiresIn,
		Username:    res.Username,
	})
}
