package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/sessionauth/internal/auth/service"
	"github.com/aussiebroadwan/sessionauth/pkg/authsdk"
	"github.com/aussiebroadwan/sessionauth/pkg/jwtx"
	"github.com/aussiebroadwan/sessionauth/pkg/slogx"
)

// serviceErrors maps service sentinels onto their wire form. Statuses are
// chosen so a client can tell "log in again" (401) from "you may not" (403).
var serviceErrors = []struct {
	err error
	api *authsdk.APIError
}{
	{service.ErrInvalidCredentials, authsdk.ErrInvalidCredentials},
	{service.ErrAccountLocked, authsdk.ErrAccountLocked},
	{service.ErrAccountDisabled, authsdk.ErrAccountDisabled},
	{service.ErrUserNotFound, authsdk.ErrUserNotFound},
	{service.ErrUserExists, authsdk.ErrUserExists},
	{service.ErrRefreshTokenInvalid, authsdk.ErrRefreshInvalid},
	{service.ErrRefreshTokenRevoked, authsdk.ErrRefreshRevoked},
	{service.ErrRefreshTokenExpired, authsdk.ErrRefreshExpired},
}

// toAPIError classifies err. Anything unrecognised, including every store
// failure, is a server_error and never an authentication failure.
func toAPIError(err error) *authsdk.APIError {
	var apiErr *authsdk.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			return m.api
		}
	}

	if code := jwtx.Code(err); code != "" {
		return authsdk.NewAPIError(http.StatusUnauthorized, code, "access token rejected")
	}

	return authsdk.ErrServerError
}

// writeError writes err to the response, logging server failures.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *authsdk.ValidationError
	if errors.As(err, &verr) {
		verr.WriteError(w, r)
		return
	}

	apiErr := toAPIError(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
	}
	apiErr.WriteError(w, r)
}
