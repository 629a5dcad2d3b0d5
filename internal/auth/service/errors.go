package service

import "errors"

// Each error's message is its stable machine-readable code.
var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrAccountLocked      = errors.New("account_locked")
	ErrAccountDisabled    = errors.New("account_disabled")
	ErrUserNotFound       = errors.New("user_not_found")
	ErrUserExists         = errors.New("user_exists")

	ErrRefreshTokenInvalid = errors.New("refresh_token_invalid")
	ErrRefreshTokenRevoked = errors.New("refresh_token_revoked")
	ErrRefreshTokenExpired = errors.New("refresh_token_expired")
)

// IsRefreshError reports whether err is one of the refresh session failures.
func IsRefreshError(err error) bool {
	return errors.Is(err, ErrRefreshTokenInvalid) ||
		errors.Is(err, ErrRefreshTokenRevoked) ||
		errors.Is(err, ErrRefreshTokenExpired)
}
