package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/sessionauth/pkg/httpx"
)

// Error codes carried in the "error" field of every error response.
const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeValidation         = "validation_error"
	ErrorCodeInvalidCredentials = "invalid_credentials"
	ErrorCodeAccountLocked      = "account_locked"
	ErrorCodeAccountDisabled    = "account_disabled"
	ErrorCodeUserNotFound       = "user_not_found"
	ErrorCodeUserExists         = "user_exists"
	ErrorCodeRefreshInvalid     = "refresh_token_invalid"
	ErrorCodeRefreshRevoked     = "refresh_token_revoked"
	ErrorCodeRefreshExpired     = "refresh_token_expired"
	ErrorCodeTokenExpired       = "token_expired"
	ErrorCodeInvalidSignature   = "invalid_signature"
	ErrorCodeMalformedToken     = "malformed_token"
	ErrorCodeUnsupportedToken   = "unsupported_token"
	ErrorCodeInvalidSubject     = "invalid_subject"
	ErrorCodeInvalidToken       = "invalid_token"
	ErrorCodeAccessDenied       = "access_denied"
	ErrorCodeRateLimitExceeded  = "rate_limit_exceeded"
	ErrorCodeServerError        = "server_error"
	ErrorCodeUnexpectedResponse = "unexpected_response"
)

// APIError is an error response from the auth service. Handlers write it
// with WriteError; the SDK returns it from failed calls.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is matches any *APIError with the same code, so errors.Is works against
// the predefined values below.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Code == e.Code
}

// WriteError writes e as an httpx.ErrorBody.
func (e *APIError) WriteError(w http.ResponseWriter, r *http.Request) {
	httpx.WriteError(w, r, e.StatusCode, e.Code, e.Description)
}

// NewAPIError builds an APIError with a custom description.
func NewAPIError(statusCode int, code, description string) *APIError {
	return &APIError{StatusCode: statusCode, Code: code, Description: description}
}

var (
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed",
	}

	ErrInvalidCredentials = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidCredentials,
		Description: "invalid username or password",
	}

	ErrAccountLocked = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeAccountLocked,
		Description: "the account is locked",
	}

	ErrAccountDisabled = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeAccountDisabled,
		Description: "the account is disabled",
	}

	ErrUserNotFound = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeUserNotFound,
		Description: "user not found",
	}

	ErrUserExists = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeUserExists,
		Description: "username or email is already registered",
	}

	ErrRefreshInvalid = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeRefreshInvalid,
		Description: "refresh token is missing or unknown",
	}

	ErrRefreshRevoked = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeRefreshRevoked,
		Description: "refresh token has been revoked",
	}

	ErrRefreshExpired = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeRefreshExpired,
		Description: "refresh token has expired",
	}

	ErrInvalidToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "the access token is missing or invalid",
	}

	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}
)

// parseErrorResponse turns a non-2xx response into an *APIError. A
// validation failure becomes a *ValidationError instead.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		apiErr := &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
		if errResp.Error == ErrorCodeValidation {
			return &ValidationError{APIError: apiErr, Fields: errResp.Fields}
		}
		return apiErr
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeUnexpectedResponse,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
