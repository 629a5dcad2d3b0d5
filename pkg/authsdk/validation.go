package authsdk

import (
	"net/http"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	reasonRequired = "required"
	reasonCharset  = "must only contain a-z, A-Z, 0-9, _, . or -"

	MinUsernameLength = 3
	MaxUsernameLength = 32
	MinPasswordLength = 8
	MaxPasswordLength = 128
	MaxEmailLength    = 254
)

var reUsername = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ValidationErrors maps a request field to why it was rejected.
type ValidationErrors map[string]string

// Err returns nil when there are no field errors.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return &ValidationError{
		APIError: &APIError{
			StatusCode:  http.StatusBadRequest,
			Code:        ErrorCodeValidation,
			Description: "one or more fields are invalid",
		},
		Fields: v,
	}
}

// ValidateLogin only checks presence; credential rules are enforced at
// registration so old accounts can still log in.
func ValidateLogin(req LoginRequest) ValidationErrors {
	errs := make(ValidationErrors)
	if strings.TrimSpace(req.Username) == "" {
		errs["username"] = reasonRequired
	}
	if req.Password == "" {
		errs["password"] = reasonRequired
	}
	if len(req.Password) > MaxPasswordLength {
		errs["password"] = "too long (max 128)"
	}
	return nilIfEmpty(errs)
}

// ValidateRegister checks the new account's username, email and password.
func ValidateRegister(req RegisterRequest) ValidationErrors {
	errs := make(ValidationErrors)

	username := strings.TrimSpace(req.Username)
	switch {
	case username == "":
		errs["username"] = reasonRequired
	case utf8.RuneCountInString(username) < MinUsernameLength || len(username) > MaxUsernameLength:
		errs["username"] = "must be 3-32 characters"
	case !reUsername.MatchString(username):
		errs["username"] = reasonCharset
	}

	email := strings.TrimSpace(req.Email)
	switch {
	case email == "":
		errs["email"] = reasonRequired
	case len(email) > MaxEmailLength:
		errs["email"] = "too long (max 254)"
	default:
		if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
			errs["email"] = "must be a valid email address"
		}
	}

	switch pw := req.Password; {
	case pw == "":
		errs["password"] = reasonRequired
	case utf8.RuneCountInString(pw) < MinPasswordLength:
		errs["password"] = "too short (min 8)"
	case len(pw) > MaxPasswordLength:
		errs["password"] = "too long (max 128)"
	}

	return nilIfEmpty(errs)
}

func nilIfEmpty(errs ValidationErrors) ValidationErrors {
	if len(errs) == 0 {
		return nil
	}
	return errs
}
