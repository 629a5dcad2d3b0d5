package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed       = errors.New("jwtx: malformed token")
	ErrUnsupported     = errors.New("jwtx: unsupported token")
	ErrInvalidSig      = errors.New("jwtx: invalid signature")
	ErrExpired         = errors.New("jwtx: token expired")
	ErrSubjectMismatch = errors.New("jwtx: subject mismatch")
	ErrIssuer          = errors.New("jwtx: issuer mismatch")
	ErrInvalidClaim    = errors.New("jwtx: invalid claims")

	// ErrInvalidToken covers every verification failure that is not one of
	// the kinds above.
	ErrInvalidToken = errors.New("jwtx: invalid token")

	ErrWeakSecret = errors.New("jwtx: signing secret too short")
)

// errAlgorithm is raised from the key func for anything other than HS256.
var errAlgorithm = errors.New("jwtx: algorithm not accepted")

// classify folds a golang-jwt error into one of the package sentinels. The
// order matters: a token that fails its signature never reports a claim
// problem.
func classify(err error) error {
	var kind error
	switch {
	case errors.Is(err, errAlgorithm), errors.Is(err, jwt.ErrTokenUnverifiable):
		kind = ErrUnsupported
	case errors.Is(err, jwt.ErrTokenMalformed):
		kind = ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		kind = ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenExpired):
		kind = ErrExpired
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		kind = ErrIssuer
	default:
		kind = ErrInvalidToken
	}
	return fmt.Errorf("%w: %v", kind, err)
}

// Code returns the stable error code for a token failure, or "" when err is
// not one.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrExpired):
		return "token_expired"
	case errors.Is(err, ErrInvalidSig):
		return "invalid_signature"
	case errors.Is(err, ErrMalformed):
		return "malformed_token"
	case errors.Is(err, ErrUnsupported):
		return "unsupported_token"
	case errors.Is(err, ErrSubjectMismatch):
		return "invalid_subject"
	case errors.Is(err, ErrIssuer), errors.Is(err, ErrInvalidClaim), errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	}
	return ""
}
