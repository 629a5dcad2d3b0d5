package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultAccessTokenTTL is used when a codec is built without a TTL.
	DefaultAccessTokenTTL = 15 * time.Minute

	// ClaimRoles carries the caller's authorities, e.g. ["ROLE_USER"].
	ClaimRoles = "roles"
)

// Claims is the verified view of an access token. Extra claims supplied at
// issue time are signed into the token but not surfaced here.
type Claims struct {
	jwt.RegisteredClaims

	Roles []string `json:"roles,omitempty"`
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateSubject is an exact, case-sensitive comparison.
func (c *Claims) ValidateSubject(expected string) error {
	if c.Subject == "" || c.Subject != expected {
		return ErrSubjectMismatch
	}
	return nil
}

// ValidateExpiryAt requires exp to be strictly after now.
func (c *Claims) ValidateExpiryAt(now time.Time) error {
	if c.ExpiresAt == nil {
		return ErrInvalidClaim
	}
	if !now.Before(c.ExpiresAt.Time) {
		return ErrExpired
	}
	return nil
}

// ValidateIssuer is a no-op when expected is empty.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" || c.Issuer == expected {
		return nil
	}
	return ErrIssuer
}

func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}
