package domain

import "time"

// SessionKind selects the lifetime of a refresh session.
type SessionKind string

const (
	SessionStandard SessionKind = "STANDARD"
	SessionExtended SessionKind = "EXTENDED" // "remember me"
)

func KindFor(extended bool) SessionKind {
	if extended {
		return SessionExtended
	}
	return SessionStandard
}

func (k SessionKind) Valid() bool { return k == SessionStandard || k == SessionExtended }

// RefreshSession is the persisted record behind an opaque refresh secret.
// Only the SHA-256 hex digest of the secret is ever stored.
type RefreshSession struct {
	ID         string
	SecretHash string
	UserID     string
	Kind       SessionKind
	CreatedAt  time.Time
	LastUsedAt time.Time
	ExpiresAt  time.Time
	Revoked    bool // never reset once set
	IPAddress  string
	UserAgent  string
	DeviceName string
}

// Valid reports whether the session can still be exchanged at now.
func (s RefreshSession) Valid(now time.Time) bool {
	return !s.Revoked && now.Before(s.ExpiresAt)
}

func (s RefreshSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IssuedSession is what the caller gets back from issuing or rotating a
// session. Secret is the raw value and exists nowhere else.
type IssuedSession struct {
	SessionID string
	Secret    string
	ExpiresAt time.Time
	Kind      SessionKind
	UserID    string
}
