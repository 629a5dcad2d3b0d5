package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/sessionauth/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface implemented by the sqlite and
// postgres drivers. Repositories hang off it so a Tx exposes exactly the
// same surface as the Store it came from.
type Store interface {
	Users() Users
	RefreshSessions() RefreshSessions

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller MUST Commit or Rollback.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise. Nested transactions are not supported.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transaction-scoped Store.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is an exact match.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// CreateUser inserts u. A taken username or email is ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error

	// UpdateStatus flips the active and locked flags.
	UpdateStatus(ctx context.Context, userID string, active, locked bool) error
}

type RefreshSessions interface {
	// FindBySecretHash looks a session up by the hex SHA-256 of its secret.
	FindBySecretHash(ctx context.Context, hash string) (domain.RefreshSession, error)

	// Save inserts s when s.ID is empty, assigning a new ID. Otherwise it
	// persists LastUsedAt and Revoked on the existing row. Revoked is never
	// cleared by Save.
	Save(ctx context.Context, s domain.RefreshSession) (domain.RefreshSession, error)

	// CountValid counts the user's unrevoked sessions expiring after now.
	CountValid(ctx context.Context, userID string, now time.Time) (int, error)

	// ListValid returns the same set as CountValid, oldest first (created_at,
	// then id).
	ListValid(ctx context.Context, userID string, now time.Time) ([]domain.RefreshSession, error)

	// RevokeAllForUser revokes every unrevoked session of the user and
	// returns how many changed.
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)

	// DeleteExpiredBefore removes sessions whose expiry is before threshold.
	DeleteExpiredBefore(ctx context.Context, threshold time.Time) (int64, error)
}
