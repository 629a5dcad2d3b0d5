package postgres

import (
	"context"
	"time"

	"github.com/aussiebroadwan/sessionauth/internal/auth/domain"
	"github.com/aussiebroadwan/sessionauth/internal/auth/store"
	"github.com/jackc/pgx/v5"
)

type usersRepo struct {
	q querier
}

const userColumns = `id, username, email, password_hash, role, active, locked, created_at, updated_at, last_login_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u    domain.User
		role string
	)
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&role,
		&u.Active,
		&u.Locked,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.LastLoginAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.Role = domain.Role(role)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	u.LastLoginAt = utcPtr(u.LastLoginAt)
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return scanUser(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO users (id, username, email, password_hash, role, active, locked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, u.ID, u.Username, u.Email, u.PasswordHash, string(u.Role), u.Active, u.Locked, u.CreatedAt.UTC(), u.UpdatedAt.UTC())
	return mapConstraint(err)
}

func (r *usersRepo) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE users SET last_login_at = $1, updated_at = $1 WHERE id = $2
	`, at.UTC(), userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *usersRepo) UpdateStatus(ctx context.Context, userID string, active, locked bool) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE users SET active = $1, locked = $2, updated_at = now() WHERE id = $3
	`, active, locked, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
