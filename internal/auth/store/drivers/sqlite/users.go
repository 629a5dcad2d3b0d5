package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/sessionauth/internal/auth/domain"
	"github.com/aussiebroadwan/sessionauth/internal/auth/store"
	"github.com/aussiebroadwan/sessionauth/internal/auth/store/drivers/sqlite/gen"
)

type usersRepo struct {
	q *gen.Queries
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row, err := r.q.GetUserByID(ctx, id)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return mapUser(row), nil
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	row, err := r.q.GetUserByUsername(ctx, username)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return mapUser(row), nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	err := r.q.CreateUser(ctx, gen.CreateUserParams{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Active:       u.Active,
		Locked:       u.Locked,
		CreatedAt:    toMillis(u.CreatedAt),
		UpdatedAt:    toMillis(u.UpdatedAt),
	})
	return mapConstraint(err)
}

func (r *usersRepo) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	n, err := r.q.UpdateUserLastLogin(ctx, gen.UpdateUserLastLoginParams{
		LastLoginAt: sql.NullInt64{Int64: toMillis(at), Valid: true},
		UpdatedAt:   toMillis(at),
		ID:          userID,
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *usersRepo) UpdateStatus(ctx context.Context, userID string, active, locked bool) error {
	n, err := r.q.UpdateUserStatus(ctx, gen.UpdateUserStatusParams{
		Active:    active,
		Locked:    locked,
		UpdatedAt: toMillis(time.Now()),
		ID:        userID,
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
