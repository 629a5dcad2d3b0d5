package postgres

import (
	"context"
	"time"

	"github.com/aussiebroadwan/sessionauth/internal/auth/domain"
	"github.com/aussiebroadwan/sessionauth/internal/auth/store"
	"github.com/aussiebroadwan/sessionauth/pkg/idx"
	"github.com/jackc/pgx/v5"
)

type refreshSessionsRepo struct {
	q         querier
	forUpdate bool
}

const sessionColumns = `id, secret_hash, user_id, kind, created_at, last_used_at, expires_at, revoked, ip_address, user_agent, device_name`

func scanSession(row pgx.Row) (domain.RefreshSession, error) {
	var (
		s    domain.RefreshSession
		kind string
	)
	err := row.Scan(
		&s.ID,
		&s.SecretHash,
		&s.UserID,
		&kind,
		&s.CreatedAt,
		&s.LastUsedAt,
		&s.ExpiresAt,
		&s.Revoked,
		&s.IPAddress,
		&s.UserAgent,
		&s.DeviceName,
	)
	if err != nil {
		return domain.RefreshSession{}, err
	}
	s.Kind = domain.SessionKind(kind)
	s.CreatedAt = s.CreatedAt.UTC()
	s.LastUsedAt = s.LastUsedAt.UTC()
	s.ExpiresAt = s.ExpiresAt.UTC()
	return s, nil
}

func (r *refreshSessionsRepo) FindBySecretHash(ctx context.Context, hash string) (domain.RefreshSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM refresh_sessions WHERE secret_hash = $1`
	if r.forUpdate {
		query += ` FOR UPDATE`
	}
	s, err := scanSession(r.q.QueryRow(ctx, query, hash))
	if err != nil {
		return domain.RefreshSession{}, mapNotFound(err)
	}
	return s, nil
}

func (r *refreshSessionsRepo) Save(ctx context.Context, s domain.RefreshSession) (domain.RefreshSession, error) {
	if s.ID == "" {
		s.ID = idx.NewAt(s.CreatedAt).String()
		_, err := r.q.Exec(ctx, `
			INSERT INTO refresh_sessions (
				id, secret_hash, user_id, kind,
				created_at, last_used_at, expires_at, revoked,
				ip_address, user_agent, device_name
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`,
			s.ID, s.SecretHash, s.UserID, string(s.Kind),
			s.CreatedAt.UTC(), s.LastUsedAt.UTC(), s.ExpiresAt.UTC(), s.Revoked,
			s.IPAddress, s.UserAgent, s.DeviceName,
		)
		if err != nil {
			return domain.RefreshSession{}, mapConstraint(err)
		}
		return s, nil
	}

	tag, err := r.q.Exec(ctx, `
		UPDATE refresh_sessions
		SET last_used_at = $1, revoked = (revoked OR $2)
		WHERE id = $3
	`, s.LastUsedAt.UTC(), s.Revoked, s.ID)
	if err != nil {
		return domain.RefreshSession{}, err
	}
	if tag.RowsAffected() == 0 {
		return domain.RefreshSession{}, store.ErrNotFound
	}
	return s, nil
}

func (r *refreshSessionsRepo) CountValid(ctx context.Context, userID string, now time.Time) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM refresh_sessions
		WHERE user_id = $1 AND revoked = FALSE AND expires_at > $2
	`, userID, now.UTC()).Scan(&n)
	return n, err
}

func (r *refreshSessionsRepo) ListValid(ctx context.Context, userID string, now time.Time) ([]domain.RefreshSession, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+sessionColumns+` FROM refresh_sessions
		WHERE user_id = $1 AND revoked = FALSE AND expires_at > $2
		ORDER BY created_at ASC, id ASC
	`, userID, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.RefreshSession{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *refreshSessionsRepo) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE refresh_sessions SET revoked = TRUE
		WHERE user_id = $1 AND revoked = FALSE
	`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *refreshSessionsRepo) DeleteExpiredBefore(ctx context.Context, threshold time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM refresh_sessions WHERE expires_at < $1`, threshold.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
