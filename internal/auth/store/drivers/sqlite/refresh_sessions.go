package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/sessionauth/internal/auth/domain"
	"github.com/aussiebroadwan/sessionauth/internal/auth/store"
	"github.com/aussiebroadwan/sessionauth/internal/auth/store/drivers/sqlite/gen"
	"github.com/aussiebroadwan/sessionauth/pkg/idx"
)

type refreshSessionsRepo struct {
	q *gen.Queries
}

func (r *refreshSessionsRepo) FindBySecretHash(ctx context.Context, hash string) (domain.RefreshSession, error) {
	row, err := r.q.GetRefreshSessionBySecretHash(ctx, hash)
	if err != nil {
		return domain.RefreshSession{}, mapNotFound(err)
	}
	return mapRefreshSession(row), nil
}

func (r *refreshSessionsRepo) Save(ctx context.Context, s domain.RefreshSession) (domain.RefreshSession, error) {
	if s.ID == "" {
		s.ID = idx.NewAt(s.CreatedAt).String()
		err := r.q.CreateRefreshSession(ctx, gen.CreateRefreshSessionParams{
			ID:         s.ID,
			SecretHash: s.SecretHash,
			UserID:     s.UserID,
			Kind:       string(s.Kind),
			CreatedAt:  toMillis(s.CreatedAt),
			LastUsedAt: toMillis(s.LastUsedAt),
			ExpiresAt:  toMillis(s.ExpiresAt),
			Revoked:    s.Revoked,
			IpAddress:  s.IPAddress,
			UserAgent:  s.UserAgent,
			DeviceName: s.DeviceName,
		})
		if err != nil {
			return domain.RefreshSession{}, mapConstraint(err)
		}
		return s, nil
	}

	n, err := r.q.UpdateRefreshSessionUsage(ctx, gen.UpdateRefreshSessionUsageParams{
		LastUsedAt: toMillis(s.LastUsedAt),
		Revoked:    s.Revoked,
		ID:         s.ID,
	})
	if err != nil {
		return domain.RefreshSession{}, err
	}
	if n == 0 {
		return domain.RefreshSession{}, store.ErrNotFound
	}
	return s, nil
}

func (r *refreshSessionsRepo) CountValid(ctx context.Context, userID string, now time.Time) (int, error) {
	n, err := r.q.CountValidRefreshSessions(ctx, gen.CountValidRefreshSessionsParams{
		UserID: userID,
		Now:    toMillis(now),
	})
	return int(n), err
}

func (r *refreshSessionsRepo) ListValid(ctx context.Context, userID string, now time.Time) ([]domain.RefreshSession, error) {
	rows, err := r.q.ListValidRefreshSessions(ctx, gen.ListValidRefreshSessionsParams{
		UserID: userID,
		Now:    toMillis(now),
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.RefreshSession, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapRefreshSession(row))
	}
	return out, nil
}

func (r *refreshSessionsRepo) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	return r.q.RevokeUserRefreshSessions(ctx, userID)
}

func (r *refreshSessionsRepo) DeleteExpiredBefore(ctx context.Context, threshold time.Time) (int64, error) {
	return r.q.DeleteRefreshSessionsExpiredBefore(ctx, toMillis(threshold))
}
