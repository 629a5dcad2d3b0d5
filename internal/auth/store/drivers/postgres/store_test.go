package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aussiebroadwan/sessionauth/internal/auth/domain"
	"github.com/aussiebroadwan/sessionauth/internal/auth/store"
	"github.com/aussiebroadwan/sessionauth/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/sessionauth/pkg/idx"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// setupPostgres starts a throwaway Postgres and returns a migrated store.
// Skipped under -short or when no container runtime is available.
func setupPostgres(t *testing.T) *postgres.Store {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres integration test skipped in short mode")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "auth",
			"POSTGRES_PASSWORD": "auth",
			"POSTGRES_DB":       "auth",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	host, err := container.Host(ctx)
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://auth:auth@%s:%s/auth?sslmode=disable", host, mappedPort.Port())
	s, err := postgres.NewStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.ApplyMigrations(), "migrations are idempotent")
	return s
}

func seedUser(t *testing.T, s store.Store, username string) domain.User {
	t.Helper()
	u := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "$argon2id$placeholder",
		Role:         domain.RoleUser,
		Active:       true,
		CreatedAt:    base,
		UpdatedAt:    base,
	}
	require.NoError(t, s.Users().CreateUser(context.Background(), u))
	return u
}

func newSession(userID, hash string, created time.Time, ttl time.Duration) domain.RefreshSession {
	return domain.RefreshSession{
		SecretHash: fmt.Sprintf("%064s", hash),
		UserID:     userID,
		Kind:       domain.SessionExtended,
		CreatedAt:  created,
		LastUsedAt: created,
		ExpiresAt:  created.Add(ttl),
	}
}

func TestPostgresStore(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	t.Run("users", func(t *testing.T) {
		u := seedUser(t, s, "alice")

		got, err := s.Users().GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)
		require.True(t, got.CreatedAt.Equal(base))
		require.Equal(t, time.UTC, got.CreatedAt.Location())

		dup := u
		dup.ID = idx.New().String()
		require.ErrorIs(t, s.Users().CreateUser(ctx, dup), store.ErrAlreadyExists)

		require.NoError(t, s.Users().UpdateLastLogin(ctx, u.ID, base.Add(time.Minute)))
		got, err = s.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastLoginAt)

		_, err = s.Users().GetUserByID(ctx, "missing")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("sessions", func(t *testing.T) {
		u := seedUser(t, s, "bob")
		repo := s.RefreshSessions()

		older, err := repo.Save(ctx, newSession(u.ID, "1", base, time.Hour))
		require.NoError(t, err)
		newer, err := repo.Save(ctx, newSession(u.ID, "2", base.Add(time.Second), time.Hour))
		require.NoError(t, err)
		_, err = repo.Save(ctx, newSession(u.ID, "3", base.Add(-48*time.Hour), time.Hour))
		require.NoError(t, err)

		list, err := repo.ListValid(ctx, u.ID, base.Add(time.Minute))
		require.NoError(t, err)
		require.Len(t, list, 2)
		require.Equal(t, older.ID, list[0].ID)
		require.Equal(t, newer.ID, list[1].ID)

		older.Revoked = true
		_, err = repo.Save(ctx, older)
		require.NoError(t, err)
		older.Revoked = false
		_, err = repo.Save(ctx, older)
		require.NoError(t, err)

		found, err := repo.FindBySecretHash(ctx, older.SecretHash)
		require.NoError(t, err)
		require.True(t, found.Revoked, "revocation is sticky")

		n, err := repo.CountValid(ctx, u.ID, base.Add(time.Minute))
		require.NoError(t, err)
		require.Equal(t, 1, n)

		revoked, err := repo.RevokeAllForUser(ctx, u.ID)
		require.NoError(t, err)
		require.EqualValues(t, 2, revoked)

		deleted, err := repo.DeleteExpiredBefore(ctx, base.Add(-24*time.Hour))
		require.NoError(t, err)
		require.EqualValues(t, 1, deleted)
	})

	t.Run("tx rollback", func(t *testing.T) {
		u := seedUser(t, s, "carol")
		err := s.WithTx(ctx, func(tx store.Tx) error {
			if _, err := tx.RefreshSessions().Save(ctx, newSession(u.ID, "tx", base, time.Hour)); err != nil {
				return err
			}
			return store.ErrNotFound
		})
		require.ErrorIs(t, err, store.ErrNotFound)

		_, err = s.RefreshSessions().FindBySecretHash(ctx, fmt.Sprintf("%064s", "tx"))
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}
