package postgres

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/sessionauth/internal/auth/store"
	"github.com/jackc/pgx/v5"
)

var errNestedTx = errors.New("postgres: nested transactions are not supported")

type txStore struct {
	ctx context.Context
	tx  pgx.Tx
}

func (t *txStore) Commit() error { return t.tx.Commit(t.ctx) }

func (t *txStore) Rollback() error {
	err := t.tx.Rollback(t.ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func (t *txStore) Close() error                   { return nil }
func (t *txStore) Ping(ctx context.Context) error { return nil }
func (t *txStore) ApplyMigrations() error         { return nil }

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) { return nil, errNestedTx }

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return errNestedTx
}

func (t *txStore) Users() store.Users { return &usersRepo{q: t.tx} }

// Lookups inside a transaction lock the session row so two rotations of the
// same secret serialize and the loser sees it revoked.
func (t *txStore) RefreshSessions() store.RefreshSessions {
	return &refreshSessionsRepo{q: t.tx, forUpdate: true}
}
