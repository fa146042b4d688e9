package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Transactor implements ports.DBTransactor on top of the pool.
type Transactor struct {
	pool Pool
}

// NewTransactor creates a new Transactor wrapping the connection pool.
func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

// Begin starts a read-committed transaction. Row locks taken with
// SELECT ... FOR UPDATE serialize transfers touching the same accounts.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return nil, classify("begin transaction", err)
	}
	return &conflictTx{Tx: tx}, nil
}

// conflictTx reports commit-time serialization failures as
// domain.ErrConcurrentUpdate.
type conflictTx struct {
	pgx.Tx
}

func (t *conflictTx) Commit(ctx context.Context) error {
	if err := t.Tx.Commit(ctx); err != nil {
		return classify("commit transaction", err)
	}
	return nil
}
