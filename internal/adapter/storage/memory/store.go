// Package memory is an in-process storage backend. Accounts are guarded by
// per-account locks held for the life of a unit of work; writes are staged
// on the unit and applied atomically on Commit.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"agile-bank/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

var errSQLUnsupported = errors.New("memory: SQL is not supported by the in-memory store")

// maxAuditEntries bounds the in-memory audit trail.
const maxAuditEntries = 10000

// Store holds all in-memory tables. It implements ports.DBTransactor.
type Store struct {
	mu           sync.RWMutex
	accounts     map[uuid.UUID]*domain.Account
	locks        map[uuid.UUID]chan struct{}
	transactions map[uuid.UUID]*domain.Transaction
	idempotency  map[string]*domain.IdempotencyLog
	users        map[uuid.UUID]*domain.User
	audit        []domain.AuditLog

	now func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		accounts:     make(map[uuid.UUID]*domain.Account),
		locks:        make(map[uuid.UUID]chan struct{}),
		transactions: make(map[uuid.UUID]*domain.Transaction),
		idempotency:  make(map[string]*domain.IdempotencyLog),
		users:        make(map[uuid.UUID]*domain.User),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Begin starts a unit of work.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memTx{
		store:    s,
		held:     make(map[uuid.UUID]chan struct{}),
		balances: make(map[uuid.UUID]stagedBalance),
	}, nil
}

// lockFor returns the lock of an account, creating it on first use.
func (s *Store) lockFor(id uuid.UUID) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = make(chan struct{}, 1)
		s.locks[id] = lock
	}
	return lock
}

func acquire(ctx context.Context, lock chan struct{}) error {
	select {
	case lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func release(lock chan struct{}) {
	<-lock
}

type stagedBalance struct {
	balance         decimal.Decimal
	expectedVersion int64
}

// memTx is a unit of work against a Store. It is used by one goroutine.
type memTx struct {
	store        *Store
	held         map[uuid.UUID]chan struct{}
	balances     map[uuid.UUID]stagedBalance
	transactions []*domain.Transaction
	idempotency  []*domain.IdempotencyLog
	closed       bool
}

func asMemTx(tx pgx.Tx) (*memTx, error) {
	mt, ok := tx.(*memTx)
	if !ok {
		return nil, fmt.Errorf("memory: unit of work %T was not started by this store", tx)
	}
	if mt.closed {
		return nil, pgx.ErrTxClosed
	}
	return mt, nil
}

// lock takes the account's lock for the rest of the unit. Re-locking an
// account already held is a no-op.
func (t *memTx) lock(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.held[id]; ok {
		return nil
	}
	lock := t.store.lockFor(id)
	if err := acquire(ctx, lock); err != nil {
		return err
	}
	t.held[id] = lock
	return nil
}

func (t *memTx) releaseAll() {
	for id, lock := range t.held {
		release(lock)
		delete(t.held, id)
	}
}

// Commit validates the staged writes and applies them in one step. On any
// failure nothing is applied.
func (t *memTx) Commit(ctx context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	defer t.finish()

	if err := ctx.Err(); err != nil {
		return err
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, staged := range t.balances {
		account, ok := s.accounts[id]
		if !ok {
			return fmt.Errorf("commit: account %s no longer exists", id)
		}
		if account.Version != staged.expectedVersion {
			return fmt.Errorf("commit account %s: %w", id, domain.ErrConcurrentUpdate)
		}
	}
	for _, log := range t.idempotency {
		if _, exists := s.idempotency[log.Key]; exists {
			return fmt.Errorf("commit idempotency key %q: %w", log.Key, domain.ErrConcurrentUpdate)
		}
	}
	for _, txn := range t.transactions {
		if _, exists := s.transactions[txn.ID]; exists {
			return fmt.Errorf("commit: duplicate transaction id %s", txn.ID)
		}
	}

	now := s.now()
	for id, staged := range t.balances {
		account := s.accounts[id]
		account.Balance = staged.balance
		account.Version++
		account.UpdatedAt = now
	}
	for _, txn := range t.transactions {
		s.transactions[txn.ID] = txn
	}
	for _, log := range t.idempotency {
		s.idempotency[log.Key] = log
	}
	return nil
}

// Rollback discards staged writes and releases locks.
func (t *memTx) Rollback(ctx context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.finish()
	return nil
}

func (t *memTx) finish() {
	t.closed = true
	t.balances = nil
	t.transactions = nil
	t.idempotency = nil
	t.releaseAll()
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, errSQLUnsupported }
func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errSQLUnsupported
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errSQLUnsupported
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), errSQLUnsupported
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errSQLUnsupported
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return errRow{}
}
func (t *memTx) Conn() *pgx.Conn { return nil }

type errRow struct{}

func (errRow) Scan(dest ...any) error { return errSQLUnsupported }
