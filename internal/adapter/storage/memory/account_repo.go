package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"agile-bank/internal/core/domain"
	"agile-bank/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	store *Store
}

// NewAccountRepo creates an AccountRepo backed by store.
func NewAccountRepo(store *Store) *AccountRepo {
	return &AccountRepo{store: store}
}

func (r *AccountRepo) Create(ctx context.Context, account *domain.Account) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[account.ID]; exists {
		return fmt.Errorf("insert account: duplicate id %s", account.ID)
	}
	s.accounts[account.ID] = account.Clone()
	return nil
}

func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	return account.Clone(), nil
}

// GetByIDForUpdate blocks until the account's lock is free or ctx is done.
// A missing account is reported as nil without taking a lock.
func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error) {
	mt, err := asMemTx(tx)
	if err != nil {
		return nil, err
	}

	if account, _ := r.GetByID(ctx, id); account == nil {
		return nil, nil
	}
	if err := mt.lock(ctx, id); err != nil {
		return nil, fmt.Errorf("lock account %s: %w", id, err)
	}
	// Deleted while we waited.
	return r.GetByID(ctx, id)
}

// UpdateBalance stages the write on tx; it becomes visible on Commit.
func (r *AccountRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance decimal.Decimal, expectedVersion int64) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}
	if _, held := mt.held[id]; !held {
		return fmt.Errorf("update account %s: not locked by this unit of work", id)
	}

	current, _ := r.GetByID(ctx, id)
	if current == nil || current.Version != expectedVersion {
		return fmt.Errorf("update account %s at version %d: %w", id, expectedVersion, domain.ErrConcurrentUpdate)
	}
	mt.balances[id] = stagedBalance{balance: balance, expectedVersion: expectedVersion}
	return nil
}

func (r *AccountRepo) List(ctx context.Context, params ports.AccountListParams) ([]domain.Account, int64, error) {
	less, ok := accountOrder[params.SortBy]
	if !ok {
		return nil, 0, fmt.Errorf("unsupported sort field %q", params.SortBy)
	}

	s := r.store
	s.mu.RLock()
	var result []domain.Account
	for _, a := range s.accounts {
		if params.Currency != nil && a.Currency != *params.Currency {
			continue
		}
		result = append(result, *a)
	}
	s.mu.RUnlock()

	desc := params.Order == ports.SortDesc
	sort.Slice(result, func(i, j int) bool {
		c := less(&result[i], &result[j])
		if c == 0 {
			c = bytes.Compare(result[i].ID[:], result[j].ID[:])
		}
		if desc {
			return c > 0
		}
		return c < 0
	})

	return page(result, params.Page, params.PageSize)
}

// Delete removes an account once no unit of work holds it.
func (r *AccountRepo) Delete(ctx context.Context, id uuid.UUID) error {
	s := r.store
	lock := s.lockFor(id)
	if err := acquire(ctx, lock); err != nil {
		return fmt.Errorf("lock account %s: %w", id, err)
	}
	defer release(lock)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return &domain.AccountNotFoundError{AccountID: id}
	}
	for _, txn := range s.transactions {
		if txn.Touches(id) {
			return &domain.AccountHasHistoryError{AccountID: id}
		}
	}
	delete(s.accounts, id)
	return nil
}

// accountOrder compares two accounts by a sort field.
var accountOrder = map[string]func(a, b *domain.Account) int{
	"id":         func(a, b *domain.Account) int { return bytes.Compare(a.ID[:], b.ID[:]) },
	"balance":    func(a, b *domain.Account) int { return a.Balance.Cmp(b.Balance) },
	"currency":   func(a, b *domain.Account) int { return compareStrings(string(a.Currency), string(b.Currency)) },
	"created_at": func(a, b *domain.Account) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// page slices one 1-based page out of sorted items.
func page[T any](items []T, pageNum, pageSize int) ([]T, int64, error) {
	total := int64(len(items))
	if pageNum < 1 || pageSize < 1 {
		return nil, 0, fmt.Errorf("invalid page %d of size %d", pageNum, pageSize)
	}
	start := (pageNum - 1) * pageSize
	if start >= len(items) {
		return []T{}, total, nil
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], total, nil
}
