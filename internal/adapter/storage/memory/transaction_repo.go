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
)

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	store *Store
}

// NewTransactionRepo creates a TransactionRepo backed by store.
func NewTransactionRepo(store *Store) *TransactionRepo {
	return &TransactionRepo{store: store}
}

// Create stages the transaction on tx.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}
	txn := *t
	mt.transactions = append(mt.transactions, &txn)
	return nil
}

func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions[id]
	if !ok {
		return nil, nil
	}
	txn := *t
	return &txn, nil
}

func (r *TransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	less, ok := transactionOrder[params.SortBy]
	if !ok {
		return nil, 0, fmt.Errorf("unsupported sort field %q", params.SortBy)
	}

	s := r.store
	s.mu.RLock()
	var result []domain.Transaction
	for _, t := range s.transactions {
		if params.SourceAccountID != nil && t.SourceAccountID != *params.SourceAccountID {
			continue
		}
		if params.DestAccountID != nil && t.DestAccountID != *params.DestAccountID {
			continue
		}
		result = append(result, *t)
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

func (r *TransactionRepo) ExistsForAccount(ctx context.Context, accountID uuid.UUID) (bool, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.transactions {
		if t.Touches(accountID) {
			return true, nil
		}
	}
	return false, nil
}

var transactionOrder = map[string]func(a, b *domain.Transaction) int{
	"id":               func(a, b *domain.Transaction) int { return bytes.Compare(a.ID[:], b.ID[:]) },
	"created_at":       func(a, b *domain.Transaction) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"amount":           func(a, b *domain.Transaction) int { return a.Amount.Cmp(b.Amount) },
	"converted_amount": func(a, b *domain.Transaction) int { return a.ConvertedAmount.Cmp(b.ConvertedAmount) },
}
