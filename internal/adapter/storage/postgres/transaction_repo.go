package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"agile-bank/internal/core/domain"
	"agile-bank/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, source_account_id, dest_account_id, source_currency, dest_currency,
	amount, converted_amount, rate, created_at`

var transactionSortColumns = map[string]string{
	"id":               "id",
	"created_at":       "created_at",
	"amount":           "amount",
	"converted_amount": "converted_amount",
}

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create appends a transaction within a database transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, source_account_id, dest_account_id, source_currency, dest_currency,
		amount, converted_amount, rate, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.SourceAccountID, t.DestAccountID, t.SourceCurrency, t.DestCurrency,
		t.Amount, t.ConvertedAmount, t.Rate, t.CreatedAt,
	)
	if err != nil {
		return classify("insert transaction", err)
	}
	return nil
}

// GetByID fetches a transaction by primary key.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	t := &domain.Transaction{}
	err := scanTransaction(r.pool.QueryRow(ctx, query, id), t)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// List fetches transactions filtered by source and/or destination account.
func (r *TransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.SourceAccountID != nil {
		conditions = append(conditions, fmt.Sprintf("source_account_id = $%d", argIdx))
		args = append(args, *params.SourceAccountID)
		argIdx++
	}
	if params.DestAccountID != nil {
		conditions = append(conditions, fmt.Sprintf("dest_account_id = $%d", argIdx))
		args = append(args, *params.DestAccountID)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM transactions %s", where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	orderBy, err := orderClause(transactionSortColumns, params.SortBy, params.Order)
	if err != nil {
		return nil, 0, err
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM transactions %s %s LIMIT $%d OFFSET $%d`,
		transactionColumns, where, orderBy, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t := domain.Transaction{}
		if err := scanTransaction(rows, &t); err != nil {
			return nil, 0, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, total, nil
}

// ExistsForAccount reports whether the account took part in any transfer.
func (r *TransactionRepo) ExistsForAccount(ctx context.Context, accountID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM transactions WHERE source_account_id = $1 OR dest_account_id = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, accountID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check account history: %w", err)
	}
	return exists, nil
}

func scanTransaction(row pgx.Row, t *domain.Transaction) error {
	return row.Scan(
		&t.ID, &t.SourceAccountID, &t.DestAccountID, &t.SourceCurrency, &t.DestCurrency,
		&t.Amount, &t.ConvertedAmount, &t.Rate, &t.CreatedAt,
	)
}
