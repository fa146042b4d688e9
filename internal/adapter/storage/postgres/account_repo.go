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
	"github.com/shopspring/decimal"
)

const accountColumns = "id, currency, balance, version, created_at, updated_at"

// accountSortColumns whitelists ORDER BY targets; values are never
// interpolated from user input directly.
var accountSortColumns = map[string]string{
	"id":         "id",
	"balance":    "balance",
	"currency":   "currency",
	"created_at": "created_at",
}

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// Create inserts a new account.
func (r *AccountRepo) Create(ctx context.Context, account *domain.Account) error {
	query := `INSERT INTO accounts (id, currency, balance, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		account.ID, account.Currency, account.Balance, account.Version,
		account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetByID fetches an account by primary key without locking.
func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches an account and holds its row lock until tx ends.
func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`

	account, err := scanAccount(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, classify("lock account", err)
	}
	return account, nil
}

// UpdateBalance writes the new balance if the row is still at expectedVersion.
func (r *AccountRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance decimal.Decimal, expectedVersion int64) error {
	query := `UPDATE accounts SET balance = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3`

	tag, err := tx.Exec(ctx, query, balance, id, expectedVersion)
	if err != nil {
		return classify("update account balance", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update account %s at version %d: %w", id, expectedVersion, domain.ErrConcurrentUpdate)
	}
	return nil
}

// List fetches accounts with an optional currency filter, sorted and paged.
// params must already be normalized by the service.
func (r *AccountRepo) List(ctx context.Context, params ports.AccountListParams) ([]domain.Account, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.Currency != nil {
		conditions = append(conditions, fmt.Sprintf("currency = $%d", argIdx))
		args = append(args, *params.Currency)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM accounts %s", where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	orderBy, err := orderClause(accountSortColumns, params.SortBy, params.Order)
	if err != nil {
		return nil, 0, err
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM accounts %s %s LIMIT $%d OFFSET $%d`,
		accountColumns, where, orderBy, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		a := domain.Account{}
		if err := rows.Scan(&a.ID, &a.Currency, &a.Balance, &a.Version, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan account row: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate account rows: %w", err)
	}
	return accounts, total, nil
}

// Delete removes an account. Accounts referenced by a transaction are kept.
func (r *AccountRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return &domain.AccountHasHistoryError{AccountID: id}
		}
		return fmt.Errorf("delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.AccountNotFoundError{AccountID: id}
	}
	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	a := &domain.Account{}
	err := row.Scan(&a.ID, &a.Currency, &a.Balance, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return a, nil
}

// orderClause builds "ORDER BY col dir, id dir" from whitelisted columns.
// The id tie-break keeps paging stable when the sort key repeats.
func orderClause(columns map[string]string, field string, order ports.SortOrder) (string, error) {
	col, ok := columns[field]
	if !ok {
		return "", fmt.Errorf("unsupported sort field %q", field)
	}
	dir := "ASC"
	if order == ports.SortDesc {
		dir = "DESC"
	}
	if col == "id" {
		return fmt.Sprintf("ORDER BY id %s", dir), nil
	}
	return fmt.Sprintf("ORDER BY %s %s, id %s", col, dir, dir), nil
}
