package ports

import (
	"context"

	"agile-bank/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AccountRepository defines persistence operations for accounts.
// Methods accepting pgx.Tx run inside the transfer's unit of work; the
// ForUpdate read holds the account's lock until that unit commits or rolls back.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error)
	// UpdateBalance writes balance only if the stored version still equals
	// expectedVersion, bumping it. Returns domain.ErrConcurrentUpdate otherwise.
	UpdateBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance decimal.Decimal, expectedVersion int64) error
	List(ctx context.Context, params AccountListParams) ([]domain.Account, int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// TransactionRepository defines persistence operations for the append-only
// transaction log.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	ExistsForAccount(ctx context.Context, accountID uuid.UUID) (bool, error)
}

// SortOrder is the direction of a listing.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Paging limits shared by all listings.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// TransactionListParams holds filter, sort and pagination for listing
// transactions. With both account ids set only transfers from Source to
// Dest match. Page is 1-based.
type TransactionListParams struct {
	SourceAccountID *uuid.UUID
	DestAccountID   *uuid.UUID
	SortBy          string
	Order           SortOrder
	Page            int
	PageSize        int
}

// AccountListParams holds sort and pagination for listing accounts.
type AccountListParams struct {
	Currency *domain.Currency
	SortBy   string
	Order    SortOrder
	Page     int
	PageSize int
}

// IdempotencyRepository defines persistence for idempotency logs (DB backup).
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error
	Get(ctx context.Context, key string) (*domain.IdempotencyLog, error)
}

// UserRepository defines persistence operations for API users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// RateRepository loads an administratively maintained rate table.
type RateRepository interface {
	LoadAll(ctx context.Context) ([]domain.ExchangeRate, error)
}

// DBTransactor provides the unit of work a transfer commits through.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
