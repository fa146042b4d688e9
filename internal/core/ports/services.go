package ports

import (
	"context"
	"time"

	"agile-bank/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID, username string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID   uuid.UUID
	Username string
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RateLimitStore counts requests per key within a fixed window.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// ExchangeRates is the read side of the currency ledger.
type ExchangeRates interface {
	Rate(from, to domain.Currency) (decimal.Decimal, error)
	Convert(amount decimal.Decimal, from, to domain.Currency) (decimal.Decimal, decimal.Decimal, error)
	Supports(c domain.Currency) bool
	MinorUnits(c domain.Currency) (int32, bool)
	Currencies() []domain.Currency
	Rates() []domain.ExchangeRate
}

// TransferMetrics receives transfer outcomes.
type TransferMetrics interface {
	ObserveTransfer(outcome string, crossCurrency bool, duration time.Duration)
	ObserveRetry(reason string)
}

// --- Service Ports (Business Logic) ---

// TransferService moves money between two accounts.
type TransferService interface {
	Transfer(ctx context.Context, req TransferRequest) (*domain.Transaction, error)
}

// TransferRequest is a proposed transfer. Amount is in the source account's
// currency. Currency is optional; when set it must name the source account's
// currency. IdempotencyKey is optional.
type TransferRequest struct {
	SourceAccountID uuid.UUID
	DestAccountID   uuid.UUID
	Amount          decimal.Decimal
	Currency        domain.Currency
	IdempotencyKey  string
}

// AccountService manages account lifecycle outside of transfers.
type AccountService interface {
	Open(ctx context.Context, req OpenAccountRequest) (*domain.Account, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	List(ctx context.Context, params AccountListParams) ([]domain.Account, int64, error)
	Close(ctx context.Context, id uuid.UUID) error
}

// OpenAccountRequest holds input for opening an account.
type OpenAccountRequest struct {
	Currency       domain.Currency
	InitialBalance decimal.Decimal
}

// AuthService defines authentication business logic.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, username, password string) (string, time.Time, error) // token, expiry, error
}

// RegisterRequest holds input for user registration.
type RegisterRequest struct {
	Username string
	Password string
}

// ReportingService exposes read-only views over transactions and rates.
type ReportingService interface {
	ListTransactions(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	ListRates(ctx context.Context) []domain.ExchangeRate
	GetRate(ctx context.Context, from, to domain.Currency) (*domain.ExchangeRate, error)
}

// AuditService records audit entries without blocking the request.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
