package service

import (
	"context"
	"time"

	"agile-bank/internal/core/domain"
	"agile-bank/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AccountServiceImpl implements ports.AccountService.
type AccountServiceImpl struct {
	accountRepo ports.AccountRepository
	txRepo      ports.TransactionRepository
	rates       ports.ExchangeRates
	log         zerolog.Logger
}

// NewAccountService creates a new AccountServiceImpl.
func NewAccountService(
	accountRepo ports.AccountRepository,
	txRepo ports.TransactionRepository,
	rates ports.ExchangeRates,
	log zerolog.Logger,
) *AccountServiceImpl {
	return &AccountServiceImpl{
		accountRepo: accountRepo,
		txRepo:      txRepo,
		rates:       rates,
		log:         log,
	}
}

// Open creates an account in a supported currency with a non-negative
// opening balance expressed in that currency's minor units.
func (s *AccountServiceImpl) Open(ctx context.Context, req ports.OpenAccountRequest) (*domain.Account, error) {
	units, ok := s.rates.MinorUnits(req.Currency)
	if !ok {
		return nil, toAppError(&domain.MissingCurrencyContextError{Currency: req.Currency})
	}
	if req.InitialBalance.IsNegative() {
		return nil, toAppError(&domain.InvalidOpeningBalanceError{Balance: req.InitialBalance})
	}
	if !req.InitialBalance.Equal(req.InitialBalance.Truncate(units)) {
		return nil, toAppError(&domain.AmountPrecisionError{Amount: req.InitialBalance, Currency: req.Currency, MinorUnits: units})
	}

	now := time.Now().UTC()
	account := &domain.Account{
		ID:        uuid.New(),
		Currency:  req.Currency,
		Balance:   req.InitialBalance,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, internal("create account", err)
	}

	s.log.Info().
		Str("account_id", account.ID.String()).
		Str("currency", account.Currency.String()).
		Str("balance", account.Balance.String()).
		Msg("account opened")

	return account, nil
}

// Get returns a snapshot of one account.
func (s *AccountServiceImpl) Get(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, id)
	if err != nil {
		return nil, internal("get account", err)
	}
	if account == nil {
		return nil, toAppError(&domain.AccountNotFoundError{AccountID: id})
	}
	return account, nil
}

// List returns a page of accounts and the total number matching.
func (s *AccountServiceImpl) List(ctx context.Context, params ports.AccountListParams) ([]domain.Account, int64, error) {
	var err error
	params.SortBy, params.Order, params.Page, params.PageSize, err =
		accountListing.normalize(params.SortBy, params.Order, params.Page, params.PageSize)
	if err != nil {
		return nil, 0, err
	}
	if params.Currency != nil && !s.rates.Supports(*params.Currency) {
		return nil, 0, toAppError(&domain.MissingCurrencyContextError{Currency: *params.Currency})
	}

	accounts, total, err := s.accountRepo.List(ctx, params)
	if err != nil {
		return nil, 0, internal("list accounts", err)
	}
	return accounts, total, nil
}

// Close deletes an account that no transaction refers to.
func (s *AccountServiceImpl) Close(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	used, err := s.txRepo.ExistsForAccount(ctx, id)
	if err != nil {
		return internal("check account history", err)
	}
	if used {
		return toAppError(&domain.AccountHasHistoryError{AccountID: id})
	}

	// The storage layer re-checks history under its own lock.
	if err := s.accountRepo.Delete(ctx, id); err != nil {
		return toAppError(err)
	}

	s.log.Info().Str("account_id", id.String()).Msg("account closed")
	return nil
}
