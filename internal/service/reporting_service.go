package service

import (
	"context"

	"agile-bank/internal/core/domain"
	"agile-bank/internal/core/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// reportingService implements ports.ReportingService.
type reportingService struct {
	txRepo ports.TransactionRepository
	rates  ports.ExchangeRates
}

// NewReportingService creates a new reporting service.
func NewReportingService(txRepo ports.TransactionRepository, rates ports.ExchangeRates) ports.ReportingService {
	return &reportingService{
		txRepo: txRepo,
		rates:  rates,
	}
}

// ListTransactions returns a page of the transaction log, newest first unless
// asked otherwise.
func (s *reportingService) ListTransactions(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	var err error
	params.SortBy, params.Order, params.Page, params.PageSize, err =
		transactionListing.normalize(params.SortBy, params.Order, params.Page, params.PageSize)
	if err != nil {
		return nil, 0, err
	}

	txns, total, err := s.txRepo.List(ctx, params)
	if err != nil {
		return nil, 0, internal("list transactions", err)
	}
	return txns, total, nil
}

// GetTransaction returns one transaction by id.
func (s *reportingService) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	txn, err := s.txRepo.GetByID(ctx, id)
	if err != nil {
		return nil, internal("get transaction", err)
	}
	if txn == nil {
		return nil, toAppError(&domain.TransactionNotFoundError{ID: id})
	}
	return txn, nil
}

// ListRates returns the registered rate table.
func (s *reportingService) ListRates(_ context.Context) []domain.ExchangeRate {
	return s.rates.Rates()
}

// GetRate resolves the effective rate from one currency to another,
// including reciprocals of registered entries.
func (s *reportingService) GetRate(_ context.Context, from, to domain.Currency) (*domain.ExchangeRate, error) {
	for _, c := range []domain.Currency{from, to} {
		if c == "" || !s.rates.Supports(c) {
			return nil, toAppError(&domain.MissingCurrencyContextError{Currency: c})
		}
	}

	pair := domain.CurrencyPair{From: from, To: to}
	if from == to {
		return &domain.ExchangeRate{Pair: pair, Rate: decimal.NewFromInt(1)}, nil
	}

	rate, err := s.rates.Rate(from, to)
	if err != nil {
		return nil, toAppError(err)
	}
	return &domain.ExchangeRate{Pair: pair, Rate: rate}, nil
}
