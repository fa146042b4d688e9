package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"agile-bank/internal/core/domain"
	"agile-bank/internal/core/ports"
	"agile-bank/pkg/apperror"

	"github.com/LerianStudio/lib-uncommons/v2/uncommons/backoff"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Transfer outcomes reported to ports.TransferMetrics.
const (
	OutcomeSuccess      = "success"
	OutcomeReplayed     = "replayed"
	OutcomeRejected     = "rejected"
	OutcomeCommitFailed = "commit_failed"
	OutcomeError        = "error"
)

const defaultIdempotencyTTL = 24 * time.Hour

// TransferConfig tunes the engine.
type TransferConfig struct {
	// MaxRetries bounds how often a transfer that lost a race with a
	// concurrent writer is re-run. Business failures are never retried.
	MaxRetries     int
	RetryBaseDelay time.Duration
	IdempotencyTTL time.Duration
}

// TransferServiceImpl implements ports.TransferService.
//
// A transfer either applies completely (source debited, destination credited,
// one transaction recorded) or not at all. Both accounts are locked in
// ascending id order for the whole unit of work so opposing transfers between
// the same pair cannot deadlock.
type TransferServiceImpl struct {
	accountRepo ports.AccountRepository
	txRepo      ports.TransactionRepository
	idempRepo   ports.IdempotencyRepository
	idempCache  ports.IdempotencyCache
	transactor  ports.DBTransactor
	rates       ports.ExchangeRates
	metrics     ports.TransferMetrics
	checker     *SanityChecker
	cfg         TransferConfig
	log         zerolog.Logger
}

// NewTransferService creates a new TransferServiceImpl. idempCache and
// metrics may be nil.
func NewTransferService(
	accountRepo ports.AccountRepository,
	txRepo ports.TransactionRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	transactor ports.DBTransactor,
	rates ports.ExchangeRates,
	metrics ports.TransferMetrics,
	cfg TransferConfig,
	log zerolog.Logger,
) *TransferServiceImpl {
	if metrics == nil {
		metrics = noopTransferMetrics{}
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = defaultIdempotencyTTL
	}
	return &TransferServiceImpl{
		accountRepo: accountRepo,
		txRepo:      txRepo,
		idempRepo:   idempRepo,
		idempCache:  idempCache,
		transactor:  transactor,
		rates:       rates,
		metrics:     metrics,
		checker:     NewSanityChecker(rates),
		cfg:         cfg,
		log:         log,
	}
}

// Transfer moves req.Amount (in the source account's currency) from source to
// destination, crediting the amount converted through the currency ledger.
func (s *TransferServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (*domain.Transaction, error) {
	start := time.Now()
	txn, replayed, err := s.transfer(ctx, req)

	cross := txn != nil && txn.IsCrossCurrency()
	s.metrics.ObserveTransfer(outcomeOf(err, replayed), cross, time.Since(start))

	return txn, err
}

func (s *TransferServiceImpl) transfer(ctx context.Context, req ports.TransferRequest) (*domain.Transaction, bool, error) {
	if err := s.checker.Check(req); err != nil {
		return nil, false, toAppError(err)
	}

	var idempKey string
	if req.IdempotencyKey != "" {
		idempKey = domain.BuildTransferIdempotencyKey(req.IdempotencyKey)
	}

	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			s.metrics.ObserveRetry("concurrent_update")
			delay := backoff.ExponentialWithJitter(s.cfg.RetryBaseDelay, attempt-1)
			if err := backoff.WaitContext(ctx, delay); err != nil {
				return nil, false, toAppError(&domain.StorageCommitError{Attempts: attempt, Err: err})
			}
		}

		// A racing request with the same key may have committed since the
		// last attempt; its transaction is the answer.
		if idempKey != "" {
			prior, err := s.lookupIdempotent(ctx, idempKey)
			if err != nil {
				return nil, false, err
			}
			if prior != nil {
				if !sameTransfer(prior, req) {
					return nil, false, apperror.ErrIdempotencyKeyReused()
				}
				return prior, true, nil
			}
		}

		txn, respJSON, err := s.apply(ctx, req, idempKey, attempt+1)
		if err == nil {
			s.cacheIdempotent(ctx, idempKey, respJSON)
			s.log.Info().
				Str("tx_id", txn.ID.String()).
				Str("source_account_id", txn.SourceAccountID.String()).
				Str("dest_account_id", txn.DestAccountID.String()).
				Str("amount", txn.Amount.String()).
				Str("converted_amount", txn.ConvertedAmount.String()).
				Str("rate", txn.Rate.String()).
				Int("attempts", attempt+1).
				Msg("transfer committed")
			return txn, false, nil
		}
		if !errors.Is(err, domain.ErrConcurrentUpdate) {
			return nil, false, err
		}

		lastErr = err
		s.log.Warn().Err(err).
			Int("attempt", attempt+1).
			Str("source_account_id", req.SourceAccountID.String()).
			Str("dest_account_id", req.DestAccountID.String()).
			Msg("transfer lost a concurrent update, retrying")
	}

	return nil, false, toAppError(&domain.StorageCommitError{Attempts: s.cfg.MaxRetries + 1, Err: lastErr})
}

// apply runs one attempt inside a single unit of work. Returned errors are
// either AppErrors or wrap domain.ErrConcurrentUpdate when the attempt may be
// retried.
func (s *TransferServiceImpl) apply(ctx context.Context, req ports.TransferRequest, idempKey string, attempt int) (*domain.Transaction, []byte, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, nil, readFailed("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	source, dest, err := s.lockPair(ctx, dbTx, req.SourceAccountID, req.DestAccountID)
	if err != nil {
		return nil, nil, err
	}
	if source == nil {
		return nil, nil, toAppError(&domain.AccountNotFoundError{AccountID: req.SourceAccountID})
	}
	if dest == nil {
		return nil, nil, toAppError(&domain.AccountNotFoundError{AccountID: req.DestAccountID})
	}

	if err := s.checker.CheckAccounts(req, source, dest); err != nil {
		return nil, nil, toAppError(err)
	}

	converted, rate, err := s.rates.Convert(req.Amount, source.Currency, dest.Currency)
	if err != nil {
		return nil, nil, toAppError(err)
	}

	if !source.CanDebit(req.Amount) {
		return nil, nil, toAppError(&domain.InsufficientBalanceError{
			AccountID: source.ID,
			Currency:  source.Currency,
			Available: source.Balance,
			Requested: req.Amount,
		})
	}

	if err := s.accountRepo.UpdateBalance(ctx, dbTx, source.ID, source.Balance.Sub(req.Amount), source.Version); err != nil {
		return nil, nil, writeFailed(attempt, "debit source", err)
	}
	if err := s.accountRepo.UpdateBalance(ctx, dbTx, dest.ID, dest.Balance.Add(converted), dest.Version); err != nil {
		return nil, nil, writeFailed(attempt, "credit destination", err)
	}

	now := time.Now().UTC()
	txn := &domain.Transaction{
		ID:              newTransactionID(),
		SourceAccountID: source.ID,
		DestAccountID:   dest.ID,
		SourceCurrency:  source.Currency,
		DestCurrency:    dest.Currency,
		Amount:          req.Amount,
		ConvertedAmount: converted,
		Rate:            rate,
		CreatedAt:       now,
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, nil, writeFailed(attempt, "record transaction", err)
	}

	var respJSON []byte
	if idempKey != "" {
		respJSON, err = json.Marshal(txn)
		if err != nil {
			return nil, nil, internal("marshal response", err)
		}
		entry := &domain.IdempotencyLog{
			Key:           idempKey,
			TransactionID: txn.ID,
			ResponseJSON:  respJSON,
			CreatedAt:     now,
		}
		if err := s.idempRepo.Create(ctx, dbTx, entry); err != nil {
			return nil, nil, writeFailed(attempt, "save idempotency log", err)
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, nil, writeFailed(attempt, "commit tx", err)
	}

	return txn, respJSON, nil
}

// lockPair locks both accounts in ascending id order and returns them as
// (source, dest). A missing account comes back nil.
func (s *TransferServiceImpl) lockPair(ctx context.Context, tx pgx.Tx, sourceID, destID uuid.UUID) (*domain.Account, *domain.Account, error) {
	first, second := sourceID, destID
	if bytes.Compare(first[:], second[:]) > 0 {
		first, second = second, first
	}

	a, err := s.accountRepo.GetByIDForUpdate(ctx, tx, first)
	if err != nil {
		return nil, nil, readFailed("lock account", err)
	}
	b, err := s.accountRepo.GetByIDForUpdate(ctx, tx, second)
	if err != nil {
		return nil, nil, readFailed("lock account", err)
	}

	if first == sourceID {
		return a, b, nil
	}
	return b, a, nil
}

func (s *TransferServiceImpl) lookupIdempotent(ctx context.Context, key string) (*domain.Transaction, error) {
	if s.idempCache != nil {
		cached, err := s.idempCache.Get(ctx, key)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
		}
		if cached != nil {
			return unmarshalTransaction(cached)
		}
	}

	entry, err := s.idempRepo.Get(ctx, key)
	if err != nil {
		return nil, internal("db idempotency check", err)
	}
	if entry == nil {
		return nil, nil
	}
	return unmarshalTransaction(entry.ResponseJSON)
}

func (s *TransferServiceImpl) cacheIdempotent(ctx context.Context, key string, respJSON []byte) {
	if s.idempCache == nil || key == "" {
		return
	}
	if err := s.idempCache.Set(ctx, key, respJSON, s.cfg.IdempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache idempotency in redis")
	}
}

func unmarshalTransaction(data []byte) (*domain.Transaction, error) {
	txn := &domain.Transaction{}
	if err := json.Unmarshal(data, txn); err != nil {
		return nil, internal("unmarshal cached tx", err)
	}
	return txn, nil
}

// sameTransfer reports whether a replayed key carries the request it was
// first used with. A currency hint must name the currency the first request
// settled from; an absent hint matches any.
func sameTransfer(prior *domain.Transaction, req ports.TransferRequest) bool {
	if req.Currency != "" && req.Currency != prior.SourceCurrency {
		return false
	}
	return prior.SourceAccountID == req.SourceAccountID &&
		prior.DestAccountID == req.DestAccountID &&
		prior.Amount.Equal(req.Amount)
}

// readFailed classifies a failure that happened before anything was written.
func readFailed(op string, err error) error {
	if errors.Is(err, domain.ErrConcurrentUpdate) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return internal(op, err)
}

// writeFailed classifies a failure in the apply phase. Nothing is visible
// after it since the unit of work rolls back.
func writeFailed(attempt int, op string, err error) error {
	if errors.Is(err, domain.ErrConcurrentUpdate) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return toAppError(&domain.StorageCommitError{Attempts: attempt, Err: fmt.Errorf("%s: %w", op, err)})
}

func outcomeOf(err error, replayed bool) string {
	if err == nil {
		if replayed {
			return OutcomeReplayed
		}
		return OutcomeSuccess
	}

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		return OutcomeError
	}
	var commitErr *domain.StorageCommitError
	switch {
	case errors.As(err, &commitErr):
		return OutcomeCommitFailed
	case appErr.HTTPStatus < http.StatusInternalServerError:
		return OutcomeRejected
	}
	return OutcomeError
}

// newTransactionID returns a time-ordered id so the log sorts by creation.
func newTransactionID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

type noopTransferMetrics struct{}

func (noopTransferMetrics) ObserveTransfer(string, bool, time.Duration) {}
func (noopTransferMetrics) ObserveRetry(string)                         {}
