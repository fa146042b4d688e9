package service

import (
	"context"
	"errors"
	"fmt"

	"agile-bank/internal/core/domain"
	"agile-bank/pkg/apperror"

	"github.com/google/uuid"
)

// toAppError maps typed domain errors onto transport errors, keeping the
// domain error reachable through errors.As and copying its context into
// Details. Errors that already are AppErrors pass through.
func toAppError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}

	var (
		sameAccount  *domain.SameAccountError
		nonPositive  *domain.NonPositiveAmountError
		missingCcy   *domain.MissingCurrencyContextError
		notFound     *domain.AccountNotFoundError
		pairNotFound *domain.CurrencyPairNotFoundError
		sameCurrency *domain.SameCurrencyError
		insufficient *domain.InsufficientBalanceError
		commitErr    *domain.StorageCommitError
		sortErr      *domain.InvalidSortFieldError
		pageErr      *domain.InvalidPaginationError
		mismatch     *domain.CurrencyMismatchError
		precision    *domain.AmountPrecisionError
		hasHistory   *domain.AccountHasHistoryError
		openingErr   *domain.InvalidOpeningBalanceError
		txnNotFound  *domain.TransactionNotFoundError
	)

	switch {
	case errors.As(err, &sameAccount):
		return apperror.ErrSameAccount(err).WithDetails(map[string]interface{}{
			"account_id": sameAccount.AccountID.String(),
		})
	case errors.As(err, &nonPositive):
		return apperror.ErrNonPositiveAmount(err).WithDetails(map[string]interface{}{
			"amount": nonPositive.Amount.String(),
		})
	case errors.As(err, &missingCcy):
		details := map[string]interface{}{"currency": missingCcy.Currency.String()}
		if missingCcy.AccountID != uuid.Nil {
			details["account_id"] = missingCcy.AccountID.String()
		}
		return apperror.ErrMissingCurrencyContext(err).WithDetails(details)
	case errors.As(err, &notFound):
		return apperror.ErrAccountNotFound(err).WithDetails(map[string]interface{}{
			"account_id": notFound.AccountID.String(),
		})
	case errors.As(err, &pairNotFound):
		return apperror.ErrCurrencyPairNotFound(err).WithDetails(map[string]interface{}{
			"from": pairNotFound.From.String(),
			"to":   pairNotFound.To.String(),
		})
	case errors.As(err, &sameCurrency):
		return apperror.ErrSameCurrency(err)
	case errors.As(err, &insufficient):
		return apperror.ErrInsufficientBalance(err).WithDetails(map[string]interface{}{
			"account_id": insufficient.AccountID.String(),
			"currency":   insufficient.Currency.String(),
			"available":  insufficient.Available.String(),
			"requested":  insufficient.Requested.String(),
		})
	case errors.As(err, &commitErr):
		return apperror.ErrStorageCommit(err).WithDetails(map[string]interface{}{
			"attempts": commitErr.Attempts,
		})
	case errors.As(err, &sortErr):
		return apperror.ErrInvalidSortField(err).WithDetails(map[string]interface{}{
			"field":   sortErr.Field,
			"allowed": sortErr.Allowed,
		})
	case errors.As(err, &pageErr):
		return apperror.ErrInvalidPagination(err)
	case errors.As(err, &mismatch):
		return apperror.ErrCurrencyMismatch(err).WithDetails(map[string]interface{}{
			"account_id": mismatch.AccountID.String(),
			"expected":   mismatch.Expected.String(),
			"got":        mismatch.Got.String(),
		})
	case errors.As(err, &precision):
		return apperror.ErrAmountPrecision(err).WithDetails(map[string]interface{}{
			"amount":      precision.Amount.String(),
			"currency":    precision.Currency.String(),
			"minor_units": precision.MinorUnits,
		})
	case errors.As(err, &hasHistory):
		return apperror.ErrAccountHasHistory(err).WithDetails(map[string]interface{}{
			"account_id": hasHistory.AccountID.String(),
		})
	case errors.As(err, &openingErr):
		return apperror.ErrInvalidOpeningBalance(err)
	case errors.As(err, &txnNotFound):
		return apperror.ErrTransactionNotFound(err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperror.ErrLockTimeout(err)
	}

	return apperror.InternalError(err)
}

// internal wraps an infrastructure failure with the operation that hit it.
func internal(op string, err error) error {
	return toAppError(fmt.Errorf("%s: %w", op, err))
}
