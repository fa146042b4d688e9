package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrConcurrentUpdate is returned by storage when a write lost a race with
// another writer (stale version, serialization failure, deadlock victim).
// The transfer engine retries it; callers never see it directly.
var ErrConcurrentUpdate = errors.New("concurrent update detected")

// ErrUsernameTaken is returned by storage when the unique username index
// rejects an insert.
var ErrUsernameTaken = errors.New("username already taken")

// SameAccountError: source and destination are the same account.
type SameAccountError struct {
	AccountID uuid.UUID
}

func (e *SameAccountError) Error() string {
	return fmt.Sprintf("attempted a transfer from and to the same account %s", e.AccountID)
}

// NonPositiveAmountError: requested amount is zero or negative.
type NonPositiveAmountError struct {
	Amount decimal.Decimal
}

func (e *NonPositiveAmountError) Error() string {
	return fmt.Sprintf("amount %s is invalid; transfer amounts must be positive", e.Amount)
}

// MissingCurrencyContextError: a currency involved in the transfer is not
// known to the ledger. AccountID is zero when the currency came from the
// request rather than from a stored account.
type MissingCurrencyContextError struct {
	AccountID uuid.UUID
	Currency  Currency
}

func (e *MissingCurrencyContextError) Error() string {
	if e.Currency == "" {
		return "currency context is missing"
	}
	if e.AccountID == uuid.Nil {
		return fmt.Sprintf("currency %q is not supported", e.Currency)
	}
	return fmt.Sprintf("currency %q of account %s is not supported", e.Currency, e.AccountID)
}

type AccountNotFoundError struct {
	AccountID uuid.UUID
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("could not find account with id %s", e.AccountID)
}

// CurrencyPairNotFoundError: neither (From, To) nor (To, From) has a rate.
type CurrencyPairNotFoundError struct {
	From Currency
	To   Currency
}

func (e *CurrencyPairNotFoundError) Error() string {
	return fmt.Sprintf("no exchange rate registered between %s and %s", e.From, e.To)
}

// SameCurrencyError is returned by the ledger for a degenerate (c, c) lookup.
type SameCurrencyError struct {
	Currency Currency
}

func (e *SameCurrencyError) Error() string {
	return fmt.Sprintf("no rate lookup for identical currencies %s", e.Currency)
}

type InsufficientBalanceError struct {
	AccountID uuid.UUID
	Currency  Currency
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance in account %s: available %s %s, requested %s %s",
		e.AccountID, e.Available, e.Currency, e.Requested, e.Currency)
}

// StorageCommitError: the atomic apply step failed and nothing was applied.
type StorageCommitError struct {
	Attempts int
	Err      error
}

func (e *StorageCommitError) Error() string {
	return fmt.Sprintf("transfer not committed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *StorageCommitError) Unwrap() error {
	return e.Err
}

type InvalidSortFieldError struct {
	Field   string
	Allowed []string
}

func (e *InvalidSortFieldError) Error() string {
	return fmt.Sprintf("invalid sort field %q; acceptable fields are: %s", e.Field, strings.Join(e.Allowed, ", "))
}

type InvalidPaginationError struct {
	Page     int
	PageSize int
	MaxSize  int
}

func (e *InvalidPaginationError) Error() string {
	return fmt.Sprintf("invalid pagination parameters page=%d, page_size=%d; page must be >= 1 and page_size between 1 and %d",
		e.Page, e.PageSize, e.MaxSize)
}

// CurrencyMismatchError: the request states a currency other than the
// source account's.
type CurrencyMismatchError struct {
	AccountID uuid.UUID
	Expected  Currency
	Got       Currency
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("transfer currency %s does not match currency %s of source account %s", e.Got, e.Expected, e.AccountID)
}

// AmountPrecisionError: amount has more fractional digits than the currency allows.
type AmountPrecisionError struct {
	Amount     decimal.Decimal
	Currency   Currency
	MinorUnits int32
}

func (e *AmountPrecisionError) Error() string {
	return fmt.Sprintf("amount %s has more than %d decimal place(s) allowed for %s", e.Amount, e.MinorUnits, e.Currency)
}

// AccountHasHistoryError: accounts referenced by a transaction cannot be deleted.
type AccountHasHistoryError struct {
	AccountID uuid.UUID
}

func (e *AccountHasHistoryError) Error() string {
	return fmt.Sprintf("account %s has transaction history and cannot be deleted", e.AccountID)
}

type InvalidOpeningBalanceError struct {
	Balance decimal.Decimal
}

func (e *InvalidOpeningBalanceError) Error() string {
	return fmt.Sprintf("account cannot be opened with negative balance %s", e.Balance)
}

type TransactionNotFoundError struct {
	ID uuid.UUID
}

func (e *TransactionNotFoundError) Error() string {
	return fmt.Sprintf("could not find transaction with id %s", e.ID)
}
