package service

import (
	"agile-bank/internal/core/domain"
	"agile-bank/internal/core/ports"
)

// SanityChecker rejects structurally invalid transfers. It has no side
// effects and returns typed domain errors.
type SanityChecker struct {
	rates ports.ExchangeRates
}

// NewSanityChecker creates a checker that resolves currencies against rates.
func NewSanityChecker(rates ports.ExchangeRates) *SanityChecker {
	return &SanityChecker{rates: rates}
}

// Check validates the request before any account is read. The first failing
// rule wins, in this order: same account, non-positive amount, unknown
// currency in the request.
func (c *SanityChecker) Check(req ports.TransferRequest) error {
	if req.SourceAccountID == req.DestAccountID {
		return &domain.SameAccountError{AccountID: req.SourceAccountID}
	}
	if !req.Amount.IsPositive() {
		return &domain.NonPositiveAmountError{Amount: req.Amount}
	}
	if req.Currency != "" && !c.rates.Supports(req.Currency) {
		return &domain.MissingCurrencyContextError{Currency: req.Currency}
	}
	return nil
}

// CheckAccounts validates the request against the loaded accounts: both
// currencies must be known to the ledger, a stated currency must be the
// source's, and the amount must fit the source currency's minor units.
func (c *SanityChecker) CheckAccounts(req ports.TransferRequest, source, dest *domain.Account) error {
	for _, acc := range []*domain.Account{source, dest} {
		if acc.Currency == "" || !c.rates.Supports(acc.Currency) {
			return &domain.MissingCurrencyContextError{AccountID: acc.ID, Currency: acc.Currency}
		}
	}

	if req.Currency != "" && req.Currency != source.Currency {
		return &domain.CurrencyMismatchError{AccountID: source.ID, Expected: source.Currency, Got: req.Currency}
	}

	units, _ := c.rates.MinorUnits(source.Currency)
	if !req.Amount.Equal(req.Amount.Truncate(units)) {
		return &domain.AmountPrecisionError{Amount: req.Amount, Currency: source.Currency, MinorUnits: units}
	}

	return nil
}
