package ledger

import (
	"fmt"
	"math/rand/v2"

	"agile-bank/internal/core/domain"

	"github.com/shopspring/decimal"
)

// RateSpec is a textual rate as it appears in configuration.
type RateSpec struct {
	From string
	To   string
	Rate string
}

// ParseRates converts textual specs into exchange rates. Rates are parsed as
// decimals so no precision is lost.
func ParseRates(specs []RateSpec) ([]domain.ExchangeRate, error) {
	out := make([]domain.ExchangeRate, 0, len(specs))
	for i, s := range specs {
		r, err := decimal.NewFromString(s.Rate)
		if err != nil {
			return nil, fmt.Errorf("rate #%d (%s/%s): %w", i, s.From, s.To, err)
		}
		out = append(out, domain.ExchangeRate{
			Pair: domain.CurrencyPair{From: domain.ParseCurrency(s.From), To: domain.ParseCurrency(s.To)},
			Rate: r,
		})
	}
	return out, nil
}

const (
	minGeneratedCents = 1     // 0.01
	maxGeneratedCents = 10000 // 100.00
)

// GenerateRates builds a deterministic table for the given currencies: one
// entry per unordered pair, stored in lexical (from < to) order, with a rate
// between 0.01 and 100.00 at two decimal places. The same seed always yields
// the same table. The reverse direction is left to reciprocal resolution.
func GenerateRates(currencies domain.CurrencySet, seed int64) []domain.ExchangeRate {
	rng := rand.New(rand.NewPCG(uint64(seed), 0)) // #nosec G404 -- reproducible demo data
	codes := currencies.Codes()

	var out []domain.ExchangeRate
	for i := 0; i < len(codes); i++ {
		for j := i + 1; j < len(codes); j++ {
			cents := minGeneratedCents + rng.Int64N(maxGeneratedCents-minGeneratedCents+1)
			out = append(out, domain.ExchangeRate{
				Pair: domain.CurrencyPair{From: codes[i], To: codes[j]},
				Rate: decimal.New(cents, -2),
			})
		}
	}
	return out
}
