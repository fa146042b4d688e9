// Package ledger holds the exchange-rate table between supported currencies.
//
// A Ledger is built once at start-up and never mutated afterwards, so it can
// be shared by every transfer without locking.
package ledger

import (
	"fmt"
	"sort"

	"agile-bank/internal/core/domain"

	"github.com/shopspring/decimal"
)

// ReciprocalPrecision is the number of fractional digits kept when a rate is
// derived from its inverse entry.
const ReciprocalPrecision int32 = 16

var one = decimal.NewFromInt(1)

// Ledger is an immutable rate table.
type Ledger struct {
	currencies domain.CurrencySet
	rates      map[domain.CurrencyPair]decimal.Decimal
}

type options struct {
	requireComplete bool
}

// Option configures New.
type Option func(*options)

// RequireComplete makes New fail unless every pair of distinct currencies is
// covered in at least one direction.
func RequireComplete() Option {
	return func(o *options) { o.requireComplete = true }
}

// New validates the rates against the currency set and builds a Ledger.
// Each unordered pair may be registered in one direction only.
func New(currencies domain.CurrencySet, rates []domain.ExchangeRate, opts ...Option) (*Ledger, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if len(currencies) == 0 {
		return nil, fmt.Errorf("ledger: no currencies configured")
	}

	set := make(domain.CurrencySet, len(currencies))
	for c, units := range currencies {
		if units < 0 {
			return nil, fmt.Errorf("ledger: negative minor units for %s", c)
		}
		set[c] = units
	}

	table := make(map[domain.CurrencyPair]decimal.Decimal, len(rates))
	for _, r := range rates {
		p := r.Pair
		if !set.Supports(p.From) {
			return nil, fmt.Errorf("ledger: rate %s references unsupported currency %s", p, p.From)
		}
		if !set.Supports(p.To) {
			return nil, fmt.Errorf("ledger: rate %s references unsupported currency %s", p, p.To)
		}
		if p.From == p.To {
			return nil, fmt.Errorf("ledger: rate %s maps a currency to itself", p)
		}
		if !r.Rate.IsPositive() {
			return nil, fmt.Errorf("ledger: rate %s must be positive, got %s", p, r.Rate)
		}
		if _, dup := table[p]; dup {
			return nil, fmt.Errorf("ledger: duplicate rate for %s", p)
		}
		if _, inv := table[p.Inverse()]; inv {
			return nil, fmt.Errorf("ledger: both %s and %s registered", p, p.Inverse())
		}
		table[p] = r.Rate
	}

	l := &Ledger{currencies: set, rates: table}

	if o.requireComplete {
		if missing := l.MissingPairs(); len(missing) > 0 {
			return nil, fmt.Errorf("ledger: %d currency pair(s) without a rate, first is %s", len(missing), missing[0])
		}
	}

	return l, nil
}

// Rate returns how many units of to one unit of from buys.
//
// A directly registered rate is returned as stored. If only (to, from) is
// registered its reciprocal is returned, rounded half-up to
// ReciprocalPrecision digits. Callers must special-case from == to.
func (l *Ledger) Rate(from, to domain.Currency) (decimal.Decimal, error) {
	if from == to {
		return decimal.Zero, &domain.SameCurrencyError{Currency: from}
	}

	p := domain.CurrencyPair{From: from, To: to}
	if r, ok := l.rates[p]; ok {
		return r, nil
	}
	if inv, ok := l.rates[p.Inverse()]; ok {
		return one.DivRound(inv, ReciprocalPrecision), nil
	}

	return decimal.Zero, &domain.CurrencyPairNotFoundError{From: from, To: to}
}

// Convert turns amount in from into to, rounding half-up to the minor units
// of to. Equal currencies convert at exactly 1 without consulting the table.
// The applied rate is returned alongside the converted amount.
func (l *Ledger) Convert(amount decimal.Decimal, from, to domain.Currency) (decimal.Decimal, decimal.Decimal, error) {
	if from == to {
		return amount, one, nil
	}

	units, ok := l.currencies.MinorUnits(to)
	if !ok {
		return decimal.Zero, decimal.Zero, &domain.MissingCurrencyContextError{Currency: to}
	}

	rate, err := l.Rate(from, to)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	return amount.Mul(rate).Round(units), rate, nil
}

// Supports reports whether c is a configured currency.
func (l *Ledger) Supports(c domain.Currency) bool {
	return l.currencies.Supports(c)
}

// MinorUnits returns the fractional digits of c.
func (l *Ledger) MinorUnits(c domain.Currency) (int32, bool) {
	return l.currencies.MinorUnits(c)
}

// Currencies returns the supported currencies in lexical order.
func (l *Ledger) Currencies() []domain.Currency {
	return l.currencies.Codes()
}

// Rates returns the registered entries ordered by (from, to).
func (l *Ledger) Rates() []domain.ExchangeRate {
	out := make([]domain.ExchangeRate, 0, len(l.rates))
	for p, r := range l.rates {
		out = append(out, domain.ExchangeRate{Pair: p, Rate: r})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pair.From != out[j].Pair.From {
			return out[i].Pair.From < out[j].Pair.From
		}
		return out[i].Pair.To < out[j].Pair.To
	})
	return out
}

// MissingPairs lists unordered pairs of distinct currencies with no rate in
// either direction, as (lower, higher) pairs.
func (l *Ledger) MissingPairs() []domain.CurrencyPair {
	codes := l.currencies.Codes()
	var missing []domain.CurrencyPair
	for i := 0; i < len(codes); i++ {
		for j := i + 1; j < len(codes); j++ {
			p := domain.CurrencyPair{From: codes[i], To: codes[j]}
			_, fwd := l.rates[p]
			_, inv := l.rates[p.Inverse()]
			if !fwd && !inv {
				missing = append(missing, p)
			}
		}
	}
	return missing
}
