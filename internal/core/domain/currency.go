package domain

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is an ISO-4217 style currency code, e.g. "USD".
type Currency string

// ParseCurrency normalises a user supplied code.
func ParseCurrency(code string) Currency {
	return Currency(strings.ToUpper(strings.TrimSpace(code)))
}

func (c Currency) String() string {
	return string(c)
}

// CurrencySet maps each supported currency to its minor-unit precision
// (2 for cents, 0 for currencies without subdivisions).
type CurrencySet map[Currency]int32

// Supports reports whether c is a configured currency.
func (s CurrencySet) Supports(c Currency) bool {
	_, ok := s[c]
	return ok
}

// MinorUnits returns the number of fractional digits of c.
func (s CurrencySet) MinorUnits(c Currency) (int32, bool) {
	units, ok := s[c]
	return units, ok
}

// Codes returns the supported currencies in lexical order.
func (s CurrencySet) Codes() []Currency {
	codes := make([]Currency, 0, len(s))
	for c := range s {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// CurrencyPair is an ordered (from, to) key into the rate table.
type CurrencyPair struct {
	From Currency `json:"from"`
	To   Currency `json:"to"`
}

func (p CurrencyPair) String() string {
	return string(p.From) + "/" + string(p.To)
}

// Inverse returns (to, from).
func (p CurrencyPair) Inverse() CurrencyPair {
	return CurrencyPair{From: p.To, To: p.From}
}

// ExchangeRate is the number of To units bought by one From unit.
type ExchangeRate struct {
	Pair CurrencyPair    `json:"pair"`
	Rate decimal.Decimal `json:"rate"`
}
