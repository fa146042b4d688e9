package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account holds a balance in exactly one currency. Balance never goes below zero
// and is only changed by a settled transfer.
type Account struct {
	ID        uuid.UUID       `json:"id"`
	Currency  Currency        `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	Version   int64           `json:"-"` // Bumped on every balance write
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CanDebit reports whether amount can be taken without going negative.
func (a *Account) CanDebit(amount decimal.Decimal) bool {
	return a.Balance.GreaterThanOrEqual(amount)
}

// Clone returns a copy safe to mutate independently.
func (a *Account) Clone() *Account {
	c := *a
	return &c
}
