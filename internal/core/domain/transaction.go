package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is an append-only record of one settled transfer.
//
// Amount is debited from the source in SourceCurrency; ConvertedAmount is
// credited to the destination in DestCurrency and equals Amount x Rate rounded
// half-up to the destination's minor units.
type Transaction struct {
	ID              uuid.UUID       `json:"id"`
	SourceAccountID uuid.UUID       `json:"source_account_id"`
	DestAccountID   uuid.UUID       `json:"dest_account_id"`
	SourceCurrency  Currency        `json:"source_currency"`
	DestCurrency    Currency        `json:"dest_currency"`
	Amount          decimal.Decimal `json:"amount"`
	ConvertedAmount decimal.Decimal `json:"converted_amount"`
	Rate            decimal.Decimal `json:"rate"`
	CreatedAt       time.Time       `json:"created_at"`
}

// IsCrossCurrency reports whether the transfer went through the rate table.
func (t *Transaction) IsCrossCurrency() bool {
	return t.SourceCurrency != t.DestCurrency
}

// Touches reports whether the account took part in the transfer.
func (t *Transaction) Touches(accountID uuid.UUID) bool {
	return t.SourceAccountID == accountID || t.DestAccountID == accountID
}
