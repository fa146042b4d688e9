package handler

import (
	"time"

	"agile-bank/internal/adapter/http/dto"
	"agile-bank/internal/core/domain"
	"agile-bank/internal/core/ports"
	"agile-bank/pkg/apperror"
	"agile-bank/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// pathID parses the :id route parameter.
func pathID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperror.Validation("id must be a UUID")
	}
	return id, nil
}

func optionalID(raw string) *uuid.UUID {
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

// parseAmount parses a validated decimal string; empty means zero.
func parseAmount(raw, field string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, apperror.Validation(field + " must be a decimal number")
	}
	return d, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// CurrencyPrecision resolves how many fractional digits a currency is shown
// with. *ledger.Ledger and domain.CurrencySet satisfy it.
type CurrencyPrecision interface {
	MinorUnits(c domain.Currency) (int32, bool)
}

// formatAmount renders amount at the currency's minor units, so 36 EUR reads
// "36.00". Unknown currencies fall back to the shortest form.
func formatAmount(amount decimal.Decimal, c domain.Currency, prec CurrencyPrecision) string {
	if prec == nil {
		return amount.String()
	}
	units, ok := prec.MinorUnits(c)
	if !ok {
		return amount.String()
	}
	return amount.StringFixed(units)
}

func toAccountResponse(a *domain.Account, prec CurrencyPrecision) dto.AccountResponse {
	return dto.AccountResponse{
		ID:        a.ID.String(),
		Currency:  a.Currency.String(),
		Balance:   formatAmount(a.Balance, a.Currency, prec),
		CreatedAt: formatTime(a.CreatedAt),
		UpdatedAt: formatTime(a.UpdatedAt),
	}
}

func toTransactionResponse(t *domain.Transaction, prec CurrencyPrecision) dto.TransactionResponse {
	return dto.TransactionResponse{
		ID:              t.ID.String(),
		SourceAccountID: t.SourceAccountID.String(),
		DestAccountID:   t.DestAccountID.String(),
		SourceCurrency:  t.SourceCurrency.String(),
		DestCurrency:    t.DestCurrency.String(),
		Amount:          formatAmount(t.Amount, t.SourceCurrency, prec),
		ConvertedAmount: formatAmount(t.ConvertedAmount, t.DestCurrency, prec),
		Rate:            t.Rate.String(),
		CreatedAt:       formatTime(t.CreatedAt),
	}
}

func toRateResponse(r domain.ExchangeRate) dto.RateResponse {
	return dto.RateResponse{
		From: r.Pair.From.String(),
		To:   r.Pair.To.String(),
		Rate: r.Rate.String(),
	}
}

// listParams maps the shared query fields. Page 0 and page size 0 let the
// service pick its defaults.
func listParams(q dto.ListQuery) (string, ports.SortOrder, int, int) {
	return q.SortBy, ports.SortOrder(q.Order), q.Page, q.PageSize
}

func pageMeta(q dto.ListQuery, total int64) response.PageMeta {
	meta := response.PageMeta{Page: q.Page, PageSize: q.PageSize, Total: total}
	if meta.Page == 0 {
		meta.Page = 1
	}
	if meta.PageSize == 0 {
		meta.PageSize = ports.DefaultPageSize
	}
	return meta
}
