package service

import (
	"context"
	"io"
	"testing"

	"agile-bank/internal/core/domain"
	"agile-bank/internal/core/ledger"
	"agile-bank/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

// failingTx fails on Commit.
type failingTx struct {
	pgx.Tx
	err error
}

func (m *failingTx) Rollback(_ context.Context) error { return nil }
func (m *failingTx) Commit(_ context.Context) error   { return m.err }

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// decimalMatcher compares by value so 36 matches 36.00.
type decimalMatcher struct{ want decimal.Decimal }

func decEq(s string) gomock.Matcher { return decimalMatcher{want: dec(s)} }

func (m decimalMatcher) Matches(x any) bool {
	got, ok := x.(decimal.Decimal)
	return ok && got.Equal(m.want)
}

func (m decimalMatcher) String() string { return "is decimal " + m.want.String() }

// newTestLedger has USD, EUR, JPY fully connected and GBP with no rates.
func newTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.New(
		domain.CurrencySet{"USD": 2, "EUR": 2, "JPY": 0, "GBP": 2},
		[]domain.ExchangeRate{
			{Pair: domain.CurrencyPair{From: "USD", To: "EUR"}, Rate: dec("0.9")},
			{Pair: domain.CurrencyPair{From: "USD", To: "JPY"}, Rate: dec("150")},
			{Pair: domain.CurrencyPair{From: "EUR", To: "JPY"}, Rate: dec("160")},
		},
	)
	require.NoError(t, err)
	return l
}
