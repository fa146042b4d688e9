package postgres

import (
	"context"
	"fmt"

	"agile-bank/internal/core/domain"
)

// RateRepo implements ports.RateRepository over the exchange_rates table.
type RateRepo struct {
	pool Pool
}

// NewRateRepo creates a new RateRepo.
func NewRateRepo(pool Pool) *RateRepo {
	return &RateRepo{pool: pool}
}

// LoadAll reads the whole rate table, ordered by pair.
func (r *RateRepo) LoadAll(ctx context.Context) ([]domain.ExchangeRate, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT from_currency, to_currency, rate FROM exchange_rates ORDER BY from_currency, to_currency`)
	if err != nil {
		return nil, fmt.Errorf("load exchange rates: %w", err)
	}
	defer rows.Close()

	var rates []domain.ExchangeRate
	for rows.Next() {
		var er domain.ExchangeRate
		if err := rows.Scan(&er.Pair.From, &er.Pair.To, &er.Rate); err != nil {
			return nil, fmt.Errorf("scan exchange rate row: %w", err)
		}
		rates = append(rates, er)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchange rate rows: %w", err)
	}
	return rates, nil
}
