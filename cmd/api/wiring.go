package main

import (
	"context"
	"fmt"
	"time"

	"agile-bank/config"
	"agile-bank/internal/adapter/storage/memory"
	pgStorage "agile-bank/internal/adapter/storage/postgres"
	redisStorage "agile-bank/internal/adapter/storage/redis"
	"agile-bank/internal/core/domain"
	"agile-bank/internal/core/ledger"
	"agile-bank/internal/core/ports"

	"github.com/rs/zerolog"
)

const readHeaderTimeout = 10 * time.Second

// storage bundles the repositories of the configured backend.
type storage struct {
	accounts     ports.AccountRepository
	transactions ports.TransactionRepository
	idempotency  ports.IdempotencyRepository
	users        ports.UserRepository
	audit        ports.AuditRepository
	transactor   ports.DBTransactor
	rates        ports.RateRepository // nil unless backed by PostgreSQL
	health       []ports.HealthChecker
	close        func()
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		store := memory.NewStore()
		log.Warn().Msg("Using in-memory storage, balances are lost on restart")
		return &storage{
			accounts:     memory.NewAccountRepo(store),
			transactions: memory.NewTransactionRepo(store),
			idempotency:  memory.NewIdempotencyRepo(store),
			users:        memory.NewUserRepo(store),
			audit:        memory.NewAuditRepo(store),
			transactor:   store,
			close:        func() {},
		}, nil

	case config.StorageDriverPostgres:
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		return &storage{
			accounts:     pgStorage.NewAccountRepo(pool),
			transactions: pgStorage.NewTransactionRepo(pool),
			idempotency:  pgStorage.NewIdempotencyRepo(pool),
			users:        pgStorage.NewUserRepo(pool),
			audit:        pgStorage.NewAuditRepo(pool),
			transactor:   pgStorage.NewTransactor(pool),
			rates:        pgStorage.NewRateRepo(pool),
			health:       []ports.HealthChecker{pgStorage.NewHealthCheck(pool)},
			close:        pool.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// cache holds the Redis-backed collaborators. Fields stay nil interfaces when
// Redis is disabled so the services fall back to their database-only paths.
type cache struct {
	idempotency ports.IdempotencyCache
	rateLimit   ports.RateLimitStore
	health      []ports.HealthChecker
	close       func()
}

func openCache(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*cache, error) {
	if !cfg.Redis.Enabled {
		log.Info().Msg("Redis disabled, rate limiting and idempotency cache are off")
		return &cache{close: func() {}}, nil
	}

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return nil, err
	}

	return &cache{
		idempotency: redisStorage.NewIdempotencyCache(rdb, log),
		rateLimit:   redisStorage.NewRateLimitStore(rdb),
		health:      []ports.HealthChecker{redisStorage.NewHealthCheck(rdb)},
		close:       func() { _ = rdb.Close() },
	}, nil
}

// buildLedger assembles the currency set and rate table from the configured
// source. The result is read-only for the life of the process.
func buildLedger(ctx context.Context, cfg config.LedgerConfig, repo ports.RateRepository, log zerolog.Logger) (*ledger.Ledger, error) {
	set := make(domain.CurrencySet, len(cfg.Currencies))
	for _, c := range cfg.Currencies {
		set[domain.ParseCurrency(c.Code)] = c.MinorUnits
	}

	var (
		rates []domain.ExchangeRate
		err   error
	)
	switch {
	case cfg.RateSource == config.RateSourceDatabase:
		if repo == nil {
			return nil, fmt.Errorf("rate source %q needs a database", cfg.RateSource)
		}
		rates, err = repo.LoadAll(ctx)
	case cfg.GenerateRates:
		rates = ledger.GenerateRates(set, cfg.Seed)
	default:
		specs := make([]ledger.RateSpec, 0, len(cfg.Rates))
		for _, r := range cfg.Rates {
			specs = append(specs, ledger.RateSpec{From: r.From, To: r.To, Rate: r.Rate})
		}
		rates, err = ledger.ParseRates(specs)
	}
	if err != nil {
		return nil, fmt.Errorf("load rates: %w", err)
	}

	var opts []ledger.Option
	if cfg.RequireComplete {
		opts = append(opts, ledger.RequireComplete())
	}
	l, err := ledger.New(set, rates, opts...)
	if err != nil {
		return nil, err
	}

	evt := log.Info().
		Int("currencies", len(set)).
		Int("rates", len(rates)).
		Str("source", cfg.RateSource)
	if missing := l.MissingPairs(); len(missing) > 0 {
		evt = evt.Int("missing_pairs", len(missing))
	}
	evt.Msg("Currency ledger loaded")

	return l, nil
}
