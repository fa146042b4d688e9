package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

const (
	cacheOpTimeout      = 250 * time.Millisecond
	breakerOpenFor      = 30 * time.Second
	breakerTripFailures = 5
)

// ErrCacheUnavailable is returned while the circuit breaker is open. The
// transfer engine treats it like a miss and falls back to PostgreSQL.
var ErrCacheUnavailable = errors.New("idempotency cache unavailable")

// IdempotencyCache implements ports.IdempotencyCache using Redis. Calls go
// through a circuit breaker that opens after breakerTripFailures consecutive
// failures and lets a trial call through after breakerOpenFor.
type IdempotencyCache struct {
	client  goredis.Cmdable
	prefix  string
	breaker *gobreaker.CircuitBreaker
}

// NewIdempotencyCache creates a new Redis-backed idempotency cache.
func NewIdempotencyCache(client goredis.Cmdable, log zerolog.Logger) *IdempotencyCache {
	settings := gobreaker.Settings{
		Name:    "redis-idempotency",
		Timeout: breakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}

	return &IdempotencyCache{
		client:  client,
		prefix:  "idempotency:",
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Get retrieves a cached response by idempotency key.
// Returns nil, nil if the key does not exist.
func (c *IdempotencyCache) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		val, err := c.client.Get(ctx, c.prefix+key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return []byte(nil), nil
		}
		return val, err
	})
	if err != nil {
		return nil, c.wrap("get", err)
	}
	return result.([]byte), nil
}

// Set stores a response in the idempotency cache with TTL.
func (c *IdempotencyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.client.Set(ctx, c.prefix+key, value, ttl).Err()
	})
	if err != nil {
		return c.wrap("set", err)
	}
	return nil
}

// State exposes the breaker state for health reporting.
func (c *IdempotencyCache) State() string {
	return c.breaker.State().String()
}

func (c *IdempotencyCache) wrap(op string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("redis idempotency %s: %w: %w", op, ErrCacheUnavailable, err)
	}
	return fmt.Errorf("redis idempotency %s: %w", op, err)
}
