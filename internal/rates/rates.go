// Package rates resolves exchange rates and normalizes amounts into a
// tenant's base currency.
//
// Resolution order for a pair: identity, in-process LRU, Redis, the
// backing store's direct quote, the reciprocal of the inverse quote,
// and finally 1.0. The last step keeps ingestion working when a feed
// is missing a pair, at the cost of a wrong conversion, so it is
// always logged.
package rates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"kosh/internal/cache"
	"kosh/internal/core"
)

// Source yields the stored quote for a pair on or before a date.
// *storage.Repository satisfies it.
type Source interface {
	GetRate(ctx context.Context, base, target, asOf string) (core.ExchangeRate, error)
}

const dateFormat = "2006-01-02"

type Normalizer struct {
	source Source
	local  *cache.LRUCache[decimal.Decimal]
	redis  *redis.Client
	ttl    time.Duration
}

// NewNormalizer builds a rate resolver. rdb may be nil to run without
// the shared Redis layer.
func NewNormalizer(source Source, local *cache.LRUCache[decimal.Decimal], rdb *redis.Client, ttl time.Duration) *Normalizer {
	return &Normalizer{source: source, local: local, redis: rdb, ttl: ttl}
}

// Rate resolves the conversion factor from one currency into another
// as of the given date.
func (n *Normalizer) Rate(ctx context.Context, from, to string, asOf time.Time) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	key := rateKey(from, to, asOf)
	if rate, ok := n.local.Get(key); ok {
		return rate, nil
	}
	if rate, ok := n.redisGet(ctx, key); ok {
		n.local.Set(key, rate)
		return rate, nil
	}

	rate, fromStore, err := n.resolve(ctx, from, to, asOf)
	if err != nil {
		return decimal.Decimal{}, err
	}

	// The 1.0 fallback is never cached; a rate ingested later takes
	// effect on the next lookup instead of hiding behind the TTL.
	if fromStore {
		n.local.Set(key, rate)
		n.redisSet(ctx, key, rate)
	}
	return rate, nil
}

// Normalize converts amount from its currency into base, returning the
// converted amount rounded to cents and the rate used.
func (n *Normalizer) Normalize(ctx context.Context, amount decimal.Decimal, from, base string, asOf time.Time) (decimal.Decimal, decimal.Decimal, error) {
	rate, err := n.Rate(ctx, from, base, asOf)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}
	return core.RoundCents(amount.Mul(rate)), rate, nil
}

// resolve looks up the pair in the backing store. The second return
// reports whether a stored quote backed the rate; the fallback returns
// false.
func (n *Normalizer) resolve(ctx context.Context, from, to string, asOf time.Time) (decimal.Decimal, bool, error) {
	day := asOf.UTC().Format(dateFormat)

	direct, err := n.source.GetRate(ctx, from, to, day)
	if err == nil {
		return direct.Rate, true, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return decimal.Decimal{}, false, fmt.Errorf("lookup rate %s/%s: %w", from, to, err)
	}

	inverse, err := n.source.GetRate(ctx, to, from, day)
	if err == nil {
		if inverse.Rate.IsZero() {
			return decimal.Decimal{}, false, fmt.Errorf("inverse rate %s/%s is zero", to, from)
		}
		return decimal.NewFromInt(1).DivRound(inverse.Rate, 8), true, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return decimal.Decimal{}, false, fmt.Errorf("lookup inverse rate %s/%s: %w", to, from, err)
	}

	slog.WarnContext(ctx, "No exchange rate found, assuming 1.0",
		"from", from,
		"to", to,
		"as_of", day)
	return decimal.NewFromInt(1), false, nil
}

func (n *Normalizer) redisGet(ctx context.Context, key string) (decimal.Decimal, bool) {
	if n.redis == nil {
		return decimal.Decimal{}, false
	}
	s, err := n.redis.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.WarnContext(ctx, "Redis rate lookup failed", "key", key, "error", err)
		}
		return decimal.Decimal{}, false
	}
	rate, err := decimal.NewFromString(s)
	if err != nil {
		slog.WarnContext(ctx, "Discarding malformed cached rate", "key", key, "value", s)
		return decimal.Decimal{}, false
	}
	return rate, true
}

func (n *Normalizer) redisSet(ctx context.Context, key string, rate decimal.Decimal) {
	if n.redis == nil {
		return
	}
	if err := n.redis.Set(ctx, key, rate.String(), n.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "Redis rate store failed", "key", key, "error", err)
	}
}

func rateKey(from, to string, asOf time.Time) string {
	return fmt.Sprintf("rate:%s:%s:%s", from, to, asOf.UTC().Format(dateFormat))
}
