package exchange

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

// Config tunes the lookup pipeline.
type Config struct {
	MaxAttempts uint
	RetryDelay  time.Duration
	CacheTTL    time.Duration
}

// Converter resolves rates through fallback, cache and retry layers, in
// that order from the outside in. Failed lookups are never cached.
type Converter struct {
	cache *Cache
	rate  RateFunc
}

// NewConverter builds the pipeline around source, usually Client.Rate.
func NewConverter(source RateFunc, cfg Config, lg *zap.Logger, mp metric.MeterProvider) (*Converter, error) {
	if lg == nil {
		lg = zap.NewNop()
	}
	if mp == nil {
		mp = metricnoop.NewMeterProvider()
	}

	retried := Retry(source, cfg.MaxAttempts, Retryable, ConstantDelay(cfg.RetryDelay))
	cache := NewCache(retried, PairKey, cfg.CacheTTL)

	rate, err := WithFallback(cache.Rate, FallbackRate, lg.Named("exchange"), mp.Meter("catalog/exchange"))
	if err != nil {
		return nil, err
	}
	return &Converter{cache: cache, rate: rate}, nil
}

// Rate returns the multiplier converting from into to. Codes are
// normalized to upper case first so "usd" and "USD" share a cache entry.
func (c *Converter) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	from, err := NormalizeCode(from)
	if err != nil {
		return decimal.Decimal{}, err
	}
	to, err = NormalizeCode(to)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return c.rate(ctx, from, to)
}

// ConvertUSDToEUR converts amount using the USD->EUR rate, rounding to
// cents.
func (c *Converter) ConvertUSDToEUR(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	rate, err := c.Rate(ctx, "USD", "EUR")
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "usd to eur rate")
	}
	if !rate.IsPositive() {
		rate = FallbackRate
	}
	return amount.DivRound(rate, 2), nil
}

// Cache exposes the underlying rate cache for invalidation.
func (c *Converter) Cache() *Cache {
	return c.cache
}
