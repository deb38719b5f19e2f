package exchange

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// FallbackRate is substituted when no rate can be obtained.
var FallbackRate = decimal.NewFromInt(1)

// WithFallback returns a RateFunc that substitutes fallback for any error
// except ErrInvalidCurrency, which is returned unchanged. Each substitution
// is logged and counted.
func WithFallback(op RateFunc, fallback decimal.Decimal, lg *zap.Logger, meter metric.Meter) (RateFunc, error) {
	fallbacks, err := meter.Int64Counter("exchange.fallbacks",
		metric.WithDescription("Number of exchange rate lookups answered with the fallback rate"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create fallbacks counter")
	}

	return func(ctx context.Context, from, to string) (decimal.Decimal, error) {
		rate, err := op(ctx, from, to)
		if err == nil {
			return rate, nil
		}
		if errors.Is(err, ErrInvalidCurrency) {
			return decimal.Decimal{}, err
		}

		lg.Error("Exchange rate lookup failed, using fallback rate",
			zap.String("from", from),
			zap.String("to", to),
			zap.String("fallback", fallback.String()),
			zap.Error(err),
		)
		fallbacks.Add(ctx, 1, metric.WithAttributes(
			attribute.String("from", from),
			attribute.String("to", to),
		))
		return fallback, nil
	}, nil
}
