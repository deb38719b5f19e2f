package exchange

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultMaxAttempts is the number of lookups made before giving up.
const DefaultMaxAttempts = 3

// Retryable reports whether a failed lookup is worth repeating. Invalid
// currency codes and caller cancellation are not.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidCurrency),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	default:
		return true
	}
}

// ConstantDelay returns a backoff waiting d between attempts. A zero d
// retries immediately.
func ConstantDelay(d time.Duration) backoff.BackOff {
	if d <= 0 {
		return &backoff.ZeroBackOff{}
	}
	return backoff.NewConstantBackOff(d)
}

// Retry calls op up to maxAttempts times while retryable reports the error
// as transient. The last error is returned when attempts are exhausted.
// b is shared between concurrent calls and must not keep per-call state.
func Retry(op RateFunc, maxAttempts uint, retryable func(error) bool, b backoff.BackOff) RateFunc {
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if retryable == nil {
		retryable = Retryable
	}
	if b == nil {
		b = ConstantDelay(0)
	}
	return func(ctx context.Context, from, to string) (decimal.Decimal, error) {
		attempt := 0
		return backoff.Retry(ctx, func() (decimal.Decimal, error) {
			attempt++
			rate, err := op(ctx, from, to)
			if err != nil && !retryable(err) {
				return rate, backoff.Permanent(err)
			}
			return rate, err
		},
			backoff.WithBackOff(b),
			backoff.WithMaxTries(maxAttempts),
			backoff.WithMaxElapsedTime(0),
			backoff.WithNotify(func(err error, next time.Duration) {
				zctx.From(ctx).Debug("Retrying exchange rate lookup",
					zap.String("from", from),
					zap.String("to", to),
					zap.Int("attempt", attempt),
					zap.Duration("next", next),
					zap.Error(err),
				)
			}),
		)
	}
}
