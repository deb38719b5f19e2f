// Package exchange resolves currency conversion rates from an external
// provider and wraps the lookup with retry, caching and a fallback rate.
package exchange

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// DefaultBaseURL is the public Frankfurter endpoint.
const DefaultBaseURL = "https://api.frankfurter.app/latest"

var (
	// ErrInvalidCurrency is returned for codes that are not three ASCII letters.
	ErrInvalidCurrency = errors.New("invalid currency code")
	// ErrUpstream is returned when the provider cannot be reached or answers
	// with something other than a usable rate.
	ErrUpstream = errors.New("exchange rate provider failure")
)

// InvalidCurrencyError identifies the rejected currency code.
type InvalidCurrencyError struct {
	Code string
}

func (e *InvalidCurrencyError) Error() string {
	return "invalid currency code '" + e.Code + "'"
}

// Is reports ErrInvalidCurrency so callers may match either form.
func (e *InvalidCurrencyError) Is(target error) bool {
	return target == ErrInvalidCurrency
}

// RateFunc returns the multiplier converting one unit of from into to.
type RateFunc func(ctx context.Context, from, to string) (decimal.Decimal, error)

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

// NormalizeCode upper-cases code and checks it is a three-letter ISO 4217
// style code.
func NormalizeCode(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if !currencyCode.MatchString(c) {
		return "", &InvalidCurrencyError{Code: code}
	}
	return c, nil
}

// ClientConfig configures the Frankfurter client.
type ClientConfig struct {
	BaseURL        string
	Timeout        time.Duration
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

// Client fetches rates from a Frankfurter compatible API.
type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient creates a Client. Empty BaseURL and zero Timeout fall back to
// DefaultBaseURL and 5 seconds.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}

	var opts []otelhttp.Option
	if cfg.MeterProvider != nil {
		opts = append(opts, otelhttp.WithMeterProvider(cfg.MeterProvider))
	}
	if cfg.TracerProvider != nil {
		opts = append(opts, otelhttp.WithTracerProvider(cfg.TracerProvider))
	}

	return &Client{
		base: base,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport, opts...),
		},
	}, nil
}

// Rate performs a single lookup. Invalid codes are rejected before any
// request is made.
func (c *Client) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	from, err := NormalizeCode(from)
	if err != nil {
		return decimal.Decimal{}, err
	}
	to, err = NormalizeCode(to)
	if err != nil {
		return decimal.Decimal{}, err
	}

	u := *c.base
	q := u.Query()
	q.Set("from", from)
	q.Set("to", to)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(ErrUpstream, "request %s->%s: %v", from, to, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		return decimal.Decimal{}, errors.Wrapf(ErrUpstream, "unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(ErrUpstream, "read body: %v", err)
	}

	rate, err := decodeRate(body, to)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(ErrUpstream, "decode %s->%s: %v", from, to, err)
	}
	return rate, nil
}

// decodeRate extracts rates[to] from a payload shaped like
// {"amount":1.0,"base":"USD","date":"2024-01-02","rates":{"EUR":0.91}}.
func decodeRate(body []byte, to string) (decimal.Decimal, error) {
	var (
		rate     decimal.Decimal
		found    bool
		hasRates bool
	)
	d := jx.DecodeBytes(body)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "rates" {
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		hasRates = true
		return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			if string(key) != to {
				return d.Skip()
			}
			n, err := d.Num()
			if err != nil {
				return errors.Wrapf(err, "rate %s", to)
			}
			v, err := decimal.NewFromString(n.String())
			if err != nil {
				return errors.Wrapf(err, "parse rate %q", n.String())
			}
			rate, found = v, true
			return nil
		})
	})
	switch {
	case err != nil:
		return decimal.Decimal{}, err
	case !hasRates:
		return decimal.Decimal{}, errors.New("missing rates")
	case !found:
		return decimal.Decimal{}, errors.Errorf("missing rate for %s", to)
	}
	return rate, nil
}
