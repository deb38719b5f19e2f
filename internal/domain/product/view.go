package product

import (
	"context"

	"github.com/shopspring/decimal"
)

// Currencies used for price enrichment.
const (
	BaseCurrency    = "USD"
	DisplayCurrency = "EUR"
)

// RateSource provides the conversion rate from one currency to another.
type RateSource interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// View is a product enriched with its price in the display currency.
type View struct {
	Product
	PriceUSD decimal.Decimal
	PriceEUR decimal.Decimal
}

// NewView builds the enriched view of p using the USD->EUR rate.
func NewView(p Product, rate decimal.Decimal) View {
	return View{
		Product:  p,
		PriceUSD: p.Price,
		PriceEUR: ConvertPrice(p.Price, rate),
	}
}

// ConvertPrice divides a USD price by rate, rounding half-up to cents.
// A non-positive rate is treated as 1.
func ConvertPrice(price, rate decimal.Decimal) decimal.Decimal {
	if !rate.IsPositive() {
		rate = decimal.NewFromInt(1)
	}
	return price.DivRound(rate, 2)
}
