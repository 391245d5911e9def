package checkout

import (
	"github.com/fjod/restaurant-ordering/internal/domain"
	"github.com/shopspring/decimal"
)

// Pricing holds the storefront's fee and surcharge rules.
type Pricing struct {
	DeliveryFee           decimal.Decimal
	FreeDeliveryThreshold decimal.Decimal
	TaxRate               decimal.Decimal
	TipRate               decimal.Decimal
}

func DefaultPricing() Pricing {
	return Pricing{
		DeliveryFee:           decimal.NewFromInt(5),
		FreeDeliveryThreshold: decimal.NewFromInt(50),
		TaxRate:               decimal.RequireFromString("0.08"),
		TipRate:               decimal.RequireFromString("0.15"),
	}
}

// Compute derives the order totals. Every component is rounded to cents before summing.
func (p Pricing) Compute(subtotal decimal.Decimal, deliveryType domain.DeliveryType) domain.Totals {
	subtotal = subtotal.Round(2)

	fee := decimal.Zero
	if deliveryType != domain.DeliveryTypePickup && !subtotal.GreaterThan(p.FreeDeliveryThreshold) {
		fee = p.DeliveryFee.Round(2)
	}
	tax := subtotal.Mul(p.TaxRate).Round(2)
	tip := subtotal.Mul(p.TipRate).Round(2)

	return domain.Totals{
		Subtotal:    subtotal,
		DeliveryFee: fee,
		Tax:         tax,
		ServiceTip:  tip,
		GrandTotal:  subtotal.Add(fee).Add(tax).Add(tip),
	}
}
