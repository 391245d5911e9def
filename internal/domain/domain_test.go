package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to CheckoutStep
		want     bool
	}{
		{CheckoutStepDelivery, CheckoutStepPayment, true},
		{CheckoutStepDelivery, CheckoutStepReview, false},
		{CheckoutStepPayment, CheckoutStepDelivery, true},
		{CheckoutStepPayment, CheckoutStepReview, true},
		{CheckoutStepReview, CheckoutStepPayment, true},
		{CheckoutStepReview, CheckoutStepSubmitting, true},
		{CheckoutStepPayment, CheckoutStepSubmitting, false},
		{CheckoutStepSubmitting, CheckoutStepSucceeded, true},
		{CheckoutStepSubmitting, CheckoutStepFailed, true},
		{CheckoutStepFailed, CheckoutStepReview, true},
		{CheckoutStepSucceeded, CheckoutStepReview, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransitionTo(tt.from, tt.to))
		})
	}
}

func TestCartTotals(t *testing.T) {
	cart := Cart{Items: []CartLineItem{
		{DishID: 1, UnitPrice: decimal.RequireFromString("10.50"), Quantity: 2},
		{DishID: 2, UnitPrice: decimal.RequireFromString("3.25"), Quantity: 1},
	}}

	assert.Equal(t, 3, cart.TotalItemCount())
	assert.True(t, decimal.RequireFromString("24.25").Equal(cart.TotalPrice()))
}

func TestNewCartSnapshot_IsDecoupled(t *testing.T) {
	cart := Cart{Items: []CartLineItem{{DishID: 1, UnitPrice: decimal.NewFromInt(4), Quantity: 1}}}
	snap := NewCartSnapshot(cart, time.Now())

	cart.Items[0].Quantity = 9

	assert.Equal(t, 1, snap.Items[0].Quantity)
	assert.True(t, decimal.NewFromInt(4).Equal(snap.Subtotal))
}

func TestPaymentInfo_Redacted(t *testing.T) {
	p := PaymentInfo{Method: PaymentMethodCard, CardNumber: "4242424242424242", CVV: "123", Expiry: "12/30", CardholderName: "Ann"}
	r := p.Redacted()

	assert.Equal(t, "**** 4242", r.CardNumber)
	assert.Empty(t, r.CVV)
	assert.Empty(t, r.Expiry)
	assert.Equal(t, "Ann", r.CardholderName)
}
