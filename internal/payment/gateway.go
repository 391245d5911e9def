// Package payment talks to the card payment processor. A gateway is used in two calls: create
// an intent for the order amount, then confirm it with the customer's payment details.
package payment

import (
	"context"
	"errors"
	"strings"

	"github.com/fjod/restaurant-ordering/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrUnknownIntent      = errors.New("unknown payment intent")
)

type Gateway interface {
	CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, draft domain.OrderDraft) (*Intent, error)
	ConfirmPayment(ctx context.Context, clientSecret string, details domain.PaymentInfo) (*Confirmation, error)
}

// Intent is a created payment intent. TestMode intents must never be confirmed against a
// real processor; the caller synthesizes the outcome instead.
type Intent struct {
	ID           string
	ClientSecret string
	Amount       decimal.Decimal
	TestMode     bool
}

// Confirmation is the processor's verdict. A declined payment is a Confirmation with
// Succeeded=false and a Reason, not an error; errors mean the verdict is unknown.
type Confirmation struct {
	Succeeded  bool
	OrderID    string
	PaymentRef string
	Reason     string
}

const placeholderPrefix = "test_order_"

// PlaceholderOrderID labels orders that were never charged.
func PlaceholderOrderID() string {
	return placeholderPrefix + uuid.NewString()
}

// IsPlaceholderOrderID reports whether id has the shape PlaceholderOrderID produces.
func IsPlaceholderOrderID(id string) bool {
	rest, ok := strings.CutPrefix(id, placeholderPrefix)
	if !ok {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}

// AmountInCents converts an order total to the processor's minor units.
func AmountInCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
