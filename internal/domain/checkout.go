package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DeliveryType string

const (
	DeliveryTypeDelivery DeliveryType = "delivery"
	DeliveryTypePickup   DeliveryType = "pickup"
)

func (t DeliveryType) Valid() bool {
	return t == DeliveryTypeDelivery || t == DeliveryTypePickup
}

type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodWallet PaymentMethod = "wallet"
	PaymentMethodCash   PaymentMethod = "cash"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCard || m == PaymentMethodWallet || m == PaymentMethodCash
}

// UsesGateway reports whether the method goes through the payment gateway.
func (m PaymentMethod) UsesGateway() bool {
	return m == PaymentMethodCard || m == PaymentMethodWallet
}

type DeliveryInfo struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone"`
	Notes      string `json:"notes,omitempty"`
}

type PaymentInfo struct {
	Method         PaymentMethod `json:"method"`
	CardNumber     string        `json:"card_number,omitempty"`
	Expiry         string        `json:"expiry,omitempty"`
	CVV            string        `json:"cvv,omitempty"`
	CardholderName string        `json:"cardholder_name,omitempty"`
	// PaymentMethodToken is the gateway-side token produced by client tokenization.
	PaymentMethodToken string `json:"payment_method_token,omitempty"`
}

// Redacted drops card data so the value can be logged or echoed back.
func (p PaymentInfo) Redacted() PaymentInfo {
	out := PaymentInfo{Method: p.Method, CardholderName: p.CardholderName}
	if n := len(p.CardNumber); n >= 4 {
		out.CardNumber = "**** " + p.CardNumber[n-4:]
	}
	return out
}

// CartSnapshot represents the cart state at checkout time
type CartSnapshot struct {
	Items      []CartLineItem  `json:"items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	CapturedAt time.Time       `json:"captured_at"`
}

func NewCartSnapshot(cart Cart, now time.Time) CartSnapshot {
	c := cart.Clone()
	return CartSnapshot{
		Items:      c.Items,
		Subtotal:   c.TotalPrice(),
		CapturedAt: now,
	}
}

type CheckoutSession struct {
	Snapshot     CartSnapshot `json:"snapshot"`
	DeliveryType DeliveryType `json:"delivery_type"`
	Delivery     DeliveryInfo `json:"delivery"`
	Payment      PaymentInfo  `json:"payment"`
	CurrentStep  CheckoutStep `json:"current_step"`
}

type Totals struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Tax         decimal.Decimal `json:"tax"`
	ServiceTip  decimal.Decimal `json:"service_tip"`
	GrandTotal  decimal.Decimal `json:"grand_total"`
}
