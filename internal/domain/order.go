package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// OrderDraft is what checkout hands to the order and payment collaborators.
type OrderDraft struct {
	SessionID     string         `json:"session_id"`
	Items         []CartLineItem `json:"items"`
	DeliveryType  DeliveryType   `json:"delivery_type"`
	Delivery      DeliveryInfo   `json:"delivery"`
	PaymentMethod PaymentMethod  `json:"payment_method"`
	Totals        Totals         `json:"totals"`
}

type OrderItem struct {
	DishID              int64           `json:"dish_id"`
	Name                string          `json:"name"`
	Quantity            int             `json:"quantity"`
	Price               decimal.Decimal `json:"price"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
}

type Order struct {
	ID            uuid.UUID
	SessionID     string
	Status        OrderStatus
	PaymentStatus PaymentStatus
	PaymentMethod PaymentMethod
	PaymentRef    string
	DeliveryType  DeliveryType
	Delivery      DeliveryInfo
	Items         []OrderItem
	Subtotal      decimal.Decimal
	DeliveryFee   decimal.Decimal
	Tax           decimal.Decimal
	ServiceTip    decimal.Decimal
	TotalAmount   decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func OrderItemsFromLines(lines []CartLineItem) []OrderItem {
	items := make([]OrderItem, len(lines))
	for i, line := range lines {
		items[i] = OrderItem{
			DishID:              line.DishID,
			Name:                line.Name,
			Quantity:            line.Quantity,
			Price:               line.UnitPrice,
			SpecialInstructions: line.SpecialInstructions,
		}
	}
	return items
}
