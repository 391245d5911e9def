package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/fjod/restaurant-ordering/internal/domain"
	"github.com/fjod/restaurant-ordering/internal/payment"
)

type OrderReader interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
}

type OrdersHandler struct {
	orders  OrderReader
	log     *slog.Logger
	timeout time.Duration
}

// NewOrdersHandler accepts a nil reader when order persistence is disabled.
func NewOrdersHandler(orders OrderReader, log *slog.Logger, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{orders: orders, log: log, timeout: timeout}
}

type OrderResponseDTO struct {
	ID            string               `json:"id"`
	Status        domain.OrderStatus   `json:"status,omitempty"`
	PaymentStatus domain.PaymentStatus `json:"payment_status,omitempty"`
	PaymentMethod domain.PaymentMethod `json:"payment_method,omitempty"`
	DeliveryType  domain.DeliveryType  `json:"delivery_type,omitempty"`
	Delivery      *domain.DeliveryInfo `json:"delivery,omitempty"`
	Items         []domain.OrderItem   `json:"items,omitempty"`
	Subtotal      decimal.Decimal      `json:"subtotal"`
	DeliveryFee   decimal.Decimal      `json:"delivery_fee"`
	Tax           decimal.Decimal      `json:"tax"`
	ServiceTip    decimal.Decimal      `json:"service_tip"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
	TestMode      bool                 `json:"test_mode"`
	CreatedAt     *time.Time           `json:"created_at,omitempty"`
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id is required")
		return
	}

	// test-mode orders are never persisted
	if payment.IsPlaceholderOrderID(orderID) {
		respondJSON(w, http.StatusOK, OrderResponseDTO{ID: orderID, TestMode: true})
		return
	}

	if h.orders == nil {
		respondError(w, http.StatusNotFound, "order_not_found", "order not found")
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if order.SessionID != getSessionIDFromContext(r.Context()) {
		respondError(w, http.StatusNotFound, "order_not_found", "order not found")
		return
	}

	respondJSON(w, http.StatusOK, toOrderResponse(order))
}

func toOrderResponse(o *domain.Order) OrderResponseDTO {
	delivery := o.Delivery
	created := o.CreatedAt
	return OrderResponseDTO{
		ID:            o.ID.String(),
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		PaymentMethod: o.PaymentMethod,
		DeliveryType:  o.DeliveryType,
		Delivery:      &delivery,
		Items:         o.Items,
		Subtotal:      o.Subtotal,
		DeliveryFee:   o.DeliveryFee,
		Tax:           o.Tax,
		ServiceTip:    o.ServiceTip,
		TotalAmount:   o.TotalAmount,
		CreatedAt:     &created,
	}
}
