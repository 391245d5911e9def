// Package orders persists placed orders in PostgreSQL and publishes them to Kafka through
// a transactional outbox.
package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/restaurant-ordering/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order, event []byte) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetOrderByPaymentRef(ctx context.Context, paymentRef string) (*domain.Order, error)
}

// OrderPlacedEvent is the message published for every stored order.
type OrderPlacedEvent struct {
	OrderID       string               `json:"order_id"`
	SessionID     string               `json:"session_id"`
	Status        domain.OrderStatus   `json:"status"`
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	DeliveryType  domain.DeliveryType  `json:"delivery_type"`
	Items         []domain.OrderItem   `json:"items"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
	PlacedAt      time.Time            `json:"placed_at"`
}

type Service struct {
	repo OrderRepository
	log  *slog.Logger
	now  func() time.Time
}

func NewService(repo OrderRepository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

// PlaceOrder stores an order that will be paid on delivery or pickup.
func (s *Service) PlaceOrder(ctx context.Context, draft domain.OrderDraft) (string, error) {
	order := s.newOrder(draft, domain.OrderStatusPending, domain.PaymentStatusPending, "")
	if err := s.store(ctx, order); err != nil {
		return "", err
	}
	return order.ID.String(), nil
}

// RecordPaidOrder stores an order whose payment has already been captured.
func (s *Service) RecordPaidOrder(ctx context.Context, draft domain.OrderDraft, paymentRef string) (string, error) {
	order := s.newOrder(draft, domain.OrderStatusConfirmed, domain.PaymentStatusPaid, paymentRef)
	if err := s.store(ctx, order); err != nil {
		return "", err
	}
	return order.ID.String(), nil
}

// GetOrder accepts an order id or, for card payments, the payment reference the
// gateway reports when the paid order could not be recorded at capture time.
func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	if orderID, err := uuid.Parse(id); err == nil {
		return s.repo.GetOrderByID(ctx, orderID)
	}
	if id == "" {
		return nil, ErrOrderNotFound
	}
	return s.repo.GetOrderByPaymentRef(ctx, id)
}

func (s *Service) newOrder(draft domain.OrderDraft, status domain.OrderStatus, paymentStatus domain.PaymentStatus, paymentRef string) *domain.Order {
	now := s.now().UTC()
	return &domain.Order{
		ID:            uuid.New(),
		SessionID:     draft.SessionID,
		Status:        status,
		PaymentStatus: paymentStatus,
		PaymentMethod: draft.PaymentMethod,
		PaymentRef:    paymentRef,
		DeliveryType:  draft.DeliveryType,
		Delivery:      draft.Delivery,
		Items:         domain.OrderItemsFromLines(draft.Items),
		Subtotal:      draft.Totals.Subtotal,
		DeliveryFee:   draft.Totals.DeliveryFee,
		Tax:           draft.Totals.Tax,
		ServiceTip:    draft.Totals.ServiceTip,
		TotalAmount:   draft.Totals.GrandTotal,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (s *Service) store(ctx context.Context, order *domain.Order) error {
	event, err := json.Marshal(OrderPlacedEvent{
		OrderID:       order.ID.String(),
		SessionID:     order.SessionID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		PaymentMethod: order.PaymentMethod,
		DeliveryType:  order.DeliveryType,
		Items:         order.Items,
		TotalAmount:   order.TotalAmount,
		PlacedAt:      order.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	if err := s.repo.CreateOrder(ctx, order, event); err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	s.log.InfoContext(ctx, "order stored",
		slog.String("order_id", order.ID.String()),
		slog.String("status", string(order.Status)),
		slog.String("payment_status", string(order.PaymentStatus)),
	)
	return nil
}
