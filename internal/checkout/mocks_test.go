package checkout

import (
	"context"
	"sync"

	"github.com/fjod/restaurant-ordering/internal/domain"
	"github.com/fjod/restaurant-ordering/internal/payment"
	"github.com/shopspring/decimal"
)

// MockCart implements CartSource for testing
type MockCart struct {
	mu      sync.Mutex
	cart    domain.Cart
	cleared int
}

func (m *MockCart) Snapshot() domain.Cart {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cart.Clone()
}

func (m *MockCart) Clear(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cart = domain.Cart{}
	m.cleared++
}

func (m *MockCart) Cleared() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cleared
}

// MockGateway implements payment.Gateway for testing
type MockGateway struct {
	mu           sync.Mutex
	intent       *payment.Intent
	intentErr    error
	confirmation *payment.Confirmation
	confirmErr   error
	// block, when set, holds ConfirmPayment until it is closed or ctx ends
	block     chan struct{}
	entered   chan struct{}
	amounts   []decimal.Decimal
	confirmed int
}

func (m *MockGateway) CreatePaymentIntent(_ context.Context, amount decimal.Decimal, _ domain.OrderDraft) (*payment.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.amounts = append(m.amounts, amount)
	if m.intentErr != nil {
		return nil, m.intentErr
	}
	if m.intent != nil {
		return m.intent, nil
	}
	return &payment.Intent{ID: "pi_1", ClientSecret: "pi_1_secret_x", Amount: amount}, nil
}

func (m *MockGateway) ConfirmPayment(ctx context.Context, _ string, _ domain.PaymentInfo) (*payment.Confirmation, error) {
	m.mu.Lock()
	m.confirmed++
	block, entered := m.block, m.entered
	m.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.confirmErr != nil {
		return nil, m.confirmErr
	}
	if m.confirmation != nil {
		return m.confirmation, nil
	}
	return &payment.Confirmation{Succeeded: true, OrderID: "X", PaymentRef: "pi_1"}, nil
}

func (m *MockGateway) Confirmed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.confirmed
}

// MockOrders implements OrderSubmitter for testing
type MockOrders struct {
	orderID string
	err     error
	drafts  []domain.OrderDraft
}

func (m *MockOrders) PlaceOrder(_ context.Context, draft domain.OrderDraft) (string, error) {
	m.drafts = append(m.drafts, draft)
	if m.err != nil {
		return "", m.err
	}
	return m.orderID, nil
}
