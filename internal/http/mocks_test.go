package http

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/fjod/restaurant-ordering/internal/catalog"
	"github.com/fjod/restaurant-ordering/internal/domain"
	"github.com/fjod/restaurant-ordering/internal/orders"
)

type MockMenu struct {
	dishes     []*domain.Dish
	categories []*domain.Category
	err        error
}

func (m *MockMenu) ListDishes(_ context.Context, filter catalog.DishFilter) ([]*domain.Dish, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*domain.Dish
	for _, d := range m.dishes {
		if !d.IsAvailable {
			continue
		}
		if filter.CategoryID != nil && d.CategoryID != *filter.CategoryID {
			continue
		}
		if filter.Vegetarian != nil && d.IsVegetarian != *filter.Vegetarian {
			continue
		}
		if filter.Spicy != nil && d.IsSpicy != *filter.Spicy {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *MockMenu) ListCategories(context.Context) ([]*domain.Category, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.categories, nil
}

func (m *MockMenu) GetDish(_ context.Context, id int64) (*domain.Dish, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, d := range m.dishes {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, catalog.ErrDishNotFound
}

// MockOrders stores cash orders and serves them back.
type MockOrders struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
	nextID string
	err    error
}

func (m *MockOrders) PlaceOrder(_ context.Context, draft domain.OrderDraft) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if m.orders == nil {
		m.orders = make(map[string]*domain.Order)
	}
	order := &domain.Order{
		ID:            uuid.MustParse(m.nextID),
		SessionID:     draft.SessionID,
		Status:        domain.OrderStatusPending,
		PaymentMethod: draft.PaymentMethod,
		DeliveryType:  draft.DeliveryType,
		Items:         domain.OrderItemsFromLines(draft.Items),
		Subtotal:      draft.Totals.Subtotal,
		TotalAmount:   draft.Totals.GrandTotal,
	}
	m.orders[m.nextID] = order
	return m.nextID, nil
}

func (m *MockOrders) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	return o, nil
}

type MockStream struct {
	mu       sync.Mutex
	sessions []string
}

func (m *MockStream) ServeWS(w http.ResponseWriter, _ *http.Request, sessionID string) {
	m.mu.Lock()
	m.sessions = append(m.sessions, sessionID)
	m.mu.Unlock()
	w.WriteHeader(http.StatusSwitchingProtocols)
}
