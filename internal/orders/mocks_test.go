package orders

import (
	"context"
	"errors"
	"sync"

	"github.com/fjod/restaurant-ordering/internal/domain"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// MockRepository implements OrderRepository and eventSource for testing
type MockRepository struct {
	CreateErr   error
	Created     []*domain.Order
	Events      [][]byte
	Outbox      []*OutboxEvent
	FetchErr    error
	MarkErr     error
	ProcessedID []int64

	mu sync.Mutex
}

func (m *MockRepository) CreateOrder(_ context.Context, order *domain.Order, event []byte) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.Created = append(m.Created, order)
	m.Events = append(m.Events, event)
	return nil
}

func (m *MockRepository) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	for _, o := range m.Created {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, ErrOrderNotFound
}

func (m *MockRepository) GetOrderByPaymentRef(_ context.Context, ref string) (*domain.Order, error) {
	for _, o := range m.Created {
		if o.PaymentRef != "" && o.PaymentRef == ref {
			return o, nil
		}
	}
	return nil, ErrOrderNotFound
}

func (m *MockRepository) GetUnprocessedEvents(context.Context, int) ([]*OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	var out []*OutboxEvent
	for _, e := range m.Outbox {
		processed := false
		for _, id := range m.ProcessedID {
			if id == e.ID {
				processed = true
			}
		}
		if !processed {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockRepository) MarkEventAsProcessed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.ProcessedID = append(m.ProcessedID, id)
	return nil
}

func (m *MockRepository) processed() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.ProcessedID...)
}

// MockWriter implements messageWriter for testing
type MockWriter struct {
	Messages []kafka.Message
	FailOn   int // 1-based message index to fail on, 0 never fails
	calls    int
	closed   bool
}

var errBroker = errors.New("broker not available")

func (m *MockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.calls++
	if m.FailOn != 0 && m.calls == m.FailOn {
		return errBroker
	}
	m.Messages = append(m.Messages, msgs...)
	return nil
}

func (m *MockWriter) Close() error {
	m.closed = true
	return nil
}
