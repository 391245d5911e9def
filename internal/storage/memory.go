package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/fjod/restaurant-ordering/internal/domain"
)

// MemoryStorage keeps serialized carts in process memory. Carts go through JSON like the
// networked backends so the same round-trip guarantees hold.
type MemoryStorage struct {
	mu    sync.RWMutex
	carts map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{carts: make(map[string][]byte)}
}

func (m *MemoryStorage) Load(_ context.Context, key string) (domain.Cart, error) {
	m.mu.RLock()
	data, ok := m.carts[key]
	m.mu.RUnlock()
	if !ok {
		return domain.Cart{}, ErrCartNotFound
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return domain.Cart{}, fmt.Errorf("%w: %v", ErrCorruptCart, err)
	}
	return cart, nil
}

func (m *MemoryStorage) Save(_ context.Context, key string, cart domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[key] = data
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, key)
	return nil
}

func (m *MemoryStorage) Ping(context.Context) error {
	return nil
}

// SetRaw stores bytes as-is under key.
func (m *MemoryStorage) SetRaw(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[key] = data
}
