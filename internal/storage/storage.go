package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/restaurant-ordering/internal/domain"
)

// CartStorage persists serialized carts under a key.
// Consumers define this interface, not the Redis or MongoDB implementation
type CartStorage interface {
	Save(ctx context.Context, key string, cart domain.Cart) error
	Load(ctx context.Context, key string) (domain.Cart, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrCorruptCart  = errors.New("stored cart is corrupted")
)

// CartKey is the fixed cart key scoped to one browsing session.
func CartKey(sessionID string) string {
	return fmt.Sprintf("cart:%s", sessionID)
}
