package cart

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/fjod/restaurant-ordering/internal/domain"
	"github.com/fjod/restaurant-ordering/internal/storage"
	"github.com/shopspring/decimal"
)

var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// Notifier is told about every cart mutation after it has been persisted.
type Notifier interface {
	CartUpdated(ctx context.Context, sessionID string, cart domain.Cart)
}

type nopNotifier struct{}

func (nopNotifier) CartUpdated(context.Context, string, domain.Cart) {}

// Store is the cart of one browsing session. It is the only writer of its storage key.
type Store struct {
	mu        sync.RWMutex
	sessionID string
	items     []domain.CartLineItem
	storage   storage.CartStorage
	notifier  Notifier
	log       *slog.Logger

	// notifyMu is taken before mu is released so notifications go out in mutation order.
	notifyMu sync.Mutex
	// loadErr is the transient error that left the cart empty at load time.
	loadErr error
}

// Load rehydrates the session's cart. Missing or unreadable data yields an empty cart.
func Load(ctx context.Context, sessionID string, st storage.CartStorage, notifier Notifier, log *slog.Logger) *Store {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	s := &Store{
		sessionID: sessionID,
		storage:   st,
		notifier:  notifier,
		log:       log.With(slog.String("session_id", sessionID)),
	}

	saved, err := st.Load(ctx, storage.CartKey(sessionID))
	switch {
	case errors.Is(err, storage.ErrCartNotFound):
	case errors.Is(err, storage.ErrCorruptCart):
		s.log.WarnContext(ctx, "stored cart is unreadable, starting empty", slog.Any("error", err))
	case err != nil:
		s.log.WarnContext(ctx, "cart load failed, starting empty", slog.Any("error", err))
		s.loadErr = err
	default:
		s.items = sanitize(saved.Items)
	}
	return s
}

// LoadFailed reports whether the cart is empty only because storage could not be read.
// Such a store retries the load before its first mutation.
func (s *Store) LoadFailed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadErr != nil
}

// reloadLocked gives a cart that failed to load one more read before it is
// modified, so the mutation does not save over the stored lines.
func (s *Store) reloadLocked(ctx context.Context) {
	if s.loadErr == nil {
		return
	}
	saved, err := s.storage.Load(ctx, storage.CartKey(s.sessionID))
	switch {
	case err == nil:
		s.items = sanitize(saved.Items)
	case errors.Is(err, storage.ErrCartNotFound), errors.Is(err, storage.ErrCorruptCart):
	default:
		s.log.WarnContext(ctx, "cart reload failed, continuing with empty cart", slog.Any("error", err))
	}
	s.loadErr = nil
}

// sanitize enforces the cart invariants on data read back from storage.
func sanitize(items []domain.CartLineItem) []domain.CartLineItem {
	out := make([]domain.CartLineItem, 0, len(items))
	index := make(map[int64]int, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		if i, ok := index[item.DishID]; ok {
			out[i].Quantity += item.Quantity
			continue
		}
		index[item.DishID] = len(out)
		out = append(out, item)
	}
	return out
}

func (s *Store) SessionID() string {
	return s.sessionID
}

// AddItem adds quantity of dish. An existing line keeps its position and grows; new
// instructions replace the old ones only when non-empty.
func (s *Store) AddItem(ctx context.Context, dish domain.Dish, quantity int, specialInstructions string) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	specialInstructions = strings.TrimSpace(specialInstructions)

	s.mu.Lock()
	s.reloadLocked(ctx)
	if i := s.indexOf(dish.ID); i >= 0 {
		s.items[i].Quantity += quantity
		if specialInstructions != "" {
			s.items[i].SpecialInstructions = specialInstructions
		}
	} else {
		s.items = append(s.items, domain.CartLineItem{
			DishID:              dish.ID,
			Name:                dish.Name,
			UnitPrice:           dish.Price,
			Quantity:            quantity,
			SpecialInstructions: specialInstructions,
		})
	}
	s.commitLocked(ctx)
	return nil
}

func (s *Store) RemoveItem(ctx context.Context, dishID int64) {
	s.mu.Lock()
	s.reloadLocked(ctx)
	i := s.indexOf(dishID)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.commitLocked(ctx)
}

// SetQuantity replaces a line's quantity; a quantity <= 0 removes the line.
func (s *Store) SetQuantity(ctx context.Context, dishID int64, quantity int) {
	if quantity <= 0 {
		s.RemoveItem(ctx, dishID)
		return
	}

	s.mu.Lock()
	s.reloadLocked(ctx)
	i := s.indexOf(dishID)
	if i < 0 || s.items[i].Quantity == quantity {
		s.mu.Unlock()
		return
	}
	s.items[i].Quantity = quantity
	s.commitLocked(ctx)
}

func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.items = nil
	s.loadErr = nil
	s.commitLocked(ctx)
}

func (s *Store) Items() []domain.CartLineItem {
	return s.Snapshot().Items
}

func (s *Store) Snapshot() domain.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) TotalItemCount() int {
	return s.Snapshot().TotalItemCount()
}

func (s *Store) TotalPrice() decimal.Decimal {
	return s.Snapshot().TotalPrice()
}

func (s *Store) indexOf(dishID int64) int {
	for i := range s.items {
		if s.items[i].DishID == dishID {
			return i
		}
	}
	return -1
}

func (s *Store) snapshotLocked() domain.Cart {
	return domain.Cart{Items: s.items}.Clone()
}

// persistLocked saves best-effort while the write lock is held, so saves land in mutation order.
func (s *Store) persistLocked(ctx context.Context) domain.Cart {
	snapshot := s.snapshotLocked()
	if err := s.storage.Save(ctx, storage.CartKey(s.sessionID), snapshot); err != nil {
		s.log.ErrorContext(ctx, "cart save failed", slog.Any("error", err))
	}
	return snapshot
}

// commitLocked persists the cart, releases mu and notifies. It must be called with mu held.
func (s *Store) commitLocked(ctx context.Context) {
	snapshot := s.persistLocked(ctx)
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	s.notifier.CartUpdated(ctx, s.sessionID, snapshot)
}
