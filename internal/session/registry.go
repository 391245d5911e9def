// Package session keeps the live cart and checkout of every active browsing session.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/restaurant-ordering/internal/cart"
	"github.com/fjod/restaurant-ordering/internal/checkout"
	"github.com/fjod/restaurant-ordering/internal/domain"
	"github.com/fjod/restaurant-ordering/internal/storage"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultIdleTTL is how long an untouched session stays in memory.
	DefaultIdleTTL = 30 * time.Minute

	// CleanupInterval is how often the background cleanup runs
	CleanupInterval = time.Minute

	// LoadTimeout bounds the first read of a session's cart from storage.
	LoadTimeout = 5 * time.Second
)

type Options struct {
	IdleTTL         time.Duration
	CleanupInterval time.Duration
	Checkout        checkout.Deps
}

type entry struct {
	cart     *cart.Store
	flow     *checkout.Flow
	lastSeen time.Time
}

// Registry owns one cart store, and at most one checkout, per session id.
// Carts are persisted on every change, so evicting an idle session loses nothing.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry

	storage  storage.CartStorage
	notifier cart.Notifier
	deps     checkout.Deps
	ttl      time.Duration
	log      *slog.Logger
	now      func() time.Time
	sfg      singleflight.Group // collapses concurrent first loads of a session

	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

func NewRegistry(st storage.CartStorage, notifier cart.Notifier, log *slog.Logger, opts Options) *Registry {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultIdleTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = CleanupInterval
	}
	if opts.Checkout.Log == nil {
		opts.Checkout.Log = log
	}

	r := &Registry{
		sessions:    make(map[string]*entry),
		storage:     st,
		notifier:    notifier,
		deps:        opts.Checkout,
		ttl:         opts.IdleTTL,
		log:         log,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	r.wg.Add(1)
	go r.cleanupLoop(opts.CleanupInterval)

	return r
}

// Cart returns the session's cart, loading it from storage on first use.
func (r *Registry) Cart(ctx context.Context, sessionID string) *cart.Store {
	if e := r.touch(sessionID); e != nil {
		return e.cart
	}

	v, _, _ := r.sfg.Do(sessionID, func() (interface{}, error) {
		if e := r.touch(sessionID); e != nil {
			return e.cart, nil
		}
		// the load is shared by every waiter, so it must not die with the first caller
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), LoadTimeout)
		defer cancel()
		store := cart.Load(loadCtx, sessionID, r.storage, r.notifier, r.log)
		if store.LoadFailed() {
			// not cached: the next request reads storage again
			return store, nil
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		r.sessions[sessionID] = &entry{cart: store, lastSeen: r.now()}
		return store, nil
	})
	return v.(*cart.Store)
}

// StartCheckout snapshots the session's cart into a new checkout. An unfinished
// previous checkout is cancelled.
func (r *Registry) StartCheckout(ctx context.Context, sessionID string) (*checkout.Flow, error) {
	store := r.Cart(ctx, sessionID)
	flow, err := checkout.Begin(ctx, sessionID, store, r.deps)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sessionID]
	if !ok {
		// evicted between Cart and here
		e = &entry{cart: store}
		r.sessions[sessionID] = e
	}
	if e.flow != nil {
		e.flow.Cancel()
	}
	e.flow = flow
	e.lastSeen = r.now()
	return flow, nil
}

func (r *Registry) Checkout(sessionID string) (*checkout.Flow, bool) {
	e := r.touch(sessionID)
	if e == nil || e.flow == nil {
		return nil, false
	}
	return e.flow, true
}

// EndCheckout forgets flow if it is still the session's current checkout.
func (r *Registry) EndCheckout(sessionID string, flow *checkout.Flow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sessionID]; ok && e.flow == flow {
		e.flow = nil
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close stops the background cleanup and waits for it to finish
func (r *Registry) Close() error {
	close(r.stopCleanup)
	r.wg.Wait()
	return nil
}

func (r *Registry) touch(sessionID string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	e.lastSeen = r.now()
	return e
}

func (r *Registry) cleanupLoop(interval time.Duration) {
	defer r.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.evictIdle()
		case <-r.stopCleanup:
			return
		}
	}
}

// evictIdle drops sessions idle past the TTL. A session with a submission in
// flight is kept until the submission settles.
func (r *Registry) evictIdle() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.ttl)
	evicted := 0
	for id, e := range r.sessions {
		if !e.lastSeen.Before(cutoff) {
			continue
		}
		if e.flow != nil && e.flow.Step() == domain.CheckoutStepSubmitting {
			continue
		}
		if e.flow != nil {
			e.flow.Cancel()
		}
		delete(r.sessions, id)
		evicted++
	}
	if evicted > 0 {
		r.log.Debug("idle sessions evicted", slog.Int("count", evicted), slog.Int("remaining", len(r.sessions)))
	}
}
