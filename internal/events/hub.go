// Package events streams cart changes to the browser tabs of a session over websockets.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/fjod/restaurant-ordering/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

const TypeCartUpdated = "cart_updated"

// CartUpdatedMessage is pushed to subscribers after every cart change.
type CartUpdatedMessage struct {
	Type       string                `json:"type"`
	SessionID  string                `json:"session_id"`
	Items      []domain.CartLineItem `json:"items"`
	TotalItems int                   `json:"total_items"`
	TotalPrice decimal.Decimal       `json:"total_price"`
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.send) })
}

// Hub fans cart updates out to the websocket subscribers of each session.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]map[*subscriber]struct{}
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewHub(log *slog.Logger, allowedOrigins ...string) *Hub {
	h := &Hub{
		sessions: make(map[string]map[*subscriber]struct{}),
		log:      log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// CartUpdated implements cart.Notifier. It never blocks on a slow subscriber;
// a subscriber whose buffer is full is disconnected.
func (h *Hub) CartUpdated(ctx context.Context, sessionID string, cart domain.Cart) {
	data, err := json.Marshal(CartUpdatedMessage{
		Type:       TypeCartUpdated,
		SessionID:  sessionID,
		Items:      cart.Items,
		TotalItems: cart.TotalItemCount(),
		TotalPrice: cart.TotalPrice(),
	})
	if err != nil {
		h.log.ErrorContext(ctx, "failed to marshal cart update", slog.Any("error", err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.sessions[sessionID] {
		select {
		case sub.send <- data:
		default:
			h.log.WarnContext(ctx, "dropping slow cart subscriber", slog.String("session_id", sessionID))
			h.removeLocked(sessionID, sub)
		}
	}
}

// ServeWS upgrades the request and streams the session's cart updates until the
// client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.log.WarnContext(r.Context(), "websocket upgrade failed", slog.Any("error", err))
		return
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[*subscriber]struct{})
	}
	h.sessions[sessionID][sub] = struct{}{}
	h.mu.Unlock()

	go h.writePump(sub)
	h.readPump(sessionID, sub)
}

func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions[sessionID])
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, subs := range h.sessions {
		for sub := range subs {
			h.removeLocked(id, sub)
		}
	}
}

func (h *Hub) removeLocked(sessionID string, sub *subscriber) {
	subs, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.sessions, sessionID)
	}
	sub.close()
}

// readPump discards client messages; it only exists to notice disconnects and pongs.
func (h *Hub) readPump(sessionID string, sub *subscriber) {
	defer func() {
		h.mu.Lock()
		h.removeLocked(sessionID, sub)
		h.mu.Unlock()
	}()

	sub.conn.SetReadLimit(512)
	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = sub.conn.Close()
	}()

	for {
		select {
		case data, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
