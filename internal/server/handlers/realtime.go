package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/iudanet/gophsync/internal/server/storage"
	"github.com/iudanet/gophsync/internal/validation"
	"github.com/iudanet/gophsync/pkg/api"
)

// writeTimeout таймаут записи одного кадра подписчику
const writeTimeout = 5 * time.Second

type subscriber struct {
	conn     *websocket.Conn
	entities map[string]struct{}
	mu       sync.Mutex
}

func (s *subscriber) subscribed(entity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entities[entity]
	return ok
}

// Hub accepts realtime websocket clients and fans applied changes out to
// the clients subscribed to the changed entity.
type Hub struct {
	logger  *slog.Logger
	clients map[*subscriber]struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.RWMutex
}

var _ ChangeNotifier = (*Hub)(nil)

// NewHub creates a hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		logger:  logger,
		clients: make(map[*subscriber]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// ServeHTTP upgrades GET /api/v1/realtime and serves the connection until it closes
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	sub := &subscriber{conn: conn, entities: make(map[string]struct{})}

	h.mu.Lock()
	h.clients[sub] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("realtime client connected", "remote_addr", r.RemoteAddr, "clients", count)
	defer h.remove(sub)

	for {
		_, data, err := conn.Read(h.ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				h.logger.Debug("realtime read failed", "error", err)
			}
			return
		}

		var msg api.RealtimeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.send(sub, api.RealtimeMessage{Type: api.MessageError, Error: "malformed message"})
			continue
		}
		h.handle(sub, msg)
	}
}

func (h *Hub) handle(sub *subscriber, msg api.RealtimeMessage) {
	switch msg.Type {
	case api.MessageSubscribe:
		if err := validation.ValidateEntity(msg.Entity); err != nil {
			h.send(sub, api.RealtimeMessage{Type: api.MessageError, Entity: msg.Entity, Error: err.Error()})
			return
		}
		sub.mu.Lock()
		sub.entities[msg.Entity] = struct{}{}
		sub.mu.Unlock()
		h.send(sub, api.RealtimeMessage{Type: api.MessageSubscribed, Entity: msg.Entity})
	case api.MessageUnsubscribe:
		sub.mu.Lock()
		delete(sub.entities, msg.Entity)
		sub.mu.Unlock()
	default:
		h.send(sub, api.RealtimeMessage{Type: api.MessageError, Error: "unknown message type " + msg.Type})
	}
}

// Publish sends every change to the clients subscribed to its entity
func (h *Hub) Publish(changes []storage.Change) {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.clients))
	for sub := range h.clients {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, ch := range changes {
		msg := api.RealtimeMessage{
			Type:      api.MessageChange,
			Entity:    ch.Entity,
			EventType: string(ch.Action),
			New:       ch.New,
			Old:       ch.Old,
		}
		for _, sub := range subs {
			if sub.subscribed(ch.Entity) {
				h.send(sub, msg)
			}
		}
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.clients))
	for sub := range h.clients {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		_ = sub.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
	h.cancel()
}

func (h *Hub) send(sub *subscriber, msg api.RealtimeMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal realtime message", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(h.ctx, writeTimeout)
	defer cancel()
	// Write безопасен для конкурентного вызова
	if err := sub.conn.Write(ctx, websocket.MessageText, data); err != nil {
		h.logger.Warn("failed to send to realtime client", "error", err)
		h.remove(sub)
	}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	if _, ok := h.clients[sub]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, sub)
	count := len(h.clients)
	h.mu.Unlock()

	_ = sub.conn.Close(websocket.StatusNormalClosure, "")
	h.logger.Info("realtime client disconnected", "clients", count)
}
