// Package realtime is the websocket push channel client. It keeps one connection,
// multiplexes entity subscriptions over it and normalizes channel status.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/iudanet/gophsync/internal/client/syncmetrics"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/observer"
	"github.com/iudanet/gophsync/pkg/api"
)

// ErrClosed is returned after Close
var ErrClosed = errors.New("realtime client closed")

// Handler receives change events of one entity
type Handler func(models.ChangeEvent)

// Teardown removes a subscription
type Teardown func(ctx context.Context) error

// Client websocket клиент realtime канала
type Client struct {
	logger   *slog.Logger
	metrics  *syncmetrics.Recorder
	now      func() time.Time
	conn     *websocket.Conn
	cancel   context.CancelFunc
	handlers map[string]map[uint64]Handler
	status   *observer.Set[models.ChannelStatus]
	url      string
	token    string
	nextID   uint64
	gen      uint64
	mu       sync.Mutex
	closed   bool
}

// Option configures a Client
type Option func(*Client)

// WithToken sets the bearer token sent on dial
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithMetrics attaches a metrics recorder
func WithMetrics(rec *syncmetrics.Recorder) Option {
	return func(c *Client) { c.metrics = rec }
}

// WithClock overrides the time source for event timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a client for the websocket endpoint url. It does not dial.
func New(url string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		url:      url,
		logger:   logger,
		now:      time.Now,
		handlers: make(map[string]map[uint64]Handler),
		status:   observer.New[models.ChannelStatus]("realtime.status", logger),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URLFromBase derives the websocket endpoint from an HTTP base URL
func URLFromBase(base string) string {
	base = strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + api.PathRealtime
}

// OnStatus subscribes to normalized channel status changes
func (c *Client) OnStatus(fn func(models.ChannelStatus)) func() {
	return c.status.Subscribe(fn)
}

// Connected reports whether a connection is open
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Connect dials the endpoint and re-sends subscriptions for every registered entity.
// Connecting an already connected client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	opts := &websocket.DialOptions{}
	if c.token != "" {
		opts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + c.token}}
	}

	conn, _, err := websocket.Dial(ctx, c.url, opts) //nolint:bodyclose // websocket.Dial closes the response body internally
	if err != nil {
		c.status.Notify(models.ChannelError)
		return fmt.Errorf("dialing websocket: %w", err)
	}

	c.mu.Lock()
	if c.closed || c.conn != nil {
		c.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
		if c.closed {
			return ErrClosed
		}
		return nil
	}
	connCtx, cancel := context.WithCancel(context.Background())
	c.gen++
	gen := c.gen
	c.conn = conn
	c.cancel = cancel
	entities := c.entitiesLocked()
	c.mu.Unlock()

	c.logger.Info("Realtime channel connected", "url", c.url, "entities", len(entities))
	go c.readLoop(connCtx, conn, gen)

	for _, entity := range entities {
		if err := c.send(ctx, conn, api.RealtimeMessage{Type: api.MessageSubscribe, Entity: entity}); err != nil {
			c.logger.Warn("Failed to resubscribe", "entity", entity, "error", err)
		}
	}
	return nil
}

// Reconnect drops the current connection and dials again
func (c *Client) Reconnect(ctx context.Context) error {
	c.disconnect(websocket.StatusGoingAway, "reconnect")
	return c.Connect(ctx)
}

// Subscribe registers handler for entity changes. The subscription is sent
// immediately when connected and on every later connect otherwise.
func (c *Client) Subscribe(ctx context.Context, entity string, handler Handler) (Teardown, error) {
	if handler == nil {
		return nil, errors.New("handler is nil")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.nextID++
	id := c.nextID
	set, ok := c.handlers[entity]
	if !ok {
		set = make(map[uint64]Handler)
		c.handlers[entity] = set
	}
	set[id] = handler
	first := !ok
	conn := c.conn
	c.mu.Unlock()

	if first && conn != nil {
		if err := c.send(ctx, conn, api.RealtimeMessage{Type: api.MessageSubscribe, Entity: entity}); err != nil {
			// подписка останется зарегистрированной и будет отправлена при переподключении
			c.logger.Warn("Failed to send subscribe", "entity", entity, "error", err)
		}
	}

	var once sync.Once
	return func(ctx context.Context) error {
		var err error
		once.Do(func() {
			err = c.unsubscribe(ctx, entity, id)
		})
		return err
	}, nil
}

func (c *Client) unsubscribe(ctx context.Context, entity string, id uint64) error {
	c.mu.Lock()
	set := c.handlers[entity]
	delete(set, id)
	last := len(set) == 0
	if last {
		delete(c.handlers, entity)
	}
	conn := c.conn
	c.mu.Unlock()

	if !last || conn == nil {
		return nil
	}
	if err := c.send(ctx, conn, api.RealtimeMessage{Type: api.MessageUnsubscribe, Entity: entity}); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", entity, err)
	}
	return nil
}

// Close closes the connection; the client cannot be reused
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.disconnect(websocket.StatusNormalClosure, "bye")
	return nil
}

func (c *Client) disconnect(code websocket.StatusCode, reason string) {
	c.mu.Lock()
	conn, cancel := c.conn, c.cancel
	c.conn, c.cancel = nil, nil
	// старый readLoop увидит другое поколение и не будет публиковать статус
	c.gen++
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close(code, reason)
	}
}

func (c *Client) entitiesLocked() []string {
	out := make([]string, 0, len(c.handlers))
	for entity := range c.handlers {
		out = append(out, entity)
	}
	return out
}

func (c *Client) send(ctx context.Context, conn *websocket.Conn, msg api.RealtimeMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshalling message: %w", err)
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, gen uint64) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			c.connectionLost(gen, err)
			return
		}

		var msg api.RealtimeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("Invalid realtime message", "error", err)
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) connectionLost(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	conn, cancel := c.conn, c.cancel
	c.conn, c.cancel = nil, nil
	c.gen++
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.CloseNow()
	}

	status := models.ChannelError
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		status = models.ChannelDisconnected
	}
	if errors.Is(err, context.DeadlineExceeded) {
		status = models.ChannelTimedOut
	}

	c.logger.Warn("Realtime channel lost", "status", status, "error", err)
	c.status.Notify(status)
}

func (c *Client) handleMessage(msg api.RealtimeMessage) {
	switch msg.Type {
	case api.MessageSubscribed:
		c.logger.Debug("Realtime subscription confirmed", "entity", msg.Entity)
		c.status.Notify(models.ChannelSubscribed)
	case api.MessageError:
		c.logger.Warn("Realtime channel error", "entity", msg.Entity, "error", msg.Error)
		c.status.Notify(models.ChannelError)
	case api.MessageChange:
		action, err := models.ParseAction(msg.EventType)
		if err != nil {
			c.logger.Warn("Unknown realtime event type", "entity", msg.Entity, "event_type", msg.EventType)
			return
		}
		c.metrics.Inc(syncmetrics.CounterRealtimeEvents, 1)
		c.dispatch(models.ChangeEvent{
			EventType:  action,
			Entity:     msg.Entity,
			New:        msg.New,
			Old:        msg.Old,
			Source:     models.SourceRealtime,
			ReceivedAt: c.now(),
		})
	default:
		c.logger.Debug("Ignoring realtime message", "type", msg.Type)
	}
}

func (c *Client) dispatch(ev models.ChangeEvent) {
	c.mu.Lock()
	set := c.handlers[ev.Entity]
	handlers := make([]Handler, 0, len(set))
	for _, h := range set {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()

	for _, h := range handlers {
		c.safeCall(h, ev)
	}
}

func (c *Client) safeCall(h Handler, ev models.ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Change handler panic recovered", "entity", ev.Entity, "panic", r)
		}
	}()
	h(ev)
}
