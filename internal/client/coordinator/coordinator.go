// Package coordinator arbitrates between realtime, polling and the operation
// queue: it funnels change events, drains the queue on a tick and applies
// backpressure by backlog size.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iudanet/gophsync/internal/client/queue"
	"github.com/iudanet/gophsync/internal/client/realtime"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/observer"
)

//go:generate moq -out queue_mock.go . Queue
//go:generate moq -out monitor_mock.go . Monitor
//go:generate moq -out poller_mock.go . Poller
//go:generate moq -out realtime_mock.go . Realtime

// Queue is the part of the operation queue the coordinator drives
type Queue interface {
	Len() int
	Process(ctx context.Context) (queue.ProcessResult, error)
	SetDispatcher(h queue.Handler)
	RegisterBatch(entity string, h queue.BatchHandler)
}

// Monitor is the part of the connection monitor the coordinator reads and informs
type Monitor interface {
	State() models.ConnectionState
	SetPollingActive(active bool)
	SetSyncStatus(status models.SyncStatus)
	Subscribe(fn func(models.ConnectionState)) func()
}

// Poller is the polling fallback. Exhausted reports a terminal stop after
// repeated failures; the tick loop does not restart an exhausted poller until Rearm.
type Poller interface {
	Start(ctx context.Context) error
	Stop()
	Active() bool
	Exhausted() bool
	Rearm()
	SetNetworkQuality(q models.NetworkQuality)
	OnChange(fn func(models.ChangeEvent)) func()
}

// Realtime is the push channel
type Realtime interface {
	Subscribe(ctx context.Context, entity string, handler realtime.Handler) (realtime.Teardown, error)
}

// Dispatcher применяет операцию на сервере
type Dispatcher interface {
	Apply(ctx context.Context, op *models.Operation) (bool, error)
}

// BatchDispatcher применяет группу операций одной сущности
type BatchDispatcher interface {
	ApplyBatch(ctx context.Context, ops []*models.Operation) (bool, error)
}

// Config параметры координатора
type Config struct {
	Entities          []string      `yaml:"realtime_entities"`
	BaseTick          time.Duration `yaml:"base_tick"`
	MaxTick           time.Duration `yaml:"max_tick"`
	SlowdownThreshold int           `yaml:"slowdown_threshold"`
	CriticalThreshold int           `yaml:"critical_threshold"`
}

// DefaultConfig returns the default coordinator configuration
func DefaultConfig() Config {
	return Config{
		BaseTick:          2 * time.Second,
		MaxTick:           30 * time.Second,
		SlowdownThreshold: 50,
		CriticalThreshold: 200,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.BaseTick <= 0 || c.MaxTick < c.BaseTick {
		return fmt.Errorf("invalid tick interval %s..%s", c.BaseTick, c.MaxTick)
	}
	if c.SlowdownThreshold < 1 || c.CriticalThreshold <= c.SlowdownThreshold {
		return fmt.Errorf("thresholds must satisfy 0 < slowdown (%d) < critical (%d)",
			c.SlowdownThreshold, c.CriticalThreshold)
	}
	return nil
}

type regime int

const (
	regimeNormal regime = iota
	regimeSlowdown
	regimeCritical
)

type afterFunc func(d time.Duration, f func()) func() bool

func realAfter(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Coordinator is the sync coordinator
type Coordinator struct {
	queue      Queue
	monitor    Monitor
	poller     Poller
	realtime   Realtime
	dispatcher Dispatcher
	logger     *slog.Logger
	now        func() time.Time
	after      afterFunc
	listeners  *observer.Set[models.SyncCoordinatorStatus]
	changes    *observer.Set[models.ChangeEvent]
	runCtx     context.Context
	stopTimer  func() bool
	teardowns  map[string]realtime.Teardown
	unsubs     []func()
	status     models.SyncCoordinatorStatus
	cfg        Config
	mu         sync.Mutex
	gen        uint64
	regime     regime
	started    bool
	ticking    atomic.Bool
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithRealtime sets the realtime channel
func WithRealtime(rt Realtime) Option {
	return func(c *Coordinator) { c.realtime = rt }
}

// WithDispatcher sets the remote write bridge registered on Start
func WithDispatcher(d Dispatcher) Option {
	return func(c *Coordinator) { c.dispatcher = d }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func withAfter(after afterFunc) Option {
	return func(c *Coordinator) { c.after = after }
}

// New создает координатор
func New(q Queue, m Monitor, p Poller, cfg Config, logger *slog.Logger, opts ...Option) (*Coordinator, error) {
	if q == nil || m == nil || p == nil {
		return nil, errors.New("queue, monitor and poller are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid coordinator config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Coordinator{
		queue:     q,
		monitor:   m,
		poller:    p,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		after:     realAfter,
		runCtx:    context.Background(),
		teardowns: make(map[string]realtime.Teardown),
		listeners: observer.New[models.SyncCoordinatorStatus]("coordinator.status", logger),
		changes:   observer.New[models.ChangeEvent]("coordinator.changes", logger),
		status: models.SyncCoordinatorStatus{
			SyncMethod:   models.MethodOffline,
			TickInterval: cfg.BaseTick,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start wires the dispatcher, opens entity subscriptions and begins the tick
// loop. Subscription failures are logged and counted; the coordinator still
// starts. Calling Start twice is a no-op.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.gen++
	c.runCtx = ctx
	c.mu.Unlock()

	if c.dispatcher != nil {
		c.queue.SetDispatcher(c.dispatcher.Apply)
		if bd, ok := c.dispatcher.(BatchDispatcher); ok {
			for _, entity := range c.cfg.Entities {
				c.queue.RegisterBatch(entity, bd.ApplyBatch)
			}
		}
	}

	unsubs := []func(){
		c.monitor.Subscribe(func(st models.ConnectionState) {
			c.poller.SetNetworkQuality(st.NetworkQuality)
		}),
		c.poller.OnChange(c.handleChange),
	}

	var subErrs []error
	teardowns := make(map[string]realtime.Teardown, len(c.cfg.Entities))
	if c.realtime != nil {
		for _, entity := range c.cfg.Entities {
			td, err := c.realtime.Subscribe(ctx, entity, c.handleChange)
			if err != nil {
				subErrs = append(subErrs, fmt.Errorf("subscribe %s: %w", entity, err))
				continue
			}
			teardowns[entity] = td
		}
	}

	c.mu.Lock()
	c.unsubs = append(c.unsubs, unsubs...)
	for entity, td := range teardowns {
		c.teardowns[entity] = td
	}
	c.status.ErrorCount += len(subErrs)
	if c.started {
		c.scheduleLocked(0)
	}
	st := c.status
	c.mu.Unlock()

	for _, err := range subErrs {
		c.logger.Warn("Realtime subscription failed", "error", err)
	}
	c.logger.Info("Sync coordinator started",
		"entities", len(c.cfg.Entities),
		"subscribed", len(teardowns),
	)
	c.listeners.Notify(st)
	return nil
}

// Stop unsubscribes everything and halts the tick timer. Subscriptions that
// never completed are skipped.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	c.gen++
	if c.stopTimer != nil {
		c.stopTimer()
		c.stopTimer = nil
	}
	teardowns := c.teardowns
	c.teardowns = make(map[string]realtime.Teardown)
	unsubs := c.unsubs
	c.unsubs = nil
	c.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}

	var errs []error
	for entity, td := range teardowns {
		if td == nil {
			continue
		}
		if err := td(ctx); err != nil {
			errs = append(errs, fmt.Errorf("unsubscribe %s: %w", entity, err))
		}
	}

	c.logger.Info("Sync coordinator stopped")
	return errors.Join(errs...)
}

// ForceMethod pins the sync method until ClearForce. It takes effect on the next tick.
// Forcing polling also rearms a poller that stopped after repeated failures.
func (c *Coordinator) ForceMethod(method models.SyncMethod) error {
	switch method {
	case models.MethodRealtime, models.MethodPolling, models.MethodOffline:
	default:
		return fmt.Errorf("unsupported sync method %q", method)
	}

	if method == models.MethodPolling {
		// явный выбор polling снимает терминальную остановку
		c.poller.Rearm()
	}

	c.mu.Lock()
	c.status.ForcedMethod = method
	st := c.status
	c.mu.Unlock()

	c.logger.Info("Sync method forced", "method", method)
	c.listeners.Notify(st)
	return nil
}

// ClearForce returns method selection to the connection monitor
func (c *Coordinator) ClearForce() {
	c.mu.Lock()
	c.status.ForcedMethod = ""
	st := c.status
	c.mu.Unlock()

	c.logger.Info("Sync method override cleared")
	c.listeners.Notify(st)
}

// Status returns a snapshot of the coordinator status
func (c *Coordinator) Status() models.SyncCoordinatorStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Subscribe registers a status listener
func (c *Coordinator) Subscribe(fn func(models.SyncCoordinatorStatus)) func() {
	return c.listeners.Subscribe(fn)
}

// OnChange registers a listener for change events from realtime and polling
func (c *Coordinator) OnChange(fn func(models.ChangeEvent)) func() {
	return c.changes.Subscribe(fn)
}

func (c *Coordinator) handleChange(ev models.ChangeEvent) {
	c.changes.Notify(ev)
}

func (c *Coordinator) scheduleLocked(delay time.Duration) {
	if c.stopTimer != nil {
		c.stopTimer()
	}
	gen := c.gen
	ctx := c.runCtx
	c.stopTimer = c.after(delay, func() { c.runScheduled(ctx, gen) })
}

func (c *Coordinator) runScheduled(ctx context.Context, gen uint64) {
	c.mu.Lock()
	if gen != c.gen || !c.started {
		c.mu.Unlock()
		return
	}
	c.stopTimer = nil
	c.mu.Unlock()

	c.Tick(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || !c.started || c.stopTimer != nil {
		return
	}
	c.scheduleLocked(c.status.TickInterval)
}
