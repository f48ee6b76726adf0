// Package monitor tracks connection health: heartbeats, quality tiers and
// reconnection of the realtime channel with fallback to polling.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/iudanet/gophsync/internal/client/syncmetrics"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/observer"
)

// ErrReconnectExhausted is reported when the reconnect attempt limit is reached
var ErrReconnectExhausted = errors.New("reconnect attempts exhausted")

// ErrHeartbeatStale is reported when no heartbeat succeeded for too long
var ErrHeartbeatStale = errors.New("heartbeat stale")

// Prober выполняет сетевые пробы
type Prober interface {
	Ping(ctx context.Context, path string) (time.Duration, error)
	Bandwidth(ctx context.Context, size int) (float64, time.Duration, error)
}

// Reconnector переподключает realtime канал
type Reconnector interface {
	Reconnect(ctx context.Context) error
}

// FallbackActivator включает polling fallback
type FallbackActivator interface {
	Activate(ctx context.Context)
}

// FallbackRearmer is implemented by fallbacks that stop themselves after
// repeated failures. Rearm is called on a connectivity-restored signal.
type FallbackRearmer interface {
	Rearm()
}

// ErrorKind источник ошибки монитора
type ErrorKind string

const (
	ErrorHeartbeat ErrorKind = "heartbeat"
	ErrorQuality   ErrorKind = "quality"
	ErrorReconnect ErrorKind = "reconnect"
	ErrorChannel   ErrorKind = "channel"
)

// ErrorEvent событие ошибки для OnError подписчиков
type ErrorEvent struct {
	At   time.Time
	Err  error
	Kind ErrorKind
}

// afterFunc schedules f after d and returns a stop function
type afterFunc func(d time.Duration, f func()) func() bool

func realAfter(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

type sample struct {
	latency time.Duration
	ok      bool
}

// Monitor is the connection monitor
type Monitor struct {
	prober        Prober
	reconnector   Reconnector
	fallback      FallbackActivator
	logger        *slog.Logger
	metrics       *syncmetrics.Recorder
	now           func() time.Time
	after         afterFunc
	listeners     *observer.Set[models.ConnectionState]
	statuses      *observer.Set[models.ChannelStatus]
	errs          *observer.Set[ErrorEvent]
	runCtx        context.Context
	cancel        context.CancelFunc
	stopReconnect func() bool
	lastHeartbeat time.Time
	window        []sample
	state         models.ConnectionState
	cfg           Config
	wg            sync.WaitGroup
	mu            sync.Mutex
	gen           uint64
	running       bool
	exhausted     bool
}

// Option configures a Monitor
type Option func(*Monitor)

// WithReconnector sets the realtime reconnector
func WithReconnector(r Reconnector) Option {
	return func(m *Monitor) { m.reconnector = r }
}

// WithFallback sets the polling fallback activator
func WithFallback(f FallbackActivator) Option {
	return func(m *Monitor) { m.fallback = f }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithMetrics attaches a metrics recorder
func WithMetrics(rec *syncmetrics.Recorder) Option {
	return func(m *Monitor) { m.metrics = rec }
}

func withAfter(after afterFunc) Option {
	return func(m *Monitor) { m.after = after }
}

// New создает монитор соединения
func New(prober Prober, cfg Config, logger *slog.Logger, opts ...Option) (*Monitor, error) {
	if prober == nil {
		return nil, errors.New("prober is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid monitor config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Monitor{
		prober:    prober,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		after:     realAfter,
		runCtx:    context.Background(),
		listeners: observer.New[models.ConnectionState]("monitor.state", logger),
		statuses:  observer.New[models.ChannelStatus]("monitor.status", logger),
		errs:      observer.New[ErrorEvent]("monitor.errors", logger),
		state: models.ConnectionState{
			Status:         models.StatusDisconnected,
			NetworkQuality: models.QualityGood,
			SyncStatus:     models.SyncPending,
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Start runs the first heartbeat and starts heartbeat and quality loops.
// Calling Start on a running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.running = true
	m.runCtx = runCtx
	m.cancel = cancel
	m.gen++
	m.lastHeartbeat = m.now()
	m.state.Status = models.StatusConnecting
	st := m.state
	m.mu.Unlock()

	m.logger.Info("Connection monitor started",
		"heartbeat_interval", m.cfg.HeartbeatInterval,
		"quality_interval", m.cfg.QualityInterval,
	)
	m.listeners.Notify(st)

	_ = m.Heartbeat(runCtx)

	m.wg.Add(1)
	go m.loop(runCtx)
}

// Stop halts timers and waits for the loop to exit
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.gen++
	cancel := m.cancel
	m.cancel = nil
	m.cancelReconnectLocked()
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("Connection monitor stopped")
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()

	heartbeat := time.NewTicker(m.cfg.HeartbeatInterval)
	defer heartbeat.Stop()
	quality := time.NewTicker(m.cfg.QualityInterval)
	defer quality.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			_ = m.Heartbeat(ctx)
		case <-quality.C:
			_ = m.MeasureQuality(ctx)
		}
	}
}

// Heartbeat sends one probe, trying each ping path in order
func (m *Monitor) Heartbeat(ctx context.Context) error {
	var (
		latency time.Duration
		err     error
	)
	for _, path := range m.cfg.PingPaths {
		latency, err = m.prober.Ping(ctx, path)
		if err == nil {
			break
		}
		m.logger.Debug("Heartbeat probe failed", "path", path, "error", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	now := m.now()
	if err == nil {
		m.metrics.ObserveLatency(syncmetrics.LatencyHeartbeat, latency)

		m.mu.Lock()
		m.pushSampleLocked(sample{latency: latency, ok: true})
		m.lastHeartbeat = now
		m.state.Metrics.Latency = latency
		m.state.Metrics.LastMeasured = now
		restored := false
		if m.state.Status == models.StatusDisconnected || m.state.Status == models.StatusError {
			m.logger.Info("Heartbeat restored", "latency", latency)
			restored = m.exhausted
			m.state.Status = models.StatusConnected
			if m.state.SyncStatus == models.SyncOffline {
				m.state.SyncStatus = models.SyncPending
			}
		}
		if m.state.NetworkQuality == models.QualityOffline {
			m.state.NetworkQuality = Classify(m.cfg.Tiers, m.state.Metrics.Latency, m.state.Metrics.PacketLoss)
		}
		st := m.state
		m.mu.Unlock()

		m.listeners.Notify(st)
		if restored {
			// сервер снова доступен после исчерпания попыток: считаем это сигналом online
			m.HandleOnline(ctx)
		}
		return nil
	}

	m.mu.Lock()
	m.pushSampleLocked(sample{ok: false})
	stale := now.Sub(m.lastHeartbeat) > time.Duration(m.cfg.StaleFactor)*m.cfg.HeartbeatInterval
	wasDisconnected := m.state.Status == models.StatusDisconnected
	if stale {
		m.state.Status = models.StatusDisconnected
		m.state.IsRealtimeActive = false
		m.state.SyncStatus = models.SyncOffline
	}
	st := m.state
	m.mu.Unlock()

	m.listeners.Notify(st)
	if !stale {
		return err
	}
	if !wasDisconnected {
		m.logger.Warn("Heartbeat stale, connection marked disconnected",
			"since", m.lastHeartbeatTime(),
			"error", err,
		)
	}
	m.emitError(ErrorHeartbeat, fmt.Errorf("%w: %w", ErrHeartbeatStale, err))
	m.scheduleReconnect()
	return err
}

// MeasureQuality runs the bandwidth probe and reclassifies network quality
func (m *Monitor) MeasureQuality(ctx context.Context) error {
	bps, _, err := m.prober.Bandwidth(ctx, m.cfg.BandwidthBytes)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	m.mu.Lock()
	if err == nil {
		m.state.Metrics.Bandwidth = bps
	}
	m.state.Metrics.LastMeasured = m.now()
	prev := m.state.NetworkQuality
	next := Classify(m.cfg.Tiers, m.state.Metrics.Latency, m.state.Metrics.PacketLoss)
	m.state.NetworkQuality = next
	st := m.state
	m.mu.Unlock()

	if prev != next {
		m.logger.Info("Network quality changed", "from", prev, "to", next,
			"latency", st.Metrics.Latency,
			"packet_loss", st.Metrics.PacketLoss,
		)
	}
	m.listeners.Notify(st)

	if err != nil {
		m.emitError(ErrorQuality, err)
		return err
	}
	return nil
}

// ReportStatus accepts a raw channel status from the realtime transport
func (m *Monitor) ReportStatus(raw string) {
	m.applyStatus(models.NormalizeChannelStatus(raw))
}

// HandleChannelStatus accepts an already normalized channel status
func (m *Monitor) HandleChannelStatus(status models.ChannelStatus) {
	m.applyStatus(status)
}

func (m *Monitor) applyStatus(status models.ChannelStatus) {
	now := m.now()
	reconnect := false

	m.mu.Lock()
	switch status {
	case models.ChannelSubscribed:
		m.cancelReconnectLocked()
		m.state.Status = models.StatusConnected
		m.state.IsRealtimeActive = true
		m.state.ReconnectAttempts = 0
		m.exhausted = false
		m.state.LastConnected = now
		m.lastHeartbeat = now
	case models.ChannelDisconnected:
		m.state.Status = models.StatusDisconnected
		m.state.IsRealtimeActive = false
	default:
		m.state.Status = models.StatusError
		m.state.IsRealtimeActive = false
		reconnect = true
	}
	st := m.state
	m.mu.Unlock()

	m.logger.Debug("Channel status", "status", status)
	m.statuses.Notify(status)
	m.listeners.Notify(st)

	if reconnect {
		m.emitError(ErrorChannel, fmt.Errorf("realtime channel status %s", status))
		m.scheduleReconnect()
	}
}

// HandleOffline applies a connectivity-lost signal: immediate disconnect and polling activation
func (m *Monitor) HandleOffline() {
	m.mu.Lock()
	m.cancelReconnectLocked()
	m.state.Status = models.StatusDisconnected
	m.state.NetworkQuality = models.QualityOffline
	m.state.SyncStatus = models.SyncOffline
	m.state.IsRealtimeActive = false
	st := m.state
	ctx := m.runCtx
	m.mu.Unlock()

	m.logger.Warn("Network offline signal received")
	m.listeners.Notify(st)
	m.statuses.Notify(models.ChannelDisconnected)
	m.activateFallback(ctx)
}

// HandleOnline applies a connectivity-restored signal: the attempt counter is reset,
// a fallback stopped after repeated failures is rearmed and a reconnect is
// attempted immediately. A heartbeat that succeeds after reconnects were
// exhausted is treated the same way.
func (m *Monitor) HandleOnline(ctx context.Context) {
	m.mu.Lock()
	m.cancelReconnectLocked()
	m.state.ReconnectAttempts = 0
	m.exhausted = false
	if m.state.NetworkQuality == models.QualityOffline {
		m.state.NetworkQuality = Classify(m.cfg.Tiers, m.state.Metrics.Latency, m.state.Metrics.PacketLoss)
	}
	if m.state.SyncStatus == models.SyncOffline {
		m.state.SyncStatus = models.SyncPending
	}
	m.mu.Unlock()

	m.logger.Info("Network online signal received")
	if r, ok := m.fallback.(FallbackRearmer); ok {
		r.Rearm()
	}
	m.attemptReconnect(ctx, 0, false)
}

// SetRealtimeActive records whether the realtime channel carries data
func (m *Monitor) SetRealtimeActive(active bool) {
	m.update(func(s *models.ConnectionState) { s.IsRealtimeActive = active })
}

// SetPollingActive records whether polling fallback is running
func (m *Monitor) SetPollingActive(active bool) {
	m.update(func(s *models.ConnectionState) { s.IsPollingActive = active })
}

// SetSyncStatus records the aggregated sync status
func (m *Monitor) SetSyncStatus(status models.SyncStatus) {
	m.update(func(s *models.ConnectionState) { s.SyncStatus = status })
}

func (m *Monitor) update(fn func(*models.ConnectionState)) {
	m.mu.Lock()
	before := m.state
	fn(&m.state)
	st := m.state
	m.mu.Unlock()

	if st != before {
		m.listeners.Notify(st)
	}
}

// State returns a snapshot of the connection state
func (m *Monitor) State() models.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers a state listener
func (m *Monitor) Subscribe(fn func(models.ConnectionState)) func() {
	return m.listeners.Subscribe(fn)
}

// OnStatus registers a channel status listener
func (m *Monitor) OnStatus(fn func(models.ChannelStatus)) func() {
	return m.statuses.Subscribe(fn)
}

// OnError registers an error listener
func (m *Monitor) OnError(fn func(ErrorEvent)) func() {
	return m.errs.Subscribe(fn)
}

// reconnectDelay returns min(base*2^attempt, max)
func (m *Monitor) reconnectDelay(attempt int) time.Duration {
	d := float64(m.cfg.ReconnectBase) * math.Pow(2, float64(attempt))
	if d > float64(m.cfg.ReconnectMax) {
		return m.cfg.ReconnectMax
	}
	return time.Duration(d)
}

func (m *Monitor) scheduleReconnect() {
	m.mu.Lock()
	if m.stopReconnect != nil {
		m.mu.Unlock()
		return
	}
	ctx := m.runCtx
	if m.exhausted {
		m.mu.Unlock()
		return
	}
	if m.reconnector == nil || m.state.ReconnectAttempts >= m.cfg.MaxReconnectAttempts {
		m.exhausted = true
		attempts := m.state.ReconnectAttempts
		m.mu.Unlock()

		m.logger.Warn("Reconnect attempts exhausted, activating polling fallback", "attempts", attempts)
		m.emitError(ErrorReconnect, fmt.Errorf("%w after %d attempts", ErrReconnectExhausted, attempts))
		m.activateFallback(ctx)
		return
	}
	attempt := m.state.ReconnectAttempts
	delay := m.reconnectDelay(attempt)
	gen := m.gen
	m.stopReconnect = m.after(delay, func() {
		m.attemptReconnect(ctx, gen, true)
	})
	m.mu.Unlock()

	m.logger.Info("Reconnect scheduled", "attempt", attempt+1, "delay", delay)
}

// attemptReconnect runs one reconnect. Timer-driven calls pass the generation
// they were scheduled in and are ignored after Stop or a newer schedule.
func (m *Monitor) attemptReconnect(ctx context.Context, gen uint64, fromTimer bool) {
	m.mu.Lock()
	if fromTimer {
		if gen != m.gen || m.stopReconnect == nil {
			m.mu.Unlock()
			return
		}
		m.stopReconnect = nil
	}
	if m.reconnector == nil {
		m.mu.Unlock()
		return
	}
	m.state.ReconnectAttempts++
	m.state.Status = models.StatusConnecting
	st := m.state
	m.mu.Unlock()

	m.listeners.Notify(st)
	m.metrics.Inc(syncmetrics.CounterReconnects, 1)

	if err := m.reconnector.Reconnect(ctx); err != nil {
		m.logger.Warn("Reconnect failed", "attempt", st.ReconnectAttempts, "error", err)
		m.mu.Lock()
		m.state.Status = models.StatusError
		st = m.state
		m.mu.Unlock()

		m.listeners.Notify(st)
		m.emitError(ErrorReconnect, err)
		if ctx.Err() == nil {
			m.scheduleReconnect()
		}
		return
	}

	m.mu.Lock()
	m.state.Status = models.StatusConnected
	m.state.IsRealtimeActive = true
	m.state.ReconnectAttempts = 0
	m.exhausted = false
	m.state.LastConnected = m.now()
	m.lastHeartbeat = m.state.LastConnected
	st = m.state
	m.mu.Unlock()

	m.logger.Info("Reconnected")
	m.listeners.Notify(st)
}

func (m *Monitor) activateFallback(ctx context.Context) {
	m.update(func(s *models.ConnectionState) { s.IsPollingActive = true })
	if m.fallback != nil {
		m.fallback.Activate(ctx)
	}
}

func (m *Monitor) cancelReconnectLocked() {
	if m.stopReconnect != nil {
		m.stopReconnect()
		m.stopReconnect = nil
	}
}

func (m *Monitor) emitError(kind ErrorKind, err error) {
	m.errs.Notify(ErrorEvent{At: m.now(), Kind: kind, Err: err})
}

func (m *Monitor) lastHeartbeatTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHeartbeat
}

// pushSampleLocked appends a probe result to the rolling window and
// recomputes packet loss and jitter
func (m *Monitor) pushSampleLocked(s sample) {
	m.window = append(m.window, s)
	if len(m.window) > m.cfg.WindowSize {
		m.window = m.window[len(m.window)-m.cfg.WindowSize:]
	}

	failed := 0
	var (
		prev     time.Duration
		havePrev bool
		diffSum  time.Duration
		diffs    int
	)
	for _, w := range m.window {
		if !w.ok {
			failed++
			continue
		}
		if havePrev {
			d := w.latency - prev
			if d < 0 {
				d = -d
			}
			diffSum += d
			diffs++
		}
		prev = w.latency
		havePrev = true
	}

	m.state.Metrics.PacketLoss = float64(failed) / float64(len(m.window))
	if diffs > 0 {
		m.state.Metrics.Jitter = diffSum / time.Duration(diffs)
	} else {
		m.state.Metrics.Jitter = 0
	}
}
