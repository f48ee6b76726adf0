// Package engine assembles the client sync stack from configuration: local
// store, operation queue, HTTP and realtime transports, connection monitor,
// polling fallback and sync coordinator.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/iudanet/gophsync/internal/client/api"
	"github.com/iudanet/gophsync/internal/client/coordinator"
	"github.com/iudanet/gophsync/internal/client/monitor"
	"github.com/iudanet/gophsync/internal/client/polling"
	"github.com/iudanet/gophsync/internal/client/queue"
	"github.com/iudanet/gophsync/internal/client/realtime"
	"github.com/iudanet/gophsync/internal/client/storage/backend"
	"github.com/iudanet/gophsync/internal/client/syncmetrics"
	"github.com/iudanet/gophsync/internal/config"
	"github.com/iudanet/gophsync/internal/models"
)

// Local is the offline part of the engine: the store and the queue on top of it
type Local struct {
	Queue   *queue.Queue
	Backend *backend.Opened
}

// OpenLocal opens the configured store (with fallback) and loads the queue from it
func OpenLocal(ctx context.Context, cfg *config.Config, logger *slog.Logger, rec *syncmetrics.Recorder) (*Local, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opened, err := backend.Open(ctx, cfg.Storage.DSN, cfg.Storage.FallbackDSN, logger.With("component", "storage"))
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	q, err := queue.New(ctx, opened.Store, cfg.Queue, logger.With("component", "queue"), queue.WithMetrics(rec))
	if err != nil {
		_ = opened.Store.Close()
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}

	return &Local{Queue: q, Backend: opened}, nil
}

// Close closes the queue and then the store
func (l *Local) Close() error {
	l.Queue.Close()
	if err := l.Backend.Store.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}
	return nil
}

// Status is a combined snapshot of every component
type Status struct {
	Connection  models.ConnectionState       `json:"connection"`
	Polling     models.PollingState          `json:"polling"`
	Coordinator models.SyncCoordinatorStatus `json:"coordinator"`
	Metrics     syncmetrics.Snapshot         `json:"metrics"`
	Storage     string                       `json:"storage"`
	Pending     int                          `json:"pending"`
	Fallback    bool                         `json:"storage_fallback"`
}

// Engine is the assembled client sync stack
type Engine struct {
	local       *Local
	api         *api.Client
	realtime    *realtime.Client
	monitor     *monitor.Monitor
	polling     *polling.Service
	coordinator *coordinator.Coordinator
	metrics     *syncmetrics.Recorder
	logger      *slog.Logger
	unsubs      []func()
	mu          sync.Mutex
	started     bool
	stopped     bool
	closed      bool
}

// New builds the engine. Nothing talks to the network until Start.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, rec *syncmetrics.Recorder) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if rec == nil {
		rec = syncmetrics.New()
	}

	local, err := OpenLocal(ctx, cfg, logger, rec)
	if err != nil {
		return nil, err
	}

	e, err := assemble(local, cfg, logger, rec)
	if err != nil {
		_ = local.Close()
		return nil, err
	}
	return e, nil
}

func assemble(local *Local, cfg *config.Config, logger *slog.Logger, rec *syncmetrics.Recorder) (*Engine, error) {
	apiClient := api.NewClient(cfg.Server.URL,
		api.WithToken(cfg.Server.Token),
		api.WithTimeout(cfg.Server.Timeout),
		api.WithLogger(logger.With("component", "api")),
	)

	rtURL := cfg.Server.RealtimeURL
	if rtURL == "" {
		rtURL = realtime.URLFromBase(cfg.Server.URL)
	}
	rt := realtime.New(rtURL, logger.With("component", "realtime"),
		realtime.WithToken(cfg.Server.Token),
		realtime.WithMetrics(rec),
	)

	pollingSvc, err := polling.New(apiClient, cfg.Polling, logger.With("component", "polling"),
		polling.WithWatermarks(local.Backend.Store),
		polling.WithMetrics(rec),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create polling service: %w", err)
	}

	mon, err := monitor.New(apiClient, cfg.Monitor, logger.With("component", "monitor"),
		monitor.WithReconnector(rt),
		monitor.WithFallback(pollingSvc),
		monitor.WithMetrics(rec),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection monitor: %w", err)
	}

	coord, err := coordinator.New(local.Queue, mon, pollingSvc, cfg.Coordinator, logger.With("component", "coordinator"),
		coordinator.WithRealtime(rt),
		coordinator.WithDispatcher(apiClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create coordinator: %w", err)
	}

	return &Engine{
		local:       local,
		api:         apiClient,
		realtime:    rt,
		monitor:     mon,
		polling:     pollingSvc,
		coordinator: coord,
		metrics:     rec,
		logger:      logger,
	}, nil
}

// Start starts the monitor, dials the realtime channel and starts the
// coordinator. A failed dial is not fatal: the monitor schedules reconnects
// and polling covers the gap.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.closed || e.stopped {
		e.mu.Unlock()
		return errors.New("engine is stopped")
	}
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = true
	e.unsubs = append(e.unsubs,
		e.realtime.OnStatus(e.monitor.HandleChannelStatus),
		e.local.Queue.OnFailure(func(ev queue.FailureEvent) {
			e.logger.Warn("Operation dropped",
				"op_id", ev.Operation.ID,
				"entity", ev.Operation.Entity,
				"class", ev.Class,
				"error", ev.Err,
			)
		}),
	)
	e.mu.Unlock()

	e.monitor.Start(ctx)

	if err := e.realtime.Connect(ctx); err != nil {
		e.logger.Warn("Realtime channel unavailable, relying on reconnect and polling", "error", err)
	}

	if err := e.coordinator.Start(ctx); err != nil {
		return fmt.Errorf("failed to start coordinator: %w", err)
	}

	e.logger.Info("Sync engine started",
		"storage", e.local.Backend.Scheme,
		"storage_fallback", e.local.Backend.Fallback,
		"pending", e.local.Queue.Len(),
	)
	return nil
}

// Stop stops components in reverse start order. The store stays open so
// queue commands keep working; the engine cannot be started again.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = false
	e.stopped = true
	unsubs := e.unsubs
	e.unsubs = nil
	e.mu.Unlock()

	var errs []error
	if err := e.coordinator.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	e.polling.Stop()
	e.monitor.Stop()
	if err := e.realtime.Close(); err != nil && !errors.Is(err, realtime.ErrClosed) {
		errs = append(errs, fmt.Errorf("failed to close realtime channel: %w", err))
	}
	for _, unsub := range unsubs {
		unsub()
	}

	e.logger.Info("Sync engine stopped", "pending", e.local.Queue.Len())
	return errors.Join(errs...)
}

// Close stops the engine and closes the store. The engine cannot be restarted.
func (e *Engine) Close(ctx context.Context) error {
	stopErr := e.Stop(ctx)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return stopErr
	}
	e.closed = true
	e.mu.Unlock()

	return errors.Join(stopErr, e.local.Close())
}

// Queue returns the operation queue
func (e *Engine) Queue() *queue.Queue {
	return e.local.Queue
}

// Coordinator returns the sync coordinator
func (e *Engine) Coordinator() *coordinator.Coordinator {
	return e.coordinator
}

// Monitor returns the connection monitor
func (e *Engine) Monitor() *monitor.Monitor {
	return e.monitor
}

// Polling returns the polling fallback service
func (e *Engine) Polling() *polling.Service {
	return e.polling
}

// Metrics returns the metrics recorder
func (e *Engine) Metrics() *syncmetrics.Recorder {
	return e.metrics
}

// Status collects a snapshot of every component
func (e *Engine) Status() Status {
	return Status{
		Connection:  e.monitor.State(),
		Polling:     e.polling.State(),
		Coordinator: e.coordinator.Status(),
		Metrics:     e.metrics.Snapshot(),
		Storage:     e.local.Backend.Scheme,
		Pending:     e.local.Queue.Len(),
		Fallback:    e.local.Backend.Fallback,
	}
}
