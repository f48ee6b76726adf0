// Package polling is the fallback that re-fetches entities on an adaptive
// interval while the realtime channel is unavailable and manufactures
// change events from the fetched snapshots.
package polling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/client/syncmetrics"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/observer"
)

// ErrPollingStopped is reported when polling stops after too many consecutive failures
var ErrPollingStopped = errors.New("polling stopped after consecutive errors")

// Fetcher загружает записи сущностей с сервера
type Fetcher interface {
	FetchAll(ctx context.Context, entity string) ([]models.Record, error)
	FetchSince(ctx context.Context, entity string, since time.Time) ([]models.Record, error)
}

// ErrorEvent ошибка опроса
type ErrorEvent struct {
	At     time.Time
	Err    error
	Entity string
	// Terminal true, когда polling остановлен
	Terminal bool
}

type afterFunc func(d time.Duration, f func()) func() bool

func realAfter(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

type entityState struct {
	lastFetched time.Time
	watermark   time.Time
	records     map[string]snapshot
	cfg         EntityConfig
	schedule    Schedule
	hash        string
	baseline    bool
}

// Service is the polling fallback service
type Service struct {
	fetcher    Fetcher
	watermarks storage.WatermarkStore
	logger     *slog.Logger
	metrics    *syncmetrics.Recorder
	now        func() time.Time
	after      afterFunc
	listeners  *observer.Set[models.PollingState]
	changes    *observer.Set[models.ChangeEvent]
	errs       *observer.Set[ErrorEvent]
	runCtx     context.Context
	stopTimer  func() bool
	nextAt     time.Time
	entities   []*entityState
	intervals  Intervals
	quality    models.NetworkQuality
	state      models.PollingState
	cfg        Config
	mu         sync.Mutex
	gen        uint64
	inFlight   atomic.Bool
	// exhausted выставляется при остановке после MaxConsecutiveErrors
	exhausted bool
}

// Option configures a Service
type Option func(*Service)

// WithWatermarks persists delta high-water marks
func WithWatermarks(store storage.WatermarkStore) Option {
	return func(s *Service) { s.watermarks = store }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics attaches a metrics recorder
func WithMetrics(rec *syncmetrics.Recorder) Option {
	return func(s *Service) { s.metrics = rec }
}

func withAfter(after afterFunc) Option {
	return func(s *Service) { s.after = after }
}

// New создает polling сервис. Опрос не начинается до Start.
func New(fetcher Fetcher, cfg Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid polling config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		fetcher:   fetcher,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		after:     realAfter,
		runCtx:    context.Background(),
		listeners: observer.New[models.PollingState]("polling.state", logger),
		changes:   observer.New[models.ChangeEvent]("polling.changes", logger),
		errs:      observer.New[ErrorEvent]("polling.errors", logger),
		quality:   cfg.InitialQuality,
		intervals: cfg.Intervals[cfg.InitialQuality],
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, ec := range cfg.Entities {
		if ec.Mode == "" {
			ec.Mode = ModeFull
		}
		sched, ok := ParseSchedule(ec.Schedule)
		if !ok {
			logger.Warn("Unsupported schedule, entity polled every cycle",
				"entity", ec.Name,
				"schedule", ec.Schedule,
			)
		}
		s.entities = append(s.entities, &entityState{cfg: ec, schedule: sched})
	}
	s.sortEntitiesLocked()
	s.state.CurrentInterval = s.intervals.Base
	s.state.PollingEntities = s.entityNamesLocked()
	return s, nil
}

// Start activates polling. Starting resets the error counter, restores the
// base interval and clears a previous terminal stop; starting an active
// service is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state.IsActive {
		s.mu.Unlock()
		return nil
	}
	s.exhausted = false
	s.gen++
	s.runCtx = ctx
	s.state.IsActive = true
	s.state.ConsecutiveErrors = 0
	s.state.CurrentInterval = s.intervals.Base
	for _, e := range s.entities {
		// первый цикл после активации только фиксирует базовое состояние
		e.baseline = false
		e.records = nil
		e.hash = ""
		e.lastFetched = time.Time{}
	}
	delta := s.deltaEntitiesLocked()
	s.mu.Unlock()

	if err := s.loadWatermarks(ctx, delta); err != nil {
		s.logger.Warn("Failed to load watermarks", "error", err)
	}

	s.mu.Lock()
	if !s.state.IsActive {
		s.mu.Unlock()
		return nil
	}
	s.scheduleLocked(0)
	st := s.state.Clone()
	s.mu.Unlock()

	s.logger.Info("Polling started", "entities", len(st.PollingEntities), "interval", st.CurrentInterval)
	s.listeners.Notify(st)
	return nil
}

// Activate starts polling; used as the monitor's fallback hook
func (s *Service) Activate(ctx context.Context) {
	if err := s.Start(ctx); err != nil {
		s.logger.Error("Failed to activate polling", "error", err)
	}
}

// Stop deactivates polling. A cycle that completes after Stop is discarded.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.state.IsActive {
		s.mu.Unlock()
		return
	}
	s.stopLocked()
	st := s.state.Clone()
	s.mu.Unlock()

	s.logger.Info("Polling stopped")
	s.listeners.Notify(st)
}

func (s *Service) stopLocked() {
	s.state.IsActive = false
	s.gen++
	if s.stopTimer != nil {
		s.stopTimer()
		s.stopTimer = nil
	}
	s.nextAt = time.Time{}
}

// Exhausted reports whether polling stopped itself after MaxConsecutiveErrors
// and has not been restarted or rearmed since
func (s *Service) Exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exhausted
}

// Rearm clears a terminal stop without starting polling
func (s *Service) Rearm() {
	s.mu.Lock()
	was := s.exhausted
	s.exhausted = false
	s.mu.Unlock()

	if was {
		s.logger.Info("Polling rearmed")
	}
}

// Active reports whether polling is running
func (s *Service) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsActive
}

func (s *Service) scheduleLocked(delay time.Duration) {
	if s.stopTimer != nil {
		s.stopTimer()
	}
	gen := s.gen
	ctx := s.runCtx
	s.nextAt = s.now().Add(delay)
	s.stopTimer = s.after(delay, func() { s.runScheduled(ctx, gen) })
}

func (s *Service) runScheduled(ctx context.Context, gen uint64) {
	s.mu.Lock()
	if gen != s.gen || !s.state.IsActive {
		s.mu.Unlock()
		return
	}
	s.stopTimer = nil
	s.mu.Unlock()

	_ = s.PollOnce(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || !s.state.IsActive || s.stopTimer != nil {
		return
	}
	s.scheduleLocked(s.state.CurrentInterval)
}

// SetNetworkQuality switches the base/max interval pair. This is the only
// place quality is mapped to intervals.
func (s *Service) SetNetworkQuality(q models.NetworkQuality) {
	s.mu.Lock()
	iv, ok := s.cfg.Intervals[q]
	if !ok || q == s.quality {
		s.mu.Unlock()
		return
	}
	s.quality = q
	s.intervals = iv
	if s.state.ConsecutiveErrors == 0 || s.state.CurrentInterval < iv.Base {
		s.state.CurrentInterval = iv.Base
	}
	if s.state.CurrentInterval > iv.Max {
		s.state.CurrentInterval = iv.Max
	}
	st := s.state.Clone()
	s.mu.Unlock()

	s.logger.Debug("Polling intervals adjusted", "quality", q, "base", iv.Base, "max", iv.Max)
	s.listeners.Notify(st)
}

// SetEntityPriorities reorders entities. A pending cycle keeps its deadline.
func (s *Service) SetEntityPriorities(priorities map[string]int) {
	s.mu.Lock()
	for _, e := range s.entities {
		if p, ok := priorities[e.cfg.Name]; ok {
			e.cfg.Priority = p
		}
	}
	s.sortEntitiesLocked()
	s.state.PollingEntities = s.entityNamesLocked()
	if s.stopTimer != nil && s.state.IsActive {
		remaining := s.nextAt.Sub(s.now())
		if remaining < 0 {
			remaining = 0
		}
		s.scheduleLocked(remaining)
	}
	st := s.state.Clone()
	s.mu.Unlock()

	s.logger.Info("Polling priorities updated", "order", st.PollingEntities)
	s.listeners.Notify(st)
}

// Entities returns the entity configuration in poll order
func (s *Service) Entities() []EntityConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EntityConfig, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e.cfg)
	}
	return out
}

// State returns a snapshot of the polling state
func (s *Service) State() models.PollingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Subscribe registers a state listener
func (s *Service) Subscribe(fn func(models.PollingState)) func() {
	return s.listeners.Subscribe(fn)
}

// OnChange registers a change event listener
func (s *Service) OnChange(fn func(models.ChangeEvent)) func() {
	return s.changes.Subscribe(fn)
}

// OnError registers an error listener
func (s *Service) OnError(fn func(ErrorEvent)) func() {
	return s.errs.Subscribe(fn)
}

func (s *Service) sortEntitiesLocked() {
	sort.SliceStable(s.entities, func(i, j int) bool {
		return s.entities[i].cfg.Priority < s.entities[j].cfg.Priority
	})
}

func (s *Service) entityNamesLocked() []string {
	names := make([]string, 0, len(s.entities))
	for _, e := range s.entities {
		names = append(names, e.cfg.Name)
	}
	return names
}

func (s *Service) deltaEntitiesLocked() []string {
	var out []string
	for _, e := range s.entities {
		if e.cfg.Mode == ModeDelta {
			out = append(out, e.cfg.Name)
		}
	}
	return out
}

func (s *Service) loadWatermarks(ctx context.Context, entities []string) error {
	if s.watermarks == nil || len(entities) == 0 {
		return nil
	}

	loaded := make(map[string]time.Time, len(entities))
	var errs []error
	for _, name := range entities {
		ts, err := s.watermarks.GetWatermark(ctx, name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		loaded[name] = ts
	}

	s.mu.Lock()
	for _, e := range s.entities {
		if ts, ok := loaded[e.cfg.Name]; ok && ts.After(e.watermark) {
			e.watermark = ts
		}
	}
	s.mu.Unlock()
	return errors.Join(errs...)
}
