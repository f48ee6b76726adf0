// Package queue implements the durable, deduplicated, priority-ordered
// operation queue drained by the sync coordinator.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/client/syncmetrics"
	"github.com/iudanet/gophsync/internal/clock"
	"github.com/iudanet/gophsync/internal/fingerprint"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/observer"
	"github.com/iudanet/gophsync/internal/validation"
)

//go:generate moq -out store_mock.go . Store

// Store is the persistence the queue needs
type Store interface {
	storage.OperationStore
	storage.DeadLetterStore
}

// Handler dispatches one operation. true means permanently applied.
type Handler func(ctx context.Context, op *models.Operation) (bool, error)

// BatchHandler dispatches a whole group atomically. true means all applied.
type BatchHandler func(ctx context.Context, ops []*models.Operation) (bool, error)

// DedupPolicy определяет, что делать с дубликатом
type DedupPolicy string

const (
	// DedupLastWins replaces the stored payload with the newer one
	DedupLastWins DedupPolicy = "last_wins"
	// DedupFirstWins keeps the stored operation and drops the newer one
	DedupFirstWins DedupPolicy = "first_wins"
)

// Config holds queue settings
type Config struct {
	DedupPolicy       DedupPolicy   `yaml:"dedup_policy"`
	Jitter            JitterMode    `yaml:"jitter"`
	BaseDelay         time.Duration `yaml:"base_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	DefaultMaxRetries int           `yaml:"max_retries"`
}

// DefaultConfig returns the default queue settings
func DefaultConfig() Config {
	return Config{
		DedupPolicy:       DedupLastWins,
		DefaultMaxRetries: models.DefaultMaxRetries,
		BaseDelay:         time.Second,
		MaxDelay:          60 * time.Second,
		Jitter:            JitterMultiplicative,
	}
}

// Validate checks config values
func (c Config) Validate() error {
	switch c.DedupPolicy {
	case DedupLastWins, DedupFirstWins:
	default:
		return fmt.Errorf("unknown dedup policy %q", c.DedupPolicy)
	}
	switch c.Jitter {
	case JitterMultiplicative, JitterAdditive, JitterNone:
	default:
		return fmt.Errorf("unknown jitter mode %q", c.Jitter)
	}
	if c.DefaultMaxRetries <= 0 {
		return errors.New("default max retries must be positive")
	}
	if c.BaseDelay <= 0 || c.MaxDelay < c.BaseDelay {
		return errors.New("backoff delays must satisfy 0 < base <= max")
	}
	return nil
}

// State снимок очереди для подписчиков
type State struct {
	Operations []*models.Operation
	Processing bool
}

// FailureEvent is emitted when an operation leaves the queue without being applied
type FailureEvent struct {
	At        time.Time
	Err       error
	Operation *models.Operation
	Class     ErrorClass
}

// Queue is the operation queue
type Queue struct {
	store      Store
	logger     *slog.Logger
	metrics    *syncmetrics.Recorder
	seq        *clock.Sequence
	backoff    *Backoff
	now        func() time.Time
	ops        map[string]*models.Operation
	byHash     map[string]string
	handlers   map[string]Handler
	batch      map[string]BatchHandler
	dispatcher Handler
	listeners  *observer.Set[State]
	failures   *observer.Set[FailureEvent]
	cfg        Config
	mu         sync.Mutex
	processing atomic.Bool
	closed     atomic.Bool
}

// Option configures a Queue
type Option func(*Queue)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithRand sets the jitter source
func WithRand(rnd *rand.Rand) Option {
	return func(q *Queue) {
		q.backoff = NewBackoff(q.cfg.BaseDelay, q.cfg.MaxDelay, q.cfg.Jitter, rnd)
	}
}

// WithMetrics attaches a metrics recorder
func WithMetrics(rec *syncmetrics.Recorder) Option {
	return func(q *Queue) { q.metrics = rec }
}

// WithSequence sets the ordering sequence
func WithSequence(seq *clock.Sequence) Option {
	return func(q *Queue) { q.seq = seq }
}

// New creates a queue and reconciles the in-memory copy from store.
// store must already be initialized.
func New(ctx context.Context, store Store, cfg Config, logger *slog.Logger, opts ...Option) (*Queue, error) {
	if store == nil {
		return nil, errors.New("queue store is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid queue config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	q := &Queue{
		store:     store,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		ops:       make(map[string]*models.Operation),
		byHash:    make(map[string]string),
		handlers:  make(map[string]Handler),
		batch:     make(map[string]BatchHandler),
		listeners: observer.New[State]("queue", logger),
		failures:  observer.New[FailureEvent]("queue.failures", logger),
	}
	q.backoff = NewBackoff(cfg.BaseDelay, cfg.MaxDelay, cfg.Jitter, nil)
	for _, opt := range opts {
		opt(q)
	}
	if q.seq == nil {
		q.seq = clock.NewSequence()
	}

	if err := q.reload(ctx); err != nil {
		return nil, err
	}
	return q, nil
}

// reload заменяет рабочую копию содержимым хранилища
func (q *Queue) reload(ctx context.Context) error {
	stored, err := q.store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pending operations: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.ops = make(map[string]*models.Operation, len(stored))
	q.byHash = make(map[string]string, len(stored))
	for _, op := range stored {
		q.seq.Observe(op.Seq)
		q.ops[op.ID] = op
		if op.DedupHash != "" {
			q.byHash[hashKey(op.Entity, op.DedupHash)] = op.ID
		}
	}

	q.logger.Info("queue loaded", "pending", len(q.ops))
	return nil
}

// Register sets the per-entity handler
func (q *Queue) Register(entity string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if h == nil {
		delete(q.handlers, entity)
		return
	}
	q.handlers[entity] = h
}

// RegisterBatch sets the per-entity batch handler
func (q *Queue) RegisterBatch(entity string, h BatchHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if h == nil {
		delete(q.batch, entity)
		return
	}
	q.batch[entity] = h
}

// SetDispatcher sets the generic dispatcher used when no per-entity handler exists
func (q *Queue) SetDispatcher(h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dispatcher = h
}

// Add enqueues op applying the dedup policy and persists it before returning.
// The returned operation is the pending entry representing op.
func (q *Queue) Add(ctx context.Context, op *models.Operation) (*models.Operation, error) {
	if q.closed.Load() {
		return nil, ErrQueueClosed
	}
	if err := validation.ValidateOperation(op); err != nil {
		return nil, fmt.Errorf("invalid operation: %w", err)
	}

	incoming := op.Clone()
	if err := q.fillDefaults(incoming); err != nil {
		return nil, err
	}

	changed := false
	defer func() {
		if changed {
			q.publish()
		}
	}()

	q.mu.Lock()
	defer q.mu.Unlock()

	existing, err := q.findDuplicateLocked(incoming)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		if err := q.store.Put(ctx, incoming); err != nil {
			return nil, fmt.Errorf("failed to persist operation: %w", err)
		}
		q.insertLocked(incoming)
		q.metrics.Inc(syncmetrics.CounterEnqueued, 1)
		q.logger.Debug("operation enqueued",
			"id", incoming.ID,
			"entity", incoming.Entity,
			"action", incoming.Action,
			"priority", incoming.Priority.String(),
		)
		changed = true
		return incoming.Clone(), nil
	}

	q.metrics.Inc(syncmetrics.CounterDeduplicated, 1)

	if q.cfg.DedupPolicy == DedupFirstWins {
		q.logger.Debug("duplicate dropped", "id", incoming.ID, "kept", existing.ID, "entity", existing.Entity)
		return existing.Clone(), nil
	}

	merged := mergeLastWins(existing, incoming)

	// новое содержимое может совпасть с другой ожидающей операцией
	if other := q.hashOwnerLocked(merged); other != nil {
		if err := q.store.Delete(ctx, other.ID); err != nil {
			return nil, fmt.Errorf("failed to delete collapsed operation: %w", err)
		}
		q.removeLocked(other)
		if other.Priority < merged.Priority {
			merged.Priority = other.Priority
		}
		q.metrics.Inc(syncmetrics.CounterDeduplicated, 1)
		q.logger.Debug("duplicate collapsed", "id", merged.ID, "dropped", other.ID, "entity", merged.Entity)
	}

	if err := q.store.Put(ctx, merged); err != nil {
		return nil, fmt.Errorf("failed to persist operation: %w", err)
	}
	q.replaceLocked(existing, merged)
	q.logger.Debug("duplicate merged", "id", merged.ID, "entity", merged.Entity)
	changed = true
	return merged.Clone(), nil
}

func (q *Queue) fillDefaults(op *models.Operation) error {
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.Timestamp.IsZero() {
		op.Timestamp = q.now()
	}
	if op.MaxRetries == 0 {
		op.MaxRetries = q.cfg.DefaultMaxRetries
	}
	if op.DedupHash == "" {
		hash, err := fingerprint.Operation(op.Entity, op.Payload)
		if err != nil {
			return fmt.Errorf("failed to fingerprint operation: %w", err)
		}
		op.DedupHash = hash
	}
	op.Seq = q.seq.Next()
	op.Retries = 0
	op.NextAttemptAt = time.Time{}
	op.LastError = ""
	return nil
}

// findDuplicateLocked ищет ожидающую операцию той же сущности с тем же ID или хешем
func (q *Queue) findDuplicateLocked(op *models.Operation) (*models.Operation, error) {
	if existing, ok := q.ops[op.ID]; ok {
		if existing.Entity != op.Entity {
			return nil, fmt.Errorf("%w: %s", ErrIDConflict, op.ID)
		}
		return existing, nil
	}
	if id, ok := q.byHash[hashKey(op.Entity, op.DedupHash)]; ok {
		return q.ops[id], nil
	}
	return nil, nil
}

// hashOwnerLocked returns another pending operation carrying the dedup hash of op
func (q *Queue) hashOwnerLocked(op *models.Operation) *models.Operation {
	id, ok := q.byHash[hashKey(op.Entity, op.DedupHash)]
	if !ok || id == op.ID {
		return nil
	}
	return q.ops[id]
}

// mergeLastWins keeps identity, position and creation time of existing and
// takes content from incoming. INSERT followed by UPDATE stays an INSERT.
func mergeLastWins(existing, incoming *models.Operation) *models.Operation {
	merged := existing.Clone()
	merged.Payload = incoming.Payload
	merged.DedupHash = incoming.DedupHash
	if !(existing.Action == models.ActionInsert && incoming.Action == models.ActionUpdate) {
		merged.Action = incoming.Action
	}
	if incoming.Priority < merged.Priority {
		merged.Priority = incoming.Priority
	}
	if incoming.BatchGroup != "" {
		merged.BatchGroup = incoming.BatchGroup
	}
	if incoming.MaxRetries > merged.MaxRetries {
		merged.MaxRetries = incoming.MaxRetries
	}
	merged.Retries = 0
	merged.NextAttemptAt = time.Time{}
	merged.LastError = ""
	return merged
}

func (q *Queue) insertLocked(op *models.Operation) {
	q.ops[op.ID] = op
	q.byHash[hashKey(op.Entity, op.DedupHash)] = op.ID
}

func (q *Queue) replaceLocked(old, op *models.Operation) {
	q.removeLocked(old)
	q.insertLocked(op)
}

func (q *Queue) removeLocked(op *models.Operation) {
	delete(q.ops, op.ID)
	key := hashKey(op.Entity, op.DedupHash)
	if q.byHash[key] == op.ID {
		delete(q.byHash, key)
	}
}

// Pending returns a snapshot of pending operations in dispatch order
func (q *Queue) Pending() []*models.Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pendingLocked()
}

func (q *Queue) pendingLocked() []*models.Operation {
	out := make([]*models.Operation, 0, len(q.ops))
	for _, op := range q.ops {
		out = append(out, op.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Len returns the backlog size
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Get returns a pending operation by ID
func (q *Queue) Get(id string) (*models.Operation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	op, ok := q.ops[id]
	if !ok {
		return nil, false
	}
	return op.Clone(), true
}

// Remove deletes a pending operation without dispatching it
func (q *Queue) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	op, ok := q.ops[id]
	if !ok {
		q.mu.Unlock()
		return ErrNotFound
	}
	if err := q.store.Delete(ctx, id); err != nil && !errors.Is(err, storage.ErrOperationNotFound) {
		q.mu.Unlock()
		return fmt.Errorf("failed to delete operation: %w", err)
	}
	q.removeLocked(op)
	q.mu.Unlock()

	q.publish()
	return nil
}

// Clear removes every pending operation
func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	var errs []error
	for _, op := range q.ops {
		if err := q.store.Delete(ctx, op.ID); err != nil && !errors.Is(err, storage.ErrOperationNotFound) {
			errs = append(errs, fmt.Errorf("delete %s: %w", op.ID, err))
			continue
		}
		q.removeLocked(op)
	}
	q.mu.Unlock()

	q.publish()
	return errors.Join(errs...)
}

// Subscribe registers a listener for full queue snapshots
func (q *Queue) Subscribe(fn func(State)) func() {
	return q.listeners.Subscribe(fn)
}

// OnFailure registers a listener for terminal failures
func (q *Queue) OnFailure(fn func(FailureEvent)) func() {
	return q.failures.Subscribe(fn)
}

// Close stops accepting new operations. The store is owned by the caller.
func (q *Queue) Close() {
	q.closed.Store(true)
}

// publish рассылает снимок подписчикам. Вызывать без q.mu.
func (q *Queue) publish() {
	q.mu.Lock()
	state := State{Operations: q.pendingLocked(), Processing: q.processing.Load()}
	q.mu.Unlock()

	q.listeners.Notify(state)
}

func hashKey(entity, hash string) string {
	return entity + "\x00" + hash
}
