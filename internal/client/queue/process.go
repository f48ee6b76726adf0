package queue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/client/syncmetrics"
	"github.com/iudanet/gophsync/internal/models"
)

// ProcessResult summarizes one drain pass
type ProcessResult struct {
	Dispatched int // попыток отправки
	Succeeded  int
	Retried    int
	Dropped    int
	Skipped    int  // нет обработчика
	Deferred   int  // backoff еще не истек
	Busy       bool // другой Process уже выполняется
}

// group операции с одинаковыми (entity, batchGroup)
type group struct {
	entity string
	ops    []*models.Operation
}

// Process drains due operations once. A concurrent call returns immediately
// with Busy set. Dispatch errors are handled per operation and never returned;
// the error result is reserved for a closed queue or a cancelled context.
func (q *Queue) Process(ctx context.Context) (ProcessResult, error) {
	var res ProcessResult

	if q.closed.Load() {
		return res, ErrQueueClosed
	}
	if !q.processing.CompareAndSwap(false, true) {
		res.Busy = true
		return res, nil
	}
	defer q.processing.Store(false)

	now := q.now()
	groups, deferred := q.dueGroups(now)
	res.Deferred = deferred
	if len(groups) == 0 {
		return res, nil
	}

	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		q.processGroup(ctx, g, &res)
	}

	if res.Dispatched > 0 || res.Dropped > 0 {
		q.publish()
	}

	q.logger.Debug("queue processed",
		"dispatched", res.Dispatched,
		"succeeded", res.Succeeded,
		"retried", res.Retried,
		"dropped", res.Dropped,
		"skipped", res.Skipped,
		"deferred", res.Deferred,
	)
	return res, nil
}

// dueGroups группирует готовые к отправке операции.
// Группы упорядочены по лучшему приоритету внутри группы, затем по времени создания.
func (q *Queue) dueGroups(now time.Time) ([]*group, int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	deferred := 0
	byKey := make(map[string]*group)
	for _, op := range q.ops {
		if !op.Due(now) {
			deferred++
			continue
		}
		key := op.Entity + "\x00" + op.BatchGroup
		g, ok := byKey[key]
		if !ok {
			g = &group{entity: op.Entity}
			byKey[key] = g
		}
		g.ops = append(g.ops, op.Clone())
	}

	groups := make([]*group, 0, len(byKey))
	for _, g := range byKey {
		sort.Slice(g.ops, func(i, j int) bool { return g.ops[i].Before(g.ops[j]) })
		groups = append(groups, g)
	}
	// После сортировки ops[0] группы: наивысший приоритет, затем самая ранняя
	sort.Slice(groups, func(i, j int) bool { return groups[i].ops[0].Before(groups[j].ops[0]) })

	return groups, deferred
}

func (q *Queue) processGroup(ctx context.Context, g *group, res *ProcessResult) {
	q.mu.Lock()
	batch := q.batch[g.entity]
	handler, ok := q.handlers[g.entity]
	if !ok {
		handler = q.dispatcher
	}
	q.mu.Unlock()

	if batch != nil && len(g.ops) > 1 {
		res.Dispatched += len(g.ops)
		start := time.Now()
		applied, err := safeBatch(ctx, batch, g.ops)
		q.metrics.ObserveLatency(syncmetrics.LatencyDispatch, time.Since(start))
		q.metrics.Inc(syncmetrics.CounterDispatched, len(g.ops))
		if applied && err == nil {
			for _, op := range g.ops {
				q.complete(ctx, op)
				res.Succeeded++
			}
			return
		}
		q.logger.Warn("batch dispatch failed, retrying individually",
			"entity", g.entity,
			"size", len(g.ops),
			"error", errOrRejected(err),
		)
		// Пакетная попытка не считается неудачей операции:
		// каждая операция сейчас же отправляется индивидуально.
		res.Dispatched -= len(g.ops)
	}

	if handler == nil {
		res.Skipped += len(g.ops)
		q.logger.Warn("no handler registered for entity", "entity", g.entity, "pending", len(g.ops))
		return
	}

	for _, op := range g.ops {
		if ctx.Err() != nil {
			return
		}
		res.Dispatched++
		start := time.Now()
		applied, err := safeHandle(ctx, handler, op)
		q.metrics.ObserveLatency(syncmetrics.LatencyDispatch, time.Since(start))
		q.metrics.Inc(syncmetrics.CounterDispatched, 1)

		if applied && err == nil {
			q.complete(ctx, op)
			res.Succeeded++
			continue
		}
		if ctx.Err() != nil {
			// Остановка: попытка не засчитывается
			res.Dispatched--
			return
		}

		if q.fail(ctx, op, errOrRejected(err)) {
			res.Dropped++
		} else {
			res.Retried++
		}
	}
}

// complete удаляет успешно отправленную операцию, если она не была
// заменена новой версией во время отправки
func (q *Queue) complete(ctx context.Context, sent *models.Operation) {
	q.metrics.Inc(syncmetrics.CounterSucceeded, 1)

	q.mu.Lock()
	defer q.mu.Unlock()

	current, ok := q.ops[sent.ID]
	if !ok {
		return
	}
	if !sameContent(current, sent) {
		q.logger.Debug("operation replaced during dispatch, keeping newer version", "id", sent.ID)
		return
	}

	if err := q.store.Delete(ctx, sent.ID); err != nil && !errors.Is(err, storage.ErrOperationNotFound) {
		// В памяти оставляем: при перезапуске запись снова попадет в очередь
		q.logger.Error("failed to delete dispatched operation", "id", sent.ID, "error", err)
		return
	}
	q.removeLocked(current)
	q.logger.Debug("operation applied", "id", sent.ID, "entity", sent.Entity)
}

// fail применяет retry-политику. Возвращает true, если операция снята с очереди.
func (q *Queue) fail(ctx context.Context, sent *models.Operation, cause error) bool {
	class := Classify(cause)

	q.mu.Lock()
	current, ok := q.ops[sent.ID]
	if !ok || !sameContent(current, sent) {
		q.mu.Unlock()
		return false
	}

	updated := current.Clone()
	updated.Retries++
	updated.LastError = cause.Error()

	limit := retryLimit(class, updated.MaxRetries)
	if updated.Retries >= limit || class == ClassClient {
		ev := q.dropLocked(ctx, current, updated, class, cause)
		q.mu.Unlock()
		q.failures.Notify(ev)
		return true
	}

	delay := q.backoff.Delay(updated.Retries - 1)
	var ra retryAfter
	if errors.As(cause, &ra) && ra.RetryDelay() > delay {
		delay = min(ra.RetryDelay(), q.cfg.MaxDelay)
	}
	updated.NextAttemptAt = q.now().Add(delay)
	if err := q.store.Put(ctx, updated); err != nil {
		q.logger.Error("failed to persist retry state", "id", updated.ID, "error", err)
	}
	q.ops[updated.ID] = updated
	q.mu.Unlock()

	q.metrics.Inc(syncmetrics.CounterRetried, 1)
	q.logger.Warn("operation dispatch failed, will retry",
		"id", updated.ID,
		"entity", updated.Entity,
		"class", string(class),
		"retries", updated.Retries,
		"max_retries", updated.MaxRetries,
		"delay", delay,
		"error", cause,
	)
	return false
}

// dropLocked переносит операцию в dead letters и возвращает событие отказа
func (q *Queue) dropLocked(ctx context.Context, current, updated *models.Operation, class ErrorClass, cause error) FailureEvent {
	at := q.now()
	dl := &models.DeadLetter{
		Operation: updated,
		Reason:    cause.Error(),
		Class:     string(class),
		FailedAt:  at,
	}
	if err := q.store.PutDead(ctx, dl); err != nil {
		q.logger.Error("failed to persist dead letter", "id", updated.ID, "error", err)
	}
	if err := q.store.Delete(ctx, updated.ID); err != nil && !errors.Is(err, storage.ErrOperationNotFound) {
		q.logger.Error("failed to delete dropped operation", "id", updated.ID, "error", err)
	}
	q.removeLocked(current)

	q.metrics.Inc(syncmetrics.CounterDropped, 1)
	q.logger.Error("operation dropped",
		"id", updated.ID,
		"entity", updated.Entity,
		"class", string(class),
		"retries", updated.Retries,
		"error", cause,
	)
	q.metrics.Log(slog.LevelError, "queue", "operation dropped", "id", updated.ID, "class", string(class))

	return FailureEvent{At: at, Err: cause, Operation: updated.Clone(), Class: class}
}

func sameContent(a, b *models.Operation) bool {
	return a.Action == b.Action && a.DedupHash == b.DedupHash && bytes.Equal(a.Payload, b.Payload)
}

func errOrRejected(err error) error {
	if err == nil {
		return ErrRejected
	}
	return err
}

// safeHandle защищает очередь от паники обработчика
func safeHandle(ctx context.Context, h Handler, op *models.Operation) (applied bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			applied, err = false, fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, op.Clone())
}

func safeBatch(ctx context.Context, h BatchHandler, ops []*models.Operation) (applied bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			applied, err = false, fmt.Errorf("batch handler panic: %v", r)
		}
	}()
	clones := make([]*models.Operation, len(ops))
	for i, op := range ops {
		clones[i] = op.Clone()
	}
	return h(ctx, clones)
}
