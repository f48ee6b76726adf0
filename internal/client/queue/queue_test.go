package queue

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophsync/internal/client/storage/boltdb"
	"github.com/iudanet/gophsync/internal/client/storage/memory"
	"github.com/iudanet/gophsync/internal/client/syncmetrics"
	"github.com/iudanet/gophsync/internal/models"
)

type testClock struct {
	now time.Time
	mu  sync.Mutex
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestQueue(t *testing.T, store Store, mutate func(*Config)) (*Queue, *testClock) {
	t.Helper()

	if store == nil {
		store = memory.New()
	}
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	clk := newTestClock()
	q, err := New(context.Background(), store, cfg, nil,
		WithClock(clk.Now),
		WithRand(rand.New(rand.NewPCG(1, 2))),
	)
	require.NoError(t, err)
	return q, clk
}

func newOp(id, entity string, action models.Action, payload string, prio models.Priority) *models.Operation {
	return &models.Operation{
		ID:       id,
		Entity:   entity,
		Action:   action,
		Payload:  json.RawMessage(payload),
		Priority: prio,
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(context.Background(), nil, DefaultConfig(), nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.DedupPolicy = "random"
	_, err = New(context.Background(), memory.New(), cfg, nil)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.MaxDelay = cfg.BaseDelay / 2
	_, err = New(context.Background(), memory.New(), cfg, nil)
	assert.Error(t, err)
}

func TestAdd_FillsDefaults(t *testing.T) {
	q, clk := newTestQueue(t, nil, nil)

	op, err := q.Add(context.Background(), newOp("", "products", models.ActionInsert, `{"name":"tea"}`, models.PriorityNormal))
	require.NoError(t, err)

	assert.NotEmpty(t, op.ID)
	assert.Equal(t, clk.Now(), op.Timestamp)
	assert.Equal(t, models.DefaultMaxRetries, op.MaxRetries)
	assert.Len(t, op.DedupHash, 64)
	assert.Positive(t, op.Seq)
	assert.Equal(t, 1, q.Len())
}

func TestAdd_RejectsInvalid(t *testing.T) {
	q, _ := newTestQueue(t, nil, nil)

	_, err := q.Add(context.Background(), newOp("x", "", models.ActionInsert, `{}`, models.PriorityNormal))
	assert.Error(t, err)
	assert.Equal(t, 0, q.Len())
}

func TestAdd_DedupSameIDLastWins(t *testing.T) {
	q, _ := newTestQueue(t, nil, nil)
	ctx := context.Background()

	_, err := q.Add(ctx, newOp("p1", "products", models.ActionUpdate, `{"price":10}`, models.PriorityNormal))
	require.NoError(t, err)
	_, err = q.Add(ctx, newOp("p1", "products", models.ActionUpdate, `{"price":12}`, models.PriorityNormal))
	require.NoError(t, err)

	pending := q.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "p1", pending[0].ID)
	assert.JSONEq(t, `{"price":12}`, string(pending[0].Payload))
}

func TestAdd_DedupByHash(t *testing.T) {
	q, _ := newTestQueue(t, nil, nil)
	ctx := context.Background()

	first, err := q.Add(ctx, newOp("a", "products", models.ActionUpdate, `{"price":10,"sku":"x"}`, models.PriorityLow))
	require.NoError(t, err)
	second, err := q.Add(ctx, newOp("b", "products", models.ActionUpdate, `{"sku":"x","price":10}`, models.PriorityHigh))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "same content collapses onto the stored operation")
	pending := q.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, models.PriorityHigh, pending[0].Priority, "merged operation keeps the higher priority")

	// Другая сущность с тем же payload не дубликат
	_, err = q.Add(ctx, newOp("c", "customers", models.ActionUpdate, `{"price":10,"sku":"x"}`, models.PriorityLow))
	require.NoError(t, err)
	assert.Equal(t, 2, q.Len())
}

func TestAdd_IDMergeCollapsesHashCollision(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "queue.db")
	ctx := context.Background()

	store, err := boltdb.New(ctx, dbPath, nil)
	require.NoError(t, err)
	require.NoError(t, store.Init(ctx))
	defer store.Close()

	q, _ := newTestQueue(t, store, nil)
	_, err = q.Add(ctx, newOp("a", "products", models.ActionUpdate, `{"x":10}`, models.PriorityNormal))
	require.NoError(t, err)
	_, err = q.Add(ctx, newOp("b", "products", models.ActionUpdate, `{"x":12}`, models.PriorityHigh))
	require.NoError(t, err)

	// a получает то же содержимое, что уже ждет в b
	merged, err := q.Add(ctx, newOp("a", "products", models.ActionUpdate, `{"x":12}`, models.PriorityNormal))
	require.NoError(t, err)

	pending := q.Pending()
	require.Len(t, pending, 1, "one logical change, one pending entry")
	assert.Equal(t, "a", pending[0].ID)
	assert.Equal(t, merged.DedupHash, pending[0].DedupHash)
	assert.Equal(t, models.PriorityHigh, pending[0].Priority)
	_, ok := q.Get("b")
	assert.False(t, ok)

	stored, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "a", stored[0].ID)

	// индекс по хешу указывает на оставшуюся операцию
	again, err := q.Add(ctx, newOp("c", "products", models.ActionUpdate, `{"x":12}`, models.PriorityLow))
	require.NoError(t, err)
	assert.Equal(t, "a", again.ID)
	assert.Equal(t, 1, q.Len())
}

func TestAdd_DedupFirstWins(t *testing.T) {
	q, _ := newTestQueue(t, nil, func(c *Config) { c.DedupPolicy = DedupFirstWins })
	ctx := context.Background()

	_, err := q.Add(ctx, newOp("p1", "products", models.ActionUpdate, `{"price":10}`, models.PriorityNormal))
	require.NoError(t, err)
	kept, err := q.Add(ctx, newOp("p1", "products", models.ActionUpdate, `{"price":12}`, models.PriorityNormal))
	require.NoError(t, err)

	assert.JSONEq(t, `{"price":10}`, string(kept.Payload))
	require.Len(t, q.Pending(), 1)
	assert.JSONEq(t, `{"price":10}`, string(q.Pending()[0].Payload))
}

func TestAdd_InsertThenUpdateStaysInsert(t *testing.T) {
	q, _ := newTestQueue(t, nil, nil)
	ctx := context.Background()

	_, err := q.Add(ctx, newOp("p1", "products", models.ActionInsert, `{"price":10}`, models.PriorityNormal))
	require.NoError(t, err)
	merged, err := q.Add(ctx, newOp("p1", "products", models.ActionUpdate, `{"price":11}`, models.PriorityNormal))
	require.NoError(t, err)
	assert.Equal(t, models.ActionInsert, merged.Action)

	merged, err = q.Add(ctx, newOp("p1", "products", models.ActionDelete, `{"price":11}`, models.PriorityNormal))
	require.NoError(t, err)
	assert.Equal(t, models.ActionDelete, merged.Action)
}

func TestAdd_IDConflictAcrossEntities(t *testing.T) {
	q, _ := newTestQueue(t, nil, nil)
	ctx := context.Background()

	_, err := q.Add(ctx, newOp("x1", "products", models.ActionInsert, `{}`, models.PriorityNormal))
	require.NoError(t, err)
	_, err = q.Add(ctx, newOp("x1", "customers", models.ActionInsert, `{"n":1}`, models.PriorityNormal))
	assert.ErrorIs(t, err, ErrIDConflict)
}

func TestAdd_PersistFailureLeavesQueueUnchanged(t *testing.T) {
	store := &StoreMock{
		GetAllFunc: func(ctx context.Context) ([]*models.Operation, error) { return nil, nil },
		PutFunc: func(ctx context.Context, op *models.Operation) error {
			return errors.New("disk full")
		},
	}
	q, _ := newTestQueue(t, store, nil)

	_, err := q.Add(context.Background(), newOp("a", "products", models.ActionInsert, `{}`, models.PriorityNormal))
	assert.Error(t, err)
	assert.Equal(t, 0, q.Len())
	assert.Len(t, store.PutCalls(), 1)
}

func TestAdd_Closed(t *testing.T) {
	q, _ := newTestQueue(t, nil, nil)
	q.Close()

	_, err := q.Add(context.Background(), newOp("a", "products", models.ActionInsert, `{}`, models.PriorityNormal))
	assert.ErrorIs(t, err, ErrQueueClosed)
	_, err = q.Process(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestNew_ReconcilesFromStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "queue.db")
	ctx := context.Background()

	open := func() *boltdb.Storage {
		s, err := boltdb.New(ctx, dbPath, nil)
		require.NoError(t, err)
		require.NoError(t, s.Init(ctx))
		return s
	}

	store := open()
	q, _ := newTestQueue(t, store, nil)
	for _, op := range []*models.Operation{
		newOp("a", "products", models.ActionInsert, `{"price":1}`, models.PriorityLow),
		newOp("b", "products", models.ActionUpdate, `{"price":2}`, models.PriorityCritical),
		newOp("c", "sales", models.ActionDelete, `{"id":3}`, models.PriorityNormal),
	} {
		_, err := q.Add(ctx, op)
		require.NoError(t, err)
	}
	before := q.Pending()
	require.NoError(t, store.Close())

	// Имитация перезапуска процесса
	reopened := open()
	defer reopened.Close()
	q2, _ := newTestQueue(t, reopened, nil)
	after := q2.Pending()

	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.JSONEq(t, string(before[i].Payload), string(after[i].Payload))
		assert.Equal(t, before[i].Priority, after[i].Priority)
	}

	// Последовательность продолжается после максимального сохраненного Seq
	op, err := q2.Add(ctx, newOp("d", "products", models.ActionInsert, `{"price":4}`, models.PriorityNormal))
	require.NoError(t, err)
	for _, prev := range before {
		assert.Greater(t, op.Seq, prev.Seq)
	}
}

func TestProcess_PriorityOrder(t *testing.T) {
	q, _ := newTestQueue(t, nil, nil)
	ctx := context.Background()

	_, err := q.Add(ctx, newOp("low", "products", models.ActionUpdate, `{"v":1}`, models.PriorityLow))
	require.NoError(t, err)
	_, err = q.Add(ctx, newOp("crit", "customers", models.ActionUpdate, `{"v":2}`, models.PriorityCritical))
	require.NoError(t, err)
	_, err = q.Add(ctx, newOp("norm", "sales", models.ActionUpdate, `{"v":3}`, models.PriorityNormal))
	require.NoError(t, err)

	var order []string
	q.SetDispatcher(func(ctx context.Context, op *models.Operation) (bool, error) {
		order = append(order, op.ID)
		return true, nil
	})

	res, err := q.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"crit", "norm", "low"}, order)
	assert.Equal(t, 3, res.Succeeded)
	assert.Equal(t, 0, q.Len())
}

func TestProcess_GroupOrderedByBestPriorityThenFIFO(t *testing.T) {
	q, clk := newTestQueue(t, nil, nil)
	ctx := context.Background()

	add := func(id, entity string, prio models.Priority) {
		_, err := q.Add(ctx, newOp(id, entity, models.ActionUpdate, `{"id":"`+id+`"}`, prio))
		require.NoError(t, err)
		clk.Advance(time.Millisecond)
	}
	add("p-low-1", "products", models.PriorityLow)
	add("s-norm", "sales", models.PriorityNormal)
	add("p-low-2", "products", models.PriorityLow)
	add("p-high", "products", models.PriorityHigh)

	var order []string
	q.SetDispatcher(func(ctx context.Context, op *models.Operation) (bool, error) {
		order = append(order, op.ID)
		return true, nil
	})

	_, err := q.Process(ctx)
	require.NoError(t, err)
	// products содержит high, поэтому вся группа идет раньше sales
	assert.Equal(t, []string{"p-high", "p-low-1", "p-low-2", "s-norm"}, order)
}

func TestProcess_FalseThreeTimesThenTrue(t *testing.T) {
	q, clk := newTestQueue(t, nil, nil)
	ctx := context.Background()

	op := newOp("p1", "products", models.ActionUpdate, `{"price":10}`, models.PriorityNormal)
	op.MaxRetries = 5
	_, err := q.Add(ctx, op)
	require.NoError(t, err)

	attempts := 0
	var seenRetries []int
	q.SetDispatcher(func(ctx context.Context, op *models.Operation) (bool, error) {
		attempts++
		seenRetries = append(seenRetries, op.Retries)
		return attempts > 3, nil
	})

	for i := 0; i < 4; i++ {
		_, err := q.Process(ctx)
		require.NoError(t, err)
		clk.Advance(2 * time.Minute)
	}

	assert.Equal(t, 4, attempts)
	assert.Equal(t, []int{0, 1, 2, 3}, seenRetries, "exactly three retries recorded before success")
	assert.Equal(t, 0, q.Len())

	dead, err := q.DeadLetters(ctx)
	require.NoError(t, err)
	assert.Empty(t, dead)
}

func TestProcess_BackoffDefersRetry(t *testing.T) {
	q, clk := newTestQueue(t, nil, func(c *Config) { c.Jitter = JitterNone })
	ctx := context.Background()

	_, err := q.Add(ctx, newOp("p1", "products", models.ActionUpdate, `{}`, models.PriorityNormal))
	require.NoError(t, err)

	calls := 0
	q.SetDispatcher(func(ctx context.Context, op *models.Operation) (bool, error) {
		calls++
		return false, statusErr(503)
	})

	res, err := q.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Retried)

	pending := q.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Retries)
	assert.Equal(t, clk.Now().Add(time.Second), pending[0].NextAttemptAt)
	assert.Contains(t, pending[0].LastError, "503")

	// До истечения задержки операция не отправляется
	res, err = q.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deferred)
	assert.Equal(t, 1, calls)

	clk.Advance(time.Second)
	_, err = q.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, clk.Now().Add(2*time.Second), q.Pending()[0].NextAttemptAt)
}

func TestProcess_ExhaustedRetriesGoToDeadLetters(t *testing.T) {
	q, clk := newTestQueue(t, nil, nil)
	ctx := context.Background()

	op := newOp("p1", "products", models.ActionUpdate, `{}`, models.PriorityNormal)
	op.MaxRetries = 3
	_, err := q.Add(ctx, op)
	require.NoError(t, err)

	var events []FailureEvent
	q.OnFailure(func(ev FailureEvent) { events = append(events, ev) })
	q.SetDispatcher(func(ctx context.Context, op *models.Operation) (bool, error) {
		return false, statusErr(500)
	})

	for i := 0; i < 3; i++ {
		_, err := q.Process(ctx)
		require.NoError(t, err)
		clk.Advance(time.Hour)
	}

	assert.Equal(t, 0, q.Len())
	require.Len(t, events, 1)
	assert.Equal(t, ClassTransient, events[0].Class)
	assert.Equal(t, 3, events[0].Operation.Retries)

	dead, err := q.DeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "p1", dead[0].Operation.ID)
	assert.Equal(t, string(ClassTransient), dead[0].Class)
}

func TestProcess_ClientErrorDropsImmediately(t *testing.T) {
	q, _ := newTestQueue(t, nil, nil)
	ctx := context.Background()

	_, err := q.Add(ctx, newOp("p1", "products", models.ActionUpdate, `{}`, models.PriorityNormal))
	require.NoError(t, err)

	var events []FailureEvent
	q.OnFailure(func(ev FailureEvent) { events = append(events, ev) })
	q.SetDispatcher(func(ctx context.Context, op *models.Operation) (bool, error) {
		return false, statusErr(422)
	})

	res, err := q.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, 0, q.Len())
	require.Len(t, events, 1)
	assert.Equal(t, ClassClient, events[0].Class)
}

func TestProcess_UnclassifiedRetriesHalf(t *testing.T) {
	q, clk := newTestQueue(t, nil, nil)
	ctx := context.Background()

	op := newOp("p1", "products", models.ActionUpdate, `{}`, models.PriorityNormal)
	op.MaxRetries = 5
	_, err := q.Add(ctx, op)
	require.NoError(t, err)

	calls := 0
	q.SetDispatcher(func(ctx context.Context, op *models.Operation) (bool, error) {
		calls++
		return false, errors.New("something odd")
	})

	for i := 0; i < 5; i++ {
		_, err := q.Process(ctx)
		require.NoError(t, err)
		clk.Advance(time.Hour)
	}

	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, q.Len())
}

func TestProcess_ReplayDeadLetter(t *testing.T) {
	q, _ := newTestQueue(t, nil, nil)
	ctx := context.Background()

	_, err := q.Add(ctx, newOp("p1", "products", models.ActionUpdate, `{"price":1}`, models.PriorityNormal))
	require.NoError(t, err)
	q.SetDispatcher(func(ctx context.Context, op *models.Operation) (bool, error) {
		return false, statusErr(400)
	})
	_, err = q.Process(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, q.Len())

	replayed, err := q.Replay(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, replayed.Retries)
	assert.Empty(t, replayed.LastError)
	assert.Equal(t, 1, q.Len())

	dead, err := q.DeadLetters(ctx)
	require.NoError(t, err)
	assert.Empty(t, dead)

	_, err = q.Replay(ctx, "p1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProcess_HandlerPrecedence(t *testing.T) {
	q, _ := newTestQueue(t, nil, nil)
	ctx := context.Background()

	_, err := q.Add(ctx, newOp("p1", "products", models.ActionUpdate, `{}`, models.PriorityNormal))
	require.NoError(t, err)
	_, err = q.Add(ctx, newOp("s1", "sales", models.ActionUpdate, `{}`, models.PriorityNormal))
	require.NoError(t, err)

	var viaHandler, viaDispatcher []string
	q.Register("products", func(ctx context.Context, op *models.Operation) (bool, error) {
		viaHandler = append(viaHandler, op.ID)
		return true, nil
	})
	q.SetDispatcher(func(ctx context.Context, op *models.Operation) (bool, error) {
		viaDispatcher = append(viaDispatcher, op.ID)
		return true, nil
	})

	_, err = q.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, viaHandler)
	assert.Equal(t, []string{"s1"}, viaDispatcher)
}

func TestProcess_NoHandlerSkips(t *testing.T) {
	q, _ := newTestQueue(t, nil, nil)
	ctx := context.Background()

	_, err := q.Add(ctx, newOp("p1", "products", models.ActionUpdate, `{}`, models.PriorityNormal))
	require.NoError(t, err)

	res, err := q.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 0, q.Pending()[0].Retries)
}

func TestProcess_BatchHandler(t *testing.T) {
	q, _ := newTestQueue(t, nil, nil)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		op := newOp(id, "products", models.ActionUpdate, `{"id":"`+id+`"}`, models.PriorityNormal)
		op.BatchGroup = "import-1"
		_, err := q.Add(ctx, op)
		require.NoError(t, err)
	}

	var batches [][]string
	q.RegisterBatch("products", func(ctx context.Context, ops []*models.Operation) (bool, error) {
		ids := make([]string, len(ops))
		for i, op := range ops {
			ids[i] = op.ID
		}
		batches = append(batches, ids)
		return true, nil
	})

	res, err := q.Process(ctx)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, batches[0])
	assert.Equal(t, 3, res.Succeeded)
	assert.Equal(t, 0, q.Len())
}

func TestProcess_BatchFailureFallsBackToIndividual(t *testing.T) {
	q, _ := newTestQueue(t, nil, nil)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		_, err := q.Add(ctx, newOp(id, "products", models.ActionUpdate, `{"id":"`+id+`"}`, models.PriorityNormal))
		require.NoError(t, err)
	}

	q.RegisterBatch("products", func(ctx context.Context, ops []*models.Operation) (bool, error) {
		return false, errors.New("bulk endpoint unavailable")
	})
	var individual []string
	q.Register("products", func(ctx context.Context, op *models.Operation) (bool, error) {
		individual = append(individual, op.ID)
		return op.ID == "a", nil
	})

	res, err := q.Process(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, individual)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Retried)

	pending := q.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "b", pending[0].ID)
	assert.Equal(t, 1, pending[0].Retries)
}

func TestProcess_ConcurrentCallIsNoop(t *testing.T) {
	q, _ := newTestQueue(t, nil, nil)
	ctx := context.Background()

	_, err := q.Add(ctx, newOp("p1", "products", models.ActionUpdate, `{}`, models.PriorityNormal))
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	q.SetDispatcher(func(ctx context.Context, op *models.Operation) (bool, error) {
		close(entered)
		<-release
		return true, nil
	})

	done := make(chan ProcessResult)
	go func() {
		res, _ := q.Process(ctx)
		done <- res
	}()

	<-entered
	res, err := q.Process(ctx)
	require.NoError(t, err)
	assert.True(t, res.Busy)
	assert.Equal(t, 0, res.Dispatched)

	close(release)
	first := <-done
	assert.Equal(t, 1, first.Succeeded)
}

func TestProcess_ReplacedDuringDispatchKeepsNewer(t *testing.T) {
	q, _ := newTestQueue(t, nil, nil)
	ctx := context.Background()

	_, err := q.Add(ctx, newOp("p1", "products", models.ActionUpdate, `{"price":10}`, models.PriorityNormal))
	require.NoError(t, err)

	q.SetDispatcher(func(ctx context.Context, op *models.Operation) (bool, error) {
		// Пользователь изменил запись, пока шла отправка
		_, err := q.Add(ctx, newOp("p1", "products", models.ActionUpdate, `{"price":15}`, models.PriorityNormal))
		require.NoError(t, err)
		return true, nil
	})

	_, err = q.Process(ctx)
	require.NoError(t, err)

	pending := q.Pending()
	require.Len(t, pending, 1)
	assert.JSONEq(t, `{"price":15}`, string(pending[0].Payload))
}

func TestProcess_HandlerPanicIsRetried(t *testing.T) {
	q, _ := newTestQueue(t, nil, nil)
	ctx := context.Background()

	_, err := q.Add(ctx, newOp("p1", "products", models.ActionUpdate, `{}`, models.PriorityNormal))
	require.NoError(t, err)
	q.SetDispatcher(func(ctx context.Context, op *models.Operation) (bool, error) {
		panic("nil map")
	})

	var res ProcessResult
	assert.NotPanics(t, func() { res, err = q.Process(ctx) })
	require.NoError(t, err)
	assert.Equal(t, 1, res.Retried)
	assert.Contains(t, q.Pending()[0].LastError, "panic")
}

func TestProcess_CancelledContext(t *testing.T) {
	q, _ := newTestQueue(t, nil, nil)

	_, err := q.Add(context.Background(), newOp("p1", "products", models.ActionUpdate, `{}`, models.PriorityNormal))
	require.NoError(t, err)
	q.SetDispatcher(func(ctx context.Context, op *models.Operation) (bool, error) {
		t.Fatal("must not dispatch with cancelled context")
		return false, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = q.Process(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, q.Len())
}

func TestRemoveAndClear(t *testing.T) {
	q, _ := newTestQueue(t, nil, nil)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := q.Add(ctx, newOp(id, "products", models.ActionUpdate, `{"id":"`+id+`"}`, models.PriorityNormal))
		require.NoError(t, err)
	}

	require.NoError(t, q.Remove(ctx, "a"))
	assert.ErrorIs(t, q.Remove(ctx, "a"), ErrNotFound)
	assert.Equal(t, 2, q.Len())

	_, ok := q.Get("b")
	assert.True(t, ok)

	require.NoError(t, q.Clear(ctx))
	assert.Equal(t, 0, q.Len())
}

func TestSubscribe_ReceivesSnapshots(t *testing.T) {
	q, _ := newTestQueue(t, nil, nil)
	ctx := context.Background()

	var sizes []int
	unsubscribe := q.Subscribe(func(s State) { sizes = append(sizes, len(s.Operations)) })

	_, err := q.Add(ctx, newOp("a", "products", models.ActionUpdate, `{"v":1}`, models.PriorityNormal))
	require.NoError(t, err)
	_, err = q.Add(ctx, newOp("b", "products", models.ActionUpdate, `{"v":2}`, models.PriorityNormal))
	require.NoError(t, err)
	require.NoError(t, q.Remove(ctx, "a"))

	unsubscribe()
	_, err = q.Add(ctx, newOp("c", "products", models.ActionUpdate, `{"v":3}`, models.PriorityNormal))
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 1}, sizes)
}

func TestMetricsRecorded(t *testing.T) {
	rec := syncmetrics.New()
	clk := newTestClock()
	q, err := New(context.Background(), memory.New(), DefaultConfig(), nil, WithClock(clk.Now), WithMetrics(rec))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = q.Add(ctx, newOp("a", "products", models.ActionUpdate, `{"v":1}`, models.PriorityNormal))
	require.NoError(t, err)
	_, err = q.Add(ctx, newOp("a", "products", models.ActionUpdate, `{"v":2}`, models.PriorityNormal))
	require.NoError(t, err)
	q.SetDispatcher(func(ctx context.Context, op *models.Operation) (bool, error) { return true, nil })
	_, err = q.Process(ctx)
	require.NoError(t, err)

	snap := rec.Snapshot()
	assert.Equal(t, int64(1), snap.Counters[syncmetrics.CounterEnqueued])
	assert.Equal(t, int64(1), snap.Counters[syncmetrics.CounterDeduplicated])
	assert.Equal(t, int64(1), snap.Counters[syncmetrics.CounterSucceeded])
	assert.Equal(t, 1, snap.Latency[syncmetrics.LatencyDispatch].Count)
}

func TestPending_SortedForDispatch(t *testing.T) {
	q, clk := newTestQueue(t, nil, nil)
	ctx := context.Background()

	prios := []models.Priority{models.PriorityLow, models.PriorityCritical, models.PriorityNormal, models.PriorityHigh}
	for i, p := range prios {
		_, err := q.Add(ctx, newOp(string(rune('a'+i)), "products", models.ActionUpdate, `{"i":`+string(rune('0'+i))+`}`, p))
		require.NoError(t, err)
		clk.Advance(time.Second)
	}

	pending := q.Pending()
	got := make([]models.Priority, len(pending))
	for i, op := range pending {
		got[i] = op.Priority
	}
	assert.True(t, sort.SliceIsSorted(got, func(i, j int) bool { return got[i] < got[j] }))
}
