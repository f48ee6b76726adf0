// Package storagetest contains a behavioural suite shared by all store backends.
package storagetest

import (
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/models"
)

// Factory opens an initialized store rooted at dir. Opening the same dir
// twice must expose the same data when Durable is set.
// Stores are closed by the factory through t.Cleanup; Close must be idempotent.
type Factory struct {
	Open    func(t *testing.T, dir string) storage.Store
	Durable bool
}

// NewOperation builds a valid operation for store tests
func NewOperation(id, entity string, price int) *models.Operation {
	return &models.Operation{
		ID:         id,
		Entity:     entity,
		Action:     models.ActionUpdate,
		Payload:    json.RawMessage(`{"price":` + itoa(price) + `}`),
		Timestamp:  time.Date(2024, 1, 1, 12, 0, price, 0, time.UTC),
		Seq:        int64(price),
		MaxRetries: models.DefaultMaxRetries,
		Priority:   models.PriorityNormal,
		DedupHash:  "hash-" + id,
	}
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func sortByID(ops []*models.Operation) {
	sort.Slice(ops, func(i, j int) bool { return ops[i].ID < ops[j].ID })
}

// Run executes the shared suite
func Run(t *testing.T, f Factory) {
	t.Helper()
	ctx := context.Background()

	t.Run("put and get all", func(t *testing.T) {
		s := f.Open(t, t.TempDir())

		require.NoError(t, s.Put(ctx, NewOperation("a", "products", 1)))
		require.NoError(t, s.Put(ctx, NewOperation("b", "customers", 2)))

		ops, err := s.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, ops, 2)
		sortByID(ops)
		assert.Equal(t, "a", ops[0].ID)
		assert.Equal(t, "customers", ops[1].Entity)
		assert.JSONEq(t, `{"price":2}`, string(ops[1].Payload))
	})

	t.Run("put replaces by id", func(t *testing.T) {
		s := f.Open(t, t.TempDir())

		require.NoError(t, s.Put(ctx, NewOperation("p1", "products", 10)))
		updated := NewOperation("p1", "products", 12)
		updated.Retries = 2
		updated.LastError = "boom"
		require.NoError(t, s.Put(ctx, updated))

		ops, err := s.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, ops, 1)
		assert.JSONEq(t, `{"price":12}`, string(ops[0].Payload))
		assert.Equal(t, 2, ops[0].Retries)
		assert.Equal(t, "boom", ops[0].LastError)
	})

	t.Run("delete", func(t *testing.T) {
		s := f.Open(t, t.TempDir())

		require.NoError(t, s.Put(ctx, NewOperation("a", "products", 1)))
		require.NoError(t, s.Delete(ctx, "a"))

		ops, err := s.GetAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, ops)

		assert.ErrorIs(t, s.Delete(ctx, "a"), storage.ErrOperationNotFound)
	})

	t.Run("empty store", func(t *testing.T) {
		s := f.Open(t, t.TempDir())

		ops, err := s.GetAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, ops)
	})

	t.Run("dead letters", func(t *testing.T) {
		s := f.Open(t, t.TempDir())

		failedAt := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, s.PutDead(ctx, &models.DeadLetter{
			Operation: NewOperation("d1", "products", 3),
			Reason:    "409 conflict",
			Class:     "client",
			FailedAt:  failedAt,
		}))

		dead, err := s.GetDead(ctx)
		require.NoError(t, err)
		require.Len(t, dead, 1)
		assert.Equal(t, "d1", dead[0].Operation.ID)
		assert.Equal(t, "client", dead[0].Class)
		assert.True(t, failedAt.Equal(dead[0].FailedAt))

		require.NoError(t, s.DeleteDead(ctx, "d1"))
		assert.ErrorIs(t, s.DeleteDead(ctx, "d1"), storage.ErrOperationNotFound)

		dead, err = s.GetDead(ctx)
		require.NoError(t, err)
		assert.Empty(t, dead)
	})

	t.Run("watermarks", func(t *testing.T) {
		s := f.Open(t, t.TempDir())

		ts, err := s.GetWatermark(ctx, "products")
		require.NoError(t, err)
		assert.True(t, ts.IsZero())

		mark := time.Date(2024, 3, 1, 10, 30, 0, 123, time.UTC)
		require.NoError(t, s.SaveWatermark(ctx, "products", mark))

		ts, err = s.GetWatermark(ctx, "products")
		require.NoError(t, err)
		assert.True(t, mark.Equal(ts), "got %v want %v", ts, mark)
	})

	t.Run("closed store", func(t *testing.T) {
		s := f.Open(t, t.TempDir())
		require.NoError(t, s.Close())
		require.NoError(t, s.Close())

		assert.ErrorIs(t, s.Put(ctx, NewOperation("a", "products", 1)), storage.ErrStorageClosed)
		_, err := s.GetAll(ctx)
		assert.ErrorIs(t, err, storage.ErrStorageClosed)
	})

	if !f.Durable {
		return
	}

	t.Run("survives reopen", func(t *testing.T) {
		dir := t.TempDir()
		s := f.Open(t, dir)

		want := []*models.Operation{
			NewOperation("a", "products", 1),
			NewOperation("b", "products", 2),
			NewOperation("c", "sales", 3),
		}
		for _, op := range want {
			require.NoError(t, s.Put(ctx, op))
		}
		require.NoError(t, s.SaveWatermark(ctx, "sales", time.Unix(1700000000, 0)))
		require.NoError(t, s.Close())

		reopened := f.Open(t, dir)
		got, err := reopened.GetAll(ctx)
		require.NoError(t, err)
		sortByID(got)
		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].ID, got[i].ID)
			assert.JSONEq(t, string(want[i].Payload), string(got[i].Payload))
			assert.Equal(t, want[i].Seq, got[i].Seq)
			assert.Equal(t, want[i].Priority, got[i].Priority)
		}

		ts, err := reopened.GetWatermark(ctx, "sales")
		require.NoError(t, err)
		assert.Equal(t, int64(1700000000), ts.Unix())
	})
}
