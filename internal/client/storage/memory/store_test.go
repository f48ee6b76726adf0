package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/client/storage/storagetest"
)

func TestStore_Suite(t *testing.T) {
	storagetest.Run(t, storagetest.Factory{
		Open: func(t *testing.T, dir string) storage.Store {
			s := New()
			require.NoError(t, s.Init(context.Background()))
			return s
		},
	})
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()

	op := storagetest.NewOperation("a", "products", 1)
	require.NoError(t, s.Put(ctx, op))
	op.Retries = 42

	ops, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, 0, ops[0].Retries)

	ops[0].Retries = 7
	again, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, again[0].Retries)
}
