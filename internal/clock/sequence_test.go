package clock

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSequence(t *testing.T) {
	s := NewSequence()

	require.NotNil(t, s)
	assert.Equal(t, int64(0), s.Current())

	_, err := uuid.Parse(s.NodeID())
	assert.NoError(t, err, "node id should be a valid UUID")
}

func TestSequence_NextIsStrictlyIncreasing(t *testing.T) {
	s := NewSequenceWithNodeID("node-1")

	prev := s.Next()
	for i := 0; i < 100; i++ {
		next := s.Next()
		assert.Greater(t, next, prev)
		prev = next
	}
	assert.Equal(t, "node-1", s.NodeID())
}

func TestSequence_Observe(t *testing.T) {
	tests := []struct {
		name     string
		start    int
		observed int64
		wantNext int64
	}{
		{name: "observed ahead of local", start: 2, observed: 10, wantNext: 11},
		{name: "observed behind local", start: 5, observed: 3, wantNext: 6},
		{name: "observed equal to local", start: 4, observed: 4, wantNext: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSequenceWithNodeID("n")
			for i := 0; i < tt.start; i++ {
				s.Next()
			}

			s.Observe(tt.observed)

			assert.Equal(t, tt.wantNext, s.Next())
		})
	}
}

func TestSequence_ConcurrentNextUnique(t *testing.T) {
	s := NewSequence()

	const workers = 8
	const perWorker = 250

	var mu sync.Mutex
	seen := make(map[int64]struct{}, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				v := s.Next()
				mu.Lock()
				seen[v] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
	assert.Equal(t, int64(workers*perWorker), s.Current())
}
