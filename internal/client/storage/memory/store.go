// Package memory is a non-durable store used in tests and as a last resort.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/models"
)

// Store keeps operations in memory only
type Store struct {
	ops        map[string]*models.Operation
	dead       map[string]*models.DeadLetter
	watermarks map[string]time.Time
	mu         sync.RWMutex
	closed     bool
}

var _ storage.Store = (*Store)(nil)

// New creates an empty in-memory store
func New() *Store {
	return &Store{
		ops:        make(map[string]*models.Operation),
		dead:       make(map[string]*models.DeadLetter),
		watermarks: make(map[string]time.Time),
	}
}

// Init is a no-op for the in-memory store
func (s *Store) Init(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	return nil
}

// Close marks the store closed
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) Put(ctx context.Context, op *models.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	s.ops[op.ID] = op.Clone()
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	if _, ok := s.ops[id]; !ok {
		return storage.ErrOperationNotFound
	}
	delete(s.ops, id)
	return nil
}

func (s *Store) GetAll(ctx context.Context) ([]*models.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrStorageClosed
	}

	out := make([]*models.Operation, 0, len(s.ops))
	for _, op := range s.ops {
		out = append(out, op.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (s *Store) PutDead(ctx context.Context, dl *models.DeadLetter) error {
	if dl == nil || dl.Operation == nil {
		return errors.New("dead letter without operation")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	c := *dl
	c.Operation = dl.Operation.Clone()
	s.dead[dl.Operation.ID] = &c
	return nil
}

func (s *Store) GetDead(ctx context.Context) ([]*models.DeadLetter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrStorageClosed
	}

	out := make([]*models.DeadLetter, 0, len(s.dead))
	for _, dl := range s.dead {
		c := *dl
		c.Operation = dl.Operation.Clone()
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FailedAt.Before(out[j].FailedAt) })
	return out, nil
}

func (s *Store) DeleteDead(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	if _, ok := s.dead[id]; !ok {
		return storage.ErrOperationNotFound
	}
	delete(s.dead, id)
	return nil
}

func (s *Store) SaveWatermark(ctx context.Context, entity string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	s.watermarks[entity] = ts
	return nil
}

func (s *Store) GetWatermark(ctx context.Context, entity string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return time.Time{}, storage.ErrStorageClosed
	}
	return s.watermarks[entity], nil
}
