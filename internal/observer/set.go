// Package observer provides a listener set with snapshot notification.
package observer

import (
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
)

// Set хранит подписчиков на значения типа T.
// Notify вызывает подписчиков синхронно в порядке подписки;
// паника подписчика логируется и не выходит за пределы Notify.
type Set[T any] struct {
	listeners map[uint64]func(T)
	logger    *slog.Logger
	name      string
	nextID    uint64
	mu        sync.RWMutex
}

// New creates an empty set. name is used in panic logs.
func New[T any](name string, logger *slog.Logger) *Set[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Set[T]{
		listeners: make(map[uint64]func(T)),
		logger:    logger,
		name:      name,
	}
}

// Subscribe registers fn and returns a function that removes it.
// The returned function is safe to call more than once.
func (s *Set[T]) Subscribe(fn func(T)) func() {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Len returns the number of active listeners
func (s *Set[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}

// Notify delivers v to every listener registered at the time of the call.
// Listeners may subscribe or unsubscribe from within the callback.
func (s *Set[T]) Notify(v T) {
	s.mu.RLock()
	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(T), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		s.call(fn, v)
	}
}

func (s *Set[T]) call(fn func(T), v T) {
	defer func() {
		if err := recover(); err != nil {
			s.logger.Error("Listener panic recovered",
				"set", s.name,
				"error", err,
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn(v)
}
