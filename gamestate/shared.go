package gamestate

import (
	"sync"
)

// Shared guards one World with a single mutex. Readers and writers take the same lock.
type Shared struct {
	mu    sync.Mutex
	world *World
}

func NewShared(w *World) *Shared {
	return &Shared{world: w}
}

// With runs fn while holding the lock. fn must not keep the world after returning.
func (s *Shared) With(fn func(w *World) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.world)
}

// Replace swaps in a new world, for example one loaded from a snapshot.
func (s *Shared) Replace(w *World) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.world = w
}
