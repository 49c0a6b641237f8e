// Package kvstore defines the KeyValueStore contract spec.md §1 names as an
// external collaborator ("persistent storage backends for state/sessions
// ... seen through a KeyValueStore trait"). No concrete production backend
// ships here — the pack's SQL drivers (pgx, lib/pq, modernc.org/sqlite,
// go-sql-driver/mysql) are exactly the kind of backend this contract is
// meant to abstract over, and wiring a real one is explicitly out of scope
// (spec.md §1). InMemory is the only implementation here; `weftd kernel
// start` wires it in as the kernel's store.
package kvstore

import (
	"context"
	"sync"
)

// Store is the persistence contract for sessions and kernel state.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// InMemory is a test/embedded-use Store backed by a guarded map.
type InMemory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewInMemory() *InMemory {
	return &InMemory{data: map[string][]byte{}}
}

func (s *InMemory) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *InMemory) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *InMemory) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *InMemory) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0)
	for k := range s.data {
		if len(prefix) == 0 || (len(k) >= len(prefix) && k[:len(prefix)] == prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}
