// Package inmemorystore provides an ephemeral, thread-safe, in-memory
// implementation of the shapestore.Store interface.
//
// # Purpose
//
// This package implements the build result cache for one App run. Results
// are keyed by the SHA3 content hash of the feature that produced them.
//
// # Characteristics
//
//   - **Ephemeral:** Created fresh for each run, not persistent
//   - **Thread-Safe:** Uses sync.Map for lock-free concurrent access in most cases
//   - **Write-Once Keys:** A hash always maps to the same geometry, so
//     overwriting an entry never changes what readers observe
//
// # Concurrency Model
//
// sync.Map fits because keys are written once and then read many times,
// which is the access pattern sync.Map is optimized for.
package inmemorystore

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/vk/iscadgo/internal/shapestore"
)

// Store is an in-memory implementation of shapestore.Store.
type Store[V any] struct {
	entries sync.Map // Key: content hash, Value: V
	n       atomic.Int64
}

// New creates a new, empty in-memory result store.
func New[V any]() shapestore.Store[V] {
	return &Store[V]{}
}

// Get retrieves the result stored under hash.
func (s *Store[V]) Get(ctx context.Context, hash string) (V, bool) {
	v, ok := s.entries.Load(hash)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

// Put records a result under hash.
func (s *Store[V]) Put(ctx context.Context, hash string, v V) {
	if _, loaded := s.entries.Swap(hash, v); !loaded {
		s.n.Add(1)
	}
}

// Len returns the number of stored results.
func (s *Store[V]) Len() int {
	return int(s.n.Load())
}

// Purge removes every entry.
func (s *Store[V]) Purge(ctx context.Context) {
	s.entries.Range(func(k, _ any) bool {
		if _, loaded := s.entries.LoadAndDelete(k); loaded {
			s.n.Add(-1)
		}
		return true
	})
}
