// Package shapestore defines the interface of the build result cache.
//
// # Why a Shape Store Exists
//
// A feature's content hash covers its operation and the resolved values of
// every operand. Two features with the same hash produce the same geometry,
// so the result of one build can be handed to the other without calling the
// geometry engine again. The same holds across rebuilds of one model: when
// a parameter changes and then changes back, the earlier result is reused.
//
// # Lifecycle
//
// A store is:
//  1. **Created** once per App run (or per watch cycle when caching is disabled
//     between cycles).
//  2. **Queried** by Feature.Build before invoking the engine.
//  3. **Filled** by Feature.Build after a successful engine call.
//
// Failed builds are never stored. A failure is recorded on the feature
// itself and re-raised from there.
package shapestore

import "context"

// Store maps content hashes to build results.
//
// # Thread-Safety Requirements
//
// Implementations MUST be safe for concurrent use. Independent features can
// be built from different goroutines (post-processing actions, the viewer
// bridge, tests).
//
// See internal/inmemorystore for the reference implementation.
type Store[V any] interface {
	// Get returns the result stored under hash.
	Get(ctx context.Context, hash string) (V, bool)
	// Put stores a result under hash, replacing any previous entry.
	Put(ctx context.Context, hash string, v V)
	// Len returns the number of stored results.
	Len() int
	// Purge drops every entry.
	Purge(ctx context.Context)
}
