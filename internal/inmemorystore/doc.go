// Package inmemorystore provides a thread-safe, in-memory implementation
// of the shapestore.Store interface. It is suitable for single-process
// builds, watch mode and tests.
package inmemorystore
