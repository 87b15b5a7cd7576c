// Package store provides the durable key-value tier that caches datasets and
// diagrams across sessions.
package store

import "context"

// KVStore is a durable key-value store.
// Implementations must be safe for concurrent use and must honour ctx
// cancellation where the backend allows it.
type KVStore interface {
	// Get returns the value stored under key.
	// Returns (nil, nil) if the key does not exist (no error).
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Apply performs all mutations atomically: either every mutation is
	// visible afterwards or none is.
	Apply(ctx context.Context, mutations ...Mutation) error

	// Close releases any resources held by the store.
	Close() error
}

// Mutation is one write inside an atomic Apply.
type Mutation struct {
	Key    string
	Value  []byte
	Delete bool
}

// Put returns a mutation that stores value under key.
func Put(key string, value []byte) Mutation {
	return Mutation{Key: key, Value: value}
}

// Delete returns a mutation that removes key.
func Delete(key string) Mutation {
	return Mutation{Key: key, Delete: true}
}
