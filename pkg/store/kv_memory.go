package store

import (
	"context"
	"sync"
)

// MemoryKV is a KVStore kept entirely in process memory.
// It stands in for the durable tier in tests and in throwaway sessions.
type MemoryKV struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

// Get returns a copy of the stored value, or (nil, nil) when absent.
func (m *MemoryKV) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value.
func (m *MemoryKV) Set(ctx context.Context, key string, value []byte) error {
	return m.Apply(ctx, Put(key, value))
}

// Remove deletes key.
func (m *MemoryKV) Remove(ctx context.Context, key string) error {
	return m.Apply(ctx, Delete(key))
}

// Apply performs all mutations under one lock.
func (m *MemoryKV) Apply(ctx context.Context, mutations ...Mutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	for _, mut := range mutations {
		if mut.Delete {
			delete(m.data, mut.Key)
			continue
		}
		m.data[mut.Key] = append([]byte(nil), mut.Value...)
	}
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryKV) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Close marks the store closed; further operations fail with ErrClosed.
func (m *MemoryKV) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
