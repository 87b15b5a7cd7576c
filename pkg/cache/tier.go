package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dan-solli/commviz/pkg/metrics"
	"github.com/dan-solli/commviz/pkg/store"
	"golang.org/x/sync/singleflight"
)

var errNotStored = errors.New("not stored")

type codec[T any] struct {
	encode func(T) ([]byte, error)
	decode func(id string, data []byte) (T, error)
}

// listState tracks whether a tier's id list has been read from the durable tier.
type listState int

const (
	listUnloaded listState = iota
	listLoading
	listLoaded
)

func (s listState) String() string {
	switch s {
	case listUnloaded:
		return "unloaded"
	case listLoading:
		return "loading"
	case listLoaded:
		return "loaded"
	}
	return "invalid"
}

// tier is one cache space: an id -> object map backed by the durable store,
// plus the id list kept under listKey.
type tier[T any] struct {
	c       *Cache
	space   string
	prefix  string
	listKey string
	codec   codec[T]

	mu    sync.RWMutex
	items map[string]T
	// removals counts removes started per id; removing counts those still
	// running. A load that overlaps either never lands in items.
	removals map[string]uint64
	removing map[string]int

	// listMu serializes every read-modify-write of the id list
	listMu sync.Mutex
	state  listState
	ids    []string

	loads singleflight.Group
}

func newTier[T any](c *Cache, space, prefix, listKey string, cd codec[T]) *tier[T] {
	return &tier[T]{
		c:       c,
		space:   space,
		prefix:  prefix,
		listKey: listKey,
		codec:   cd,
		items:   make(map[string]T),

		removals: make(map[string]uint64),
		removing: make(map[string]int),
	}
}

func (t *tier[T]) key(id string) string {
	return t.prefix + id
}

func (t *tier[T]) cached(id string) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	obj, ok := t.items[id]
	return obj, ok
}

// add stores obj in memory, then writes the object and the extended id list
// in one atomic durable batch. On failure the in-memory object stays usable
// and the id list is unchanged.
func (t *tier[T]) add(ctx context.Context, id string, obj T) error {
	if id == "" {
		return ErrEmptyID
	}

	data, err := t.codec.encode(obj)
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", t.space, id, err)
	}

	t.mu.Lock()
	t.items[id] = obj
	t.mu.Unlock()

	t.listMu.Lock()
	defer t.listMu.Unlock()

	operation := "add_" + t.space
	if err := t.ensureLoaded(ctx); err != nil {
		t.c.recordStorageError(ctx, operation, err)
		t.c.logger.Warn("id list unavailable, kept in memory only",
			"space", t.space, "id", id, "error", err)
		return err
	}

	ids := t.ids
	if !slices.Contains(ids, id) {
		ids = append(slices.Clone(ids), id)
	}
	list, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", t.listKey, err)
	}

	if err := t.c.apply(ctx, "add", t.key(id),
		store.Put(t.key(id), data),
		store.Put(t.listKey, list),
	); err != nil {
		t.c.recordStorageError(ctx, operation, err)
		t.c.logger.Warn("durable write failed, kept in memory only",
			"space", t.space, "id", id, "error", err)
		return err
	}

	t.ids = ids
	t.c.metrics.SetStorageCount(ctx, t.listKey, int64(len(ids)))
	t.c.logger.Debug("stored", "space", t.space, "id", id, "bytes", len(data))
	return nil
}

// get returns the object from memory, or loads it from the durable tier.
// Concurrent misses for the same id share one durable read. Absent,
// unreadable and undecodable objects all report false.
func (t *tier[T]) get(ctx context.Context, id string) (T, bool) {
	var zero T
	if id == "" {
		return zero, false
	}

	if obj, ok := t.cached(id); ok {
		t.c.metrics.RecordLookup(ctx, t.space, metrics.LookupMemory)
		return obj, true
	}

	v, err, _ := t.loads.Do(id, func() (any, error) {
		t.mu.RLock()
		obj, ok := t.items[id]
		removals := t.removals[id]
		t.mu.RUnlock()
		if ok {
			return obj, nil
		}

		// The load is shared: one caller cancelling must not fail the others
		data, err := t.c.get(context.WithoutCancel(ctx), t.key(id))
		if err != nil {
			return nil, err
		}
		if data == nil {
			return nil, errNotStored
		}

		obj, err = t.codec.decode(id, data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s %s: %w", t.space, id, err)
		}

		t.mu.Lock()
		defer t.mu.Unlock()
		if existing, ok := t.items[id]; ok {
			return existing, nil
		}
		if t.removing[id] > 0 || t.removals[id] != removals {
			return nil, errNotStored
		}
		t.items[id] = obj
		return obj, nil
	})

	if err != nil {
		t.c.metrics.RecordLookup(ctx, t.space, metrics.LookupMiss)
		if errors.Is(err, errNotStored) {
			t.c.logger.Debug("not found", "space", t.space, "id", id)
		} else {
			t.c.logger.Warn("lookup failed", "space", t.space, "id", id, "error", err)
		}
		return zero, false
	}

	t.c.metrics.RecordLookup(ctx, t.space, metrics.LookupDurable)
	return v.(T), true
}

// remove drops id from memory and deletes the object and its list entry in
// one atomic durable batch. Unknown ids are not an error.
func (t *tier[T]) remove(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	t.mu.Lock()
	delete(t.items, id)
	t.removals[id]++
	t.removing[id]++
	t.mu.Unlock()
	t.loads.Forget(id)

	defer func() {
		t.mu.Lock()
		t.removing[id]--
		if t.removing[id] <= 0 {
			delete(t.removing, id)
		}
		t.mu.Unlock()
	}()

	t.listMu.Lock()
	defer t.listMu.Unlock()

	operation := "remove_" + t.space
	if err := t.ensureLoaded(ctx); err != nil {
		t.c.recordStorageError(ctx, operation, err)
		return err
	}

	ids := slices.DeleteFunc(slices.Clone(t.ids), func(s string) bool { return s == id })
	list, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", t.listKey, err)
	}

	if err := t.c.apply(ctx, "remove", t.key(id),
		store.Delete(t.key(id)),
		store.Put(t.listKey, list),
	); err != nil {
		t.c.recordStorageError(ctx, operation, err)
		t.c.logger.Warn("durable remove failed", "space", t.space, "id", id, "error", err)
		return err
	}

	t.ids = ids
	t.c.metrics.SetStorageCount(ctx, t.listKey, int64(len(ids)))
	return nil
}

// evict drops the in-memory copy only.
func (t *tier[T]) evict(id string) {
	t.mu.Lock()
	delete(t.items, id)
	t.mu.Unlock()
	t.loads.Forget(id)
}

// listIDs returns a copy of the id list, reading it from the durable tier
// on first use.
func (t *tier[T]) listIDs(ctx context.Context) ([]string, error) {
	t.listMu.Lock()
	defer t.listMu.Unlock()

	if err := t.ensureLoaded(ctx); err != nil {
		t.c.recordStorageError(ctx, "list_"+t.space, err)
		return nil, err
	}
	return slices.Clone(t.ids), nil
}

// ensureLoaded moves the list from unloaded to loaded. A failed load
// returns it to unloaded so the next call retries. Caller holds listMu.
func (t *tier[T]) ensureLoaded(ctx context.Context) error {
	if t.state == listLoaded {
		return nil
	}
	t.state = listLoading

	data, err := t.c.get(ctx, t.listKey)
	if err != nil {
		t.state = listUnloaded
		return err
	}

	ids := []string{}
	if data != nil {
		if err := json.Unmarshal(data, &ids); err != nil {
			t.state = listUnloaded
			return &store.StorageError{Op: "list", Key: t.listKey, Err: err}
		}
		if ids == nil {
			ids = []string{}
		}
	}

	t.ids = ids
	t.state = listLoaded
	t.c.metrics.SetStorageCount(ctx, t.listKey, int64(len(ids)))
	t.c.logger.Debug("id list loaded", "list", t.listKey, "count", len(ids))
	return nil
}

// listStatus reports the list state, for tests and diagnostics.
func (t *tier[T]) listStatus() listState {
	t.listMu.Lock()
	defer t.listMu.Unlock()
	return t.state
}
