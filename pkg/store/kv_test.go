package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// kvFactories lists every backend that must satisfy the KVStore contract.
func kvFactories(t *testing.T) map[string]func(t *testing.T) KVStore {
	return map[string]func(t *testing.T) KVStore{
		"memory": func(t *testing.T) KVStore {
			return NewMemoryKV()
		},
		"sqlite-memory": func(t *testing.T) KVStore {
			kv, err := NewSQLiteKV(":memory:")
			require.NoError(t, err)
			return kv
		},
		"sqlite-file": func(t *testing.T) KVStore {
			kv, err := NewSQLiteKV(filepath.Join(t.TempDir(), "kv.db"))
			require.NoError(t, err)
			return kv
		},
		"badger-memory": func(t *testing.T) KVStore {
			kv, err := OpenBadgerInMemory()
			require.NoError(t, err)
			return kv
		},
	}
}

func TestKVStore_Contract(t *testing.T) {
	for name, factory := range kvFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			kv := factory(t)
			defer kv.Close()

			// Missing key
			v, err := kv.Get(ctx, "dataset-1")
			require.NoError(t, err)
			assert.Nil(t, v)

			// Set / Get
			require.NoError(t, kv.Set(ctx, "dataset-1", []byte(`{"name":"a"}`)))
			v, err = kv.Get(ctx, "dataset-1")
			require.NoError(t, err)
			assert.Equal(t, `{"name":"a"}`, string(v))

			// Overwrite
			require.NoError(t, kv.Set(ctx, "dataset-1", []byte(`{"name":"b"}`)))
			v, _ = kv.Get(ctx, "dataset-1")
			assert.Equal(t, `{"name":"b"}`, string(v))

			// Remove, twice
			require.NoError(t, kv.Remove(ctx, "dataset-1"))
			require.NoError(t, kv.Remove(ctx, "dataset-1"))
			v, err = kv.Get(ctx, "dataset-1")
			require.NoError(t, err)
			assert.Nil(t, v)

			// Atomic batch
			require.NoError(t, kv.Set(ctx, "dia-old", []byte("x")))
			require.NoError(t, kv.Apply(ctx,
				Put("dia-7", []byte(`{"id":"7"}`)),
				Put("diagrams", []byte(`["7"]`)),
				Delete("dia-old"),
			))
			v, _ = kv.Get(ctx, "diagrams")
			assert.Equal(t, `["7"]`, string(v))
			v, _ = kv.Get(ctx, "dia-old")
			assert.Nil(t, v)
		})
	}
}

func TestKVStore_CancelledContext(t *testing.T) {
	for name, factory := range kvFactories(t) {
		t.Run(name, func(t *testing.T) {
			kv := factory(t)
			defer kv.Close()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			err := kv.Set(ctx, "k", []byte("v"))
			assert.Error(t, err)
		})
	}
}

func TestSQLiteKV_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "persist.db")

	kv, err := NewSQLiteKV(path)
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, "datasets", []byte(`["1","2"]`)))
	require.NoError(t, kv.Close())

	reopened, err := NewSQLiteKV(path)
	require.NoError(t, err)
	defer reopened.Close()

	v, err := reopened.Get(ctx, "datasets")
	require.NoError(t, err)
	assert.Equal(t, `["1","2"]`, string(v))

	var updatedAt sql.NullString
	require.NoError(t, reopened.DB().QueryRow(
		"SELECT updated_at FROM kv WHERE key = ?", "datasets").Scan(&updatedAt))
	assert.True(t, updatedAt.Valid, "writes stamp updated_at")
}

func TestBadgerKV_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	kv, err := OpenBadgerKV(dir)
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, "diagrams", []byte(`["9"]`)))
	require.NoError(t, kv.Close())

	reopened, err := OpenBadgerKV(dir)
	require.NoError(t, err)
	defer reopened.Close()

	v, err := reopened.Get(ctx, "diagrams")
	require.NoError(t, err)
	assert.Equal(t, `["9"]`, string(v))
}

func TestMemoryKV_Closed(t *testing.T) {
	kv := NewMemoryKV()
	require.NoError(t, kv.Close())

	_, err := kv.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStorageError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	err := &StorageError{Op: "get", Key: "dataset-1", Err: ctx.Err()}
	assert.Contains(t, err.Error(), "dataset-1")
	assert.True(t, IsTimeout(err))

	var se *StorageError
	assert.True(t, errors.As(error(err), &se))
	assert.False(t, IsTimeout(&StorageError{Op: "set", Err: errors.New("disk full")}))
}
