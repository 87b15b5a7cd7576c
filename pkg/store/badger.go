package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerKV implements KVStore on BadgerDB.
type BadgerKV struct {
	db     *badger.DB
	ownsDB bool
}

// OpenBadgerKV opens (or creates) a BadgerDB directory.
func OpenBadgerKV(dir string) (*BadgerKV, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerKV{db: db, ownsDB: true}, nil
}

// OpenBadgerInMemory opens a BadgerDB instance that never touches disk.
func OpenBadgerInMemory() (*BadgerKV, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory badger: %w", err)
	}
	return &BadgerKV{db: db, ownsDB: true}, nil
}

// NewBadgerKV wraps a BadgerDB instance managed by the caller.
// Close does not close db.
func NewBadgerKV(db *badger.DB) *BadgerKV {
	return &BadgerKV{db: db}
}

// Get retrieves a value by key.
func (b *BadgerKV) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}
	return value, nil
}

// Set stores a value.
func (b *BadgerKV) Set(ctx context.Context, key string, value []byte) error {
	return b.Apply(ctx, Put(key, value))
}

// Remove deletes a key.
func (b *BadgerKV) Remove(ctx context.Context, key string) error {
	return b.Apply(ctx, Delete(key))
}

// Apply runs all mutations in one read-write transaction.
func (b *BadgerKV) Apply(ctx context.Context, mutations ...Mutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		for _, mut := range mutations {
			if mut.Delete {
				if err := txn.Delete([]byte(mut.Key)); err != nil {
					return err
				}
				continue
			}
			value := mut.Value
			if value == nil {
				value = []byte{}
			}
			if err := txn.Set([]byte(mut.Key), value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to apply %d mutations: %w", len(mutations), err)
	}
	return nil
}

// Close closes the database if this store opened it.
func (b *BadgerKV) Close() error {
	if !b.ownsDB {
		return nil
	}
	return b.db.Close()
}
