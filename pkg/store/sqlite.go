package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteKV implements KVStore on a single SQLite table.
type SQLiteKV struct {
	db *sql.DB
}

// NewSQLiteKV creates a new SQLite-backed key-value store.
// The dbPath can be a file path or ":memory:" for an in-memory database.
// Creates the table if it doesn't exist.
func NewSQLiteKV(dbPath string) (*SQLiteKV, error) {
	db, err := sql.Open(sqliteDriver, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: ":memory:" databases are per-connection and SQLite
	// serializes writers anyway
	db.SetMaxOpenConns(1)

	s := &SQLiteKV{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// initSchema creates the kv table if it doesn't exist.
func (s *SQLiteKV) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at DATETIME DEFAULT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// DB returns the underlying database connection for advanced operations.
func (s *SQLiteKV) DB() *sql.DB {
	return s.db
}

// Get retrieves a value by key.
func (s *SQLiteKV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil // Not found, no error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}
	return value, nil
}

// Set stores a value, replacing any previous one.
func (s *SQLiteKV) Set(ctx context.Context, key string, value []byte) error {
	if err := upsert(ctx, s.db, key, value); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return nil
}

// Remove deletes a key.
func (s *SQLiteKV) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to remove key: %w", err)
	}
	return nil
}

// Apply runs all mutations in one transaction.
func (s *SQLiteKV) Apply(ctx context.Context, mutations ...Mutation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, mut := range mutations {
		if mut.Delete {
			if _, err := tx.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", mut.Key); err != nil {
				return fmt.Errorf("failed to remove key %q: %w", mut.Key, err)
			}
			continue
		}
		if err := upsert(ctx, tx, mut.Key, mut.Value); err != nil {
			return fmt.Errorf("failed to set key %q: %w", mut.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteKV) Close() error {
	return s.db.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := db.ExecContext(ctx,
		"INSERT OR REPLACE INTO kv (key, value, updated_at) VALUES (?, ?, ?)",
		key, value, time.Now().UTC(),
	)
	return err
}
