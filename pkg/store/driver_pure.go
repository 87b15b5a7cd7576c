//go:build !cgo_sqlite

package store

import _ "modernc.org/sqlite" // SQLite driver

// sqliteDriver is the database/sql driver name used by SQLiteKV.
// The default build uses the pure-Go driver.
const sqliteDriver = "sqlite"
