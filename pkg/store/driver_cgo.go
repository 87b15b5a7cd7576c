//go:build cgo_sqlite

package store

import _ "github.com/mattn/go-sqlite3" // SQLite driver (cgo)

// sqliteDriver is the database/sql driver name used by SQLiteKV.
// Built with -tags cgo_sqlite the cgo driver is used instead of the pure-Go one.
const sqliteDriver = "sqlite3"
