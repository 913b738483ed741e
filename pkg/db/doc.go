// Package db is the persistence core's embedded-engine layer: a single
// pragma-configured [Connection] over database/sql and
// github.com/mattn/go-sqlite3, a [ConnectionPool] of them with
// timeout-bounded acquire and idle health checking, a per-connection
// [StatementCache], and the [DatabaseManager] façade every front-end and
// schema/backup component borrows connections through.
package db
