package db

import (
	"context"
	"database/sql"

	"github.com/liarsdice/persistence/pkg/containers"
	"github.com/liarsdice/persistence/pkg/coreerr"
)

// PreparedStatement is a compiled statement handle owned by the Connection
// that created it; it must not outlive that Connection.
type PreparedStatement struct {
	SQL  string
	stmt *sql.Stmt
}

// Exec runs the prepared statement with the given positional args.
func (p *PreparedStatement) Exec(ctx context.Context, args ...any) (sql.Result, error) {
	return p.stmt.ExecContext(ctx, args...)
}

// Query runs the prepared statement and returns iterable rows.
func (p *PreparedStatement) Query(ctx context.Context, args ...any) (*sql.Rows, error) {
	return p.stmt.QueryContext(ctx, args...)
}

func (p *PreparedStatement) close() error {
	return p.stmt.Close()
}

// StatementCache is a per-Connection LRU of PreparedStatements keyed by SQL
// text. Prepare returns a cached statement when present; overflow evicts and
// finalizes the least recently used entry.
type StatementCache struct {
	lru *containers.LRUCache[string, *PreparedStatement]
}

// NewStatementCache returns a cache with the given positive capacity.
func NewStatementCache(capacity int) (*StatementCache, error) {
	lru, err := containers.NewLRUCache[string, *PreparedStatement](capacity)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.InvalidParameter, "statement cache capacity invalid", err)
	}

	cache := &StatementCache{lru: lru}
	lru.SetOnEvict(func(_ string, stmt *PreparedStatement) {
		_ = stmt.close()
	})

	return cache, nil
}

// Prepare returns a cached statement for sqlText if present, or compiles and
// inserts a new one via prep, evicting the least recently used entry on
// overflow.
func (c *StatementCache) Prepare(ctx context.Context, prep interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}, sqlText string) (*PreparedStatement, error) {
	if cached, ok := c.lru.Get(sqlText); ok {
		return cached, nil
	}

	stmt, err := prep.PrepareContext(ctx, sqlText)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.QueryFailed, "prepare", err)
	}

	wrapped := &PreparedStatement{SQL: sqlText, stmt: stmt}
	c.lru.Put(sqlText, wrapped)

	return wrapped, nil
}

// Stats returns the number of cached statements and cumulative hit/miss
// counts.
func (c *StatementCache) Stats() (cached int, hits, misses uint64) {
	hits, misses, _ = c.lru.Stats()

	return c.lru.Len(), hits, misses
}

// Clear finalizes and removes every cached statement, via the cache's
// OnEvict hook.
func (c *StatementCache) Clear() {
	c.lru.Clear()
}
