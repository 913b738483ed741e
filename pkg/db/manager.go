package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/liarsdice/persistence/pkg/coreerr"
)

// Row is the subset of *sql.Rows exposed to an ExecutePrepared row callback.
// Values are valid only for the duration of the callback invocation.
type Row struct {
	rows *sql.Rows
}

// Scan copies the current row's columns into dest, following database/sql's
// usual Scan conventions.
func (r *Row) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}

// Columns returns the current result set's column names.
func (r *Row) Columns() ([]string, error) {
	return r.rows.Columns()
}

// RowCallback is invoked once per row by ExecutePrepared. Returning
// cont=false halts iteration without error.
type RowCallback func(row *Row) (cont bool, err error)

type managerTxKey struct{}

// DatabaseManager is the façade every front-end and schema/backup component
// borrows connections through: non-transactional operations acquire and
// release a pooled Connection per call, while WithTransaction pins one
// connection across a whole callback.
type DatabaseManager struct {
	pool           *ConnectionPool
	acquireTimeout time.Duration
}

// NewDatabaseManager wraps pool, using acquireTimeout for every
// non-transactional acquire.
func NewDatabaseManager(pool *ConnectionPool, acquireTimeout time.Duration) *DatabaseManager {
	return &DatabaseManager{pool: pool, acquireTimeout: acquireTimeout}
}

// connFor returns the connection the current call should use: the one
// already pinned by an enclosing WithTransaction, if any (owned=false, the
// caller must not release it), or a freshly acquired one (owned=true).
func (m *DatabaseManager) connFor(ctx context.Context) (pooled *PooledConnection, owned bool, err error) {
	if existing, ok := ctx.Value(managerTxKey{}).(*PooledConnection); ok {
		return existing, false, nil
	}

	pooled, err = m.pool.Acquire(ctx, m.acquireTimeout)
	if err != nil {
		return nil, false, err
	}

	return pooled, true, nil
}

// Execute runs sql with no result-set iteration, returning the number of
// affected rows.
func (m *DatabaseManager) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	pooled, owned, err := m.connFor(ctx)
	if err != nil {
		return 0, err
	}

	if owned {
		defer pooled.Release()
	}

	if err := pooled.Conn().Execute(ctx, query, args...); err != nil {
		return 0, err
	}

	return pooled.Conn().Changes(), nil
}

// Prepare compiles query on a borrowed connection's StatementCache and
// returns the handle. The handle is valid only while its owning Connection
// remains open; callers that need it across multiple calls should prepare
// inside a WithTransaction so the same connection backs every use.
func (m *DatabaseManager) Prepare(ctx context.Context, query string) (*PreparedStatement, error) {
	pooled, owned, err := m.connFor(ctx)
	if err != nil {
		return nil, err
	}

	if owned {
		defer pooled.Release()
	}

	return pooled.Conn().Prepare(ctx, query)
}

// ExecutePrepared runs stmt with args. If rowCallback is nil, it behaves
// like a plain Exec and returns the affected row count. Otherwise it steps
// the result set, invoking rowCallback once per row until the callback
// returns cont=false, an error, or rows are exhausted; the return value is
// the number of rows the callback was invoked for.
func (m *DatabaseManager) ExecutePrepared(ctx context.Context, stmt *PreparedStatement, args []any, rowCallback RowCallback) (int64, error) {
	if rowCallback == nil {
		res, err := stmt.Exec(ctx, args...)
		if err != nil {
			return 0, coreerr.Wrap(coreerr.QueryFailed, "execute prepared", err)
		}

		n, _ := res.RowsAffected()

		return n, nil
	}

	rows, err := stmt.Query(ctx, args...)
	if err != nil {
		return 0, coreerr.Wrap(coreerr.QueryFailed, "execute prepared query", err)
	}
	defer func() { _ = rows.Close() }()

	row := &Row{rows: rows}

	var n int64

	for rows.Next() {
		cont, err := rowCallback(row)
		n++

		if err != nil {
			return n, err
		}

		if !cont {
			break
		}
	}

	if err := rows.Err(); err != nil {
		return n, coreerr.Wrap(coreerr.QueryFailed, "iterate rows", err)
	}

	return n, nil
}

// Begin acquires a connection and starts a transaction on it, returning a
// context carrying that connection for subsequent manager calls (Execute,
// Prepare, ExecutePrepared) to reuse. Pair with Commit or Rollback, which
// both release the connection.
func (m *DatabaseManager) Begin(ctx context.Context) (context.Context, error) {
	if _, ok := ctx.Value(managerTxKey{}).(*PooledConnection); ok {
		return nil, coreerr.New(coreerr.InvalidState, "transaction already active on this context")
	}

	pooled, err := m.pool.Acquire(ctx, m.acquireTimeout)
	if err != nil {
		return nil, err
	}

	if err := pooled.Conn().Begin(ctx); err != nil {
		pooled.Release()

		return nil, err
	}

	return context.WithValue(ctx, managerTxKey{}, pooled), nil
}

// Commit commits the transaction pinned to ctx by Begin and releases its
// connection.
func (m *DatabaseManager) Commit(ctx context.Context) error {
	pooled, ok := ctx.Value(managerTxKey{}).(*PooledConnection)
	if !ok {
		return coreerr.New(coreerr.InvalidState, "no transaction active on this context")
	}

	defer pooled.Release()

	return pooled.Conn().Commit(ctx)
}

// Rollback aborts the transaction pinned to ctx by Begin and releases its
// connection.
func (m *DatabaseManager) Rollback(ctx context.Context) error {
	pooled, ok := ctx.Value(managerTxKey{}).(*PooledConnection)
	if !ok {
		return coreerr.New(coreerr.InvalidState, "no transaction active on this context")
	}

	defer pooled.Release()

	return pooled.Conn().Rollback(ctx)
}

// WithTransaction acquires a connection, begins a transaction, runs f with a
// context pinned to that connection, commits on success, and rolls back on
// any error or panic. A call to WithTransaction nested inside another (same
// ctx lineage) reuses the outer transaction's connection instead of
// acquiring a second one or nesting a BEGIN.
func WithTransaction[T any](m *DatabaseManager, ctx context.Context, f func(ctx context.Context) (T, error)) (result T, err error) {
	if _, ok := ctx.Value(managerTxKey{}).(*PooledConnection); ok {
		return f(ctx)
	}

	txCtx, err := m.Begin(ctx)
	if err != nil {
		var zero T

		return zero, err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = m.Rollback(txCtx)
			err = coreerr.Newf(coreerr.Internal, "panic in with_transaction: %v", r)
		}
	}()

	result, err = f(txCtx)
	if err != nil {
		if rbErr := m.Rollback(txCtx); rbErr != nil {
			err = fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}

		var zero T

		return zero, err
	}

	if err := m.Commit(txCtx); err != nil {
		var zero T

		return zero, err
	}

	return result, nil
}

// CacheStats reports the statement-cache counters of the connection pinned
// to ctx (inside WithTransaction) or, outside a transaction, of a freshly
// borrowed connection.
func (m *DatabaseManager) CacheStats(ctx context.Context) (cached int, hits, misses uint64, err error) {
	pooled, owned, err := m.connFor(ctx)
	if err != nil {
		return 0, 0, 0, err
	}

	if owned {
		defer pooled.Release()
	}

	cached, hits, misses = pooled.Conn().CacheStats()

	return cached, hits, misses, nil
}

// Pool returns the underlying connection pool, for components (SchemaManager,
// BackupManager) that need pool-level operations like Close.
func (m *DatabaseManager) Pool() *ConnectionPool {
	return m.pool
}
