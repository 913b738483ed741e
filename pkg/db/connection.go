package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver

	"github.com/liarsdice/persistence/pkg/coreerr"
)

// ConnState is a Connection's lifecycle state.
type ConnState int

const (
	Disconnected ConnState = iota
	Connected
	Error
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// PragmaConfig is the set of per-connection SQLite pragmas Connection.Open
// applies immediately after opening.
type PragmaConfig struct {
	ForeignKeys   bool
	JournalWAL    bool
	Synchronous   string // OFF, NORMAL, FULL, EXTRA
	CacheSizeKiB  int    // negative per SQLite convention: KiB of page cache
	PageSizeBytes int
	BusyTimeoutMS int
}

// DefaultPragmaConfig returns the pragma set recommended for a single
// embedded SQLite file under moderate write load.
func DefaultPragmaConfig() PragmaConfig {
	return PragmaConfig{
		ForeignKeys:   true,
		JournalWAL:    true,
		Synchronous:   "NORMAL",
		CacheSizeKiB:  -20000,
		PageSizeBytes: 4096,
		BusyTimeoutMS: 10000,
	}
}

func (c PragmaConfig) statements() string {
	fk := "OFF"
	if c.ForeignKeys {
		fk = "ON"
	}

	journal := "DELETE"
	if c.JournalWAL {
		journal = "WAL"
	}

	sync := c.Synchronous
	if sync == "" {
		sync = "NORMAL"
	}

	return fmt.Sprintf(`
		PRAGMA busy_timeout = %d;
		PRAGMA foreign_keys = %s;
		PRAGMA journal_mode = %s;
		PRAGMA synchronous = %s;
		PRAGMA cache_size = %d;
		PRAGMA page_size = %d;
	`, c.BusyTimeoutMS, fk, journal, sync, c.CacheSizeKiB, c.PageSizeBytes)
}

// Connection is a single pragma-configured handle onto an embedded SQLite
// file (or ":memory:"). It wraps a *sql.DB pinned to exactly one physical
// connection (SetMaxOpenConns(1)) so that per-connection pragmas,
// transaction state, and the statement cache all refer to one real engine
// connection rather than database/sql's own internal pool.
type Connection struct {
	mu  sync.Mutex
	uri string
	db  *sql.DB

	state   ConnState
	lastErr error

	tx *sql.Tx

	stmtCache *StatementCache

	lastActivity   time.Time
	lastInsertedID int64
	lastChanges    int64
}

// Open opens uri, applies cfg's pragmas, and returns a Connected Connection.
// If the engine cannot be opened or configured, the returned error is a
// [coreerr.CoreError] of kind ConnectionFailed; a non-positive stmtCacheSize
// fails with InvalidParameter. No Connection is returned on failure.
func Open(ctx context.Context, uri string, cfg PragmaConfig, stmtCacheSize int) (*Connection, error) {
	sqlDB, err := sql.Open("sqlite3", uri)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.ConnectionFailed, "open sqlite", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()

		return nil, coreerr.Wrap(coreerr.ConnectionFailed, "ping sqlite", err)
	}

	if _, err := sqlDB.ExecContext(ctx, cfg.statements()); err != nil {
		_ = sqlDB.Close()

		return nil, coreerr.Wrap(coreerr.ConnectionFailed, "apply pragmas", err)
	}

	cache, err := NewStatementCache(stmtCacheSize)
	if err != nil {
		_ = sqlDB.Close()

		return nil, err
	}

	return &Connection{
		uri:          uri,
		db:           sqlDB,
		state:        Connected,
		stmtCache:    cache,
		lastActivity: time.Now(),
	}, nil
}

// State returns the connection's current lifecycle state.
func (c *Connection) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// LastError returns the error that drove the connection into the Error
// state, if any.
func (c *Connection) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lastErr
}

// IdleTime returns the monotonic duration since the last non-trivial call.
func (c *Connection) IdleTime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return time.Since(c.lastActivity)
}

func (c *Connection) touch() {
	c.lastActivity = time.Now()
}

// execer abstracts over *sql.DB and *sql.Tx so Execute/Prepare run against
// whichever is active.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

func (c *Connection) activeExecer() execer {
	if c.tx != nil {
		return c.tx
	}

	return c.db
}

// Execute runs sql with no result-set iteration, reflecting its side effects
// in LastInsertRowID/Changes.
func (c *Connection) Execute(ctx context.Context, query string, args ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Connected {
		return coreerr.New(coreerr.InvalidState, "connection is not connected")
	}

	res, err := c.activeExecer().ExecContext(ctx, query, args...)
	if err != nil {
		if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
			c.state = Error
			c.lastErr = err
		}

		return coreerr.Wrap(coreerr.QueryFailed, "execute", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		c.lastInsertedID = id
	}

	if n, err := res.RowsAffected(); err == nil {
		c.lastChanges = n
	}

	c.touch()

	return nil
}

// LastInsertRowID returns the rowid of the most recent insert.
func (c *Connection) LastInsertRowID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lastInsertedID
}

// Changes returns the number of rows affected by the most recent write.
func (c *Connection) Changes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lastChanges
}

// Prepare compiles sql via the connection's StatementCache, reusing a cached
// handle when present.
func (c *Connection) Prepare(ctx context.Context, query string) (*PreparedStatement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Connected {
		return nil, coreerr.New(coreerr.InvalidState, "connection is not connected")
	}

	stmt, err := c.stmtCache.Prepare(ctx, c.activeExecer(), query)
	if err != nil {
		return nil, err
	}

	c.touch()

	return stmt, nil
}

// Begin starts a transaction. A transaction already in progress on this
// connection is rejected with InvalidState (no nesting).
func (c *Connection) Begin(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Connected {
		return coreerr.New(coreerr.InvalidState, "connection is not connected")
	}

	if c.tx != nil {
		return coreerr.New(coreerr.InvalidState, "transaction already in progress")
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return coreerr.Wrap(coreerr.QueryFailed, "begin", err)
	}

	c.tx = tx
	c.touch()

	return nil
}

// Commit commits the in-progress transaction.
func (c *Connection) Commit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tx == nil {
		return coreerr.New(coreerr.InvalidState, "no transaction in progress")
	}

	err := c.tx.Commit()
	c.tx = nil

	if err != nil {
		return coreerr.Wrap(coreerr.QueryFailed, "commit", err)
	}

	c.touch()

	return nil
}

// Rollback aborts the in-progress transaction.
func (c *Connection) Rollback(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tx == nil {
		return coreerr.New(coreerr.InvalidState, "no transaction in progress")
	}

	err := c.tx.Rollback()
	c.tx = nil

	if err != nil {
		return coreerr.Wrap(coreerr.QueryFailed, "rollback", err)
	}

	c.touch()

	return nil
}

// InTransaction reports whether a transaction is currently open.
func (c *Connection) InTransaction() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.tx != nil
}

// DB exposes the underlying *sql.DB for components (migrations, backups)
// that need direct access outside the Execute/Prepare façade.
func (c *Connection) DB() *sql.DB {
	return c.db
}

// CacheStats returns the connection's statement-cache hit/miss/size counters.
func (c *Connection) CacheStats() (cached int, hits, misses uint64) {
	return c.stmtCache.Stats()
}

// Close finalizes every cached prepared statement and closes the underlying
// *sql.DB.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stmtCache.Clear()

	err := c.db.Close()
	c.state = Disconnected

	if err != nil {
		return coreerr.Wrap(coreerr.Internal, "close connection", err)
	}

	return nil
}
