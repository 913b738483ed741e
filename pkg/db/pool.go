package db

import (
	"context"
	"sync"
	"time"

	"github.com/liarsdice/persistence/pkg/coreerr"
)

// PoolConfig configures a ConnectionPool.
type PoolConfig struct {
	URI                 string
	Pragmas             PragmaConfig
	StatementCacheSize  int
	Min                 int
	Max                 int
	AcquireTimeout      time.Duration
	IdleEvictAfter      time.Duration
	HealthCheckInterval time.Duration
	HealthCheckEnabled  bool
}

// ConnectionPool manages a bounded set of [Connection]s. Acquire hands out
// the first healthy idle connection, opens a new one if total < Max, or
// waits up to a timeout. A single mutex protects the idle list and
// statistics; a background worker runs health checks when enabled.
type ConnectionPool struct {
	mu  sync.Mutex
	cfg PoolConfig

	idle   []*Connection
	active map[*Connection]struct{}
	total  int
	closed bool

	stopHealth chan struct{}
	healthDone chan struct{}
}

// NewConnectionPool opens cfg.Min connections and starts the health-check
// worker if enabled.
func NewConnectionPool(ctx context.Context, cfg PoolConfig) (*ConnectionPool, error) {
	if cfg.Max <= 0 || cfg.Min < 0 || cfg.Min > cfg.Max {
		return nil, coreerr.New(coreerr.InvalidParameter, "pool config min/max invalid")
	}

	p := &ConnectionPool{
		cfg:    cfg,
		active: make(map[*Connection]struct{}),
	}

	for i := 0; i < cfg.Min; i++ {
		conn, err := Open(ctx, cfg.URI, cfg.Pragmas, cfg.StatementCacheSize)
		if err != nil {
			p.closeAllLocked()

			return nil, err
		}

		p.idle = append(p.idle, conn)
		p.total++
	}

	if cfg.HealthCheckEnabled && cfg.HealthCheckInterval > 0 {
		p.stopHealth = make(chan struct{})
		p.healthDone = make(chan struct{})

		go p.healthCheckLoop()
	}

	return p, nil
}

// PooledConnection is a scoped handle onto a borrowed Connection. Release
// must be called when the borrower is done; calls after the first are no-ops.
type PooledConnection struct {
	conn *Connection
	pool *ConnectionPool
	once sync.Once
}

// Conn returns the borrowed Connection.
func (h *PooledConnection) Conn() *Connection {
	return h.conn
}

// Release returns the connection to the pool if still Connected, or
// discards it and lazily rebuilds toward Min otherwise.
func (h *PooledConnection) Release() {
	h.once.Do(func() {
		h.pool.release(h.conn)
	})
}

// Acquire returns the first healthy idle connection, opens a new one if
// total < Max, or waits up to timeout. Returns a Timeout-kind CoreError if
// no connection becomes available before the deadline.
func (p *ConnectionPool) Acquire(ctx context.Context, timeout time.Duration) (*PooledConnection, error) {
	deadline := time.Now().Add(timeout)
	backoff := time.Millisecond

	for {
		conn, created, err := p.tryAcquireLocked(ctx)
		if err != nil {
			return nil, err
		}

		if conn != nil {
			return &PooledConnection{conn: conn, pool: p}, nil
		}

		if created {
			continue
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, coreerr.New(coreerr.Timeout, "acquire exceeded timeout")
		}

		sleep := backoff
		if sleep > remaining {
			sleep = remaining
		}

		select {
		case <-ctx.Done():
			return nil, coreerr.Wrap(coreerr.Timeout, "acquire canceled", ctx.Err())
		case <-time.After(sleep):
		}

		if backoff < 25*time.Millisecond {
			backoff *= 2
			if backoff > 25*time.Millisecond {
				backoff = 25 * time.Millisecond
			}
		}
	}
}

// tryAcquireLocked attempts one non-blocking acquisition pass. created
// reports that the returned connection was newly opened rather than taken
// from the idle list; a nil conn with a nil error means the pool is at Max.
func (p *ConnectionPool) tryAcquireLocked(ctx context.Context) (conn *Connection, created bool, err error) {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()

		return nil, false, coreerr.New(coreerr.InvalidState, "pool is closed")
	}

	for len(p.idle) > 0 {
		candidate := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]

		if candidate.State() == Connected {
			p.active[candidate] = struct{}{}
			p.mu.Unlock()

			return candidate, false, nil
		}

		p.total--

		_ = candidate.Close()
	}

	if p.total >= p.cfg.Max {
		p.mu.Unlock()

		return nil, false, nil
	}

	p.total++
	p.mu.Unlock()

	opened, openErr := Open(ctx, p.cfg.URI, p.cfg.Pragmas, p.cfg.StatementCacheSize)
	if openErr != nil {
		p.mu.Lock()
		p.total--
		p.mu.Unlock()

		return nil, false, openErr
	}

	p.mu.Lock()
	p.active[opened] = struct{}{}
	p.mu.Unlock()

	return opened, true, nil
}

func (p *ConnectionPool) release(conn *Connection) {
	p.mu.Lock()

	delete(p.active, conn)

	if !p.closed && conn.State() == Connected {
		p.idle = append(p.idle, conn)
		p.mu.Unlock()

		return
	}

	p.total--
	p.mu.Unlock()

	_ = conn.Close()

	p.rebuildTowardMin(context.Background())
}

func (p *ConnectionPool) rebuildTowardMin(ctx context.Context) {
	p.mu.Lock()
	need := p.cfg.Min - p.total

	if p.closed || need <= 0 {
		p.mu.Unlock()

		return
	}

	p.total++
	p.mu.Unlock()

	conn, err := Open(ctx, p.cfg.URI, p.cfg.Pragmas, p.cfg.StatementCacheSize)
	if err != nil {
		p.mu.Lock()
		p.total--
		p.mu.Unlock()

		return
	}

	p.mu.Lock()
	p.idle = append(p.idle, conn)
	p.mu.Unlock()
}

// Stats reports the pool's current active, idle, and total counts.
func (p *ConnectionPool) Stats() (active, idle, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.active), len(p.idle), p.total
}

func (p *ConnectionPool) healthCheckLoop() {
	defer close(p.healthDone)

	ticker := time.NewTicker(p.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopHealth:
			return
		case <-ticker.C:
			p.runHealthCheck()
		}
	}
}

func (p *ConnectionPool) runHealthCheck() {
	p.mu.Lock()

	var survivors []*Connection

	for _, conn := range p.idle {
		stale := p.cfg.IdleEvictAfter > 0 && conn.IdleTime() > p.cfg.IdleEvictAfter
		unhealthy := conn.State() != Connected

		if stale || unhealthy {
			p.total--

			_ = conn.Close()

			continue
		}

		survivors = append(survivors, conn)
	}

	p.idle = survivors
	p.mu.Unlock()

	p.rebuildTowardMin(context.Background())
}

func (p *ConnectionPool) closeAllLocked() {
	for _, conn := range p.idle {
		_ = conn.Close()
	}

	p.idle = nil
	p.total = 0
}

// Close stops the health-check worker and closes every idle connection.
// Connections still on loan are closed as they are released.
func (p *ConnectionPool) Close() error {
	p.mu.Lock()
	p.closed = true
	stopHealth := p.stopHealth
	p.closeAllLocked()
	p.mu.Unlock()

	if stopHealth != nil {
		close(stopHealth)
		<-p.healthDone
	}

	return nil
}
