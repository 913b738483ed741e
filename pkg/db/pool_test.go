package db_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/liarsdice/persistence/pkg/coreerr"
	"github.com/liarsdice/persistence/pkg/db"
)

func testPoolConfig(min, max int) db.PoolConfig {
	return db.PoolConfig{
		URI:                ":memory:",
		Pragmas:            db.DefaultPragmaConfig(),
		StatementCacheSize: 8,
		Min:                min,
		Max:                max,
		AcquireTimeout:     50 * time.Millisecond,
	}
}

func TestConnectionPool_OpensMinConnectionsUpFront(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	pool, err := db.NewConnectionPool(ctx, testPoolConfig(2, 4))
	if err != nil {
		t.Fatalf("NewConnectionPool() error = %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })

	active, idle, total := pool.Stats()
	if active != 0 || idle != 2 || total != 2 {
		t.Fatalf("Stats() = (%d,%d,%d), want (0,2,2)", active, idle, total)
	}
}

func TestConnectionPool_AcquireReleaseRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	pool, err := db.NewConnectionPool(ctx, testPoolConfig(0, 2))
	if err != nil {
		t.Fatalf("NewConnectionPool() error = %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })

	pooled, err := pool.Acquire(ctx, time.Second)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	active, idle, total := pool.Stats()
	if active != 1 || idle != 0 || total != 1 {
		t.Fatalf("Stats() after acquire = (%d,%d,%d), want (1,0,1)", active, idle, total)
	}

	pooled.Release()

	active, idle, total = pool.Stats()
	if active != 0 || idle != 1 || total != 1 {
		t.Fatalf("Stats() after release = (%d,%d,%d), want (0,1,1)", active, idle, total)
	}
}

func TestConnectionPool_ReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	pool, err := db.NewConnectionPool(ctx, testPoolConfig(0, 1))
	if err != nil {
		t.Fatalf("NewConnectionPool() error = %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })

	pooled, err := pool.Acquire(ctx, time.Second)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	pooled.Release()
	pooled.Release()

	_, idle, total := pool.Stats()
	if idle != 1 || total != 1 {
		t.Fatalf("Stats() after double release = idle=%d total=%d, want idle=1 total=1", idle, total)
	}
}

func TestConnectionPool_AcquireTimesOutWhenExhausted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	pool, err := db.NewConnectionPool(ctx, testPoolConfig(0, 1))
	if err != nil {
		t.Fatalf("NewConnectionPool() error = %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })

	held, err := pool.Acquire(ctx, time.Second)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer held.Release()

	_, err = pool.Acquire(ctx, 30*time.Millisecond)

	var ce *coreerr.CoreError
	if !errors.As(err, &ce) || ce.Kind != coreerr.Timeout {
		t.Fatalf("Acquire() on exhausted pool error = %v, want Timeout CoreError", err)
	}
}

func TestConnectionPool_CloseRejectsFurtherAcquire(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	pool, err := db.NewConnectionPool(ctx, testPoolConfig(1, 1))
	if err != nil {
		t.Fatalf("NewConnectionPool() error = %v", err)
	}

	if err := pool.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	_, err = pool.Acquire(ctx, 10*time.Millisecond)
	if !errors.Is(err, coreerr.ErrInvalidState) {
		t.Fatalf("Acquire() after Close() error = %v, want InvalidState", err)
	}
}
