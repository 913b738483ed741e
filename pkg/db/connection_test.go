package db_test

import (
	"context"
	"errors"
	"testing"

	"github.com/liarsdice/persistence/pkg/coreerr"
	"github.com/liarsdice/persistence/pkg/db"
)

func openMemory(t *testing.T) *db.Connection {
	t.Helper()

	conn, err := db.Open(context.Background(), ":memory:", db.DefaultPragmaConfig(), 8)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func TestConnection_OpenAppliesPragmasAndConnects(t *testing.T) {
	t.Parallel()

	conn := openMemory(t)

	if conn.State() != db.Connected {
		t.Fatalf("State() = %v, want Connected", conn.State())
	}
}

func TestConnection_ExecuteCreateAndInsertTracksChanges(t *testing.T) {
	t.Parallel()

	conn := openMemory(t)
	ctx := context.Background()

	if err := conn.Execute(ctx, `CREATE TABLE players (id INTEGER PRIMARY KEY, name TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	if err := conn.Execute(ctx, `INSERT INTO players (name) VALUES (?)`, "alice"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if got := conn.Changes(); got != 1 {
		t.Fatalf("Changes() = %d, want 1", got)
	}

	if got := conn.LastInsertRowID(); got != 1 {
		t.Fatalf("LastInsertRowID() = %d, want 1", got)
	}
}

func TestConnection_BeginRejectsNesting(t *testing.T) {
	t.Parallel()

	conn := openMemory(t)
	ctx := context.Background()

	if err := conn.Begin(ctx); err != nil {
		t.Fatalf("first Begin() error = %v", err)
	}
	defer func() { _ = conn.Rollback(ctx) }()

	err := conn.Begin(ctx)

	var ce *coreerr.CoreError
	if !errors.As(err, &ce) || ce.Kind != coreerr.InvalidState {
		t.Fatalf("nested Begin() error = %v, want InvalidState CoreError", err)
	}
}

func TestConnection_CommitWithoutBeginFails(t *testing.T) {
	t.Parallel()

	conn := openMemory(t)

	err := conn.Commit(context.Background())
	if !errors.Is(err, coreerr.ErrInvalidState) {
		t.Fatalf("Commit() without Begin error = %v, want InvalidState", err)
	}
}

func TestConnection_RollbackUndoesWrites(t *testing.T) {
	t.Parallel()

	conn := openMemory(t)
	ctx := context.Background()

	if err := conn.Execute(ctx, `CREATE TABLE rounds (n INTEGER)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	if err := conn.Begin(ctx); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	if err := conn.Execute(ctx, `INSERT INTO rounds (n) VALUES (1)`); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := conn.Rollback(ctx); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	var count int

	row := conn.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM rounds`)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("scan count: %v", err)
	}

	if count != 0 {
		t.Fatalf("row count after rollback = %d, want 0", count)
	}
}

func TestConnection_PrepareReusesCachedStatement(t *testing.T) {
	t.Parallel()

	conn := openMemory(t)
	ctx := context.Background()

	if err := conn.Execute(ctx, `CREATE TABLE t (v INTEGER)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	first, err := conn.Prepare(ctx, `INSERT INTO t (v) VALUES (?)`)
	if err != nil {
		t.Fatalf("first Prepare() error = %v", err)
	}

	second, err := conn.Prepare(ctx, `INSERT INTO t (v) VALUES (?)`)
	if err != nil {
		t.Fatalf("second Prepare() error = %v", err)
	}

	if first != second {
		t.Fatalf("Prepare() returned distinct handles for identical SQL, want cache hit")
	}

	_, hits, misses := conn.CacheStats()
	if hits != 1 || misses != 1 {
		t.Fatalf("CacheStats() hits=%d misses=%d, want hits=1 misses=1", hits, misses)
	}
}
