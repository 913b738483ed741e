package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/liarsdice/persistence/pkg/db"
)

func newTestManager(t *testing.T, min, max int) *db.DatabaseManager {
	t.Helper()

	ctx := context.Background()

	pool, err := db.NewConnectionPool(ctx, testPoolConfig(min, max))
	if err != nil {
		t.Fatalf("NewConnectionPool() error = %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })

	return db.NewDatabaseManager(pool, time.Second)
}

func TestDatabaseManager_ExecuteCreatesAndInserts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newTestManager(t, 1, 2)

	if _, err := m.Execute(ctx, `CREATE TABLE players (id INTEGER PRIMARY KEY, name TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	n, err := m.Execute(ctx, `INSERT INTO players (name) VALUES (?)`, "bob")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if n != 1 {
		t.Fatalf("Execute() affected = %d, want 1", n)
	}
}

func TestDatabaseManager_WithTransactionCommitsOnSuccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newTestManager(t, 1, 2)

	if _, err := m.Execute(ctx, `CREATE TABLE rounds (n INTEGER)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	_, err := db.WithTransaction(m, ctx, func(txCtx context.Context) (struct{}, error) {
		if _, err := m.Execute(txCtx, `INSERT INTO rounds (n) VALUES (1)`); err != nil {
			return struct{}{}, err
		}

		if _, err := m.Execute(txCtx, `INSERT INTO rounds (n) VALUES (2)`); err != nil {
			return struct{}{}, err
		}

		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("WithTransaction() error = %v", err)
	}

	n, err := m.Execute(ctx, `UPDATE rounds SET n = n`)
	if err != nil {
		t.Fatalf("count rows: %v", err)
	}

	if n != 2 {
		t.Fatalf("rows after committed transaction = %d, want 2", n)
	}
}

func TestDatabaseManager_WithTransactionRollsBackOnError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newTestManager(t, 1, 2)

	if _, err := m.Execute(ctx, `CREATE TABLE rounds (n INTEGER)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	sentinel := errInjectedFailure{}

	_, err := db.WithTransaction(m, ctx, func(txCtx context.Context) (struct{}, error) {
		if _, err := m.Execute(txCtx, `INSERT INTO rounds (n) VALUES (1)`); err != nil {
			return struct{}{}, err
		}

		return struct{}{}, sentinel
	})
	if err == nil {
		t.Fatalf("WithTransaction() error = nil, want propagated failure")
	}

	n, err := m.Execute(ctx, `UPDATE rounds SET n = n`)
	if err != nil {
		t.Fatalf("count rows: %v", err)
	}

	if n != 0 {
		t.Fatalf("rows after rolled-back transaction = %d, want 0", n)
	}
}

type errInjectedFailure struct{}

func (errInjectedFailure) Error() string { return "injected failure" }

func TestDatabaseManager_WithTransactionNestsOnSameConnection(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newTestManager(t, 1, 1)

	if _, err := m.Execute(ctx, `CREATE TABLE rounds (n INTEGER)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	_, err := db.WithTransaction(m, ctx, func(outerCtx context.Context) (struct{}, error) {
		return db.WithTransaction(m, outerCtx, func(innerCtx context.Context) (struct{}, error) {
			_, err := m.Execute(innerCtx, `INSERT INTO rounds (n) VALUES (1)`)

			return struct{}{}, err
		})
	})
	if err != nil {
		t.Fatalf("nested WithTransaction() error = %v, want the single connection (Max=1) to be reused", err)
	}
}

func TestDatabaseManager_ExecutePreparedInvokesRowCallback(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newTestManager(t, 1, 1)

	if _, err := m.Execute(ctx, `CREATE TABLE rounds (n INTEGER)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := m.Execute(ctx, `INSERT INTO rounds (n) VALUES (?)`, i); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	_, err := db.WithTransaction(m, ctx, func(txCtx context.Context) (struct{}, error) {
		stmt, err := m.Prepare(txCtx, `SELECT n FROM rounds ORDER BY n`)
		if err != nil {
			return struct{}{}, err
		}

		var seen []int64

		_, err = m.ExecutePrepared(txCtx, stmt, nil, func(row *db.Row) (bool, error) {
			var n int64
			if err := row.Scan(&n); err != nil {
				return false, err
			}

			seen = append(seen, n)

			return len(seen) < 2, nil
		})
		if err != nil {
			return struct{}{}, err
		}

		if len(seen) != 2 {
			return struct{}{}, errInjectedFailure{}
		}

		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("WithTransaction() error = %v", err)
	}
}

func TestDatabaseManager_CacheStatsReportsActiveConnection(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newTestManager(t, 1, 1)

	if _, err := m.Execute(ctx, `CREATE TABLE t (v INTEGER)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	_, err := db.WithTransaction(m, ctx, func(txCtx context.Context) (struct{}, error) {
		if _, err := m.Prepare(txCtx, `SELECT v FROM t`); err != nil {
			return struct{}{}, err
		}

		if _, err := m.Prepare(txCtx, `SELECT v FROM t`); err != nil {
			return struct{}{}, err
		}

		cached, hits, misses, err := m.CacheStats(txCtx)
		if err != nil {
			return struct{}{}, err
		}

		if cached != 1 || hits != 1 || misses != 1 {
			t.Fatalf("CacheStats() = (%d,%d,%d), want (1,1,1)", cached, hits, misses)
		}

		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("WithTransaction() error = %v", err)
	}
}
