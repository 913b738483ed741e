package schema_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/liarsdice/persistence/pkg/coreerr"
	"github.com/liarsdice/persistence/pkg/db"
	"github.com/liarsdice/persistence/pkg/schema"
)

func newTestManager(t *testing.T) *db.DatabaseManager {
	t.Helper()

	ctx := context.Background()

	pool, err := db.NewConnectionPool(ctx, db.PoolConfig{
		URI:                ":memory:",
		Pragmas:            db.DefaultPragmaConfig(),
		StatementCacheSize: 8,
		Min:                1,
		Max:                1,
		AcquireTimeout:     time.Second,
	})
	if err != nil {
		t.Fatalf("NewConnectionPool() error = %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })

	return db.NewDatabaseManager(pool, time.Second)
}

func tableExists(t *testing.T, ctx context.Context, dbm *db.DatabaseManager, name string) bool {
	t.Helper()

	stmt, err := dbm.Prepare(ctx, `SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?`)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	var found bool

	_, err = dbm.ExecutePrepared(ctx, stmt, []any{name}, func(row *db.Row) (bool, error) {
		found = true

		return false, nil
	})
	if err != nil {
		t.Fatalf("ExecutePrepared() error = %v", err)
	}

	return found
}

func TestSchemaManager_MigrateToForwardAndBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dbm := newTestManager(t)

	sm := schema.NewSchemaManager(dbm)
	if err := sm.EnsureVersionTable(ctx); err != nil {
		t.Fatalf("EnsureVersionTable() error = %v", err)
	}

	if err := sm.Register(schema.Migration{
		Version:     1,
		Description: "create t1",
		SQLUp:       `CREATE TABLE t1 (id INTEGER PRIMARY KEY)`,
		SQLDown:     `DROP TABLE t1`,
	}); err != nil {
		t.Fatalf("Register(1) error = %v", err)
	}

	if err := sm.Register(schema.Migration{
		Version:     2,
		Description: "create t2",
		SQLUp:       `CREATE TABLE t2 (id INTEGER PRIMARY KEY)`,
		SQLDown:     `DROP TABLE t2`,
	}); err != nil {
		t.Fatalf("Register(2) error = %v", err)
	}

	if err := sm.MigrateTo(ctx, schema.Latest); err != nil {
		t.Fatalf("MigrateTo(Latest) error = %v", err)
	}

	current, err := sm.CurrentVersion(ctx)
	if err != nil {
		t.Fatalf("CurrentVersion() error = %v", err)
	}

	if current != 2 {
		t.Fatalf("CurrentVersion() = %d, want 2", current)
	}

	if !tableExists(t, ctx, dbm, "t1") || !tableExists(t, ctx, dbm, "t2") {
		t.Fatalf("expected both t1 and t2 to exist after MigrateTo(Latest)")
	}

	if err := sm.MigrateTo(ctx, 1); err != nil {
		t.Fatalf("MigrateTo(1) error = %v", err)
	}

	current, err = sm.CurrentVersion(ctx)
	if err != nil {
		t.Fatalf("CurrentVersion() error = %v", err)
	}

	if current != 1 {
		t.Fatalf("CurrentVersion() after rollback = %d, want 1", current)
	}

	if !tableExists(t, ctx, dbm, "t1") {
		t.Fatalf("expected t1 to still exist after rollback to 1")
	}

	if tableExists(t, ctx, dbm, "t2") {
		t.Fatalf("expected t2 to be dropped after rollback to 1")
	}
}

func TestSchemaManager_RollbackIrreversibleMigrationFails(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dbm := newTestManager(t)

	sm := schema.NewSchemaManager(dbm)
	if err := sm.EnsureVersionTable(ctx); err != nil {
		t.Fatalf("EnsureVersionTable() error = %v", err)
	}

	if err := sm.Register(schema.Migration{
		Version:     1,
		Description: "irreversible change",
		SQLUp:       `CREATE TABLE t1 (id INTEGER PRIMARY KEY)`,
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := sm.MigrateTo(ctx, schema.Latest); err != nil {
		t.Fatalf("MigrateTo(Latest) error = %v", err)
	}

	err := sm.MigrateTo(ctx, 0)

	var ce *coreerr.CoreError
	if !errors.As(err, &ce) || ce.Kind != coreerr.Irreversible {
		t.Fatalf("MigrateTo(0) on irreversible migration error = %v, want Irreversible CoreError", err)
	}
}

func TestSchemaManager_ValidateDetectsGapAndChecksumMismatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dbm := newTestManager(t)

	sm := schema.NewSchemaManager(dbm)
	if err := sm.EnsureVersionTable(ctx); err != nil {
		t.Fatalf("EnsureVersionTable() error = %v", err)
	}

	if err := sm.Register(schema.Migration{
		Version:     1,
		Description: "v1",
		SQLUp:       `CREATE TABLE t1 (id INTEGER PRIMARY KEY)`,
		SQLDown:     `DROP TABLE t1`,
	}); err != nil {
		t.Fatalf("Register(1) error = %v", err)
	}

	// Gap: version 3 registered with no version 2.
	if err := sm.Register(schema.Migration{
		Version:     3,
		Description: "v3",
		SQLUp:       `CREATE TABLE t3 (id INTEGER PRIMARY KEY)`,
	}); err != nil {
		t.Fatalf("Register(3) error = %v", err)
	}

	if err := sm.MigrateTo(ctx, 1); err != nil {
		t.Fatalf("MigrateTo(1) error = %v", err)
	}

	// Mutate the applied checksum directly to simulate drift between the
	// registered migration and what was actually applied.
	if _, err := dbm.Execute(ctx, `UPDATE schema_version SET checksum = 'tampered' WHERE version = 1`); err != nil {
		t.Fatalf("tamper checksum: %v", err)
	}

	report, err := sm.Validate(ctx)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if report.Valid {
		t.Fatalf("Validate() report.Valid = true, want false")
	}

	if len(report.Errors) != 2 {
		t.Fatalf("Validate() report.Errors = %v, want 2 entries (gap + checksum mismatch)", report.Errors)
	}

	if len(report.Warnings) != 1 {
		t.Fatalf("Validate() report.Warnings = %v, want 1 entry (version 3 has no down path)", report.Warnings)
	}
}

func TestSchemaManager_Baseline(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dbm := newTestManager(t)

	sm := schema.NewSchemaManager(dbm)
	if err := sm.EnsureVersionTable(ctx); err != nil {
		t.Fatalf("EnsureVersionTable() error = %v", err)
	}

	if err := sm.Baseline(ctx, 5, "adopted pre-existing database"); err != nil {
		t.Fatalf("Baseline() error = %v", err)
	}

	current, err := sm.CurrentVersion(ctx)
	if err != nil {
		t.Fatalf("CurrentVersion() error = %v", err)
	}

	if current != 5 {
		t.Fatalf("CurrentVersion() after Baseline(5) = %d, want 5", current)
	}
}

func TestMigration_ChecksumStableAcrossEqualContent(t *testing.T) {
	t.Parallel()

	a := schema.Migration{Version: 1, SQLUp: "CREATE TABLE t (x INT)", SQLDown: "DROP TABLE t"}
	b := schema.Migration{Version: 1, SQLUp: "CREATE TABLE t (x INT)", SQLDown: "DROP TABLE t"}
	c := schema.Migration{Version: 1, SQLUp: "CREATE TABLE t (y INT)", SQLDown: "DROP TABLE t"}

	if a.Checksum() != b.Checksum() {
		t.Fatalf("Checksum() differs for identical content")
	}

	if a.Checksum() == c.Checksum() {
		t.Fatalf("Checksum() matches for different content")
	}
}
