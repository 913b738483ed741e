package schema

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/liarsdice/persistence/pkg/coreerr"
	"github.com/liarsdice/persistence/pkg/db"
)

// Latest is the MigrateTo sentinel meaning "the highest registered
// version". RollbackTo does not resolve it and treats it as a plain number.
const Latest = -1

// SchemaManager owns an ordered set of Migrations and the schema_version
// table that records which of them have been applied.
type SchemaManager struct {
	dbm *db.DatabaseManager

	mu         sync.Mutex
	migrations map[int]Migration
}

// NewSchemaManager wraps dbm. Call EnsureVersionTable before any other
// method.
func NewSchemaManager(dbm *db.DatabaseManager) *SchemaManager {
	return &SchemaManager{
		dbm:        dbm,
		migrations: make(map[int]Migration),
	}
}

// EnsureVersionTable creates the schema_version table and its version index
// if they do not already exist.
func (s *SchemaManager) EnsureVersionTable(ctx context.Context) error {
	_, err := s.dbm.Execute(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			id TEXT PRIMARY KEY,
			version INTEGER UNIQUE NOT NULL,
			description TEXT NOT NULL,
			checksum TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL,
			execution_time_ms INTEGER
		)
	`)
	if err != nil {
		return err
	}

	_, err = s.dbm.Execute(ctx, `
		CREATE INDEX IF NOT EXISTS idx_schema_version_version ON schema_version (version)
	`)

	return err
}

// Register adds a Migration. Version must be positive and not already
// registered.
func (s *SchemaManager) Register(m Migration) error {
	if m.Version < 1 {
		return coreerr.New(coreerr.InvalidParameter, "migration version must be >= 1")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.migrations[m.Version]; exists {
		return coreerr.Newf(coreerr.InvalidParameter, "migration version %d already registered", m.Version)
	}

	s.migrations[m.Version] = m

	return nil
}

// LoadDirectory loads and registers every migration found in dir.
func (s *SchemaManager) LoadDirectory(ctx context.Context, dir string) error {
	migrations, err := LoadMigrationsFromDir(ctx, dir)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if err := s.Register(m); err != nil {
			return err
		}
	}

	return nil
}

func (s *SchemaManager) sortedVersions() []int {
	versions := make([]int, 0, len(s.migrations))
	for v := range s.migrations {
		versions = append(versions, v)
	}

	sort.Ints(versions)

	return versions
}

func (s *SchemaManager) latestRegistered() int {
	versions := s.sortedVersions()
	if len(versions) == 0 {
		return 0
	}

	return versions[len(versions)-1]
}

// Validate fails if registered versions contain a gap in 1..N, or if any
// already-applied schema_version row's checksum differs from the matching
// registered migration's checksum. Every problem found is accumulated into
// the returned ValidationReport rather than stopping at the first.
func (s *SchemaManager) Validate(ctx context.Context) (*ValidationReport, error) {
	s.mu.Lock()
	versions := s.sortedVersions()
	migrations := make(map[int]Migration, len(s.migrations))

	for k, v := range s.migrations {
		migrations[k] = v
	}
	s.mu.Unlock()

	report := newValidationReport()

	for i, v := range versions {
		want := i + 1
		if v != want {
			report.addError("gap in registered migrations: expected version %d, found %d", want, v)
		}

		if m, ok := migrations[v]; ok && !m.Reversible() {
			report.addWarning("migration %d (%s) has no down path and cannot be rolled back", v, m.Description)
		}
	}

	rows, err := s.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	for _, applied := range rows {
		m, ok := migrations[applied.version]
		if !ok {
			report.addError("schema_version row for version %d has no matching registered migration", applied.version)

			continue
		}

		if m.Checksum() != applied.checksum {
			report.addError("checksum mismatch for version %d: registered %s, applied %s", applied.version, m.Checksum(), applied.checksum)
		}
	}

	return report, nil
}

type appliedVersion struct {
	version  int
	checksum string
}

func (s *SchemaManager) appliedVersions(ctx context.Context) ([]appliedVersion, error) {
	var rows []appliedVersion

	stmt, err := s.dbm.Prepare(ctx, `SELECT version, checksum FROM schema_version ORDER BY version`)
	if err != nil {
		return nil, err
	}

	_, err = s.dbm.ExecutePrepared(ctx, stmt, nil, func(row *db.Row) (bool, error) {
		var v appliedVersion
		if err := row.Scan(&v.version, &v.checksum); err != nil {
			return false, err
		}

		rows = append(rows, v)

		return true, nil
	})
	if err != nil {
		return nil, err
	}

	return rows, nil
}

// CurrentVersion returns the highest applied version, or 0 if none.
func (s *SchemaManager) CurrentVersion(ctx context.Context) (int, error) {
	stmt, err := s.dbm.Prepare(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err != nil {
		return 0, err
	}

	var current int

	_, err = s.dbm.ExecutePrepared(ctx, stmt, nil, func(row *db.Row) (bool, error) {
		return false, row.Scan(&current)
	})
	if err != nil {
		return 0, err
	}

	return current, nil
}

// MigrateTo applies or rolls back migrations to reach target. target ==
// Latest resolves to the highest registered version.
func (s *SchemaManager) MigrateTo(ctx context.Context, target int) error {
	s.mu.Lock()
	if target == Latest {
		target = s.latestRegistered()
	}
	s.mu.Unlock()

	current, err := s.CurrentVersion(ctx)
	if err != nil {
		return err
	}

	if target < current {
		return s.RollbackTo(ctx, target)
	}

	if target == current {
		return nil
	}

	_, err = db.WithTransaction(s.dbm, ctx, func(txCtx context.Context) (struct{}, error) {
		for v := current + 1; v <= target; v++ {
			s.mu.Lock()
			m, ok := s.migrations[v]
			s.mu.Unlock()

			if !ok {
				return struct{}{}, coreerr.Newf(coreerr.InvalidParameter, "no migration registered for version %d", v)
			}

			started := time.Now()

			if err := m.apply(txCtx, s.dbm); err != nil {
				return struct{}{}, coreerr.Wrap(coreerr.QueryFailed, "apply migration", err)
			}

			elapsedMS := time.Since(started).Milliseconds()

			if _, err := s.dbm.Execute(txCtx, `
				INSERT INTO schema_version (id, version, description, checksum, applied_at, execution_time_ms)
				VALUES (?, ?, ?, ?, ?, ?)
			`, uuid.NewString(), m.Version, m.Description, m.Checksum(), time.Now().UTC(), elapsedMS); err != nil {
				return struct{}{}, err
			}
		}

		return struct{}{}, nil
	})

	return err
}

// RollbackTo reverts applied migrations down to target (exclusive of
// target, inclusive of everything above it), in descending order. A
// migration without a down path aborts the whole rollback with Irreversible.
func (s *SchemaManager) RollbackTo(ctx context.Context, target int) error {
	current, err := s.CurrentVersion(ctx)
	if err != nil {
		return err
	}

	if target >= current {
		return nil
	}

	_, err = db.WithTransaction(s.dbm, ctx, func(txCtx context.Context) (struct{}, error) {
		for v := current; v > target; v-- {
			s.mu.Lock()
			m, ok := s.migrations[v]
			s.mu.Unlock()

			if !ok {
				return struct{}{}, coreerr.Newf(coreerr.InvalidParameter, "no migration registered for version %d", v)
			}

			if !m.Reversible() {
				return struct{}{}, coreerr.Newf(coreerr.Irreversible, "migration version %d has no down path", v)
			}

			if err := m.revert(txCtx, s.dbm); err != nil {
				return struct{}{}, coreerr.Wrap(coreerr.QueryFailed, "revert migration", err)
			}

			if _, err := s.dbm.Execute(txCtx, `DELETE FROM schema_version WHERE version = ?`, v); err != nil {
				return struct{}{}, err
			}
		}

		return struct{}{}, nil
	})

	return err
}

// Baseline records version as applied without running its migration body,
// for adopting a pre-existing database whose schema already matches.
func (s *SchemaManager) Baseline(ctx context.Context, version int, description string) error {
	if version < 1 {
		return coreerr.New(coreerr.InvalidParameter, "baseline version must be >= 1")
	}

	s.mu.Lock()
	m, ok := s.migrations[version]
	s.mu.Unlock()

	checksum := ""
	if ok {
		checksum = m.Checksum()
	}

	_, err := s.dbm.Execute(ctx, `
		INSERT INTO schema_version (id, version, description, checksum, applied_at, execution_time_ms)
		VALUES (?, ?, ?, ?, ?, 0)
	`, uuid.NewString(), version, description, checksum, time.Now().UTC())

	return err
}
