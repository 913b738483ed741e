package schema

import (
	"context"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"io"

	"github.com/liarsdice/persistence/pkg/db"
)

// MigrationFunc is the function-form migration body: a caller-supplied step
// run over a DatabaseManager reference rather than a raw *sql.Tx, so it
// participates in whatever transaction SchemaManager has already opened on
// ctx.
type MigrationFunc func(ctx context.Context, m *db.DatabaseManager) error

// Migration is either SQL-form (SQLUp/SQLDown) or function-form
// (FnUp/FnDown); exactly one form should be populated. SQLDown/FnDown left
// unset marks the migration irreversible.
type Migration struct {
	Version     int
	Description string

	SQLUp   string
	SQLDown string

	FnUp   MigrationFunc
	FnDown MigrationFunc
}

func (m Migration) isFunction() bool {
	return m.FnUp != nil
}

// Reversible reports whether a down path exists.
func (m Migration) Reversible() bool {
	if m.isFunction() {
		return m.FnDown != nil
	}

	return m.SQLDown != ""
}

// Checksum is a stable hash of the migration's content: for SQL-form
// migrations, the up and down text; for function-form migrations, just
// version and description, since a function's body cannot be hashed from
// here. Two structurally different function migrations sharing a version
// and description therefore compare equal — a known, intentional limitation
// carried over from the original implementation this was distilled from.
func (m Migration) Checksum() string {
	h := fnv.New64a()

	if m.isFunction() {
		fmt.Fprintf(h, "%d||%s", m.Version, m.Description)
	} else {
		_, _ = io.WriteString(h, m.SQLUp)
		_, _ = io.WriteString(h, "\x00")
		_, _ = io.WriteString(h, m.SQLDown)
	}

	return hex.EncodeToString(h.Sum(nil))
}

// apply runs the up path.
func (m Migration) apply(ctx context.Context, dbm *db.DatabaseManager) error {
	if m.isFunction() {
		return m.FnUp(ctx, dbm)
	}

	_, err := dbm.Execute(ctx, m.SQLUp)

	return err
}

// revert runs the down path. Callers must check Reversible first.
func (m Migration) revert(ctx context.Context, dbm *db.DatabaseManager) error {
	if m.isFunction() {
		return m.FnDown(ctx, dbm)
	}

	_, err := dbm.Execute(ctx, m.SQLDown)

	return err
}
