package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/tailscale/hujson"

	"github.com/liarsdice/persistence/pkg/coreerr"
	"github.com/liarsdice/persistence/pkg/db"
)

// SeedEntry is one row a seed-data file asks to be present in the database.
type SeedEntry struct {
	Table     string         `json:"table"`
	Values    map[string]any `json:"values"`
	IsUpdate  bool           `json:"is_update"`
	Condition string         `json:"condition,omitempty"`
}

// SeedFile is the top-level shape of a seed_data_file document.
type SeedFile struct {
	SeedData []SeedEntry `json:"seed_data"`
}

// LoadSeedFile reads and parses path as a SeedFile (JSONC via hujson, like
// the init document).
func LoadSeedFile(path string) (SeedFile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled config location
	if err != nil {
		return SeedFile{}, coreerr.Wrap(coreerr.InvalidParameter, "read seed data file "+path, err)
	}

	standardized, stdErr := hujson.Standardize(data)
	if stdErr != nil {
		return SeedFile{}, coreerr.Wrap(coreerr.InvalidParameter, "parse seed data file "+path, stdErr)
	}

	var seed SeedFile

	if err := json.Unmarshal(standardized, &seed); err != nil {
		return SeedFile{}, coreerr.Wrap(coreerr.InvalidParameter, "parse seed data file "+path, err)
	}

	return seed, nil
}

// ApplySeedData runs every entry of seed in one transaction against dbm.
// Entries with IsUpdate=false use INSERT OR IGNORE (so applying the same
// batch twice leaves row counts unchanged); entries with IsUpdate=true run
// an UPDATE guarded by Condition.
func ApplySeedData(ctx context.Context, dbm *db.DatabaseManager, seed SeedFile) error {
	_, err := db.WithTransaction(dbm, ctx, func(txCtx context.Context) (struct{}, error) {
		for _, entry := range seed.SeedData {
			if err := applyEntry(txCtx, dbm, entry); err != nil {
				return struct{}{}, err
			}
		}

		return struct{}{}, nil
	})

	return err
}

func applyEntry(ctx context.Context, dbm *db.DatabaseManager, entry SeedEntry) error {
	if entry.Table == "" {
		return coreerr.New(coreerr.InvalidParameter, "seed entry missing table")
	}

	cols := sortedKeys(entry.Values)

	if entry.IsUpdate {
		return applyUpdate(ctx, dbm, entry, cols)
	}

	return applyInsertOrIgnore(ctx, dbm, entry, cols)
}

func applyInsertOrIgnore(ctx context.Context, dbm *db.DatabaseManager, entry SeedEntry, cols []string) error {
	placeholders := strings.Repeat("?,", len(cols))
	placeholders = strings.TrimSuffix(placeholders, ",")

	query := fmt.Sprintf(
		"INSERT OR IGNORE INTO %s (%s) VALUES (%s)",
		entry.Table, strings.Join(cols, ", "), placeholders,
	)

	_, err := dbm.Execute(ctx, query, valuesFor(entry.Values, cols)...)

	return err
}

func applyUpdate(ctx context.Context, dbm *db.DatabaseManager, entry SeedEntry, cols []string) error {
	if entry.Condition == "" {
		return coreerr.Newf(coreerr.InvalidParameter, "seed entry for table %q is an update with no condition", entry.Table)
	}

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = ?"
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", entry.Table, strings.Join(sets, ", "), entry.Condition)

	_, err := dbm.Execute(ctx, query, valuesFor(entry.Values, cols)...)

	return err
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

func valuesFor(m map[string]any, cols []string) []any {
	values := make([]any, len(cols))
	for i, c := range cols {
		values[i] = m[c]
	}

	return values
}
