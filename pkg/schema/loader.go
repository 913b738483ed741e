package schema

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"

	"github.com/calvinalkan/fileproc"

	"github.com/liarsdice/persistence/pkg/coreerr"
)

var migrationFilePattern = regexp.MustCompile(`^V(\d+)__(.+)\.(up|down)\.sql$`)

// errNotMigrationFile marks a directory entry that doesn't match the
// migration filename pattern; it is filtered out via Options.OnError rather
// than surfaced as a scan failure.
var errNotMigrationFile = errors.New("schema: not a migration file")

type migrationFile struct {
	version     int
	description string
	direction   string // "up" or "down"
	content     string
}

// LoadMigrationsFromDir walks dir (non-recursively) for files matching
// V<digits>__<description>.<up|down>.sql, pairs up/down files sharing a
// version, and returns one Migration per version in ascending order. An up
// file is required for every version found; a down file is optional.
func LoadMigrationsFromDir(ctx context.Context, dir string) ([]Migration, error) {
	opts := fileproc.Options{
		Recursive: false,
		Suffix:    ".sql",
		OnError: func(err error, _, _ int) bool {
			return !errors.Is(err, errNotMigrationFile)
		},
	}

	results, errs := fileproc.ProcessStat(ctx, dir, func(path []byte, _ fileproc.Stat, f fileproc.LazyFile) (*migrationFile, error) {
		name := string(path)

		m := migrationFilePattern.FindStringSubmatch(name)
		if m == nil {
			return nil, errNotMigrationFile
		}

		var version int
		if _, err := fmt.Sscanf(m[1], "%d", &version); err != nil {
			return nil, fmt.Errorf("parse version from %q: %w", name, err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", name, err)
		}

		return &migrationFile{
			version:     version,
			description: m[2],
			direction:   m[3],
			content:     string(content),
		}, nil
	}, opts)

	if len(errs) > 0 {
		return nil, coreerr.Wrap(coreerr.Internal, "scan migration directory", errors.Join(errs...))
	}

	type pair struct {
		description string
		up, down    string
		hasUp       bool
	}

	byVersion := make(map[int]*pair)

	for _, r := range results {
		mf := r.Value

		p, ok := byVersion[mf.version]
		if !ok {
			p = &pair{}
			byVersion[mf.version] = p
		}

		p.description = mf.description

		switch mf.direction {
		case "up":
			p.up = mf.content
			p.hasUp = true
		case "down":
			p.down = mf.content
		}
	}

	versions := make([]int, 0, len(byVersion))
	for v := range byVersion {
		versions = append(versions, v)
	}

	sort.Ints(versions)

	migrations := make([]Migration, 0, len(versions))

	for _, v := range versions {
		p := byVersion[v]
		if !p.hasUp {
			return nil, coreerr.Newf(coreerr.InvalidParameter, "migration version %d has a down file but no up file", v)
		}

		migrations = append(migrations, Migration{
			Version:     v,
			Description: p.description,
			SQLUp:       p.up,
			SQLDown:     p.down,
		})
	}

	return migrations, nil
}
