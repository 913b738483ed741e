// liarsdiced is the administrative console for a Liar's Dice persistence
// store: it initializes the schema, runs migrations, applies seed data, and
// drops into an interactive shell for ad hoc SQL and backup/restore.
//
// Usage:
//
//	liarsdiced [global flags] <command> [args]
//
// Global flags:
//
//	--db <path>          SQLite database file (default: liarsdice.db)
//	-c, --config <path>  Explicit config file (json/jsonc/xml)
//	--backup-dir <dir>   Backup directory (default: backups)
//
// Commands:
//
//	init                 Create schema, run migrations, apply seed data
//	migrate [--to N]     Migrate to version N (default: latest)
//	status               Print current schema version and pool stats
//	seed <file>          Apply a seed-data file
//	backup [name]        Create a manual backup
//	restore <path>       Restore the database from a backup file
//	inspect              Start the interactive shell
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/liarsdice/persistence/internal/config"
	"github.com/liarsdice/persistence/internal/corelog"
	"github.com/liarsdice/persistence/pkg/backup"
	"github.com/liarsdice/persistence/pkg/db"
	"github.com/liarsdice/persistence/pkg/schema"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

const globalOptionsHelp = `  -c, --config <path>    Explicit config file (json/jsonc/xml)
  --db <path>            SQLite database file (default: liarsdice.db)
  --backup-dir <dir>     Backup directory (default: backups)`

func printUsage(w io.Writer) {
	fprintln(w, "liarsdiced - Liar's Dice persistence console")
	fprintln(w)
	fprintln(w, "Usage: liarsdiced [flags] <command> [args]")
	fprintln(w)
	fprintln(w, "Flags:")
	fprintln(w, globalOptionsHelp)
	fprintln(w)
	fprintln(w, "Commands:")
	fprintln(w, "  init                 Create schema, run migrations, apply seed data")
	fprintln(w, "  migrate [--to N]     Migrate to version N (default: latest)")
	fprintln(w, "  status               Print current schema version and pool stats")
	fprintln(w, "  seed <file>          Apply a seed-data file")
	fprintln(w, "  backup [name]        Create a manual backup")
	fprintln(w, "  restore <path>       Restore the database from a backup file")
	fprintln(w, "  inspect              Start the interactive shell")
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func run(args []string, out, errOut io.Writer) int {
	globalFlags := flag.NewFlagSet("liarsdiced", flag.ContinueOnError)
	globalFlags.SetInterspersed(false)
	globalFlags.Usage = func() {}
	globalFlags.SetOutput(&strings.Builder{})

	flagDB := globalFlags.String("db", "liarsdice.db", "SQLite database `file`")
	flagConfig := globalFlags.StringP("config", "c", "", "Explicit config `file`")
	flagBackupDir := globalFlags.String("backup-dir", "backups", "Backup `directory`")
	flagHelp := globalFlags.BoolP("help", "h", false, "Show help")

	if err := globalFlags.Parse(args); err != nil {
		fprintln(errOut, "error:", err)
		return 1
	}

	rest := globalFlags.Args()

	if *flagHelp || len(rest) == 0 {
		printUsage(out)
		if len(rest) == 0 {
			return 1
		}
		return 0
	}

	env := os.Environ()

	cwd, err := os.Getwd()
	if err != nil {
		fprintln(errOut, "error:", err)
		return 1
	}

	doc, err := config.LoadConfig(cwd, *flagConfig, env)
	if err != nil {
		fprintln(errOut, "error loading config:", err)
		return 1
	}

	app := &application{
		dbPath:    *flagDB,
		backupDir: *flagBackupDir,
		doc:       doc,
		logger:    corelog.New(errOut),
		out:       out,
		errOut:    errOut,
	}

	cmdName, cmdArgs := rest[0], rest[1:]

	var cmdErr error
	switch cmdName {
	case "init":
		cmdErr = app.cmdInit(cmdArgs)
	case "migrate":
		cmdErr = app.cmdMigrate(cmdArgs)
	case "status":
		cmdErr = app.cmdStatus(cmdArgs)
	case "seed":
		cmdErr = app.cmdSeed(cmdArgs)
	case "backup":
		cmdErr = app.cmdBackup(cmdArgs)
	case "restore":
		cmdErr = app.cmdRestore(cmdArgs)
	case "inspect":
		cmdErr = app.cmdInspect(cmdArgs)
	default:
		fprintln(errOut, "error: unknown command:", cmdName)
		printUsage(errOut)
		return 1
	}

	if cmdErr != nil {
		fprintln(errOut, "error:", cmdErr)
		return 1
	}

	return 0
}

// application bundles the flags and loaded config every subcommand needs to
// open its own DatabaseManager; each subcommand opens and closes its own
// pool rather than sharing one across the process lifetime.
type application struct {
	dbPath    string
	backupDir string
	doc       config.Document
	logger    corelog.Logger
	out       io.Writer
	errOut    io.Writer
}

func (a *application) openManager(ctx context.Context) (*db.DatabaseManager, func(), error) {
	pc := config.DefaultPoolConfig()

	pool, err := db.NewConnectionPool(ctx, db.PoolConfig{
		URI:                 a.dbPath,
		Pragmas:             pragmasFor(a.doc),
		StatementCacheSize:  64,
		Min:                 pc.MinConnections,
		Max:                 pc.MaxConnections,
		AcquireTimeout:      time.Duration(pc.AcquireTimeoutMS) * time.Millisecond,
		IdleEvictAfter:      time.Duration(pc.IdleEvictAfterS) * time.Second,
		HealthCheckInterval: time.Duration(pc.HealthCheckIntervalS) * time.Second,
		HealthCheckEnabled:  pc.HealthCheckEnabled,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening pool: %w", err)
	}

	dbm := db.NewDatabaseManager(pool, time.Duration(pc.AcquireTimeoutMS)*time.Millisecond)

	return dbm, func() { _ = pool.Close() }, nil
}

func pragmasFor(doc config.Document) db.PragmaConfig {
	p := db.DefaultPragmaConfig()

	p.ForeignKeys = doc.Database.Features.EnableForeignKeys

	if doc.Database.Performance.JournalMode != "" {
		p.JournalWAL = strings.EqualFold(doc.Database.Performance.JournalMode, "WAL")
	}

	if doc.Database.Performance.Synchronous != "" {
		p.Synchronous = doc.Database.Performance.Synchronous
	}

	if doc.Database.Performance.CacheSize != 0 {
		p.CacheSizeKiB = -doc.Database.Performance.CacheSize
	}

	if doc.Database.Performance.PageSize != 0 {
		p.PageSizeBytes = doc.Database.Performance.PageSize
	}

	return p
}

func (a *application) backupManager() (*backup.BackupManager, error) {
	return backup.NewBackupManager(backup.Config{
		DBPath:    a.dbPath,
		Dir:       a.backupDir,
		Retention: backup.DefaultRetentionPolicy(),
		Compress:  true,
	})
}

func (a *application) cmdInit(args []string) error {
	ctx := context.Background()

	dbm, closePool, err := a.openManager(ctx)
	if err != nil {
		return err
	}
	defer closePool()

	sm := schema.NewSchemaManager(dbm)

	if err := sm.EnsureVersionTable(ctx); err != nil {
		return fmt.Errorf("ensuring version table: %w", err)
	}

	dir := a.doc.Database.MigrationDirectory
	if dir != "" {
		if _, statErr := os.Stat(dir); statErr == nil {
			if err := sm.LoadDirectory(ctx, dir); err != nil {
				return fmt.Errorf("loading migrations from %s: %w", dir, err)
			}
		}
	}

	if a.doc.Database.RunMigrations {
		if err := sm.MigrateTo(ctx, schema.Latest); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
	}

	if a.doc.Database.ValidateSchema {
		report, err := sm.Validate(ctx)
		if err != nil {
			return fmt.Errorf("validating schema: %w", err)
		}

		if !report.Valid {
			return fmt.Errorf("schema validation failed: %v", report.Errors)
		}
	}

	if a.doc.Database.SeedData && a.doc.Database.SeedDataFile != "" {
		seed, err := config.LoadSeedFile(a.doc.Database.SeedDataFile)
		if err != nil {
			return fmt.Errorf("loading seed file: %w", err)
		}

		if err := config.ApplySeedData(ctx, dbm, seed); err != nil {
			return fmt.Errorf("applying seed data: %w", err)
		}
	}

	a.logger.Info("database initialized", "path", a.dbPath)
	fprintln(a.out, "initialized", a.dbPath)

	return nil
}

func (a *application) cmdMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	target := fs.Int("to", schema.Latest, "target schema `version` (default: latest)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()

	dbm, closePool, err := a.openManager(ctx)
	if err != nil {
		return err
	}
	defer closePool()

	sm := schema.NewSchemaManager(dbm)

	if err := sm.EnsureVersionTable(ctx); err != nil {
		return err
	}

	dir := a.doc.Database.MigrationDirectory
	if dir != "" {
		if err := sm.LoadDirectory(ctx, dir); err != nil {
			return fmt.Errorf("loading migrations from %s: %w", dir, err)
		}
	}

	if err := sm.MigrateTo(ctx, *target); err != nil {
		return fmt.Errorf("migrating: %w", err)
	}

	version, err := sm.CurrentVersion(ctx)
	if err != nil {
		return err
	}

	fprintln(a.out, "schema at version", version)

	return nil
}

func (a *application) cmdStatus(args []string) error {
	ctx := context.Background()

	dbm, closePool, err := a.openManager(ctx)
	if err != nil {
		return err
	}
	defer closePool()

	sm := schema.NewSchemaManager(dbm)

	version, err := sm.CurrentVersion(ctx)
	if err != nil {
		return err
	}

	active, idle, total := dbm.Pool().Stats()

	fprintln(a.out, "schema version:", version)
	fprintln(a.out, fmt.Sprintf("pool: active=%d idle=%d total=%d", active, idle, total))

	return nil
}

func (a *application) cmdSeed(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: liarsdiced seed <file>")
	}

	ctx := context.Background()

	seed, err := config.LoadSeedFile(args[0])
	if err != nil {
		return err
	}

	dbm, closePool, err := a.openManager(ctx)
	if err != nil {
		return err
	}
	defer closePool()

	if err := config.ApplySeedData(ctx, dbm, seed); err != nil {
		return err
	}

	fprintln(a.out, "applied", len(seed.SeedData), "seed entries")

	return nil
}

func (a *application) cmdBackup(args []string) error {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}

	bm, err := a.backupManager()
	if err != nil {
		return err
	}

	info, err := bm.CreateBackup(name)
	if err != nil {
		return err
	}

	fprintln(a.out, "created backup", info.FilePath, "size", info.Size)

	return nil
}

func (a *application) cmdRestore(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: liarsdiced restore <path>")
	}

	bm, err := a.backupManager()
	if err != nil {
		return err
	}

	if err := bm.RestoreFromBackup(args[0]); err != nil {
		return err
	}

	fprintln(a.out, "restored", a.dbPath, "from", args[0])

	return nil
}

func (a *application) cmdInspect(args []string) error {
	ctx := context.Background()

	dbm, closePool, err := a.openManager(ctx)
	if err != nil {
		return err
	}
	defer closePool()

	bm, err := a.backupManager()
	if err != nil {
		return err
	}

	sm := schema.NewSchemaManager(dbm)

	r := &repl{
		dbm:    dbm,
		sm:     sm,
		bm:     bm,
		dbPath: a.dbPath,
		out:    a.out,
	}

	return r.run()
}
