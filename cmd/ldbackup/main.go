// ldbackup runs one backup-maintenance operation against a Liar's Dice
// database and prints a single result line, meant to be invoked from cron
// or an operator's shell rather than used interactively.
//
// Usage:
//
//	ldbackup -db <path> -backup-dir <dir> <command> [args]
//
// Commands:
//
//	create [name]     Create a manual backup (or a scheduled daily/weekly/
//	                   monthly/yearly backup via -kind)
//	list              List backups, oldest first
//	verify <path>     Verify a backup's checksum
//	restore <path>    Restore the database from a backup
//	prune             Apply the retention policy, deleting expired backups
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/liarsdice/persistence/pkg/backup"
)

// Config holds the flags shared by every ldbackup subcommand.
type Config struct {
	DBPath    string
	BackupDir string
	Compress  bool
	Kind      string
}

var errMissingArg = errors.New("missing required argument")

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg := Config{}

	fs := flag.NewFlagSet("ldbackup", flag.ContinueOnError)
	fs.StringVar(&cfg.DBPath, "db", "liarsdice.db", "SQLite database file")
	fs.StringVar(&cfg.BackupDir, "backup-dir", "backups", "backup directory")
	fs.BoolVar(&cfg.Compress, "compress", true, "gzip-compress new backups")
	fs.StringVar(&cfg.Kind, "kind", "manual", "backup tier for 'create': manual|daily|weekly|monthly|yearly")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ldbackup [flags] <command> [args]\n\n")
		fmt.Fprintf(os.Stderr, "Commands: create [name] | list | verify <path> | restore <path> | prune\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		fs.Usage()
		return errors.New("missing command")
	}

	bm, err := backup.NewBackupManager(backup.Config{
		DBPath:    cfg.DBPath,
		Dir:       cfg.BackupDir,
		Retention: backup.DefaultRetentionPolicy(),
		Compress:  cfg.Compress,
	})
	if err != nil {
		return fmt.Errorf("opening backup manager: %w", err)
	}

	cmdName := fs.Arg(0)
	cmdArgs := fs.Args()[1:]

	switch cmdName {
	case "create":
		return runCreate(bm, cfg, cmdArgs)
	case "list":
		return runList(bm)
	case "verify":
		return runVerify(bm, cmdArgs)
	case "restore":
		return runRestore(bm, cmdArgs)
	case "prune":
		return runPrune(bm)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command: %s", cmdName)
	}
}

func runCreate(bm *backup.BackupManager, cfg Config, args []string) error {
	if cfg.Kind != "manual" {
		info, err := bm.CreateScheduledBackup(backup.Kind(cfg.Kind))
		if err != nil {
			return err
		}

		fmt.Printf("created %s backup: %s (%d bytes)\n", cfg.Kind, info.FilePath, info.Size)

		return nil
	}

	name := ""
	if len(args) > 0 {
		name = args[0]
	}

	info, err := bm.CreateBackup(name)
	if err != nil {
		return err
	}

	fmt.Printf("created backup: %s (%d bytes)\n", info.FilePath, info.Size)

	return nil
}

func runList(bm *backup.BackupManager) error {
	backups, err := bm.ListBackups()
	if err != nil {
		return err
	}

	if len(backups) == 0 {
		fmt.Println("(no backups)")
		return nil
	}

	for _, b := range backups {
		fmt.Printf("%-8s %-40s %10d bytes  %s\n", b.Kind, b.FilePath, b.Size, b.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	return nil
}

func runVerify(bm *backup.BackupManager, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: path", errMissingArg)
	}

	ok, err := bm.VerifyBackup(args[0])
	if err != nil {
		return err
	}

	if !ok {
		fmt.Printf("INVALID: %s (checksum mismatch)\n", args[0])
		os.Exit(1)
	}

	fmt.Printf("OK: %s\n", args[0])

	return nil
}

func runRestore(bm *backup.BackupManager, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: path", errMissingArg)
	}

	if err := bm.RestoreFromBackup(args[0]); err != nil {
		return err
	}

	fmt.Printf("restored from %s\n", args[0])

	return nil
}

func runPrune(bm *backup.BackupManager) error {
	if err := bm.ApplyRetentionPolicy(); err != nil {
		return err
	}

	fmt.Println("retention policy applied")

	return nil
}
