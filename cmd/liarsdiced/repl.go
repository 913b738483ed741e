package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/liarsdice/persistence/pkg/backup"
	"github.com/liarsdice/persistence/pkg/db"
	"github.com/liarsdice/persistence/pkg/schema"
)

// repl is the interactive shell started by the inspect command: ad hoc SQL
// against the live database plus the same migrate/backup/restore operations
// the non-interactive subcommands expose.
type repl struct {
	dbm    *db.DatabaseManager
	sm     *schema.SchemaManager
	bm     *backup.BackupManager
	dbPath string
	out    io.Writer
	liner  *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".liarsdiced_history")
}

func (r *repl) run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Fprintf(r.out, "liarsdiced inspect - %s\n", r.dbPath)
	fmt.Fprintln(r.out, "Type 'help' for available commands.")
	fmt.Fprintln(r.out)

	for {
		line, err := r.liner.Prompt("liarsdiced> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Fprintln(r.out, "\nBye!")
				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		cmd, rest, _ := strings.Cut(line, " ")
		cmd = strings.ToLower(cmd)
		rest = strings.TrimSpace(rest)

		switch cmd {
		case "exit", "quit", "q":
			fmt.Fprintln(r.out, "Bye!")
			r.saveHistory()

			return nil

		case "help", "?":
			r.printHelp()

		case "sql":
			r.cmdSQL(rest)

		case "tables":
			r.cmdSQL("SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")

		case "status":
			r.cmdStatus()

		case "migrate":
			r.cmdMigrate(rest)

		case "backup":
			r.cmdBackup(rest)

		case "restore":
			r.cmdRestore(rest)

		default:
			fmt.Fprintf(r.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()

	return nil
}

func (r *repl) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (r *repl) completer(line string) []string {
	commands := []string{"sql", "tables", "status", "migrate", "backup", "restore", "help", "exit", "quit", "q"}

	var completions []string

	lower := strings.ToLower(line)
	for _, c := range commands {
		if strings.HasPrefix(c, lower) {
			completions = append(completions, c)
		}
	}

	return completions
}

func (r *repl) printHelp() {
	fmt.Fprintln(r.out, "Commands:")
	fmt.Fprintln(r.out, "  sql <query>          Run an arbitrary SQL statement")
	fmt.Fprintln(r.out, "  tables               List tables")
	fmt.Fprintln(r.out, "  status               Show schema version and pool stats")
	fmt.Fprintln(r.out, "  migrate [version]    Migrate to version (default: latest)")
	fmt.Fprintln(r.out, "  backup [name]        Create a manual backup")
	fmt.Fprintln(r.out, "  restore <path>       Restore from a backup file")
	fmt.Fprintln(r.out, "  help                 Show this help")
	fmt.Fprintln(r.out, "  exit / quit / q      Exit")
}

func (r *repl) cmdSQL(query string) {
	if query == "" {
		fmt.Fprintln(r.out, "Usage: sql <query>")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pooled, err := r.dbm.Pool().Acquire(ctx, 5*time.Second)
	if err != nil {
		fmt.Fprintf(r.out, "Error acquiring connection: %v\n", err)
		return
	}
	defer pooled.Release()

	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(query)), "select") {
		result, err := pooled.Conn().DB().ExecContext(ctx, query)
		if err != nil {
			fmt.Fprintf(r.out, "Error: %v\n", err)
			return
		}

		affected, _ := result.RowsAffected()
		fmt.Fprintf(r.out, "OK: %d row(s) affected\n", affected)

		return
	}

	rows, err := pooled.Conn().DB().QueryContext(ctx, query)
	if err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", err)
		return
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", err)
		return
	}

	fmt.Fprintln(r.out, strings.Join(cols, " | "))

	printed := 0

	for rows.Next() {
		values := make([]any, len(cols))
		scanTo := make([]any, len(cols))

		for i := range values {
			scanTo[i] = &values[i]
		}

		if err := rows.Scan(scanTo...); err != nil {
			fmt.Fprintf(r.out, "Error scanning row: %v\n", err)
			return
		}

		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = fmt.Sprintf("%v", v)
		}

		fmt.Fprintln(r.out, strings.Join(parts, " | "))
		printed++
	}

	if err := rows.Err(); err != nil {
		fmt.Fprintf(r.out, "Error iterating rows: %v\n", err)
		return
	}

	fmt.Fprintf(r.out, "(%d row(s))\n", printed)
}

func (r *repl) cmdStatus() {
	ctx := context.Background()

	version, err := r.sm.CurrentVersion(ctx)
	if err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", err)
		return
	}

	active, idle, total := r.dbm.Pool().Stats()

	fmt.Fprintf(r.out, "schema version: %d\n", version)
	fmt.Fprintf(r.out, "pool: active=%d idle=%d total=%d\n", active, idle, total)
}

func (r *repl) cmdMigrate(arg string) {
	target := schema.Latest

	if arg != "" {
		v, err := strconv.Atoi(arg)
		if err != nil {
			fmt.Fprintf(r.out, "Error parsing version: %v\n", err)
			return
		}

		target = v
	}

	if err := r.sm.MigrateTo(context.Background(), target); err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", err)
		return
	}

	fmt.Fprintln(r.out, "OK: migrated")
}

func (r *repl) cmdBackup(name string) {
	info, err := r.bm.CreateBackup(name)
	if err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", err)
		return
	}

	fmt.Fprintf(r.out, "OK: created backup %s (%d bytes)\n", info.FilePath, info.Size)
}

func (r *repl) cmdRestore(path string) {
	if path == "" {
		fmt.Fprintln(r.out, "Usage: restore <path>")
		return
	}

	answer, err := r.liner.Prompt(fmt.Sprintf("Restore %s from %s? (yes/no): ", r.dbPath, path))
	if err != nil {
		fmt.Fprintln(r.out, "Cancelled.")
		return
	}

	answer = strings.TrimSpace(strings.ToLower(answer))
	if answer != "yes" && answer != "y" {
		fmt.Fprintln(r.out, "Cancelled.")
		return
	}

	if err := r.bm.RestoreFromBackup(path); err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", err)
		return
	}

	fmt.Fprintln(r.out, "OK: restored. Reopen the database to see new data.")
}
