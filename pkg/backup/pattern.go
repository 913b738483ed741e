package backup

import (
	"fmt"
	"strings"
	"time"
)

// filenamePrefix maps a Kind to the literal prefix its generated filenames
// carry, so ListBackups can classify existing files without parsing dates.
func filenamePrefix(k Kind) string {
	return fmt.Sprintf("backup_%s_", k)
}

// filename builds the strftime-like name create_backup/create_scheduled_backup
// uses for kind k at instant at. Weekly names pair the calendar year with the
// ISO week number, so every day of a week resolves to the same file, except
// a week that spans New Year, whose days fall under two different years.
func filename(k Kind, at time.Time) string {
	at = at.UTC()

	switch k {
	case Weekly:
		_, week := at.ISOWeek()

		return fmt.Sprintf("backup_weekly_%04d_W%02d.db", at.Year(), week)
	case Monthly:
		return fmt.Sprintf("backup_monthly_%04d_%02d.db", at.Year(), int(at.Month()))
	case Yearly:
		return fmt.Sprintf("backup_yearly_%04d.db", at.Year())
	default: // Daily, Manual
		return fmt.Sprintf("backup_%s_%04d%02d%02d_%02d%02d%02d.db",
			k, at.Year(), int(at.Month()), at.Day(), at.Hour(), at.Minute(), at.Second())
	}
}

// kindOf recovers the Kind a generated filename belongs to from its prefix
// (a compressed .db.gz name still carries it and is recognized), or
// ("", false) if name doesn't carry one of our prefixes.
func kindOf(name string) (Kind, bool) {
	for _, k := range []Kind{Manual, Daily, Weekly, Monthly, Yearly} {
		if strings.HasPrefix(name, filenamePrefix(k)) {
			return k, true
		}
	}

	return "", false
}
