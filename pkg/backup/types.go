package backup

import "time"

// Kind identifies which retention tier a backup belongs to.
type Kind string

const (
	Manual  Kind = "manual"
	Daily   Kind = "daily"
	Weekly  Kind = "weekly"
	Monthly Kind = "monthly"
	Yearly  Kind = "yearly"
)

// BackupInfo describes one backup file on disk.
type BackupInfo struct {
	FilePath   string
	CreatedAt  time.Time
	Size       int64
	Kind       Kind
	Compressed bool
	Checksum   uint32
}

// RetentionPolicy gives each tier a keep-window plus two size caps. A backup
// older than its tier's window, or individually larger than
// MaxBackupSizeBytes, is deleted by ApplyRetentionPolicy. Once every
// time/size-exempt backup is still over MaxTotalSizeBytes combined,
// ApplyRetentionPolicy evicts the remaining backups oldest-first until the
// total is back under budget. A zero size cap disables that cap; manual
// backups use the Daily window.
type RetentionPolicy struct {
	DailyKeepDays     int
	WeeklyKeepWeeks   int
	MonthlyKeepMonths int
	YearlyKeepYears   int

	// MaxBackupSizeBytes deletes any single backup exceeding it, regardless
	// of age. Zero means no per-backup cap.
	MaxBackupSizeBytes int64

	// MaxTotalSizeBytes bounds the combined size of backups that survive
	// time-window and per-backup eviction, evicting the oldest first. Zero
	// means no directory-wide cap.
	MaxTotalSizeBytes int64
}

// DefaultRetentionPolicy matches the tiers named in the platform's backup
// contract: 7 daily, 4 weekly, 6 monthly, 2 yearly, a 1000 MB per-backup
// cap, and a 10 GB total directory cap.
func DefaultRetentionPolicy() RetentionPolicy {
	const (
		mb = 1 << 20
		gb = 1 << 30
	)

	return RetentionPolicy{
		DailyKeepDays:     7,
		WeeklyKeepWeeks:   4,
		MonthlyKeepMonths: 6,
		YearlyKeepYears:   2,

		MaxBackupSizeBytes: 1000 * mb,
		MaxTotalSizeBytes:  10 * gb,
	}
}

// window returns how long a backup of kind k is kept before
// ApplyRetentionPolicy deletes it.
func (p RetentionPolicy) window(k Kind) time.Duration {
	const day = 24 * time.Hour

	switch k {
	case Daily, Manual:
		return time.Duration(p.DailyKeepDays) * day
	case Weekly:
		return time.Duration(p.WeeklyKeepWeeks) * 7 * day
	case Monthly:
		return time.Duration(p.MonthlyKeepMonths) * 30 * day
	case Yearly:
		return time.Duration(p.YearlyKeepYears) * 365 * day
	default:
		return time.Duration(p.DailyKeepDays) * day
	}
}

// Config configures a BackupManager.
type Config struct {
	// DBPath is the live database file BackupManager snapshots and restores.
	DBPath string

	// Dir is the directory backup files are written to and read from.
	Dir string

	// Retention governs ApplyRetentionPolicy.
	Retention RetentionPolicy

	// Compress enables gzip compression of new backups.
	Compress bool
}
