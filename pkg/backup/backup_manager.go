package backup

import (
	"compress/gzip"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/liarsdice/persistence/internal/fsx"
	"github.com/liarsdice/persistence/pkg/coreerr"
)

// BackupManager snapshots, compresses, retains, and restores the database
// file named by its Config.
type BackupManager struct {
	cfg    Config
	fs     fsx.FS
	writer *fsx.AtomicWriter
}

// NewBackupManager creates a BackupManager operating on the real filesystem.
// cfg.Dir is created if it does not already exist.
func NewBackupManager(cfg Config) (*BackupManager, error) {
	return newBackupManager(cfg, fsx.NewReal())
}

func newBackupManager(cfg Config, fs fsx.FS) (*BackupManager, error) {
	if cfg.DBPath == "" {
		return nil, coreerr.New(coreerr.InvalidParameter, "backup: Config.DBPath is required")
	}

	if cfg.Dir == "" {
		return nil, coreerr.New(coreerr.InvalidParameter, "backup: Config.Dir is required")
	}

	if err := fs.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, coreerr.Wrap(coreerr.Internal, "create backup directory", err)
	}

	return &BackupManager{cfg: cfg, fs: fs, writer: fsx.NewAtomicWriter(fs)}, nil
}

// CreateBackup copies the live database file into the backup directory under
// name, or under an auto-generated manual-tier name if name is empty. If
// compression is enabled the copy is gzip-compressed and the uncompressed
// copy removed.
func (b *BackupManager) CreateBackup(name string) (*BackupInfo, error) {
	kind := Manual

	if name == "" {
		name = filename(Manual, time.Now())
	} else if k, ok := kindOf(name); ok {
		kind = k
	}

	return b.createNamed(name, kind)
}

// CreateScheduledBackup creates a backup using kind's filename pattern. If a
// backup already exists at the resolved filename, its BackupInfo is returned
// without copying again.
func (b *BackupManager) CreateScheduledBackup(kind Kind) (*BackupInfo, error) {
	name := filename(kind, time.Now())

	resolved := name
	if b.cfg.Compress {
		resolved += ".gz"
	}

	exists, err := b.fs.Exists(filepath.Join(b.cfg.Dir, resolved))
	if err != nil {
		return nil, coreerr.Wrap(coreerr.Internal, "stat scheduled backup", err)
	}

	if exists {
		return b.describe(resolved, kind)
	}

	return b.createNamed(name, kind)
}

func (b *BackupManager) createNamed(name string, kind Kind) (*BackupInfo, error) {
	dst := filepath.Join(b.cfg.Dir, name)

	src, err := b.fs.Open(b.cfg.DBPath)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.Internal, "open live database", err)
	}

	checksum, size, writeErr := b.writer.WriteChecksummed(dst, src, b.writer.DefaultOptions())
	_ = src.Close()

	if writeErr != nil {
		return nil, coreerr.Wrap(coreerr.Internal, "copy live database to backup", writeErr)
	}

	compressed := false

	if b.cfg.Compress {
		compressedPath, gzChecksum, gzSize, err := b.compress(dst)
		if err != nil {
			return nil, err
		}

		if err := b.fs.Remove(dst); err != nil {
			return nil, coreerr.Wrap(coreerr.Internal, "remove uncompressed backup", err)
		}

		dst = compressedPath
		compressed = true
		checksum = gzChecksum
		size = gzSize
	}

	if err := b.writeSidecar(dst, checksum); err != nil {
		return nil, err
	}

	return &BackupInfo{
		FilePath:   dst,
		CreatedAt:  time.Now().UTC(),
		Size:       size,
		Kind:       kind,
		Compressed: compressed,
		Checksum:   checksum,
	}, nil
}

func (b *BackupManager) compress(path string) (string, uint32, int64, error) {
	src, err := b.fs.Open(path)
	if err != nil {
		return "", 0, 0, coreerr.Wrap(coreerr.Internal, "open backup for compression", err)
	}
	defer src.Close()

	pr, pw := io.Pipe()

	go func() {
		gz := gzip.NewWriter(pw)

		_, copyErr := io.Copy(gz, src)
		closeErr := gz.Close()

		_ = pw.CloseWithError(firstNonNil(copyErr, closeErr))
	}()

	dst := path + ".gz"

	checksum, size, err := b.writer.WriteChecksummed(dst, pr, b.writer.DefaultOptions())
	if err != nil {
		return "", 0, 0, coreerr.Wrap(coreerr.Internal, "write compressed backup", err)
	}

	return dst, checksum, size, nil
}

func firstNonNil(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	return nil
}

func (b *BackupManager) checksumAndSize(path string) (uint32, int64, error) {
	f, err := b.fs.Open(path)
	if err != nil {
		return 0, 0, coreerr.Wrap(coreerr.Internal, "open backup for checksum", err)
	}
	defer f.Close()

	h := crc32.NewIEEE()

	size, err := io.Copy(h, f)
	if err != nil {
		return 0, 0, coreerr.Wrap(coreerr.Internal, "read backup for checksum", err)
	}

	return h.Sum32(), size, nil
}

func sidecarPath(backupPath string) string { return backupPath + ".crc32" }

// writeSidecar records backupPath's checksum in a small companion file. This
// uses natefinch/atomic directly rather than the AtomicWriter used for the
// database copy itself: the sidecar is a few bytes and doesn't need a parent
// directory fsync, just rename-durability against a torn write.
func (b *BackupManager) writeSidecar(backupPath string, checksum uint32) error {
	content := strings.NewReader(fmt.Sprintf("%08x", checksum))

	if err := atomic.WriteFile(sidecarPath(backupPath), content); err != nil {
		return coreerr.Wrap(coreerr.Internal, "write checksum sidecar", err)
	}

	return nil
}

func (b *BackupManager) readSidecar(backupPath string) (uint32, bool, error) {
	data, err := b.fs.ReadFile(sidecarPath(backupPath))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}

		return 0, false, coreerr.Wrap(coreerr.Internal, "read checksum sidecar", err)
	}

	var checksum uint32
	if _, err := fmt.Sscanf(string(data), "%08x", &checksum); err != nil {
		return 0, false, coreerr.Wrap(coreerr.Internal, "parse checksum sidecar", err)
	}

	return checksum, true, nil
}

func (b *BackupManager) describe(name string, kind Kind) (*BackupInfo, error) {
	path := filepath.Join(b.cfg.Dir, name)

	info, err := b.fs.Stat(path)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.Internal, "stat existing backup", err)
	}

	checksum, ok, err := b.readSidecar(path)
	if err != nil {
		return nil, err
	}

	if !ok {
		checksum, _, err = b.checksumAndSize(path)
		if err != nil {
			return nil, err
		}
	}

	return &BackupInfo{
		FilePath:   path,
		CreatedAt:  info.ModTime().UTC(),
		Size:       info.Size(),
		Kind:       kind,
		Compressed: strings.HasSuffix(name, ".gz"),
		Checksum:   checksum,
	}, nil
}

// VerifyBackup recomputes path's CRC-32 and compares it against the checksum
// recorded when the backup was created. ok is false on mismatch, not on a
// missing sidecar (reported as an error instead, since that backup was never
// created by this package).
func (b *BackupManager) VerifyBackup(path string) (ok bool, err error) {
	want, found, err := b.readSidecar(path)
	if err != nil {
		return false, err
	}

	if !found {
		return false, coreerr.Newf(coreerr.InvalidParameter, "no checksum recorded for backup %q", path)
	}

	got, _, err := b.checksumAndSize(path)
	if err != nil {
		return false, err
	}

	return got == want, nil
}

// ListBackups returns every backup file recognised in the backup directory,
// sorted oldest first.
func (b *BackupManager) ListBackups() ([]BackupInfo, error) {
	entries, err := b.fs.ReadDir(b.cfg.Dir)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.Internal, "read backup directory", err)
	}

	var backups []BackupInfo

	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".crc32") {
			continue
		}

		kind, ok := kindOf(entry.Name())
		if !ok {
			continue
		}

		info, err := b.describe(entry.Name(), kind)
		if err != nil {
			return nil, err
		}

		backups = append(backups, *info)
	}

	sort.Slice(backups, func(i, j int) bool { return backups[i].CreatedAt.Before(backups[j].CreatedAt) })

	return backups, nil
}

// ApplyRetentionPolicy deletes every known backup older than its tier's
// retention window or larger than Retention.MaxBackupSizeBytes, then — if
// the surviving backups still exceed Retention.MaxTotalSizeBytes combined —
// evicts the oldest of those survivors until the total fits. Manual backups
// use the daily window. Idempotent: a second call immediately after the
// first deletes nothing.
func (b *BackupManager) ApplyRetentionPolicy() error {
	backups, err := b.ListBackups()
	if err != nil {
		return err
	}

	policy := b.cfg.Retention
	now := time.Now()

	kept := make([]BackupInfo, 0, len(backups))

	for _, info := range backups {
		expired := now.Sub(info.CreatedAt) > policy.window(info.Kind)
		oversized := policy.MaxBackupSizeBytes > 0 && info.Size > policy.MaxBackupSizeBytes

		if !expired && !oversized {
			kept = append(kept, info)
			continue
		}

		if err := b.removeBackup(info); err != nil {
			return err
		}
	}

	if policy.MaxTotalSizeBytes <= 0 {
		return nil
	}

	var total int64

	for _, info := range kept {
		total += info.Size
	}

	// kept is oldest-first (ListBackups order): evict the oldest survivors
	// first until the combined size is back under the directory cap.
	for _, info := range kept {
		if total <= policy.MaxTotalSizeBytes {
			break
		}

		if err := b.removeBackup(info); err != nil {
			return err
		}

		total -= info.Size
	}

	return nil
}

func (b *BackupManager) removeBackup(info BackupInfo) error {
	if err := b.fs.Remove(info.FilePath); err != nil && !os.IsNotExist(err) {
		return coreerr.Wrap(coreerr.Internal, "remove expired backup", err)
	}

	if err := b.fs.Remove(sidecarPath(info.FilePath)); err != nil && !os.IsNotExist(err) {
		return coreerr.Wrap(coreerr.Internal, "remove expired backup checksum", err)
	}

	return nil
}

// RestoreFromBackup verifies path's checksum, decompresses it if needed,
// saves a side-copy of the current live database, then overwrites the live
// database with the backup's contents under an exclusive restore lock.
// Callers must ensure no Connections are active during the call. On any
// failure the side-copy is restored and the error is promoted to Internal.
func (b *BackupManager) RestoreFromBackup(path string) error {
	ok, err := b.VerifyBackup(path)
	if err != nil {
		return coreerr.Wrap(coreerr.Internal, "verify backup before restore", err)
	}

	if !ok {
		return coreerr.New(coreerr.Internal, "backup checksum mismatch, refusing to restore")
	}

	lock, err := acquireRestoreLock(b.fs, b.cfg.DBPath, restoreLockTimeout)
	if err != nil {
		return coreerr.Wrap(coreerr.Internal, "acquire restore lock", err)
	}
	defer lock.release()

	sideCopy := b.cfg.DBPath + ".restore_backup"
	if err := b.sideCopyCurrent(sideCopy); err != nil {
		return coreerr.Wrap(coreerr.Internal, "save side-copy before restore", err)
	}

	if err := b.overwriteLiveFrom(path); err != nil {
		if restoreErr := b.restoreSideCopy(sideCopy); restoreErr != nil {
			return coreerr.Wrap(coreerr.Internal, "restore failed and side-copy recovery failed", errors.Join(err, restoreErr))
		}

		return coreerr.Wrap(coreerr.Internal, "restore backup, side-copy recovered", err)
	}

	_ = b.fs.Remove(sideCopy)

	return nil
}

func (b *BackupManager) sideCopyCurrent(sideCopy string) error {
	exists, err := b.fs.Exists(b.cfg.DBPath)
	if err != nil {
		return err
	}

	if !exists {
		return nil
	}

	src, err := b.fs.Open(b.cfg.DBPath)
	if err != nil {
		return err
	}
	defer src.Close()

	return b.writer.WriteWithDefaults(sideCopy, src)
}

func (b *BackupManager) restoreSideCopy(sideCopy string) error {
	exists, err := b.fs.Exists(sideCopy)
	if err != nil || !exists {
		return err
	}

	src, err := b.fs.Open(sideCopy)
	if err != nil {
		return err
	}
	defer src.Close()

	return b.writer.WriteWithDefaults(b.cfg.DBPath, src)
}

// overwriteLiveFrom writes the live database file from backupPath, which may
// be gzip-compressed.
func (b *BackupManager) overwriteLiveFrom(backupPath string) error {
	src, err := b.fs.Open(backupPath)
	if err != nil {
		return err
	}
	defer src.Close()

	var r io.Reader = src

	if strings.HasSuffix(backupPath, ".gz") {
		gz, err := gzip.NewReader(src)
		if err != nil {
			return err
		}
		defer gz.Close()

		r = gz
	}

	return b.writer.WriteWithDefaults(b.cfg.DBPath, r)
}
