package backup

import (
	"errors"
	"os"
	"syscall"
	"time"

	"github.com/liarsdice/persistence/internal/fsx"
)

// restoreLockTimeout bounds how long RestoreFromBackup waits for exclusive
// access to the live database file before giving up.
const restoreLockTimeout = 5 * time.Second

var errRestoreLockTimeout = errors.New("backup: timed out waiting for restore lock")

// restoreLock is an advisory exclusive flock on a sentinel file sitting
// alongside the live database, held for the duration of a restore so that a
// concurrent restore can't interleave with this one.
type restoreLock struct {
	file fsx.File
}

func acquireRestoreLock(fs fsx.FS, dbPath string, timeout time.Duration) (*restoreLock, error) {
	lockPath := dbPath + ".restore.lock"

	file, err := fs.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)

	const retryInterval = 10 * time.Millisecond

	for {
		flockErr := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if flockErr == nil {
			return &restoreLock{file: file}, nil
		}

		if time.Now().After(deadline) {
			_ = file.Close()

			return nil, errRestoreLockTimeout
		}

		time.Sleep(retryInterval)
	}
}

func (l *restoreLock) release() {
	_ = syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	_ = l.file.Close()
}
