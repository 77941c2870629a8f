package manifest

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/ethan-hawksley/yt-play/internal/shared"
)

// FileLock guards a playlist directory against concurrent syncs from
// separate yt-play processes, using flock(2) advisory locking.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock creates a lock for the given path. The lock file lives at
// path + ".lock" and is not acquired until Lock is called.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path + ".lock"}
}

// Lock acquires an exclusive lock, polling until the timeout elapses.
// Returns shared.ErrLockTimeout if another process holds the lock for
// the whole window.
func (l *FileLock) Lock(timeout time.Duration) error {
	var err error
	l.file, err = os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open lock file %s: %w", l.path, err)
	}

	deadline := time.Now().Add(timeout)
	for {
		err = syscall.Flock(int(l.file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			return nil
		}
		if !time.Now().Before(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	l.file.Close()
	l.file = nil
	return fmt.Errorf("%w: %s", shared.ErrLockTimeout, l.path)
}

// Unlock releases the lock and removes the lock file.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}
	syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	l.file.Close()
	os.Remove(l.path)
	l.file = nil
	return nil
}
