package store

import (
	"fmt"
	"os"
	"syscall"
)

// fileLock is an exclusive advisory lock on a single file. It serializes
// check-and-write sequences across processes sharing a store root.
type fileLock struct {
	path string
	file *os.File
}

func newFileLock(path string) *fileLock {
	return &fileLock{path: path}
}

// Lock blocks until the lock is held.
func (fl *fileLock) Lock() error {
	f, err := os.OpenFile(fl.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		f.Close()
		return fmt.Errorf("acquire lock: %w", err)
	}
	fl.file = f
	return nil
}

// Unlock releases the lock. The lock file itself is left in place so other
// processes keep contending on the same inode.
func (fl *fileLock) Unlock() error {
	if fl.file == nil {
		return nil
	}
	if err := syscall.Flock(int(fl.file.Fd()), syscall.LOCK_UN); err != nil {
		fl.file.Close()
		fl.file = nil
		return fmt.Errorf("release lock: %w", err)
	}
	err := fl.file.Close()
	fl.file = nil
	if err != nil {
		return fmt.Errorf("close lock file: %w", err)
	}
	return nil
}
