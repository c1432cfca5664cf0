package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileLock is an exclusive lock on a file, shared between processes.
// A FileLock is not safe for concurrent use.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock returns an unheld lock on path.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// Path returns the lock file location.
func (l *FileLock) Path() string { return l.path }

// TryLock takes the lock without blocking. It reports false when another holder has it.
func (l *FileLock) TryLock() (bool, error) {
	if l.file != nil {
		return true, nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), DirModeSecure); err != nil {
		return false, fmt.Errorf("failed to create lock dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, FileModeSecure)
	if err != nil {
		return false, fmt.Errorf("failed to open lock file %s: %w", l.path, err)
	}
	ok, err := lockFile(f)
	if err != nil || !ok {
		_ = f.Close()
		return false, err
	}
	l.file = f
	return true, nil
}

// Unlock releases a held lock. The lock file stays on disk.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil
	if err := unlockFile(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to unlock %s: %w", l.path, err)
	}
	return f.Close()
}
