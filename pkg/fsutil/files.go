package fsutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// TempFile is a scoped temporary file. Callers defer Cleanup right after
// creation so the file is removed on every exit path.
type TempFile struct {
	*os.File
	path string
	kept bool
}

// CreateTemp creates a temporary file in dir (created if missing) with the given pattern.
func CreateTemp(dir, pattern string) (*TempFile, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, DirModeSecure); err != nil {
			return nil, fmt.Errorf("failed to create temp dir %s: %w", dir, err)
		}
	}
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	return &TempFile{File: f, path: f.Name()}, nil
}

// Path returns the file's location on disk.
func (t *TempFile) Path() string { return t.path }

// Keep hands ownership of the file to the caller; Cleanup becomes a no-op for removal.
func (t *TempFile) Keep() string {
	t.kept = true
	return t.path
}

// Cleanup closes the file and removes it unless Keep was called. Safe to call more than once.
func (t *TempFile) Cleanup() {
	if t == nil {
		return
	}
	_ = t.File.Close()
	if !t.kept {
		_ = os.Remove(t.path)
	}
}

// Finish flushes and closes the file, leaving it on disk for readers.
func (t *TempFile) Finish() error {
	if err := t.File.Sync(); err != nil {
		_ = t.File.Close()
		return fmt.Errorf("could not sync %s: %w", t.path, err)
	}
	if err := t.File.Close(); err != nil {
		return fmt.Errorf("could not close %s: %w", t.path, err)
	}
	return nil
}

// RemoveFunc returns a cleanup function deleting path. Empty paths yield a no-op.
func RemoveFunc(path string) func() {
	return func() {
		if path != "" {
			_ = os.Remove(path)
		}
	}
}

// Move moves a file from src to dst, creating the destination directory.
// It tries os.Rename first and falls back to copy + delete across filesystems.
func Move(src, dst string) error {
	if src == "" || dst == "" {
		return fmt.Errorf("source and destination paths cannot be empty")
	}
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source %s: %w", src, err)
	}
	if srcInfo.IsDir() {
		return fmt.Errorf("cannot move directory %s", src)
	}
	if err := os.MkdirAll(filepath.Dir(dst), DirModeDefault); err != nil {
		return fmt.Errorf("failed to create destination directory %s: %w", filepath.Dir(dst), err)
	}

	err = os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !isCrossFilesystemError(err) {
		return fmt.Errorf("failed to rename %s to %s: %w", src, dst, err)
	}

	if err := Copy(src, dst); err != nil {
		return err
	}
	if err := os.Chmod(dst, srcInfo.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", dst, err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("failed to remove source file %s after copy: %w", src, err)
	}
	return nil
}

func isCrossFilesystemError(err error) bool {
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return errors.Is(linkErr.Err, syscall.EXDEV)
	}
	return errors.Is(err, syscall.EXDEV)
}

// Copy copies the contents of srcFile to dstFile.
func Copy(srcFile, dstFile string) error {
	src, err := os.Open(srcFile)
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %w", srcFile, err)
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(dstFile)
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %w", dstFile, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("failed to copy from %s to %s: %w", srcFile, dstFile, err)
	}
	return dst.Close()
}
