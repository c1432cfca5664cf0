//go:build !unix

package fsutil

import (
	"errors"
	"fmt"
	"os"
)

// Without flock the lock is a sibling file created exclusively; a holder that crashes leaves
// it behind and it must be removed by hand.
func lockFile(f *os.File) (bool, error) {
	marker, err := os.OpenFile(f.Name()+".held", os.O_CREATE|os.O_EXCL|os.O_WRONLY, FileModeSecure)
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to lock %s: %w", f.Name(), err)
	}
	_, _ = fmt.Fprintf(marker, "%d\n", os.Getpid())
	return true, marker.Close()
}

func unlockFile(f *os.File) error {
	return os.Remove(f.Name() + ".held")
}
