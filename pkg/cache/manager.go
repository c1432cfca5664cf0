// Package cache manages the downloaded icons and in-flight sync files kept under the cache directory.
package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glorpus-work/appcat/internal/logger"
	"github.com/glorpus-work/appcat/pkg/errors"
	"github.com/glorpus-work/appcat/pkg/fsutil"
)

// Cache subdirectories.
const (
	IconsDir = "icons"
	TempDir  = "tmp"
)

// ErrCacheDirectory is returned when the cache directory is not set.
var ErrCacheDirectory = fmt.Errorf("invalid cache directory")

// CleanOptions specifies what to clean from the cache. Nothing selected cleans everything.
type CleanOptions struct {
	Icons bool
	Temp  bool
}

// CleanResult contains information about what was cleaned.
type CleanResult struct {
	TotalFreed int64 `json:"total_freed"`
	IconsFreed int64 `json:"icons_freed"`
	TempFreed  int64 `json:"temp_freed"`
}

// Info represents cache information.
type Info struct {
	Directory string `json:"directory"`
	TotalSize int64  `json:"total_size"`
	IconSize  int64  `json:"icon_size"`
	IconFiles int    `json:"icon_files"`
	TempSize  int64  `json:"temp_size"`
	TempFiles int    `json:"temp_files"`
}

// Manager handles cache operations on one directory.
type Manager struct {
	directory string
}

// NewManager creates a new cache manager.
func NewManager(directory string) *Manager {
	return &Manager{directory: directory}
}

// Directory returns the cache directory path.
func (m *Manager) Directory() string {
	return m.directory
}

// Clean removes cached files according to options. It must not run concurrently with a sync.
func (m *Manager) Clean(options CleanOptions) (*CleanResult, error) {
	if m.directory == "" {
		return nil, ErrCacheDirectory
	}
	if !options.Icons && !options.Temp {
		options.Icons, options.Temp = true, true
	}

	result := &CleanResult{}
	if options.Icons {
		size, err := cleanDirectory(filepath.Join(m.directory, IconsDir))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to clean icon cache")
		}
		result.IconsFreed = size
		result.TotalFreed += size
	}
	if options.Temp {
		size, err := cleanDirectory(filepath.Join(m.directory, TempDir))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to clean temporary files")
		}
		result.TempFreed = size
		result.TotalFreed += size
	}

	logger.Debug("Cache cleaned", logger.Fields{"directory": m.directory, "freed": result.TotalFreed})
	return result, nil
}

// GetInfo returns information about the cache.
func (m *Manager) GetInfo() (*Info, error) {
	if m.directory == "" {
		return nil, ErrCacheDirectory
	}
	info := &Info{Directory: m.directory}

	var err error
	info.IconSize, info.IconFiles, err = getDirSizeAndFiles(filepath.Join(m.directory, IconsDir))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get icon cache info")
	}
	info.TempSize, info.TempFiles, err = getDirSizeAndFiles(filepath.Join(m.directory, TempDir))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get temporary file info")
	}
	info.TotalSize = info.IconSize + info.TempSize
	return info, nil
}

// cleanDirectory empties dir and returns bytes freed.
func cleanDirectory(dir string) (int64, error) {
	size, _, err := getDirSizeAndFiles(dir)
	if err != nil {
		return 0, err
	}
	if size == 0 {
		if _, statErr := os.Stat(dir); os.IsNotExist(statErr) {
			return 0, nil
		}
	}

	if err := os.RemoveAll(dir); err != nil {
		return 0, errors.Wrapf(err, "failed to remove directory %s", dir)
	}
	if err := os.MkdirAll(dir, fsutil.DirModeDefault); err != nil {
		return size, errors.Wrapf(err, "failed to recreate directory %s", dir)
	}
	return size, nil
}

// getDirSizeAndFiles returns the total size and number of regular files below dir.
// A missing directory is empty.
func getDirSizeAndFiles(dir string) (size int64, count int, err error) {
	if _, err = os.Stat(dir); os.IsNotExist(err) {
		return 0, 0, nil
	}

	err = filepath.Walk(dir, func(_ string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !info.IsDir() {
			size += info.Size()
			count++
		}
		return nil
	})
	if err != nil {
		err = errors.Wrapf(err, "error walking directory %s", dir)
	}
	return size, count, err
}

// FormatBytes converts bytes to a human-readable string.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	units := []string{"K", "M", "G", "T", "P", "E"}
	if exp < len(units) {
		return fmt.Sprintf("%.1f %sB", float64(bytes)/float64(div), units[exp])
	}
	return fmt.Sprintf("%d B", bytes)
}
