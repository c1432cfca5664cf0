package fsutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLock_Exclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "sync.lock")
	first := NewFileLock(path)
	second := NewFileLock(path)

	ok, err := first.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	assert.FileExists(t, path)

	ok, err = first.TryLock()
	require.NoError(t, err)
	assert.True(t, ok, "relocking a held lock is a no-op")

	ok, err = second.TryLock()
	require.NoError(t, err)
	assert.False(t, ok, "second holder is refused")

	require.NoError(t, first.Unlock())
	require.NoError(t, first.Unlock())

	ok, err = second.TryLock()
	require.NoError(t, err)
	assert.True(t, ok, "lock is free after unlock")
	require.NoError(t, second.Unlock())
}
