//go:build linux

package medium

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/desertwitch/gopart/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newImage(t *testing.T, size int64) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "disk.img")

	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(size))
	require.NoError(t, f.Close())

	return path
}

// TestOpenFile_Success tests opening an image file as a medium.
func TestOpenFile_Success(t *testing.T) {
	t.Parallel()

	path := newImage(t, 1<<20)

	f, err := OpenFile(&Unix{}, path, false, 4096)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, uint64(1<<20), f.Size())
	assert.Equal(t, uint64(4096), f.BlockSize())
	assert.Equal(t, path, f.Path())
}

// TestOpenFile_Fail_Missing tests opening a path that does not exist.
func TestOpenFile_Fail_Missing(t *testing.T) {
	t.Parallel()

	f, err := OpenFile(&Unix{}, filepath.Join(t.TempDir(), "missing.img"), true, 0)
	require.Error(t, err)
	assert.Nil(t, f)
	assert.Contains(t, err.Error(), "failed to open")
}

// TestFileReadWrite_Success tests a write being read back and synchronized.
func TestFileReadWrite_Success(t *testing.T) {
	t.Parallel()

	path := newImage(t, 1<<20)

	f, err := OpenFile(&Unix{}, path, false, 0)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.SetAccess(storage.LevelReadWrite))

	res := await(t, func(done storage.Completion) {
		f.Write(8192, []byte("partition"), &storage.Attributes{ForceUnitAccess: true}, done)
	})
	require.NoError(t, res.Err)
	assert.Equal(t, uint64(9), res.Count)

	buf := make([]byte, 9)
	res = await(t, func(done storage.Completion) { f.Read(8192, buf, nil, done) })
	require.NoError(t, res.Err)
	assert.Equal(t, "partition", string(buf))

	require.NoError(t, f.Synchronize(0, 0, storage.SyncBarrier))
}

// TestFileRead_Fail_PastEnd tests a short read at the end of the medium.
func TestFileRead_Fail_PastEnd(t *testing.T) {
	t.Parallel()

	path := newImage(t, 4096)

	f, err := OpenFile(&Unix{}, path, true, 0)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.SetAccess(storage.LevelReadOnly))

	buf := make([]byte, 100)
	res := await(t, func(done storage.Completion) { f.Read(4046, buf, nil, done) })
	require.ErrorIs(t, res.Err, storage.ErrProviderFailure)
	assert.Equal(t, uint64(50), res.Count)
}

// TestFileSetAccess_Fail_ReadOnly tests refusing write access on a medium
// opened read-only.
func TestFileSetAccess_Fail_ReadOnly(t *testing.T) {
	t.Parallel()

	path := newImage(t, 4096)

	f, err := OpenFile(&Unix{}, path, true, 0)
	require.NoError(t, err)
	defer f.Close()

	require.ErrorIs(t, f.SetAccess(storage.LevelReadWrite), ErrReadOnly)

	res := await(t, func(done storage.Completion) { f.Write(0, []byte("x"), nil, done) })
	require.ErrorIs(t, res.Err, ErrNotWritable)
}

// TestFileProvisionStatus_Success tests that the provisioning status covers
// the requested range without gaps.
func TestFileProvisionStatus_Success(t *testing.T) {
	t.Parallel()

	path := newImage(t, 1<<20)

	f, err := OpenFile(&Unix{}, path, false, 4096)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.SetAccess(storage.LevelReadWrite))

	res := await(t, func(done storage.Completion) { f.Write(65536, make([]byte, 4096), nil, done) })
	require.NoError(t, res.Err)

	status, err := f.GetProvisionStatus(0, 1<<20, 0)
	require.NoError(t, err)
	require.NotEmpty(t, status)

	pos := uint64(0)
	for _, ext := range status {
		assert.Equal(t, pos, ext.Offset)
		pos = ext.End()
	}
	assert.Equal(t, uint64(1<<20), pos)
}

// TestFileClose_Success tests that operations fail after closing.
func TestFileClose_Success(t *testing.T) {
	t.Parallel()

	path := newImage(t, 4096)

	f, err := OpenFile(&Unix{}, path, true, 0)
	require.NoError(t, err)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	require.ErrorIs(t, f.SetAccess(storage.LevelReadOnly), ErrClosed)
	require.ErrorIs(t, f.Synchronize(0, 0, 0), ErrClosed)
}
