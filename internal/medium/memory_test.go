package medium

import (
	"testing"
	"time"

	"github.com/desertwitch/gopart/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func await(t *testing.T, start func(storage.Completion)) storage.Result {
	t.Helper()

	ch := make(chan storage.Result, 1)
	start(func(res storage.Result) { ch <- res })

	select {
	case res := <-ch:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for completion")
	}

	return storage.Result{}
}

// TestNewMemory_Success tests the memory medium factory function.
func TestNewMemory_Success(t *testing.T) {
	t.Parallel()

	m := NewMemory(4096, 0)

	assert.Equal(t, uint64(4096), m.Size())
	assert.Equal(t, uint64(DefaultBlockSize), m.BlockSize())
	assert.Len(t, m.mapped, 8)
	assert.Equal(t, storage.LevelClosed, m.Level())
}

// TestMemoryReadWrite_Success tests a write being read back.
func TestMemoryReadWrite_Success(t *testing.T) {
	t.Parallel()

	m := NewMemory(4096, 512)
	require.NoError(t, m.SetAccess(storage.LevelReadWrite))

	res := await(t, func(done storage.Completion) { m.Write(100, []byte("hello"), nil, done) })
	require.NoError(t, res.Err)
	assert.Equal(t, uint64(5), res.Count)

	buf := make([]byte, 5)
	res = await(t, func(done storage.Completion) { m.Read(100, buf, nil, done) })
	require.NoError(t, res.Err)
	assert.Equal(t, "hello", string(buf))
}

// TestMemoryWrite_Fail_NotWritable tests writing to a medium opened read-only.
func TestMemoryWrite_Fail_NotWritable(t *testing.T) {
	t.Parallel()

	m := NewMemory(4096, 512)
	require.NoError(t, m.SetAccess(storage.LevelReadOnly))

	res := await(t, func(done storage.Completion) { m.Write(0, []byte("x"), nil, done) })
	require.ErrorIs(t, res.Err, storage.ErrProviderFailure)
	require.ErrorIs(t, res.Err, ErrNotWritable)
	assert.True(t, storage.IsRetryable(res.Err))
}

// TestMemorySetAccess_Fail_ReadOnly tests refusing write access.
func TestMemorySetAccess_Fail_ReadOnly(t *testing.T) {
	t.Parallel()

	m := NewMemory(4096, 512)
	m.SetReadOnly(true)

	require.ErrorIs(t, m.SetAccess(storage.LevelReadWrite), ErrReadOnly)
	require.NoError(t, m.SetAccess(storage.LevelReadOnly))
	assert.Equal(t, storage.LevelReadOnly, m.Level())
}

// TestMemoryProvisionStatus_Success tests block allocation tracking.
func TestMemoryProvisionStatus_Success(t *testing.T) {
	t.Parallel()

	m := NewMemory(4096, 512)
	require.NoError(t, m.SetAccess(storage.LevelReadWrite))

	status, err := m.GetProvisionStatus(0, 4096, 0)
	require.NoError(t, err)
	assert.Equal(t, []storage.ProvisionExtent{
		{Extent: storage.Extent{Offset: 0, Length: 4096}, Status: storage.ProvisionDeallocated},
	}, status)

	res := await(t, func(done storage.Completion) { m.Write(1024, make([]byte, 1024), nil, done) })
	require.NoError(t, res.Err)

	status, err = m.GetProvisionStatus(0, 4096, 0)
	require.NoError(t, err)
	assert.Equal(t, []storage.ProvisionExtent{
		{Extent: storage.Extent{Offset: 0, Length: 1024}, Status: storage.ProvisionDeallocated},
		{Extent: storage.Extent{Offset: 1024, Length: 1024}, Status: storage.ProvisionMapped},
		{Extent: storage.Extent{Offset: 2048, Length: 2048}, Status: storage.ProvisionDeallocated},
	}, status)

	require.NoError(t, m.Unmap([]storage.Extent{{Offset: 1024, Length: 512}}, 0))

	status, err = m.GetProvisionStatus(1024, 1024, 0)
	require.NoError(t, err)
	assert.Equal(t, []storage.ProvisionExtent{
		{Extent: storage.Extent{Offset: 1024, Length: 512}, Status: storage.ProvisionDeallocated},
		{Extent: storage.Extent{Offset: 1536, Length: 512}, Status: storage.ProvisionMapped},
	}, status)
}

// TestMemoryUnmap_Success_PartialBlock tests that partially covered blocks
// stay mapped but are zeroed.
func TestMemoryUnmap_Success_PartialBlock(t *testing.T) {
	t.Parallel()

	m := NewMemory(1024, 512)
	require.NoError(t, m.SetAccess(storage.LevelReadWrite))

	data := make([]byte, 1024)
	for i := range data {
		data[i] = 0xAA
	}

	res := await(t, func(done storage.Completion) { m.Write(0, data, nil, done) })
	require.NoError(t, res.Err)

	require.NoError(t, m.Unmap([]storage.Extent{{Offset: 256, Length: 512}}, 0))

	contents := m.Bytes()
	assert.Equal(t, byte(0xAA), contents[255])
	assert.Equal(t, byte(0), contents[256])
	assert.Equal(t, byte(0), contents[767])
	assert.Equal(t, byte(0xAA), contents[768])

	status, err := m.GetProvisionStatus(0, 1024, 0)
	require.NoError(t, err)
	assert.Equal(t, []storage.ProvisionExtent{
		{Extent: storage.Extent{Offset: 0, Length: 1024}, Status: storage.ProvisionMapped},
	}, status)
}

// TestMemoryPhysicalExtents_Success tests the physical extent translation.
func TestMemoryPhysicalExtents_Success(t *testing.T) {
	t.Parallel()

	m := NewMemory(4096, 512)
	m.SetPhysicalBase(1 << 20)

	_, _, err := m.CopyPhysicalExtent(0, 10)
	require.ErrorIs(t, err, storage.ErrInvalidState)

	require.True(t, m.LockPhysicalExtents())

	off, length, err := m.CopyPhysicalExtent(4000, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<20+4000), off)
	assert.Equal(t, uint64(96), length)

	m.UnlockPhysicalExtents()
	assert.Equal(t, 0, m.PhysicalLocks())
}
