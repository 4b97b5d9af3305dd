// Package medium provides provider mediums for the partition stack: a file
// or block device backed medium and an in-memory medium.
package medium

import (
	"fmt"
	"sync"

	"github.com/desertwitch/gopart/internal/storage"
)

// DefaultBlockSize is used when a medium is created without a block size.
const DefaultBlockSize = 512

// Memory is a medium held entirely in memory. Allocation is tracked per
// block, unmapped blocks read back as zeroes.
type Memory struct {
	sync.RWMutex
	data         []byte
	blockSize    uint64
	mapped       []bool
	readOnly     bool
	level        storage.Level
	physicalBase uint64
	physLocks    int
	priorities   map[storage.Extent]storage.Priority
}

// NewMemory returns a pointer to a new [Memory] of the given size.
func NewMemory(size, blockSize uint64) *Memory {
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}

	return &Memory{
		data:       make([]byte, size),
		blockSize:  blockSize,
		mapped:     make([]bool, (size+blockSize-1)/blockSize),
		priorities: make(map[storage.Extent]storage.Priority),
	}
}

// SetReadOnly makes the medium refuse write access.
func (m *Memory) SetReadOnly(readOnly bool) {
	m.Lock()
	defer m.Unlock()

	m.readOnly = readOnly
}

// SetPhysicalBase sets the offset the medium is mapped at on its physical
// device, as reported by [Memory.CopyPhysicalExtent].
func (m *Memory) SetPhysicalBase(base uint64) {
	m.Lock()
	defer m.Unlock()

	m.physicalBase = base
}

// Level returns the access level the medium is currently opened at.
func (m *Memory) Level() storage.Level {
	m.RLock()
	defer m.RUnlock()

	return m.level
}

// PhysicalLocks returns the number of physical extent locks held.
func (m *Memory) PhysicalLocks() int {
	m.RLock()
	defer m.RUnlock()

	return m.physLocks
}

// Priority returns the last priority set for exactly the given extent.
func (m *Memory) Priority(ext storage.Extent) (storage.Priority, bool) {
	m.RLock()
	defer m.RUnlock()

	p, ok := m.priorities[ext]

	return p, ok
}

// Bytes returns a copy of the medium contents.
func (m *Memory) Bytes() []byte {
	m.RLock()
	defer m.RUnlock()

	out := make([]byte, len(m.data))
	copy(out, m.data)

	return out
}

func (m *Memory) Size() uint64 {
	return uint64(len(m.data))
}

func (m *Memory) BlockSize() uint64 {
	return m.blockSize
}

// SetAccess opens the medium at the given level.
func (m *Memory) SetAccess(level storage.Level) error {
	m.Lock()
	defer m.Unlock()

	if level == storage.LevelReadWrite && m.readOnly {
		return fmt.Errorf("(medium-mem) %w", ErrReadOnly)
	}

	m.level = level

	return nil
}

func (m *Memory) Read(offset uint64, buf []byte, _ *storage.Attributes, done storage.Completion) {
	go func() {
		m.RLock()
		defer m.RUnlock()

		if m.level == storage.LevelClosed {
			done(storage.Result{Err: fmt.Errorf("(medium-mem) %w: %w", storage.ErrProviderFailure, ErrClosed)})

			return
		}

		if offset > uint64(len(m.data)) {
			done(storage.Result{Err: fmt.Errorf("(medium-mem) %w: read at %d past end", storage.ErrProviderFailure, offset)})

			return
		}

		n := copy(buf, m.data[offset:])
		done(storage.Result{Count: uint64(n)})
	}()
}

func (m *Memory) Write(offset uint64, buf []byte, _ *storage.Attributes, done storage.Completion) {
	go func() {
		m.Lock()
		defer m.Unlock()

		if m.level != storage.LevelReadWrite {
			done(storage.Result{Err: fmt.Errorf("(medium-mem) %w: %w", storage.ErrProviderFailure, ErrNotWritable)})

			return
		}

		if offset > uint64(len(m.data)) {
			done(storage.Result{Err: fmt.Errorf("(medium-mem) %w: write at %d past end", storage.ErrProviderFailure, offset)})

			return
		}

		n := copy(m.data[offset:], buf)
		m.markMapped(offset, uint64(n), true)

		done(storage.Result{Count: uint64(n)})
	}()
}

func (m *Memory) Synchronize(_, _ uint64, _ storage.SyncOptions) error {
	m.RLock()
	defer m.RUnlock()

	if m.level == storage.LevelClosed {
		return fmt.Errorf("(medium-mem) %w: %w", storage.ErrProviderFailure, ErrClosed)
	}

	return nil
}

// Unmap zeroes the given extents and releases every block they fully cover.
func (m *Memory) Unmap(extents []storage.Extent, _ storage.UnmapOptions) error {
	m.Lock()
	defer m.Unlock()

	if m.level != storage.LevelReadWrite {
		return fmt.Errorf("(medium-mem) %w: %w", storage.ErrProviderFailure, ErrNotWritable)
	}

	for _, ext := range extents {
		if ext.End() > uint64(len(m.data)) {
			return fmt.Errorf("(medium-mem) %w: unmap [%d, +%d) past end", storage.ErrProviderFailure, ext.Offset, ext.Length)
		}

		clear(m.data[ext.Offset:ext.End()])
		m.markMapped(ext.Offset, ext.Length, false)
	}

	return nil
}

func (m *Memory) GetProvisionStatus(offset, length uint64, _ storage.ProvisionOptions) ([]storage.ProvisionExtent, error) {
	m.RLock()
	defer m.RUnlock()

	end := min(offset+length, uint64(len(m.data)))
	if offset >= end {
		return nil, nil
	}

	var result []storage.ProvisionExtent
	for pos := offset; pos < end; {
		block := pos / m.blockSize
		status := storage.ProvisionDeallocated
		if m.mapped[block] {
			status = storage.ProvisionMapped
		}

		next := min((block+1)*m.blockSize, end)

		if n := len(result); n > 0 && result[n-1].Status == status {
			result[n-1].Length += next - pos
		} else {
			result = append(result, storage.ProvisionExtent{
				Extent: storage.Extent{Offset: pos, Length: next - pos},
				Status: status,
			})
		}

		pos = next
	}

	return result, nil
}

func (m *Memory) SetPriority(extents []storage.Extent, priority storage.Priority) error {
	m.Lock()
	defer m.Unlock()

	for _, ext := range extents {
		m.priorities[ext] = priority
	}

	return nil
}

func (m *Memory) LockPhysicalExtents() bool {
	m.Lock()
	defer m.Unlock()

	m.physLocks++

	return true
}

func (m *Memory) CopyPhysicalExtent(offset, length uint64) (uint64, uint64, error) {
	m.RLock()
	defer m.RUnlock()

	if m.physLocks == 0 {
		return 0, 0, fmt.Errorf("(medium-mem) %w: physical extents not locked", storage.ErrInvalidState)
	}

	if offset >= uint64(len(m.data)) {
		return 0, 0, fmt.Errorf("(medium-mem) %w: offset %d past end", storage.ErrOutOfRange, offset)
	}

	return m.physicalBase + offset, min(length, uint64(len(m.data))-offset), nil
}

func (m *Memory) UnlockPhysicalExtents() {
	m.Lock()
	defer m.Unlock()

	if m.physLocks > 0 {
		m.physLocks--
	}
}

// markMapped sets the allocation state of blocks. Writes map every touched
// block, unmaps only release fully covered blocks.
func (m *Memory) markMapped(offset, length uint64, mapped bool) {
	if length == 0 {
		return
	}

	end := offset + length

	var first, last uint64
	if mapped {
		first = offset / m.blockSize
		last = (end-1)/m.blockSize + 1
	} else {
		first = (offset + m.blockSize - 1) / m.blockSize
		last = end / m.blockSize
		if end == uint64(len(m.data)) {
			last = uint64(len(m.mapped))
		}
	}

	for b := first; b < last && b < uint64(len(m.mapped)); b++ {
		m.mapped[b] = mapped
	}
}

var (
	_ storage.Medium          = (*Memory)(nil)
	_ storage.PrioritySetter  = (*Memory)(nil)
	_ storage.PhysicalExtents = (*Memory)(nil)
)
