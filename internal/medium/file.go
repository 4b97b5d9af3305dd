//go:build linux

package medium

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/desertwitch/gopart/internal/storage"
	"golang.org/x/sys/unix"
)

// File is a medium backed by a regular file (a disk image) or a block
// device. Unmap punches holes and the provisioning status is derived from the
// data and hole layout of the file.
type File struct {
	sync.RWMutex
	unixHandler unixProvider
	seekMu      sync.Mutex

	path      string
	fd        int
	size      uint64
	blockSize uint64
	readOnly  bool
	level     storage.Level
	closed    bool
}

// OpenFile opens the file or block device at path as a medium. A zero block
// size is replaced with the preferred I/O size the system reports.
func OpenFile(unixHandler unixProvider, path string, readOnly bool, blockSize uint64) (*File, error) {
	mode := unix.O_RDWR
	if readOnly {
		mode = unix.O_RDONLY
	}

	fd, err := unixHandler.Open(path, mode|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("(medium-file) failed to open %s: %w", path, err)
	}

	end, err := unixHandler.Seek(fd, 0, io.SeekEnd)
	if err != nil {
		_ = unixHandler.Close(fd)

		return nil, fmt.Errorf("(medium-file) failed to determine size of %s: %w", path, err)
	}

	if blockSize == 0 {
		var st unix.Stat_t
		if err := unixHandler.Fstat(fd, &st); err == nil && st.Blksize > 0 {
			blockSize = uint64(st.Blksize)
		} else {
			blockSize = DefaultBlockSize
		}
	}

	return &File{
		unixHandler: unixHandler,
		path:        path,
		fd:          fd,
		size:        uint64(end),
		blockSize:   blockSize,
		readOnly:    readOnly,
	}, nil
}

// Path returns the path the medium was opened from.
func (f *File) Path() string {
	return f.path
}

func (f *File) Size() uint64 {
	return f.size
}

func (f *File) BlockSize() uint64 {
	return f.blockSize
}

// SetAccess opens the medium at the given level.
func (f *File) SetAccess(level storage.Level) error {
	f.Lock()
	defer f.Unlock()

	if f.closed {
		return fmt.Errorf("(medium-file) %w", ErrClosed)
	}

	if level == storage.LevelReadWrite && f.readOnly {
		return fmt.Errorf("(medium-file) %s: %w", f.path, ErrReadOnly)
	}

	f.level = level

	return nil
}

func (f *File) Read(offset uint64, buf []byte, _ *storage.Attributes, done storage.Completion) {
	go func() {
		n, err := f.transfer(offset, buf, false)
		done(storage.Result{Count: n, Err: err})
	}()
}

func (f *File) Write(offset uint64, buf []byte, attrs *storage.Attributes, done storage.Completion) {
	go func() {
		n, err := f.transfer(offset, buf, true)
		if err == nil && attrs != nil && attrs.ForceUnitAccess {
			err = f.Synchronize(offset, n, 0)
		}
		done(storage.Result{Count: n, Err: err})
	}()
}

func (f *File) transfer(offset uint64, buf []byte, write bool) (uint64, error) {
	f.RLock()
	defer f.RUnlock()

	if err := f.checkLevel(write); err != nil {
		return 0, err
	}

	var total int
	for total < len(buf) {
		var n int
		var err error

		pos := int64(offset) + int64(total) //nolint:gosec
		if write {
			n, err = f.unixHandler.Pwrite(f.fd, buf[total:], pos)
		} else {
			n, err = f.unixHandler.Pread(f.fd, buf[total:], pos)
		}

		if errors.Is(err, unix.EINTR) {
			continue
		}

		if err != nil {
			return uint64(total), fmt.Errorf("(medium-file) %w: %w", storage.ErrProviderFailure, err)
		}

		if n == 0 {
			return uint64(total), fmt.Errorf("(medium-file) %w: %w", storage.ErrProviderFailure, io.ErrUnexpectedEOF)
		}

		total += n
	}

	return uint64(total), nil
}

// Synchronize flushes the given range. A zero length or a barrier request
// flushes the whole medium.
func (f *File) Synchronize(offset, length uint64, opts storage.SyncOptions) error {
	f.RLock()
	defer f.RUnlock()

	if err := f.checkLevel(false); err != nil {
		return err
	}

	var err error
	if length == 0 || opts&storage.SyncBarrier != 0 {
		err = f.unixHandler.Fdatasync(f.fd)
	} else {
		err = f.unixHandler.SyncFileRange(f.fd, int64(offset), int64(length), //nolint:gosec
			unix.SYNC_FILE_RANGE_WAIT_BEFORE|unix.SYNC_FILE_RANGE_WRITE|unix.SYNC_FILE_RANGE_WAIT_AFTER)
	}

	if err != nil {
		return fmt.Errorf("(medium-file) %w: sync: %w", storage.ErrProviderFailure, err)
	}

	return nil
}

// Unmap punches holes into the given extents.
func (f *File) Unmap(extents []storage.Extent, _ storage.UnmapOptions) error {
	f.RLock()
	defer f.RUnlock()

	if err := f.checkLevel(true); err != nil {
		return err
	}

	for _, ext := range extents {
		if ext.Length == 0 {
			continue
		}

		err := f.unixHandler.Fallocate(f.fd, unix.FALLOC_FL_PUNCH_HOLE|unix.FALLOC_FL_KEEP_SIZE,
			int64(ext.Offset), int64(ext.Length)) //nolint:gosec
		if err != nil {
			return fmt.Errorf("(medium-file) %w: punch hole [%d, +%d): %w",
				storage.ErrProviderFailure, ext.Offset, ext.Length, err)
		}
	}

	return nil
}

// GetProvisionStatus walks the data and hole layout of the given range. If
// the filesystem cannot report holes, the whole range is reported mapped.
func (f *File) GetProvisionStatus(offset, length uint64, _ storage.ProvisionOptions) ([]storage.ProvisionExtent, error) {
	f.RLock()
	defer f.RUnlock()

	if err := f.checkLevel(false); err != nil {
		return nil, err
	}

	end := min(offset+length, f.size)
	if offset >= end {
		return nil, nil
	}

	f.seekMu.Lock()
	defer f.seekMu.Unlock()

	var result []storage.ProvisionExtent
	appendExtent := func(start, stop uint64, status storage.ProvisionStatus) {
		if start < stop {
			result = append(result, storage.ProvisionExtent{
				Extent: storage.Extent{Offset: start, Length: stop - start},
				Status: status,
			})
		}
	}

	for pos := offset; pos < end; {
		dataStart, err := f.seekTo(pos, unix.SEEK_DATA, end)
		if errors.Is(err, unix.EINVAL) || errors.Is(err, unix.EOPNOTSUPP) {
			appendExtent(pos, end, storage.ProvisionMapped)

			break
		}
		if err != nil {
			return nil, fmt.Errorf("(medium-file) %w: seek data: %w", storage.ErrProviderFailure, err)
		}

		appendExtent(pos, dataStart, storage.ProvisionDeallocated)
		if dataStart >= end {
			break
		}

		holeStart, err := f.seekTo(dataStart, unix.SEEK_HOLE, end)
		if err != nil {
			return nil, fmt.Errorf("(medium-file) %w: seek hole: %w", storage.ErrProviderFailure, err)
		}

		appendExtent(dataStart, holeStart, storage.ProvisionMapped)
		pos = holeStart
	}

	return result, nil
}

// seekTo seeks with the given whence, treating ENXIO (no more data) as the
// end of the range.
func (f *File) seekTo(pos uint64, whence int, end uint64) (uint64, error) {
	next, err := f.unixHandler.Seek(f.fd, int64(pos), whence) //nolint:gosec
	if errors.Is(err, unix.ENXIO) {
		return end, nil
	}
	if err != nil {
		return 0, err //nolint:wrapcheck
	}

	return min(uint64(next), end), nil
}

// Close closes the underlying file descriptor.
func (f *File) Close() error {
	f.Lock()
	defer f.Unlock()

	if f.closed {
		return nil
	}

	f.closed = true
	f.level = storage.LevelClosed

	if err := f.unixHandler.Close(f.fd); err != nil {
		return fmt.Errorf("(medium-file) failed to close %s: %w", f.path, err)
	}

	return nil
}

func (f *File) checkLevel(write bool) error {
	if f.closed {
		return fmt.Errorf("(medium-file) %w: %w", storage.ErrProviderFailure, ErrClosed)
	}

	if write && f.level != storage.LevelReadWrite {
		return fmt.Errorf("(medium-file) %w: %w", storage.ErrProviderFailure, ErrNotWritable)
	}

	if f.level == storage.LevelClosed {
		return fmt.Errorf("(medium-file) %w: %w", storage.ErrProviderFailure, ErrClosed)
	}

	return nil
}

var _ storage.Medium = (*File)(nil)
