//go:build linux

package medium

import (
	"golang.org/x/sys/unix"
)

type unixProvider interface {
	Open(path string, mode int, perm uint32) (int, error)
	Close(fd int) error
	Pread(fd int, p []byte, offset int64) (int, error)
	Pwrite(fd int, p []byte, offset int64) (int, error)
	Fdatasync(fd int) error
	SyncFileRange(fd int, off int64, n int64, flags int) error
	Fallocate(fd int, mode uint32, off int64, size int64) error
	Seek(fd int, offset int64, whence int) (int64, error)
	Fstat(fd int, stat *unix.Stat_t) error
}

// Unix is an implementation wrapping Unix operating system functions.
type Unix struct{}

// Open wraps around [unix.Open].
func (*Unix) Open(path string, mode int, perm uint32) (int, error) {
	return unix.Open(path, mode, perm)
}

// Close wraps around [unix.Close].
func (*Unix) Close(fd int) error {
	return unix.Close(fd)
}

// Pread wraps around [unix.Pread].
func (*Unix) Pread(fd int, p []byte, offset int64) (int, error) {
	return unix.Pread(fd, p, offset)
}

// Pwrite wraps around [unix.Pwrite].
func (*Unix) Pwrite(fd int, p []byte, offset int64) (int, error) {
	return unix.Pwrite(fd, p, offset)
}

// Fdatasync wraps around [unix.Fdatasync].
func (*Unix) Fdatasync(fd int) error {
	return unix.Fdatasync(fd)
}

// SyncFileRange wraps around [unix.SyncFileRange].
func (*Unix) SyncFileRange(fd int, off int64, n int64, flags int) error {
	return unix.SyncFileRange(fd, off, n, flags)
}

// Fallocate wraps around [unix.Fallocate].
func (*Unix) Fallocate(fd int, mode uint32, off int64, size int64) error {
	return unix.Fallocate(fd, mode, off, size)
}

// Seek wraps around [unix.Seek].
func (*Unix) Seek(fd int, offset int64, whence int) (int64, error) {
	return unix.Seek(fd, offset, whence)
}

// Fstat wraps around [unix.Fstat].
func (*Unix) Fstat(fd int, stat *unix.Stat_t) error {
	return unix.Fstat(fd, stat)
}
