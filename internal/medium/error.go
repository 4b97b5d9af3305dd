package medium

import "errors"

var (
	// ErrReadOnly is an error that occurs when write access is requested
	// from, or a modifying operation is issued to, a read-only medium.
	ErrReadOnly = errors.New("medium is read-only")

	// ErrNotWritable is an error that occurs when a modifying operation is
	// issued while the medium is not opened for writing.
	ErrNotWritable = errors.New("medium is not open for writing")

	// ErrClosed is an error that occurs when an operation is issued to a
	// closed medium.
	ErrClosed = errors.New("medium is closed")
)
