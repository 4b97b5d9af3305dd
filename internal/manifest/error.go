package manifest

import "errors"

var (
	// ErrMalformed is an error that occurs when the manifest cannot be
	// interpreted as a partition table.
	ErrMalformed = errors.New("malformed partition manifest")

	// ErrMisaligned is an error that occurs when a partition does not start
	// or end on a block boundary of the medium.
	ErrMisaligned = errors.New("partition not aligned to medium blocks")
)
