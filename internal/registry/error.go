package registry

import "errors"

var (
	// ErrAlreadyAttached is an error that occurs when an object is attached
	// while it is already attached.
	ErrAlreadyAttached = errors.New("object is already attached")

	// ErrUnknownHandle is an error that occurs when a handle is detached that
	// was never returned by attach, or was already detached.
	ErrUnknownHandle = errors.New("unknown handle")

	// ErrRejected is an error that occurs when the attach policy refuses an
	// object.
	ErrRejected = errors.New("attach rejected by policy")
)
