package storage

import (
	platformerrors "github.com/jmgilman/go/errors"
)

var (
	// ErrAccessDenied is an error that occurs when an open or an upgrade is
	// rejected by the provider or by policy.
	ErrAccessDenied = platformerrors.New(platformerrors.CodeForbidden, "access denied")

	// ErrNotOpen is an error that occurs when a client without sufficient
	// access attempts an operation, or closes access it does not hold.
	ErrNotOpen = platformerrors.New(platformerrors.CodeUnauthorized, "not open")

	// ErrOutOfRange is an error that occurs when a transfer or an extent
	// crosses the boundary of a storage object.
	ErrOutOfRange = platformerrors.New(platformerrors.CodeInvalidInput, "out of range")

	// ErrInvalidState is an error that occurs when a physical extent operation
	// is invoked without a held lock, or when a descriptor is structurally
	// inconsistent.
	ErrInvalidState = platformerrors.New(platformerrors.CodeConflict, "invalid state")

	// ErrProviderFailure is an error that mediums may use to tag their own
	// failures. The forwarding layer never produces it, it passes provider
	// errors through as they are.
	ErrProviderFailure = platformerrors.New(platformerrors.CodeUnavailable, "provider failure")

	// ErrBusy is an error that occurs when a storage object cannot be torn
	// down because clients still hold access to it.
	ErrBusy = platformerrors.New(platformerrors.CodeConflict, "busy")

	// ErrMisaligned is an error that occurs when a request does not match the
	// granularity a storage object computes derived data at.
	ErrMisaligned = platformerrors.New(platformerrors.CodeInvalidInput, "misaligned")
)

// IsRetryable reports whether an error is classified as retryable. Only
// provider failures are, anything else surfaced by this layer is permanent.
func IsRetryable(err error) bool {
	return platformerrors.IsRetryable(err)
}
