package main

import "errors"

var (
	// ErrNoMedium occurs when neither configuration nor flags name a medium.
	ErrNoMedium = errors.New("no medium configured")

	// ErrNoTable occurs when neither configuration nor flags name a partition
	// table manifest.
	ErrNoTable = errors.New("no partition table configured")

	// ErrJobsFailed occurs when at least one partition job has failed.
	ErrJobsFailed = errors.New("partition jobs have failed")

	// ErrParityMismatch occurs when a verification found damaged stripes.
	ErrParityMismatch = errors.New("parity mismatch")
)
