package main

import (
	"context"
	"fmt"

	"github.com/desertwitch/gopart/internal/storage"
)

// ioChunkSize is the transfer size of partition jobs.
const ioChunkSize = 1 << 20

// readSync reads into buf and waits for the completion.
func readSync(ctx context.Context, obj storage.Object, offset uint64, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("(io) %w", err)
	}

	ch := make(chan storage.Result, 1)
	if err := obj.Read(cliClient, offset, buf, nil, func(res storage.Result) { ch <- res }); err != nil {
		return fmt.Errorf("(io) failed to read at %d: %w", offset, err)
	}

	res := <-ch
	if res.Err != nil {
		return fmt.Errorf("(io) failed to read at %d: %w", offset, res.Err)
	}

	if res.Count != uint64(len(buf)) {
		return fmt.Errorf("(io) %w: short read of %d/%d bytes at %d", storage.ErrProviderFailure, res.Count, len(buf), offset)
	}

	return nil
}

// writeSync writes buf and waits for the completion.
func writeSync(ctx context.Context, obj storage.Object, offset uint64, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("(io) %w", err)
	}

	ch := make(chan storage.Result, 1)
	if err := obj.Write(cliClient, offset, buf, nil, func(res storage.Result) { ch <- res }); err != nil {
		return fmt.Errorf("(io) failed to write at %d: %w", offset, err)
	}

	res := <-ch
	if res.Err != nil {
		return fmt.Errorf("(io) failed to write at %d: %w", offset, res.Err)
	}

	if res.Count != uint64(len(buf)) {
		return fmt.Errorf("(io) %w: short write of %d/%d bytes at %d", storage.ErrProviderFailure, res.Count, len(buf), offset)
	}

	return nil
}
