package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/desertwitch/gopart/internal/partition"
	"github.com/desertwitch/gopart/internal/storage"
	"github.com/zeebo/blake3"
)

func runHash(ctx context.Context, app *App) error {
	q, err := app.runJobs(ctx, storage.LevelReadOnly, hashPartition)

	for _, job := range q.GetSuccessful() {
		fmt.Fprintf(os.Stdout, "%s  %s\n", job.Output, job.Partition)
	}

	return err
}

// hashPartition returns the hex BLAKE3 digest of the partition contents.
func hashPartition(ctx context.Context, obj *partition.Object) (string, uint64, error) {
	hasher := blake3.New()
	buf := make([]byte, ioChunkSize)

	var done uint64
	for size := obj.Size(); done < size; {
		chunk := buf[:min(uint64(len(buf)), size-done)]

		if err := readSync(ctx, obj, done, chunk); err != nil {
			return "", done, err
		}

		if _, err := hasher.Write(chunk); err != nil {
			return "", done, fmt.Errorf("(hash) %w", err)
		}

		done += uint64(len(chunk))
	}

	return hex.EncodeToString(hasher.Sum(nil)), done, nil
}
