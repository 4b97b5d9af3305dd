package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/desertwitch/gopart/internal/fec"
	"github.com/desertwitch/gopart/internal/partition"
	"github.com/desertwitch/gopart/internal/storage"
)

func runVerify(ctx context.Context, app *App) error {
	q, err := app.runJobs(ctx, storage.LevelReadOnly, verifyPartition)

	for _, job := range q.GetSuccessful() {
		fmt.Fprintf(os.Stdout, "%s: %s\n", job.Partition, job.Output)
	}
	for _, job := range q.GetFailed() {
		fmt.Fprintf(os.Stdout, "%s: FAILED (%v)\n", job.Partition, job.Err)
	}

	return err
}

func runProtect(ctx context.Context, app *App) error {
	q, err := app.runJobs(ctx, storage.LevelReadWrite, protectPartition)

	for _, job := range q.GetSuccessful() {
		fmt.Fprintf(os.Stdout, "%s: %s\n", job.Partition, job.Output)
	}

	return err
}

// verifyPartition checks every stripe of a protected partition.
func verifyPartition(ctx context.Context, obj *partition.Object) (string, uint64, error) {
	protected, err := fec.FromPartition(obj)
	if err != nil {
		return "", 0, fmt.Errorf("(verify) %w", err)
	}

	if protected == nil {
		return "not protected", 0, nil
	}

	layout := protected.Layout()
	read := layout.Stripes * (layout.StripeData() + layout.StripeParity())

	bad, err := protected.Verify(ctx, cliClient)
	if err != nil {
		return "", 0, fmt.Errorf("(verify) %w", err)
	}

	if len(bad) > 0 {
		slog.Error("Partition has damaged stripes.", "partition", obj.PartitionID(), "stripes", bad)

		return "", read, fmt.Errorf("(verify) %w: %d of %d stripes", ErrParityMismatch, len(bad), layout.Stripes)
	}

	return fmt.Sprintf("%d stripes ok (%d+%d)", layout.Stripes, layout.DataShards, layout.ParityShards), read, nil
}

// protectPartition rewrites the data of a protected partition stripe by
// stripe, which computes and stores fresh parity.
func protectPartition(ctx context.Context, obj *partition.Object) (string, uint64, error) {
	protected, err := fec.FromPartition(obj)
	if err != nil {
		return "", 0, fmt.Errorf("(protect) %w", err)
	}

	if protected == nil {
		return "not protected", 0, nil
	}

	stripe := protected.Layout().StripeData()
	per := max(ioChunkSize/stripe, 1) * stripe
	buf := make([]byte, per)

	var done uint64
	for size := protected.Size(); done < size; {
		chunk := buf[:min(per, size-done)]

		if err := readSync(ctx, protected, done, chunk); err != nil {
			return "", done, err
		}

		if err := writeSync(ctx, protected, done, chunk); err != nil {
			return "", done, err
		}

		done += uint64(len(chunk))
	}

	if err := protected.Synchronize(cliClient, 0, 0, storage.SyncBarrier); err != nil {
		return "", done, fmt.Errorf("(protect) %w", err)
	}

	return fmt.Sprintf("%d stripes protected", protected.Layout().Stripes), done, nil
}
