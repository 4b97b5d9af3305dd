package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/desertwitch/gopart/internal/partition"
	"github.com/desertwitch/gopart/internal/queue"
	"github.com/desertwitch/gopart/internal/storage"
	"github.com/dustin/go-humanize"
)

const progressInterval = 2 * time.Second

// partitionJob is the work done on one partition, which is opened at the
// given level for its duration.
type partitionJob func(ctx context.Context, obj *partition.Object) (string, uint64, error)

// runJobs runs a job against every partition of the scheme on the
// configured number of workers and returns the queue for its results.
func (app *App) runJobs(ctx context.Context, level storage.Level, job partitionJob) (*queue.JobQueue, error) {
	q := queue.NewJobQueue(queue.DefaultMaxAttempts)

	for _, obj := range app.scheme.Partitions() {
		q.Enqueue(queue.NewJob(obj.PartitionID(), func(ctx context.Context) (string, uint64, error) {
			if err := obj.Open(cliClient, level); err != nil {
				return "", 0, fmt.Errorf("(jobs) failed to open partition %s: %w", obj.PartitionID(), err)
			}
			defer func() {
				if err := obj.Close(cliClient); err != nil {
					slog.Warn("Failed to close partition.", "partition", obj.PartitionID(), "err", err)
				}
			}()

			return job(ctx, obj)
		}))
	}

	stop := make(chan struct{})
	go logProgress(q, stop)

	err := q.Run(ctx, app.cfg.Workers)
	close(stop)

	if err != nil {
		return q, fmt.Errorf("(jobs) %w", err)
	}

	progress := q.Progress()
	slog.Info("Partition jobs finished.",
		"succeeded", progress.SuccessItems,
		"failed", progress.SkippedItems,
		"processed", humanize.IBytes(q.Bytes()),
	)

	if progress.SkippedItems > 0 {
		return q, fmt.Errorf("(jobs) %w: %d of %d", ErrJobsFailed, progress.SkippedItems, progress.TotalItems)
	}

	return q, nil
}

func logProgress(q *queue.JobQueue, stop <-chan struct{}) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			progress := q.Progress()

			speed := fmt.Sprintf("%.1f %s", progress.TransferSpeed, progress.TransferSpeedUnit)
			if progress.TransferSpeedUnit == "bytes/sec" {
				speed = humanize.IBytes(uint64(progress.TransferSpeed)) + "/s"
			}

			eta := "unknown"
			if !progress.ETA.IsZero() {
				eta = humanize.Time(progress.ETA)
			}

			slog.Info("Progress.",
				"done", fmt.Sprintf("%.1f%%", progress.ProgressPct),
				"partitions", fmt.Sprintf("%d/%d", progress.ProcessedItems, progress.TotalItems),
				"speed", speed,
				"eta", eta,
			)
		}
	}
}
