package queue

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/desertwitch/gopart/internal/storage"
	"github.com/dustin/go-humanize"
	platformerrors "github.com/jmgilman/go/errors"
)

// DefaultMaxAttempts is the number of times a job with retryable failures
// is run before it is given up.
const DefaultMaxAttempts = 3

// JobFunc does the work of a [Job]. It returns a textual result and the
// number of bytes it has processed.
type JobFunc func(ctx context.Context) (string, uint64, error)

// Job is a unit of work against a single partition. Its result fields are
// only valid once the [JobQueue] has finished processing.
type Job struct {
	Partition storage.PartitionID
	Attempts  int
	// Bytes and the other results are those of the last attempt.
	Output    string
	Bytes     uint64
	Err       error

	run JobFunc
}

// NewJob returns a pointer to a new [Job].
func NewJob(partition storage.PartitionID, run JobFunc) *Job {
	return &Job{
		Partition: partition,
		run:       run,
	}
}

// JobQueue processes [Job] concurrently. Jobs failing with a retryable error
// are requeued until they have used up their attempts.
//
// JobQueue embeds a [GenericQueue].
type JobQueue struct {
	*GenericQueue[*Job]

	maxAttempts int
	bytes       atomic.Uint64
}

// NewJobQueue returns a pointer to a new [JobQueue].
func NewJobQueue(maxAttempts int) *JobQueue {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	return &JobQueue{
		GenericQueue: NewGenericQueue[*Job](),
		maxAttempts:  maxAttempts,
	}
}

// Run processes all enqueued jobs on at most workers goroutines. An error is
// only returned in case of a context cancellation, failed jobs carry their
// own error and are reported by [JobQueue.GetFailed].
func (q *JobQueue) Run(ctx context.Context, workers int) error {
	return q.DequeueAndProcessConc(ctx, workers, func(job *Job) Decision {
		return q.runJob(ctx, job)
	})
}

func (q *JobQueue) runJob(ctx context.Context, job *Job) Decision {
	job.Attempts++

	output, n, err := job.run(ctx)

	job.Output = output
	job.Bytes = n
	job.Err = err

	if err == nil {
		q.bytes.Add(n)
		slog.Debug("Job completed.", "partition", job.Partition, "bytes", humanize.IBytes(n))

		return DecisionSuccess
	}

	if platformerrors.IsRetryable(err) && job.Attempts < q.maxAttempts && ctx.Err() == nil {
		slog.Warn("Job failed, requeueing.", "partition", job.Partition, "attempt", job.Attempts, "err", err)

		return DecisionRequeue
	}

	q.bytes.Add(n)
	slog.Error("Job failed.", "partition", job.Partition, "attempts", job.Attempts, "err", err)

	return DecisionSkipped
}

// GetFailed returns the jobs that were given up.
func (q *JobQueue) GetFailed() []*Job {
	return q.GetSkipped()
}

// Progress returns the [Progress] of the [JobQueue]. Once any bytes were
// processed, the speed is reported in bytes per second.
func (q *JobQueue) Progress() Progress {
	progress := q.GenericQueue.Progress()

	bytes := q.bytes.Load()
	if bytes == 0 || !progress.HasStarted {
		return progress
	}

	end := time.Now()
	if progress.HasFinished && progress.InProgressItems == 0 && !progress.FinishTime.IsZero() {
		end = progress.FinishTime
	}

	progress.TransferSpeed = float64(bytes) / max(end.Sub(progress.StartTime).Seconds(), 1)
	progress.TransferSpeedUnit = "bytes/sec"

	return progress
}

// Bytes returns the number of bytes processed by all jobs.
func (q *JobQueue) Bytes() uint64 {
	return q.bytes.Load()
}
