// Package queue implements work queues for jobs that run against the
// partitions of a scheme, processed either sequentially or by a bounded
// number of concurrent workers.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Decision is returned by a processing function for every item.
type Decision int

const (
	// DecisionRequeue puts the item back at the end of the queue.
	DecisionRequeue Decision = -1

	// DecisionSkipped marks the item as processed but not successful.
	DecisionSkipped Decision = 0

	// DecisionSuccess marks the item as successfully processed.
	DecisionSuccess Decision = 1
)

// GenericQueue is a generic queue that can hold any comparable type of items.
type GenericQueue[T comparable] struct {
	sync.RWMutex
	hasStarted  bool
	hasFinished bool
	startTime   time.Time
	finishTime  time.Time
	head        int
	items       []T
	success     []T
	skipped     []T
	inProgress  map[T]struct{}
}

// NewGenericQueue returns a pointer to a new [GenericQueue].
func NewGenericQueue[T comparable]() *GenericQueue[T] {
	return &GenericQueue[T]{
		inProgress: make(map[T]struct{}),
	}
}

// HasRemainingItems returns whether a queue has items left to dequeue.
func (q *GenericQueue[T]) HasRemainingItems() bool {
	q.RLock()
	defer q.RUnlock()

	return q.head < len(q.items)
}

// GetSuccessful returns a copy of all successfully processed items.
func (q *GenericQueue[T]) GetSuccessful() []T {
	q.RLock()
	defer q.RUnlock()

	result := make([]T, len(q.success))
	copy(result, q.success)

	return result
}

// GetSkipped returns a copy of all skipped items.
func (q *GenericQueue[T]) GetSkipped() []T {
	q.RLock()
	defer q.RUnlock()

	result := make([]T, len(q.skipped))
	copy(result, q.skipped)

	return result
}

// Enqueue adds items to the queue. A finished queue becomes unfinished again.
func (q *GenericQueue[T]) Enqueue(items ...T) {
	q.Lock()
	defer q.Unlock()

	if q.hasFinished {
		q.finishTime = time.Time{}
		q.hasFinished = false
	}

	for _, item := range items {
		delete(q.inProgress, item)
		q.items = append(q.items, item)
	}
}

// Dequeue returns an item from the queue and advances the queue head.
func (q *GenericQueue[T]) Dequeue() (T, bool) { //nolint:ireturn
	q.Lock()
	defer q.Unlock()

	if q.head >= len(q.items) {
		var zeroVal T

		return zeroVal, false
	}

	if !q.hasStarted {
		q.startTime = time.Now()
		q.hasStarted = true
	}

	if q.head == len(q.items)-1 && !q.hasFinished {
		q.finishTime = time.Now()
		q.hasFinished = true
	}

	item := q.items[q.head]
	q.head++

	return item, true
}

// SetSuccess moves in-progress items to the successful ones.
func (q *GenericQueue[T]) SetSuccess(items ...T) {
	q.Lock()
	defer q.Unlock()

	for _, item := range items {
		delete(q.inProgress, item)
		q.success = append(q.success, item)
	}
}

// SetSkipped moves in-progress items to the skipped ones.
func (q *GenericQueue[T]) SetSkipped(items ...T) {
	q.Lock()
	defer q.Unlock()

	for _, item := range items {
		delete(q.inProgress, item)
		q.skipped = append(q.skipped, item)
	}
}

// SetProcessing marks items as in progress.
func (q *GenericQueue[T]) SetProcessing(items ...T) {
	q.Lock()
	defer q.Unlock()

	for _, item := range items {
		q.inProgress[item] = struct{}{}
	}
}

// Progress returns the [Progress] for the [GenericQueue].
func (q *GenericQueue[T]) Progress() Progress {
	q.RLock()
	defer q.RUnlock()

	totalItems := len(q.items)
	processedItems := min(len(q.success)+len(q.skipped), totalItems)

	var progressPct float64
	if totalItems > 0 {
		progressPct = float64(processedItems) / float64(totalItems) * 100 //nolint:mnd
		progressPct = max(float64(0), min(progressPct, float64(100)))     //nolint:mnd
	}

	progress := Progress{
		HasStarted:        q.hasStarted,
		HasFinished:       q.hasFinished,
		StartTime:         q.startTime,
		FinishTime:        q.finishTime,
		ProgressPct:       progressPct,
		TotalItems:        totalItems,
		ProcessedItems:    processedItems,
		InProgressItems:   len(q.inProgress),
		SuccessItems:      len(q.success),
		SkippedItems:      len(q.skipped),
		TransferSpeedUnit: "items/sec",
	}

	if q.hasStarted && processedItems > 0 && processedItems < totalItems {
		itemsPerSec := float64(processedItems) / max(time.Since(q.startTime).Seconds(), 1)

		remainingSeconds := float64(totalItems-processedItems) / itemsPerSec
		progress.TimeLeft = time.Duration(remainingSeconds * float64(time.Second))
		progress.ETA = time.Now().Add(progress.TimeLeft)
		progress.TransferSpeed = itemsPerSec
	}

	return progress
}

func (q *GenericQueue[T]) process(item T, processFunc func(T) Decision) {
	q.SetProcessing(item)

	switch processFunc(item) {
	case DecisionRequeue:
		q.Enqueue(item)

	case DecisionSkipped:
		q.SetSkipped(item)

	case DecisionSuccess:
		q.SetSuccess(item)
	}
}

// DequeueAndProcess sequentially dequeues and processes items using the given
// processFunc. An error is only returned in case of a context cancellation.
func (q *GenericQueue[T]) DequeueAndProcess(ctx context.Context, processFunc func(T) Decision) error {
	for ctx.Err() == nil {
		item, ok := q.Dequeue()
		if !ok {
			break
		}

		q.process(item, processFunc)
	}

	if ctx.Err() != nil {
		return fmt.Errorf("(queue-proc) %w", ctx.Err())
	}

	return nil
}

// DequeueAndProcessConc dequeues and processes items using the given
// processFunc on at most maxWorkers goroutines. An error is only returned in
// case of a context cancellation.
//
// The processFunc must be safe for concurrent use, the [GenericQueue] only
// guarantees thread-safety for itself.
func (q *GenericQueue[T]) DequeueAndProcessConc(ctx context.Context, maxWorkers int, processFunc func(T) Decision) error {
	var wg sync.WaitGroup

	semaphore := make(chan struct{}, max(maxWorkers, 1))

	for {
		for {
			select {
			case <-ctx.Done():
				wg.Wait()

				return fmt.Errorf("(queue-concproc) %w", ctx.Err())
			case semaphore <- struct{}{}:
			}

			item, ok := q.Dequeue()
			if !ok {
				<-semaphore

				break
			}

			wg.Add(1)
			go func(item T) {
				defer wg.Done()
				defer func() { <-semaphore }()

				q.process(item, processFunc)
			}(item)
		}

		wg.Wait()

		if ctx.Err() != nil {
			return fmt.Errorf("(queue-concproc) %w", ctx.Err())
		}

		// Items requeued by the last workers are still waiting.
		if !q.HasRemainingItems() {
			return nil
		}
	}
}
