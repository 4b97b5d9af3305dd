package main

import (
	"context"
	"log/slog"
	"os"
	"runtime/pprof"
)

// profiler writes a profile over the program lifetime. A nil or empty path
// disables it.
//
//nolint:containedctx
type profiler struct {
	ctx      context.Context
	cancel   context.CancelFunc
	doneChan chan struct{}
}

func newProfiler(ctx context.Context, path *string, profile func(ctx context.Context, path string)) *profiler {
	prof := &profiler{doneChan: make(chan struct{})}
	prof.ctx, prof.cancel = context.WithCancel(ctx)

	go func() {
		defer close(prof.doneChan)

		if path == nil || *path == "" {
			return
		}

		profile(prof.ctx, *path)
	}()

	return prof
}

// newCPUProfiler samples the CPU until the profiler is stopped.
func newCPUProfiler(ctx context.Context, path *string) *profiler {
	return newProfiler(ctx, path, func(ctx context.Context, path string) {
		f, err := os.Create(path)
		if err != nil {
			slog.Error("Could not create cpu profile.", "err", err)

			return
		}
		defer f.Close()

		if err := pprof.StartCPUProfile(f); err != nil {
			slog.Error("Could not start cpu profile.", "err", err)

			return
		}
		defer pprof.StopCPUProfile()

		<-ctx.Done()
	})
}

// newAllocProfiler writes the allocations once the profiler is stopped.
func newAllocProfiler(ctx context.Context, path *string) *profiler {
	return newProfiler(ctx, path, func(ctx context.Context, path string) {
		<-ctx.Done()

		f, err := os.Create(path)
		if err != nil {
			slog.Error("Could not create allocs profile.", "err", err)

			return
		}
		defer f.Close()

		if err := pprof.Lookup("allocs").WriteTo(f, 0); err != nil {
			slog.Error("Could not write allocs profile.", "err", err)
		}
	})
}

// Stop ends the profile and waits for it to be written.
func (prof *profiler) Stop() {
	prof.cancel()
	<-prof.doneChan
}
