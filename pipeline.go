package exr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Signal is the answer of a progress callback.
type Signal int

const (
	// Continue lets the operation go on.
	Continue Signal = iota
	// Cancel stops the operation; it returns ErrCancelled.
	Cancel
)

// Progress observes chunk completion. OnChunkDone is called once per
// finished chunk with the completed fraction, never concurrently.
type Progress interface {
	OnChunkDone(fraction float64) Signal
}

// ProgressFunc adapts a function to Progress.
type ProgressFunc func(fraction float64) Signal

// OnChunkDone calls f.
func (f ProgressFunc) OnChunkDone(fraction float64) Signal { return f(fraction) }

// errStopped is returned by a worker whose progress callback cancelled.
var errStopped = errors.New("stopped by progress callback")

// pipeline runs per-chunk work on a bounded worker pool. Workers store
// results in a slot array indexed by job and report the index; the
// collector runs on the caller's goroutine.
type pipeline struct {
	workers  int
	progress Progress
	total    int

	mu        sync.Mutex
	finished  int
	cancelled atomic.Bool
}

func newPipeline(o *options, total int) *pipeline {
	return &pipeline{workers: o.workerCount(total), progress: o.progress, total: total}
}

// report counts one finished chunk and asks the progress callback. A
// cancel is recorded before the lock is released.
func (p *pipeline) report() Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished++
	if p.progress == nil {
		return Continue
	}
	sig := p.progress.OnChunkDone(float64(p.finished) / float64(p.total))
	if sig == Cancel {
		p.cancelled.Store(true)
	}
	return sig
}

// run calls work for every job index and hands each result to collect.
// With ordered set, collect sees indices in increasing order, otherwise in
// completion order.
func (p *pipeline) run(
	ctx context.Context,
	ordered bool,
	work func(ctx context.Context, i int) ([]byte, error),
	collect func(i int, result []byte) error,
) error {
	if p.total == 0 {
		return nil
	}
	if p.workers == 0 {
		return p.runSequential(ctx, work, collect)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(p.workers)
	budget := semaphore.NewWeighted(int64(2 * p.workers))

	var (
		slots   = make([][]byte, p.total)
		done    = make(chan int, p.total)
		waitErr error
	)

	go func() {
		defer close(done)
		for i := range p.total {
			if err := budget.Acquire(gctx, 1); err != nil {
				break
			}
			if p.cancelled.Load() {
				break
			}
			g.Go(func() error {
				if p.cancelled.Load() || gctx.Err() != nil {
					return nil
				}
				out, err := work(gctx, i)
				if err != nil {
					return err
				}
				slots[i] = out
				if p.report() == Cancel {
					return errStopped
				}
				done <- i
				return nil
			})
		}
		waitErr = g.Wait()
	}()

	var (
		collectErr error
		ready      = make([]bool, p.total)
		next       int
	)
	for i := range done {
		if collectErr != nil {
			continue
		}
		if !ordered {
			collectErr = p.deliver(i, slots, collect, budget)
		} else {
			ready[i] = true
			for next < p.total && ready[next] && collectErr == nil {
				collectErr = p.deliver(next, slots, collect, budget)
				next++
			}
		}
		if collectErr != nil {
			cancel()
		}
	}

	switch {
	case p.cancelled.Load():
		return ErrCancelled
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	case collectErr != nil:
		return collectErr
	}
	return waitErr
}

func (p *pipeline) deliver(i int, slots [][]byte, collect func(int, []byte) error, budget *semaphore.Weighted) error {
	out := slots[i]
	slots[i] = nil
	budget.Release(1)
	return collect(i, out)
}

// runSequential processes one chunk at a time on the calling goroutine.
func (p *pipeline) runSequential(
	ctx context.Context,
	work func(ctx context.Context, i int) ([]byte, error),
	collect func(i int, result []byte) error,
) error {
	for i := range p.total {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		out, err := work(ctx, i)
		if err != nil {
			return err
		}
		if err := collect(i, out); err != nil {
			return err
		}
		if p.report() == Cancel {
			return ErrCancelled
		}
	}
	return nil
}
