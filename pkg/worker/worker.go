// Package worker runs jobs on a fixed set of goroutines fed by a buffered
// channel.
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/majmadigital/finance-ledger/pkg/logger"
)

var ErrStopped = errors.New("worker pool stopped")

type Handler[T any] func(workerIndex int, job T)

type Pool[T any] struct {
	jobs    chan T
	workers int
	handle  Handler[T]

	quit chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewPool creates a pool of workers goroutines sharing a queue of bufferSize
// jobs. Nothing runs until Start.
func NewPool[T any](bufferSize, workers int, handle Handler[T]) *Pool[T] {
	if workers < 1 {
		workers = 1
	}
	return &Pool[T]{
		jobs:    make(chan T, bufferSize),
		workers: workers,
		handle:  handle,
		quit:    make(chan struct{}),
	}
}

func (p *Pool[T]) Start() {
	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go func(index int) {
			defer p.wg.Done()
			for {
				select {
				case job := <-p.jobs:
					p.handle(index, job)
				case <-p.quit:
					return
				}
			}
		}(i)
	}
}

// Enqueue blocks until a slot is free, ctx is done or the pool stops.
func (p *Pool[T]) Enqueue(ctx context.Context, job T) error {
	select {
	case <-p.quit:
		return ErrStopped
	default:
	}

	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.quit:
		return ErrStopped
	}
}

// Backlog is the number of queued jobs no worker has picked up yet.
func (p *Pool[T]) Backlog() int {
	return len(p.jobs)
}

// Stop signals every worker and waits for running jobs to return. Queued jobs
// are dropped.
func (p *Pool[T]) Stop() {
	p.once.Do(func() {
		logger.Info("Stopping worker pool", "workers", p.workers, "backlog", len(p.jobs))
		close(p.quit)
	})
	p.wg.Wait()
}
