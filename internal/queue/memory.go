package queue

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"video-chapters-go/internal/logger"
)

// MemoryQueue is a buffered in-process queue drained by a fixed worker pool.
// Enqueue never blocks, so a handler may enqueue follow-up work safely.
type MemoryQueue struct {
	tasks       chan Task
	concurrency int
	runner      *Runner
	log         *logger.Logger

	mu     sync.RWMutex
	closed bool
}

func NewMemoryQueue(capacity, concurrency int, runner *Runner, log *logger.Logger) *MemoryQueue {
	if capacity < 1 {
		capacity = 256
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	if runner == nil {
		runner = NewRunner(1, log)
	}
	return &MemoryQueue{
		tasks:       make(chan Task, capacity),
		concurrency: concurrency,
		runner:      runner,
		log:         log.Component("MemoryQueue"),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, t Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.tasks <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Run blocks until ctx is cancelled or the queue is closed and drained.
func (q *MemoryQueue) Run(ctx context.Context, h Handler) error {
	q.log.WithField("concurrency", q.concurrency).Info("starting task workers")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < q.concurrency; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case t, ok := <-q.tasks:
					if !ok {
						return nil
					}
					_ = q.runner.Execute(gctx, h, t)
				}
			}
		})
	}
	err := g.Wait()
	q.log.Info("task workers stopped")
	return err
}

// Len reports the number of tasks waiting for a worker.
func (q *MemoryQueue) Len() int { return len(q.tasks) }

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	return nil
}
