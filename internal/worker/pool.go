package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/veranemoloko/onc-archive/internal/metrics"
)

// ErrPoolUsed is returned when Run is called twice on the same Pool.
var ErrPoolUsed = errors.New("worker pool already ran")

// WorkQueue is a cursor over an immutable slice of items.
// Next is the only mutating operation.
type WorkQueue[T any] struct {
	mu    sync.Mutex
	items []T
	next  int
}

// NewWorkQueue creates a queue over items. The slice must not be modified
// while the queue is in use.
func NewWorkQueue[T any](items []T) *WorkQueue[T] {
	return &WorkQueue[T]{items: items}
}

// Next claims the next unclaimed item. ok is false once the queue is exhausted.
func (q *WorkQueue[T]) Next() (index int, item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.next >= len(q.items) {
		return -1, item, false
	}
	index = q.next
	q.next++
	return index, q.items[index], true
}

// Remaining returns the number of unclaimed items.
func (q *WorkQueue[T]) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.next
}

// Pool runs a function over a sequence of items with a fixed number of
// concurrent workers. A Pool is single use.
type Pool[T any] struct {
	workers int
	logger  *slog.Logger
	onPanic func(item T, recovered any)

	ran       atomic.Bool
	completed atomic.Int64
	last      atomic.Int64
	done      chan struct{}
}

// NewPool creates a pool of workers goroutines. Values below 1 are raised to 1.
func NewPool[T any](workers int, logger *slog.Logger) *Pool[T] {
	if workers < 1 {
		workers = 1
	}
	p := &Pool[T]{
		workers: workers,
		logger:  logger,
		done:    make(chan struct{}),
	}
	p.last.Store(-1)
	return p
}

// SetPanicHandler registers a callback for items whose function panicked.
// It must be called before Run.
func (p *Pool[T]) SetPanicHandler(fn func(item T, recovered any)) {
	p.onPanic = fn
}

// Workers returns the number of workers Run starts.
func (p *Pool[T]) Workers() int {
	return p.workers
}

// Completed returns how many items have been processed so far.
// It is safe to call while Run is in progress.
func (p *Pool[T]) Completed() int64 {
	return p.completed.Load()
}

// LastCompleted returns the queue index of the most recently finished item,
// or -1 before any item finished.
func (p *Pool[T]) LastCompleted() int {
	return int(p.last.Load())
}

// Done is closed when Run returns.
func (p *Pool[T]) Done() <-chan struct{} {
	return p.done
}

// Run starts the workers, each claiming items until the queue is exhausted,
// and blocks until all of them have returned. A cancelled context stops
// workers from claiming new items; items already claimed are finished.
// Run returns the context error when items were left unclaimed.
func (p *Pool[T]) Run(ctx context.Context, items []T, fn func(context.Context, T)) error {
	if !p.ran.CompareAndSwap(false, true) {
		return ErrPoolUsed
	}
	defer close(p.done)

	queue := NewWorkQueue(items)

	var g errgroup.Group
	for i := 0; i < p.workers; i++ {
		workerID := i + 1
		g.Go(func() error {
			p.work(ctx, workerID, queue, fn)
			return nil
		})
	}
	// workers never return an error; failures are reported per item
	g.Wait()

	if queue.Remaining() > 0 {
		return ctx.Err()
	}
	return nil
}

func (p *Pool[T]) work(ctx context.Context, workerID int, queue *WorkQueue[T], fn func(context.Context, T)) {
	for ctx.Err() == nil {
		index, item, ok := queue.Next()
		if !ok {
			return
		}
		p.process(ctx, workerID, index, item, fn)
	}
}

func (p *Pool[T]) process(ctx context.Context, workerID, index int, item T, fn func(context.Context, T)) {
	metrics.WorkersBusy.Inc()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker recovered from panic",
				"worker_id", workerID,
				"index", index,
				"panic", r,
			)
			if p.onPanic != nil {
				p.onPanic(item, r)
			}
		}
		metrics.WorkersBusy.Dec()
		p.last.Store(int64(index))
		p.completed.Add(1)
	}()

	fn(ctx, item)
}
