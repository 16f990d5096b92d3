// Package workerpool provides a bounded pool of goroutines fed by a buffered task queue.
//
// Every task accepted by Submit is guaranteed to run exactly once: Close stops
// intake and then drains the queue before returning, so callers may count
// submitted tasks and wait for them without risk of a task being dropped.
package workerpool

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultSize is the number of workers used when Options.Size is not positive.
	DefaultSize = 10
	// DefaultQueueSize is the task buffer used when Options.QueueSize is not positive.
	DefaultQueueSize = 100
)

var (
	// ErrPoolClosed is returned by Submit and Start once Close has been called.
	ErrPoolClosed = errors.New("worker pool closed")
	// ErrPoolNotStarted is returned by Submit before Start.
	ErrPoolNotStarted = errors.New("worker pool not started")
	// ErrPoolAlreadyStarted is returned by a second Start.
	ErrPoolAlreadyStarted = errors.New("worker pool already started")

	errNilTask = errors.New("task is required")
)

// Task is a unit of work. Tasks carry their own context.
type Task func()

// Options configures a Pool.
type Options struct {
	Size      int
	QueueSize int
	Logger    *slog.Logger
}

// Pool runs submitted tasks on a fixed number of workers.
type Pool struct {
	size      int
	queueSize int
	logger    *slog.Logger

	// mu guards the lifecycle. Submit holds it shared while sending so Close
	// cannot close the queue under an in-flight send.
	mu      sync.RWMutex
	tasks   chan Task
	group   *errgroup.Group
	started bool
	closed  bool
	drained chan struct{}

	active    atomic.Int64
	completed atomic.Int64
	panics    atomic.Int64
}

// New creates a pool. It does not start any goroutines.
func New(opts Options) *Pool {
	size := opts.Size
	if size <= 0 {
		size = DefaultSize
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		size:      size,
		queueSize: queueSize,
		logger:    logger.With("component", "workerpool"),
		drained:   make(chan struct{}),
	}
}

// Start launches the workers. Workers run until Close, independent of ctx,
// so that accepted tasks are never abandoned.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	if p.started {
		return ErrPoolAlreadyStarted
	}

	tasks := make(chan Task, p.queueSize)
	p.tasks = tasks
	p.group = &errgroup.Group{}
	for id := range p.size {
		p.group.Go(func() error {
			p.work(ctx, id, tasks)
			return nil
		})
	}
	p.started = true
	p.logger.InfoContext(ctx, "worker pool started", "workers", p.size, "queue_size", p.queueSize)
	return nil
}

// Submit enqueues a task, blocking while the queue is full. It fails with
// ErrPoolClosed after Close, ErrPoolNotStarted before Start, or ctx.Err() if
// ctx ends before the task is accepted. A nil return means the task will run.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	if task == nil {
		return errNilTask
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}
	if !p.started {
		return ErrPoolNotStarted
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops intake, runs every queued task and waits for the workers to exit.
// It is safe to call more than once; later calls wait for the first to finish.
func (p *Pool) Close() error {
	return p.CloseContext(context.Background())
}

// CloseContext is Close bounded by ctx. Draining continues in the background
// if ctx ends first.
func (p *Pool) CloseContext(ctx context.Context) error {
	p.mu.Lock()
	first := !p.closed
	p.closed = true
	started := p.started
	if first && started {
		close(p.tasks)
	}
	p.mu.Unlock()

	if !started {
		if first {
			close(p.drained)
		}
		return nil
	}
	if first {
		go func() {
			_ = p.group.Wait()
			p.logger.Info("worker pool drained",
				"completed", p.completed.Load(), "panics", p.panics.Load())
			close(p.drained)
		}()
	}

	select {
	case <-p.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Workers   int
	Queued    int
	Active    int64
	Completed int64
	Panics    int64
	Closed    bool
}

// Stats reports current pool counters.
func (p *Pool) Stats() Stats {
	p.mu.RLock()
	queued := 0
	if p.tasks != nil {
		queued = len(p.tasks)
	}
	closed := p.closed
	p.mu.RUnlock()

	return Stats{
		Workers:   p.size,
		Queued:    queued,
		Active:    p.active.Load(),
		Completed: p.completed.Load(),
		Panics:    p.panics.Load(),
		Closed:    closed,
	}
}

func (p *Pool) work(ctx context.Context, id int, tasks <-chan Task) {
	for task := range tasks {
		p.run(ctx, id, task)
	}
}

func (p *Pool) run(ctx context.Context, id int, task Task) {
	p.active.Add(1)
	defer func() {
		p.active.Add(-1)
		p.completed.Add(1)
		if r := recover(); r != nil {
			p.panics.Add(1)
			p.logger.ErrorContext(ctx, "worker task panicked",
				"worker", id,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	task()
}
