package operations

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

const (
	// MaxPoolThreads is the largest degree of parallelism a pool accepts.
	MaxPoolThreads = 4096

	// DefaultStopTimeout bounds how long Stop waits for outstanding work when
	// the caller's context carries no deadline.
	DefaultStopTimeout = 30 * time.Second
)

// PoolObserver is notified as items flow through queues backed by a Processor.
type PoolObserver interface {
	ItemSubmitted(queue string)
	ItemFinished(queue string, duration time.Duration, err error)
}

// Processor owns the bounded worker pool shared by every queue created from it.
// It is created once per build session and torn down with Stop.
type Processor struct {
	name        string
	threads     int
	sem         *semaphore.Weighted
	logger      zerolog.Logger
	observer    PoolObserver
	stopTimeout time.Duration

	// mu guards stopped and pending. drained is closed once the pool is
	// stopped with nothing pending.
	mu      sync.Mutex
	stopped bool
	pending int
	drained chan struct{}
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithProcessorName sets the pool name used in logs and errors.
func WithProcessorName(name string) ProcessorOption {
	return func(p *Processor) {
		p.name = name
	}
}

// WithProcessorLogger sets the logger for pool lifecycle messages.
func WithProcessorLogger(logger zerolog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithPoolObserver attaches an observer for queue item submission and completion.
func WithPoolObserver(observer PoolObserver) ProcessorOption {
	return func(p *Processor) {
		p.observer = observer
	}
}

// WithStopTimeout overrides DefaultStopTimeout.
func WithStopTimeout(timeout time.Duration) ProcessorOption {
	return func(p *Processor) {
		if timeout > 0 {
			p.stopTimeout = timeout
		}
	}
}

// ResolveThreads maps a requested parallelism onto a thread count:
// negative means one per available CPU, zero means serial, positive is taken as is.
func ResolveThreads(maxParallelism int) int {
	switch {
	case maxParallelism < 0:
		return runtime.NumCPU()
	case maxParallelism == 0:
		return 1
	default:
		return maxParallelism
	}
}

// NewProcessor creates the worker pool for the given parallelism.
func NewProcessor(maxParallelism int, opts ...ProcessorOption) (*Processor, error) {
	threads := ResolveThreads(maxParallelism)
	if threads < 1 || threads > MaxPoolThreads {
		return nil, newPoolError(
			fmt.Sprintf("cannot create pool with %d threads (requested %d, limit %d)", threads, maxParallelism, MaxPoolThreads),
			nil,
		).WithCode(ErrCodeInvalidParallelism)
	}

	p := &Processor{
		name:        "build operations",
		threads:     threads,
		sem:         semaphore.NewWeighted(int64(threads)),
		logger:      zerolog.Nop(),
		stopTimeout: DefaultStopTimeout,
		drained:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.logger.Debug().
		Str("pool", p.name).
		Int("requested", maxParallelism).
		Int("threads", threads).
		Msg("Worker pool created")

	return p, nil
}

// Name returns the pool name.
func (p *Processor) Name() string {
	return p.name
}

// Threads returns the resolved degree of parallelism.
func (p *Processor) Threads() int {
	return p.threads
}

// Stopped reports whether Stop has been called.
func (p *Processor) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// submit schedules task on the pool without blocking the caller. Each task
// gets its own goroutine that parks until a thread is free: the thread count
// limits how many tasks run at once, not how many goroutines are waiting.
func (p *Processor) submit(task func()) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrPoolStopped
	}
	p.pending++
	p.mu.Unlock()

	go func() {
		defer p.done()
		// Acquire only fails on context cancellation.
		_ = p.sem.Acquire(context.Background(), 1)
		defer p.sem.Release(1)
		task()
	}()

	return nil
}

func (p *Processor) done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending--
	if p.stopped && p.pending == 0 {
		close(p.drained)
	}
}

// Stop rejects new work and blocks until previously submitted work drains,
// the context is done, or the stop timeout elapses. It is safe to call more
// than once; later calls return as soon as the pool has drained.
func (p *Processor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		if p.pending == 0 {
			close(p.drained)
		}
		p.logger.Debug().Str("pool", p.name).Int("pending", p.pending).Msg("Worker pool stopping")
	}
	p.mu.Unlock()

	select {
	case <-p.drained:
		return nil
	default:
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.stopTimeout)
		defer cancel()
	}

	select {
	case <-p.drained:
		p.logger.Debug().Str("pool", p.name).Msg("Worker pool stopped")
		return nil
	case <-ctx.Done():
		p.logger.Warn().Str("pool", p.name).Msg("Worker pool stop timed out with work outstanding")
		return newPoolError("timed out waiting for pool to drain", ctx.Err()).
			WithCode(ErrCodeStopTimeout).
			WithOperation(p.name)
	}
}
