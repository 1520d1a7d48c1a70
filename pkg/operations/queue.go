package operations

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Worker processes a single item submitted to a Queue.
type Worker[T any] func(item T) error

// Queue is a submission channel bound to one worker function. Queues do not
// own the pool; any number of them may share one Processor.
type Queue[T any] struct {
	name      string
	processor *Processor
	worker    Worker[T]

	wg sync.WaitGroup

	mu       sync.Mutex
	next     int
	failures *multierror.Error
}

// NewQueue creates a queue on p that runs worker for every added item.
func NewQueue[T any](p *Processor, name string, worker Worker[T]) *Queue[T] {
	return &Queue[T]{
		name:      name,
		processor: p,
		worker:    worker,
	}
}

// Name returns the queue name.
func (q *Queue[T]) Name() string {
	return q.name
}

// Add schedules worker(item) on the pool and returns immediately.
// It fails only when the pool has been stopped.
func (q *Queue[T]) Add(item T) error {
	q.mu.Lock()
	index := q.next
	q.next++
	q.mu.Unlock()

	q.wg.Add(1)
	err := q.processor.submit(func() {
		defer q.wg.Done()
		q.run(index, item)
	})
	if err != nil {
		q.wg.Done()
		return err
	}

	if q.processor.observer != nil {
		q.processor.observer.ItemSubmitted(q.name)
	}
	return nil
}

// Wait blocks until every item added so far has been processed and returns
// the failures of all items, each attributed to its item.
func (q *Queue[T]) Wait() error {
	q.wg.Wait()

	q.mu.Lock()
	defer q.mu.Unlock()
	return q.failures.ErrorOrNil()
}

// run invokes the worker for one item, converting panics into errors.
func (q *Queue[T]) run(index int, item T) {
	start := time.Now()
	panicked, err := q.invoke(item)
	if err != nil {
		code := ErrCodeWorkerFailed
		if panicked {
			code = ErrCodeWorkerPanic
		}
		werr := newWorkerError(fmt.Sprintf("item #%d failed", index), err).
			WithCode(code).
			WithOperation(q.name).
			WithDetail("item_index", index).
			WithDetail("item", item)

		q.mu.Lock()
		q.failures = multierror.Append(q.failures, werr)
		q.mu.Unlock()

		q.processor.logger.Debug().
			Err(err).
			Str("queue", q.name).
			Int("item", index).
			Msg("Queue item failed")
		err = werr
	}

	if q.processor.observer != nil {
		q.processor.observer.ItemFinished(q.name, time.Since(start), err)
	}
}

func (q *Queue[T]) invoke(item T) (panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			err = panicError(r)
		}
	}()
	return false, q.worker(item)
}
