package operations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DescribeFunc produces the descriptor of an operation.
type DescribeFunc func() *DescriptorBuilder

// CallableOperation is an operation whose work returns a value.
type CallableOperation[R any] struct {
	Describe DescribeFunc
	Call     func(ctx context.Context, oc *Context) (R, error)
}

// RunnableOperation is an operation whose work returns nothing but an error.
type RunnableOperation struct {
	Describe DescribeFunc
	Run      func(ctx context.Context, oc *Context) error
}

// Executor runs operations synchronously on the caller's goroutine and
// reports each one to its listener.
type Executor struct {
	listener Listener
	logger   zerolog.Logger
	now      func() time.Time
	newID    func() string
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithListener sets the listener notified of every operation.
func WithListener(listener Listener) ExecutorOption {
	return func(e *Executor) {
		e.listener = listener
	}
}

// WithExecutorLogger sets the executor logger.
func WithExecutorLogger(logger zerolog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor creates an executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		logger: zerolog.Nop(),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.listener == nil {
		e.listener = MultiListener(nil)
	}
	return e
}

// Call runs op through e and returns the value produced by its work.
// The error from the work is returned only after the listener has seen it.
func Call[R any](ctx context.Context, e *Executor, op CallableOperation[R]) (R, error) {
	var value R
	if op.Call == nil {
		return value, newProtocolError("operation has no work", nil)
	}
	err := e.execute(ctx, op.Describe, func(ctx context.Context, oc *Context) error {
		v, err := op.Call(ctx, oc)
		value = v
		return err
	})
	return value, err
}

// Run runs op and returns the error its work produced, if any.
func (e *Executor) Run(ctx context.Context, op RunnableOperation) error {
	if op.Run == nil {
		return newProtocolError("operation has no work", nil)
	}
	return e.execute(ctx, op.Describe, op.Run)
}

// execute drives one invocation through created, described, running and a
// terminal state.
func (e *Executor) execute(ctx context.Context, describe DescribeFunc, work func(context.Context, *Context) error) error {
	lc := lifecycle{state: StateCreated}

	if describe == nil {
		return newProtocolError("operation has no description", nil).WithCode(ErrCodeInvalidDescriptor)
	}
	descriptor, err := describe().Build()
	if err != nil {
		return err
	}
	if err := lc.advance(StateDescribed); err != nil {
		return err
	}

	info := OperationInfo{
		ID:         e.newID(),
		ParentID:   CurrentOperationID(ctx),
		Descriptor: descriptor,
		StartedAt:  e.now(),
	}
	logger := e.logger.With().
		Str("operation_id", info.ID).
		Str("operation", descriptor.DisplayName).
		Logger()

	e.listener.Started(ctx, info)
	if err := lc.advance(StateRunning); err != nil {
		return err
	}
	logger.Debug().Str("progress", descriptor.ProgressDisplayName).Msg("Operation started")

	oc := newContext()
	workErr := invokeWork(withOperationID(ctx, info.ID), oc, work)
	if workErr != nil {
		oc.fail(workErr)
		_ = lc.advance(StateFailed)
	} else {
		_ = lc.advance(StateCompleted)
	}

	result, hasResult := oc.Result()
	outcome := Outcome{
		Result:    result,
		HasResult: hasResult,
		Status:    oc.Status(),
		Err:       oc.Failure(),
		StartedAt: info.StartedAt,
		EndedAt:   e.now(),
	}
	e.listener.Finished(ctx, info, outcome)

	if workErr != nil {
		logger.Debug().Err(workErr).Dur("duration", outcome.Duration()).Msg("Operation failed")
		return workErr
	}
	logger.Debug().Dur("duration", outcome.Duration()).Bool("has_result", hasResult).Msg("Operation completed")
	return nil
}

// invokeWork runs work, turning a panic into an operation error.
func invokeWork(ctx context.Context, oc *Context, work func(context.Context, *Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &OperationError{
				Class:   ErrorClassOperation,
				Code:    ErrCodeWorkPanic,
				Message: "operation work panicked",
				Err:     panicError(r),
			}
		}
	}()
	return work(ctx, oc)
}
