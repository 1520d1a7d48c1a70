package operations

import (
	"errors"
	"fmt"
)

// ErrorClass identifies which layer of the operation machinery produced an error.
type ErrorClass string

const (
	// ErrorClassPool indicates the worker pool could not be created or used.
	ErrorClassPool ErrorClass = "pool"

	// ErrorClassWorker indicates a worker function failed for a submitted item.
	ErrorClassWorker ErrorClass = "worker"

	// ErrorClassOperation indicates the work of an operation failed.
	ErrorClassOperation ErrorClass = "operation"

	// ErrorClassProtocol indicates an operation was malformed or misused
	// its context (missing display name, result set twice).
	ErrorClassProtocol ErrorClass = "protocol"
)

// Common error codes.
const (
	ErrCodeInvalidParallelism = "INVALID_PARALLELISM"
	ErrCodePoolStopped        = "POOL_STOPPED"
	ErrCodeStopTimeout        = "STOP_TIMEOUT"
	ErrCodeWorkerFailed       = "WORKER_FAILED"
	ErrCodeWorkerPanic        = "WORKER_PANIC"
	ErrCodeWorkFailed         = "WORK_FAILED"
	ErrCodeWorkPanic          = "WORK_PANIC"
	ErrCodeInvalidDescriptor  = "INVALID_DESCRIPTOR"
	ErrCodeResultAlreadySet   = "RESULT_ALREADY_SET"
)

var (
	// ErrPoolStopped is returned when work is submitted to a stopped pool.
	ErrPoolStopped = &OperationError{Class: ErrorClassPool, Code: ErrCodePoolStopped, Message: "worker pool is stopped"}

	// ErrInvalidParallelism is returned when the resolved thread count cannot be honoured.
	ErrInvalidParallelism = &OperationError{Class: ErrorClassPool, Code: ErrCodeInvalidParallelism, Message: "invalid parallelism"}

	// ErrResultAlreadySet is returned by Context.SetResult on a second call.
	ErrResultAlreadySet = &OperationError{Class: ErrorClassProtocol, Code: ErrCodeResultAlreadySet, Message: "operation result already set"}
)

// OperationError is a classified error raised by the pool or the operation protocol.
type OperationError struct {
	// Class is the layer that raised the error.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Operation is the display name of the operation or queue involved.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying cause.
	Err error `json:"-"`

	// Details contains additional context such as the failing item.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Operation != "" {
		msg = fmt.Sprintf("%s (operation=%s)", msg, e.Operation)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *OperationError) Unwrap() error {
	return e.Err
}

// Is matches on class and code so sentinel errors work with errors.Is.
func (e *OperationError) Is(target error) bool {
	t, ok := target.(*OperationError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// WithOperation adds the operation or queue name to the error.
func (e *OperationError) WithOperation(name string) *OperationError {
	e.Operation = name
	return e
}

// WithCode sets the error code.
func (e *OperationError) WithCode(code string) *OperationError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *OperationError) WithDetail(key string, value interface{}) *OperationError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newPoolError(message string, err error) *OperationError {
	return &OperationError{Class: ErrorClassPool, Message: message, Err: err}
}

func newWorkerError(message string, err error) *OperationError {
	return &OperationError{Class: ErrorClassWorker, Message: message, Err: err}
}

func newProtocolError(message string, err error) *OperationError {
	return &OperationError{Class: ErrorClassProtocol, Message: message, Err: err}
}

// IsWorkerError reports whether err was raised by a queue worker.
func IsWorkerError(err error) bool {
	var e *OperationError
	if errors.As(err, &e) {
		return e.Class == ErrorClassWorker
	}
	return false
}

// IsProtocolError reports whether err indicates misuse of the operation protocol.
func IsProtocolError(err error) bool {
	var e *OperationError
	if errors.As(err, &e) {
		return e.Class == ErrorClassProtocol
	}
	return false
}

// panicError converts a recovered panic value into an error.
func panicError(r interface{}) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}
