package operations

import (
	"context"
	"sync"
)

// Context is handed to the work of one operation. It holds at most one result
// and, once the work returns, the failure if there was one.
type Context struct {
	mu        sync.Mutex
	result    interface{}
	resultSet bool
	status    string
	failure   error
}

func newContext() *Context {
	return &Context{}
}

// SetResult attaches the operation result. It may be called once; later calls
// return ErrResultAlreadySet and leave the first result in place.
func (c *Context) SetResult(result interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resultSet {
		return newProtocolError("operation result already set", nil).
			WithCode(ErrCodeResultAlreadySet)
	}
	c.result = result
	c.resultSet = true
	return nil
}

// Result returns the attached result and whether one was set.
func (c *Context) Result() (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result, c.resultSet
}

// SetStatus records a short status line describing progress.
func (c *Context) SetStatus(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
}

// Status returns the last recorded status line.
func (c *Context) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Failure returns the error the work ended with, if any.
func (c *Context) Failure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failure
}

func (c *Context) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failure = err
}

// operationIDKey is the context key for the ID of the running operation.
type operationIDKey struct{}

func withOperationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, operationIDKey{}, id)
}

// CurrentOperationID returns the ID of the operation whose work is running
// in ctx, or "" outside any operation.
func CurrentOperationID(ctx context.Context) string {
	if id, ok := ctx.Value(operationIDKey{}).(string); ok {
		return id
	}
	return ""
}
