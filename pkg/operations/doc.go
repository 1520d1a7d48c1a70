// Package operations runs discrete units of build work and instruments them.
//
// # Worker pool
//
// A Processor owns one bounded pool for the lifetime of a build session. Its
// size is resolved from a single parallelism setting:
//
//   - negative: one thread per available CPU
//   - zero: exactly one thread (serial)
//   - positive: exactly that many threads
//
// Queues created with NewQueue share the pool. Each queue is bound to one
// Worker function; Add schedules the worker for an item without blocking and
// Wait blocks until every added item has been processed, returning the
// failures of individual items:
//
//	p, err := operations.NewProcessor(-1)
//	if err != nil {
//	    return err
//	}
//	defer p.Stop(context.Background())
//
//	q := operations.NewQueue(p, "compile", func(set SourceSet) error {
//	    return compile(set)
//	})
//	for _, set := range sets {
//	    _ = q.Add(set)
//	}
//	if err := q.Wait(); err != nil {
//	    return err
//	}
//
// A worker that fails or panics only fails its own item.
//
// # Operations
//
// An operation is a description plus a unit of work. The Executor builds the
// descriptor, notifies its Listener that the operation started, runs the work
// on the caller's goroutine with a fresh Context, then notifies the listener
// of the outcome before returning the work's error to the caller:
//
//	result, err := operations.Call(ctx, exec, operations.CallableOperation[int]{
//	    Describe: func() *operations.DescriptorBuilder {
//	        return operations.DisplayName("Count sources").Details(CountDetails{})
//	    },
//	    Call: func(ctx context.Context, oc *operations.Context) (int, error) {
//	        n := count()
//	        return n, oc.SetResult(CountResult{N: n})
//	    },
//	})
//
// Operations started from inside another operation's work record it as
// their parent.
//
// # Decoration
//
// Executor.Decorate wraps existing work without changing it. The decoration
// supplies the descriptor, computes the result after the delegate succeeds
// and runs a trailing Finally hook exactly once whatever the outcome.
package operations
