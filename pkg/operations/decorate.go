package operations

import "context"

// Decoration describes the behaviour a decorator adds around delegated work.
type Decoration struct {
	// Describe produces the descriptor of the decorated operation.
	Describe DescribeFunc

	// Result computes the operation result once the delegate has succeeded.
	// A nil Result leaves the operation without a result.
	Result func(ctx context.Context) (interface{}, error)

	// Finally runs exactly once after the operation has finished, whether
	// the delegate succeeded or not, before Decorate returns.
	Finally func(ctx context.Context, err error)
}

// Decorate runs delegate as an operation described by d. The delegate does
// not know it is wrapped: the description, the result and the trailing
// notification all come from d. The delegate's error is returned unchanged.
func (e *Executor) Decorate(ctx context.Context, delegate func(ctx context.Context) error, d Decoration) (err error) {
	if d.Finally != nil {
		defer func() {
			d.Finally(ctx, err)
		}()
	}

	if delegate == nil {
		return newProtocolError("decorated operation has no delegate", nil)
	}

	return e.Run(ctx, RunnableOperation{
		Describe: d.Describe,
		Run: func(ctx context.Context, oc *Context) error {
			if err := delegate(ctx); err != nil {
				return err
			}
			if d.Result == nil {
				return nil
			}
			result, err := d.Result(ctx)
			if err != nil {
				return err
			}
			return oc.SetResult(result)
		},
	})
}
