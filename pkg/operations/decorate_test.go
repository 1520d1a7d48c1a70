package operations

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decorationFor(listener *mockListener, finallyCalls *int) Decoration {
	return Decoration{
		Describe: func() *DescriptorBuilder {
			return DisplayName("Decorated").Progress("Decorating")
		},
		Result: func(ctx context.Context) (interface{}, error) {
			listener.record("result")
			return "snapshot", nil
		},
		Finally: func(ctx context.Context, err error) {
			*finallyCalls++
			listener.record("finally")
		},
	}
}

func TestDecorate_Success(t *testing.T) {
	listener := &mockListener{}
	exec := NewExecutor(WithListener(listener))
	finallyCalls := 0

	err := exec.Decorate(context.Background(), func(ctx context.Context) error {
		listener.record("delegate")
		return nil
	}, decorationFor(listener, &finallyCalls))

	require.NoError(t, err)
	assert.Equal(t, 1, finallyCalls)
	assert.Equal(t, []string{
		"start:Decorated",
		"delegate",
		"result",
		"finish:Decorated",
		"finally",
	}, listener.timeline())
	assert.Equal(t, "snapshot", listener.last.Result)
}

func TestDecorate_DelegateFailureStillRunsFinally(t *testing.T) {
	listener := &mockListener{}
	exec := NewExecutor(WithListener(listener))
	finallyCalls := 0
	illegalState := errors.New("illegal state")

	err := exec.Decorate(context.Background(), func(ctx context.Context) error {
		listener.record("delegate")
		return illegalState
	}, decorationFor(listener, &finallyCalls))

	assert.Same(t, illegalState, err)
	assert.Equal(t, 1, finallyCalls)
	assert.Equal(t, []string{
		"start:Decorated",
		"delegate",
		"fail:Decorated",
		"finally",
	}, listener.timeline())
}

func TestDecorate_FinallySeesTheError(t *testing.T) {
	exec := NewExecutor()
	boom := errors.New("boom")
	var seen error

	err := exec.Decorate(context.Background(), func(ctx context.Context) error {
		return boom
	}, Decoration{
		Describe: func() *DescriptorBuilder { return DisplayName("Observed") },
		Finally: func(ctx context.Context, err error) {
			seen = err
		},
	})

	assert.Same(t, boom, err)
	assert.Same(t, boom, seen)
}

func TestDecorate_ResultFailureFailsOperation(t *testing.T) {
	listener := &mockListener{}
	exec := NewExecutor(WithListener(listener))
	finallyCalls := 0
	convertErr := errors.New("cannot convert")

	err := exec.Decorate(context.Background(), func(ctx context.Context) error {
		return nil
	}, Decoration{
		Describe: func() *DescriptorBuilder { return DisplayName("Converting") },
		Result: func(ctx context.Context) (interface{}, error) {
			return nil, convertErr
		},
		Finally: func(ctx context.Context, err error) { finallyCalls++ },
	})

	assert.Same(t, convertErr, err)
	assert.Equal(t, 1, finallyCalls)
	assert.Equal(t, []string{"start:Converting", "fail:Converting"}, listener.timeline())
}

func TestDecorate_PanickingDelegateRunsFinallyOnce(t *testing.T) {
	exec := NewExecutor()
	finallyCalls := 0

	err := exec.Decorate(context.Background(), func(ctx context.Context) error {
		panic("delegate panic")
	}, Decoration{
		Describe: func() *DescriptorBuilder { return DisplayName("Panicking") },
		Finally:  func(ctx context.Context, err error) { finallyCalls++ },
	})

	require.Error(t, err)
	assert.Equal(t, 1, finallyCalls)
}
