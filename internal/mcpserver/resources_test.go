package mcpserver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReleaseStack_ReverseOrder(t *testing.T) {
	stack := newReleaseStack()

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		stack.Push(name, func() error {
			order = append(order, name)
			return nil
		})
	}

	require.NoError(t, stack.Release())
	assert.Equal(t, []string{"third", "second", "first"}, order)
}

func TestReleaseStack_ReleaseIsIdempotent(t *testing.T) {
	stack := newReleaseStack()

	calls := 0
	stack.Push("resource", func() error {
		calls++
		return nil
	})

	require.NoError(t, stack.Release())
	require.NoError(t, stack.Release())
	assert.Equal(t, 1, calls)
}

func TestReleaseStack_CollectsErrorsWithoutShortCircuit(t *testing.T) {
	stack := newReleaseStack()

	released := make(map[string]bool)
	stack.Push("ok", func() error {
		released["ok"] = true
		return nil
	})
	stack.Push("broken", func() error {
		released["broken"] = true
		return errors.New("pipe already gone")
	})

	err := stack.Release()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipe already gone")
	// The failing closer must not prevent the one below it from running.
	assert.True(t, released["ok"])
	assert.True(t, released["broken"])
}

func TestReleaseStack_AbsorbsCancellation(t *testing.T) {
	stack := newReleaseStack()

	stack.Push("cancelled", func() error {
		return context.Canceled
	})
	stack.Push("timed out", func() error {
		return context.DeadlineExceeded
	})

	// Cancellation during teardown is expected, not exceptional.
	assert.NoError(t, stack.Release())
}

func TestReleaseStack_PushAfterReleaseClosesImmediately(t *testing.T) {
	stack := newReleaseStack()
	require.NoError(t, stack.Release())

	closed := false
	stack.Push("late", func() error {
		closed = true
		return nil
	})
	assert.True(t, closed)
}
