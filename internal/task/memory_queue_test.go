package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	xerrors "AgentSwap/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueueDeliversAndCloses(t *testing.T) {
	q := NewMemoryQueue(2)
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, "t1"))
	require.NoError(t, q.Publish(ctx, "t2"))
	assert.Equal(t, 2, q.Len())

	full, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Publish(full, "t3"), context.DeadlineExceeded)

	var handled atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- q.Consume(ctx, 2, func(context.Context, string) error {
			handled.Add(1)
			return errors.New("ignored")
		})
	}()

	require.Eventually(t, func() bool { return handled.Load() == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consume did not return after close")
	}

	err := q.Publish(ctx, "t4")
	assert.True(t, IsCode(err, xerrors.CodeQueueFailure), "unexpected error: %v", err)
}
