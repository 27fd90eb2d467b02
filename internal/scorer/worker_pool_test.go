package scorer

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPoolRunsTasks(t *testing.T) {
	wp := NewWorkerPool(4)
	defer wp.Close()

	var n atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		require.NoError(t, wp.Submit(context.Background(), func() {
			defer wg.Done()
			n.Add(1)
		}))
	}
	wg.Wait()
	assert.Equal(t, int64(100), n.Load())
}

func TestWorkerPoolDefaultSize(t *testing.T) {
	wp := NewWorkerPool(0)
	defer wp.Close()
	assert.Positive(t, wp.Size())
}

func TestWorkerPoolClose(t *testing.T) {
	wp := NewWorkerPool(2)
	wp.Close()
	wp.Close()

	assert.True(t, wp.Closed())
	err := wp.Submit(context.Background(), func() {})
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestWorkerPoolSubmitCancelled(t *testing.T) {
	wp := NewWorkerPool(1)
	defer wp.Close()

	block := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, wp.Submit(context.Background(), func() {
		close(started)
		<-block
	}))
	<-started

	// Fill the buffer (2 * workers) so the next Submit blocks.
	require.NoError(t, wp.Submit(context.Background(), func() {}))
	require.NoError(t, wp.Submit(context.Background(), func() {}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := wp.Submit(ctx, func() {})
	assert.ErrorIs(t, err, context.Canceled)

	close(block)
}
