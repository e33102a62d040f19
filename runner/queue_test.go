package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_RunsInOrder(t *testing.T) {
	q := NewQueue()

	var (
		mu    sync.Mutex
		order []int
	)
	for i := 0; i < 20; i++ {
		i := i
		q.Enqueue("unit", func() error {
			if i%3 == 0 {
				time.Sleep(time.Millisecond)
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
	}

	require.NoError(t, q.Wait(context.Background()))
	assert.Len(t, order, 20)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueue_FailuresDoNotHaltSuccessors(t *testing.T) {
	q := NewQueue()
	ran := false

	q.Enqueue("error", func() error { return errors.New("boom") })
	q.Enqueue("panic", func() error { panic("boom") })
	q.Enqueue("ok", func() error { ran = true; return nil })

	require.NoError(t, q.Wait(context.Background()))
	assert.True(t, ran)
}

func TestQueue_WaitEmpty(t *testing.T) {
	assert.NoError(t, NewQueue().Wait(context.Background()))
}

func TestQueue_WaitHonorsContext(t *testing.T) {
	q := NewQueue()
	release := make(chan struct{})
	q.Enqueue("blocked", func() error { <-release; return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Wait(ctx), context.DeadlineExceeded)
	assert.Equal(t, 1, q.Len())

	close(release)
	require.NoError(t, q.Wait(context.Background()))
}

func TestQueue_WaitOnlyCoversEarlierUnits(t *testing.T) {
	q := NewQueue()
	first := make(chan struct{})
	q.Enqueue("first", func() error { close(first); return nil })

	require.NoError(t, q.Wait(context.Background()))
	<-first

	release := make(chan struct{})
	q.Enqueue("later", func() error { <-release; return nil })
	close(release)
	require.NoError(t, q.Wait(context.Background()))
}
