package probe

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/tellix/internal/errors"
)

func TestLimiter_Acquire(t *testing.T) {
	t.Run("successful acquisition", func(t *testing.T) {
		l := NewLimiter(5)

		require.NoError(t, l.Acquire(context.Background(), "probe-1"))
		assert.Equal(t, 1, l.Stats().Active)

		l.Release("probe-1")
		assert.Equal(t, 0, l.Stats().Active)
	})

	t.Run("exhaustion blocks until deadline", func(t *testing.T) {
		l := NewLimiter(2)
		ctx := context.Background()

		require.NoError(t, l.Acquire(ctx, "probe-1"))
		require.NoError(t, l.Acquire(ctx, "probe-2"))

		waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		err := l.Acquire(waitCtx, "probe-3")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeCanceled))

		l.Release("probe-1")
		l.Release("probe-2")
	})

	t.Run("released slot is reusable", func(t *testing.T) {
		l := NewLimiter(1)
		ctx := context.Background()

		require.NoError(t, l.Acquire(ctx, "first"))

		acquired := make(chan error, 1)
		go func() {
			acquired <- l.Acquire(ctx, "second")
		}()

		time.Sleep(20 * time.Millisecond)
		l.Release("first")

		select {
		case err := <-acquired:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("second acquisition never completed")
		}
		l.Release("second")
	})

	t.Run("closed limiter refuses", func(t *testing.T) {
		l := NewLimiter(1)
		require.NoError(t, l.Close())

		err := l.Acquire(context.Background(), "late")
		require.Error(t, err)
		assert.True(t, l.Stats().Closed)
	})
}

func TestLimiter_ReleaseUnknownID(t *testing.T) {
	l := NewLimiter(1)
	require.NoError(t, l.Acquire(context.Background(), "known"))

	l.Release("unknown")
	assert.Equal(t, 1, l.Stats().Active, "releasing an unknown id must not free a slot")

	l.Release("known")
	assert.Equal(t, 1, l.Stats().Available)
}

func TestLimiter_ConcurrentUse(t *testing.T) {
	const capacity = 3
	l := NewLimiter(capacity)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		current int
		peak    int
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("probe-%d", i)
			if err := l.Acquire(ctx, id); err != nil {
				t.Errorf("acquire %s: %v", id, err)
				return
			}

			mu.Lock()
			current++
			if current > peak {
				peak = current
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			current--
			mu.Unlock()
			l.Release(id)
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, capacity)
	assert.Equal(t, 0, l.Stats().Active)
}

func TestNewLimiter_MinimumCapacity(t *testing.T) {
	assert.Equal(t, 1, NewLimiter(0).Stats().Capacity)
	assert.Equal(t, 1, NewLimiter(-4).Stats().Capacity)
}
