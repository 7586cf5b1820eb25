package taskqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitReturnsImmediately(t *testing.T) {
	q := New(1)
	release := make(chan struct{})

	start := time.Now()
	h := q.Submit(context.Background(), func(context.Context) error {
		<-release
		return nil
	})
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(release)
	require.NoError(t, h.Wait())
}

func TestBoundedConcurrency(t *testing.T) {
	const limit = 3
	q := New(limit)

	var inflight, peak atomic.Int32
	var handles []*Handle
	for i := 0; i < 20; i++ {
		handles = append(handles, q.Submit(context.Background(), func(context.Context) error {
			n := inflight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inflight.Add(-1)
			return nil
		}))
	}
	for _, h := range handles {
		require.NoError(t, h.Wait())
	}
	assert.LessOrEqual(t, peak.Load(), int32(limit))
	assert.Positive(t, peak.Load())
}

func TestDrainWaitsForTransitiveWork(t *testing.T) {
	q := New(4)
	var settled atomic.Int32

	// Each unit submits two more, three levels deep: 1 + 2 + 4 + 8.
	var spawn func(depth int) func(context.Context) error
	spawn = func(depth int) func(context.Context) error {
		return func(ctx context.Context) error {
			time.Sleep(time.Millisecond)
			if depth < 4 {
				q.Submit(ctx, spawn(depth+1))
				q.Submit(ctx, spawn(depth+1))
			}
			settled.Add(1)
			return nil
		}
	}
	q.Submit(context.Background(), spawn(1))

	require.NoError(t, q.Drain(context.Background()))
	assert.Equal(t, int32(15), settled.Load())
}

func TestFailureIsObservableAndIsolated(t *testing.T) {
	q := New(2)
	boom := errors.New("boom")

	var mu sync.Mutex
	var ran []string

	ok1 := q.Submit(context.Background(), func(context.Context) error {
		mu.Lock()
		ran = append(ran, "ok1")
		mu.Unlock()
		return nil
	})
	bad := q.Submit(context.Background(), func(context.Context) error {
		return boom
	})
	ok2 := q.Submit(context.Background(), func(context.Context) error {
		mu.Lock()
		ran = append(ran, "ok2")
		mu.Unlock()
		return nil
	})

	require.NoError(t, q.Drain(context.Background()))
	assert.ErrorIs(t, bad.Wait(), boom)
	assert.NoError(t, ok1.Wait())
	assert.NoError(t, ok2.Wait())
	assert.ElementsMatch(t, []string{"ok1", "ok2"}, ran)
}

func TestDrainHonorsContext(t *testing.T) {
	q := New(1)
	release := make(chan struct{})
	q.Submit(context.Background(), func(context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Drain(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, q.Drain(context.Background()))
}

func TestDrainOnIdleQueue(t *testing.T) {
	q := New(2)
	require.NoError(t, q.Drain(context.Background()))
}
