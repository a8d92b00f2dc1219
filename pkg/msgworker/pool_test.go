package msgworker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_DispatchNonBlocking(t *testing.T) {
	pool := NewPool(2, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool.Start(ctx)
	defer pool.Stop()

	start := time.Now()
	pool.Dispatch(Job{
		TenantID:  "t1",
		ContactID: "c1",
		Handler: func(ctx context.Context) error {
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	})
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 10*time.Millisecond, "Dispatch must not block the caller")
}

func TestPool_SameContactSequentialProcessing(t *testing.T) {
	pool := NewPool(4, 100)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool.Start(ctx)
	defer pool.Stop()

	var results []int
	var mu sync.Mutex

	for i := 1; i <= 5; i++ {
		val := i
		pool.Dispatch(Job{
			TenantID:  "tenant1",
			ContactID: "contact1",
			Handler: func(ctx context.Context) error {
				time.Sleep(10 * time.Millisecond)
				mu.Lock()
				results = append(results, val)
				mu.Unlock()
				return nil
			},
		})
	}

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	require.Equal(t, []int{1, 2, 3, 4, 5}, results, "jobs from the same contact must be processed in arrival order")
}

func TestPool_DifferentContactsParallelProcessing(t *testing.T) {
	pool := NewPool(8, 100)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool.Start(ctx)
	defer pool.Stop()

	var activeCount int32
	var maxActive int32

	var wg sync.WaitGroup
	contacts := []string{"c1", "c2", "c3", "c4", "c5", "c6"}
	for _, c := range contacts {
		wg.Add(1)
		pool.Dispatch(Job{
			TenantID:  "t1",
			ContactID: c,
			Handler: func(ctx context.Context) error {
				defer wg.Done()
				n := atomic.AddInt32(&activeCount, 1)
				for {
					m := atomic.LoadInt32(&maxActive)
					if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
						break
					}
				}
				time.Sleep(50 * time.Millisecond)
				atomic.AddInt32(&activeCount, -1)
				return nil
			},
		})
	}

	wg.Wait()

	assert.Greater(t, atomic.LoadInt32(&maxActive), int32(1),
		"jobs from different contacts should run in parallel")
}

func TestPool_TryDispatchBackpressure(t *testing.T) {
	pool := NewPool(1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool.Start(ctx)
	defer pool.Stop()

	block := make(chan struct{})
	// First job occupies the worker, second fills the queue.
	pool.Dispatch(Job{TenantID: "t", ContactID: "c", Handler: func(ctx context.Context) error {
		<-block
		return nil
	}})
	time.Sleep(20 * time.Millisecond)
	pool.Dispatch(Job{TenantID: "t", ContactID: "c", Handler: func(ctx context.Context) error { return nil }})

	ok := pool.TryDispatch(Job{TenantID: "t", ContactID: "c", Handler: func(ctx context.Context) error { return nil }})
	assert.False(t, ok, "TryDispatch must report a full queue")

	close(block)
}

func TestPool_StatsCounters(t *testing.T) {
	pool := NewPool(2, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool.Start(ctx)
	defer pool.Stop()

	done := make(chan struct{})
	pool.Dispatch(Job{TenantID: "t", ContactID: "c", Handler: func(ctx context.Context) error {
		close(done)
		return nil
	}})
	<-done
	time.Sleep(20 * time.Millisecond)

	stats := pool.GetStats()
	assert.Equal(t, int64(1), stats.TotalDispatched)
	assert.Equal(t, int64(1), stats.TotalProcessed)
	assert.Equal(t, 2, stats.NumWorkers)
}
