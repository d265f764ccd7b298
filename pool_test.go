package bsum

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolCapacityNeverExceeded(t *testing.T) {
	const capacity = 4
	p := NewPool(capacity)

	var held, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		n := 1
		if i%8 == 0 {
			n = capacity
		}
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			p.Acquire(n)
			cur := atomic.AddInt64(&held, int64(n))
			for {
				old := atomic.LoadInt64(&peak)
				if cur <= old || atomic.CompareAndSwapInt64(&peak, old, cur) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&held, -int64(n))
			p.Release(n)
		}(n)
	}
	wg.Wait()

	if got := atomic.LoadInt64(&peak); got > capacity {
		t.Fatalf("held %d units concurrently, capacity is %d", got, capacity)
	}
	if !p.TryAcquire(capacity) {
		t.Fatal("pool not fully released after all holders finished")
	}
}

func TestPoolTwoStepAcquire(t *testing.T) {
	p := NewPool(3)

	// Acquire one unit, then the rest, as the large-file path does.
	p.Acquire(1)
	p.Acquire(p.Cap() - 1)

	if p.TryAcquire(1) {
		t.Fatal("acquired a unit while the full capacity was held")
	}
	p.Release(p.Cap())
	if !p.TryAcquire(p.Cap()) {
		t.Fatal("full capacity not available after release")
	}
	p.Release(p.Cap())
}

func TestPoolFullCapacityWaiterProceeds(t *testing.T) {
	p := NewPool(2)
	p.Acquire(1)

	acquired := make(chan struct{})
	go func() {
		p.Acquire(2)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("full-capacity acquire succeeded while a unit was held")
	case <-time.After(20 * time.Millisecond):
	}

	p.Release(1)
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("full-capacity waiter never woke after release")
	}
	p.Release(2)
}

func TestPoolAcquireZeroIsNoop(t *testing.T) {
	p := NewPool(1)
	p.Acquire(1)
	// The large path acquires Cap()-1 extra units, which is zero when the
	// pool has a single unit. That must not block or consume anything.
	p.Acquire(0)
	p.Release(1)
	if !p.TryAcquire(1) {
		t.Fatal("pool lost a unit to a zero acquire")
	}
}
