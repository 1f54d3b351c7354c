package taskpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBoundsConcurrency(t *testing.T) {
	l := New(2)
	ctx := context.Background()

	var running, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		err := l.Go(ctx, func() {
			defer wg.Done()
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
		})
		if err != nil {
			t.Fatalf("Go: %v", err)
		}
	}
	wg.Wait()

	if p := atomic.LoadInt32(&peak); p > 2 {
		t.Fatalf("limiter width exceeded: peak %d", p)
	}
}

func TestAcquireRespectsContext(t *testing.T) {
	l := New(1)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := l.Acquire(cctx); err == nil {
		t.Fatalf("expected context error while saturated")
	}

	l.Release()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestDefaultWidth(t *testing.T) {
	if w := New(0).Width(); w != 8 {
		t.Fatalf("expected default width 8, got %d", w)
	}
}
