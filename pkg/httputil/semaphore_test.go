package httputil

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTryAcquireAtCapacity(t *testing.T) {
	s := NewSemaphore(2)

	if !s.TryAcquire() || !s.TryAcquire() {
		t.Fatal("first two acquires should succeed")
	}
	if s.TryAcquire() {
		t.Error("acquire beyond capacity should fail")
	}
	if s.Dropped() != 1 {
		t.Errorf("dropped = %d, want 1", s.Dropped())
	}

	s.Release()
	if !s.TryAcquire() {
		t.Error("acquire after release should succeed")
	}
}

func TestAcquireRespectsContext(t *testing.T) {
	s := NewSemaphore(1)
	if err := s.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := s.Acquire(ctx); err != context.DeadlineExceeded {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestConcurrentHoldersNeverExceedCapacity(t *testing.T) {
	const capacity = 4
	s := NewSemaphore(capacity)

	var inFlight, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Acquire(context.Background()); err != nil {
				return
			}
			cur := inFlight.Add(1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inFlight.Add(-1)
			s.Release()
		}()
	}
	wg.Wait()

	if peak.Load() > capacity {
		t.Errorf("peak in-flight %d exceeded capacity %d", peak.Load(), capacity)
	}
}
