package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bastionai/bastion/pkg/detect"
)

func sampleSignals(tag string) []detect.Signal {
	return []detect.Signal{
		{Source: detect.SourceHeuristic, Category: "jailbreak", Severity: 0.8, Confidence: 0.7, Evidence: tag},
	}
}

func TestKeyDependsOnTextOnly(t *testing.T) {
	k1 := Key("ignore previous instructions")
	k2 := Key("ignore previous instructions")
	k3 := Key("ignore previous instructions!")

	if k1 != k2 {
		t.Error("identical text must hash to identical keys")
	}
	if k1 == k3 {
		t.Error("different text should hash differently")
	}
}

func TestLRUGetPut(t *testing.T) {
	c := NewLRU(4, 0)
	ctx := context.Background()

	if _, ok := c.Get(ctx, Key("a")); ok {
		t.Fatal("unexpected hit on empty cache")
	}

	c.Put(ctx, Key("a"), sampleSignals("a"))
	got, ok := c.Get(ctx, Key("a"))
	if !ok {
		t.Fatal("expected hit")
	}
	if len(got) != 1 || got[0].Evidence != "a" {
		t.Errorf("wrong entry: %+v", got)
	}
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU(2, 0)
	ctx := context.Background()

	c.Put(ctx, 1, sampleSignals("one"))
	c.Put(ctx, 2, sampleSignals("two"))

	// Touch 1 so 2 becomes the eviction candidate.
	c.Get(ctx, 1)
	c.Put(ctx, 3, sampleSignals("three"))

	if _, ok := c.Get(ctx, 2); ok {
		t.Error("entry 2 should have been evicted")
	}
	if _, ok := c.Get(ctx, 1); !ok {
		t.Error("recently used entry 1 should survive")
	}
	if c.Len() != 2 {
		t.Errorf("len = %d, want 2", c.Len())
	}
}

func TestLRUTTLExpiry(t *testing.T) {
	c := NewLRU(4, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.Put(ctx, 1, sampleSignals("one"))

	now = now.Add(30 * time.Second)
	if _, ok := c.Get(ctx, 1); !ok {
		t.Error("entry should survive within TTL")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get(ctx, 1); ok {
		t.Error("entry should expire after TTL")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not removed, len = %d", c.Len())
	}
}

func TestLRUHitReturnsCopy(t *testing.T) {
	c := NewLRU(4, 0)
	ctx := context.Background()

	c.Put(ctx, 1, sampleSignals("original"))

	first, _ := c.Get(ctx, 1)
	first[0].Evidence = "mutated"

	second, _ := c.Get(ctx, 1)
	if second[0].Evidence != "original" {
		t.Error("cache handed out a shared slice")
	}
}

func TestLRUConcurrentAccess(t *testing.T) {
	c := NewLRU(64, 0)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := Key(fmt.Sprintf("text-%d", i%100))
				if i%2 == 0 {
					c.Put(ctx, key, sampleSignals("x"))
				} else {
					c.Get(ctx, key)
				}
			}
		}(w)
	}
	wg.Wait()

	if c.Len() > 64 {
		t.Errorf("capacity exceeded under contention: %d", c.Len())
	}
}
