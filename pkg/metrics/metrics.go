// Package metrics collects lightweight operational counters for the
// decision pipeline. Counters are monotonic for the lifetime of the
// process; snapshots are safe to take concurrently with recording.
package metrics

import (
	"sync/atomic"
	"time"
)

// Collector accumulates pipeline counters using atomics so the hot path
// never takes a lock.
type Collector struct {
	totalRequests atomic.Int64

	allowed   atomic.Int64
	blocked   atomic.Int64
	sanitized atomic.Int64
	contained atomic.Int64

	cacheHits   atomic.Int64
	cacheMisses atomic.Int64

	degradedCalls  atomic.Int64
	internalErrors atomic.Int64

	latencyMicros atomic.Int64
}

// NewCollector returns a zeroed collector.
func NewCollector() *Collector {
	return &Collector{}
}

// RecordDecision counts one completed request and its outcome action.
func (c *Collector) RecordDecision(action string, elapsed time.Duration) {
	c.totalRequests.Add(1)
	c.latencyMicros.Add(elapsed.Microseconds())

	switch action {
	case "ALLOW":
		c.allowed.Add(1)
	case "BLOCK":
		c.blocked.Add(1)
	case "SANITIZE":
		c.sanitized.Add(1)
	case "CONTAIN":
		c.contained.Add(1)
	}
}

// RecordCacheHit counts a signal cache hit.
func (c *Collector) RecordCacheHit() { c.cacheHits.Add(1) }

// RecordCacheMiss counts a signal cache miss.
func (c *Collector) RecordCacheMiss() { c.cacheMisses.Add(1) }

// RecordDegraded counts a capability call that failed or timed out and
// was replaced with a zero-weight signal.
func (c *Collector) RecordDegraded() { c.degradedCalls.Add(1) }

// RecordInternalError counts an unexpected pipeline failure.
func (c *Collector) RecordInternalError() { c.internalErrors.Add(1) }

// Snapshot is a point-in-time copy of all counters plus derived rates.
type Snapshot struct {
	TotalRequests int64 `json:"total_requests"`

	Allowed   int64 `json:"allowed"`
	Blocked   int64 `json:"blocked"`
	Sanitized int64 `json:"sanitized"`
	Contained int64 `json:"contained"`

	CacheHits    int64   `json:"cache_hits"`
	CacheMisses  int64   `json:"cache_misses"`
	CacheHitRate float64 `json:"cache_hit_rate"`

	DegradedCalls  int64 `json:"degraded_calls"`
	InternalErrors int64 `json:"internal_errors"`

	AvgLatencyMicros int64 `json:"avg_latency_micros"`
}

// Snapshot copies the current counters. Counters are read individually,
// so a snapshot taken under load may be off by in-flight requests; that
// is fine for monitoring.
func (c *Collector) Snapshot() Snapshot {
	s := Snapshot{
		TotalRequests:  c.totalRequests.Load(),
		Allowed:        c.allowed.Load(),
		Blocked:        c.blocked.Load(),
		Sanitized:      c.sanitized.Load(),
		Contained:      c.contained.Load(),
		CacheHits:      c.cacheHits.Load(),
		CacheMisses:    c.cacheMisses.Load(),
		DegradedCalls:  c.degradedCalls.Load(),
		InternalErrors: c.internalErrors.Load(),
	}

	if lookups := s.CacheHits + s.CacheMisses; lookups > 0 {
		s.CacheHitRate = float64(s.CacheHits) / float64(lookups)
	}
	if s.TotalRequests > 0 {
		s.AvgLatencyMicros = c.latencyMicros.Load() / s.TotalRequests
	}
	return s
}
