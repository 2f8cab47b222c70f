// Package audit records immutable decision records for post-hoc review.
// Sinks are append-only; the pipeline writes one record per completed
// request and never reads them back.
package audit

import (
	"context"
	"time"
)

// Record is the durable trace of one decision. It carries enough to
// reconstruct why an action was taken without re-running the pipeline.
type Record struct {
	RequestID   string    `json:"request_id"`
	SessionID   string    `json:"session_id"`
	Timestamp   time.Time `json:"timestamp"`
	Action      string    `json:"action"`
	Intent      string    `json:"intent"`
	Confidence  float64   `json:"confidence"`
	Reason      string    `json:"reason"`
	RiskScore   float64   `json:"risk_score"`
	Locked      bool      `json:"locked"`
	SignalCount int       `json:"signal_count"`
	CacheHit    bool      `json:"cache_hit"`
	LatencyMS   int64     `json:"latency_ms"`
}

// Sink persists decision records.
type Sink interface {
	Append(ctx context.Context, rec Record) error
	Close() error
}

// NopSink discards all records. Used when auditing is disabled.
type NopSink struct{}

func (NopSink) Append(context.Context, Record) error { return nil }
func (NopSink) Close() error                         { return nil }
