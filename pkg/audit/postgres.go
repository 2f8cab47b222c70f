package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const createAuditTable = `
CREATE TABLE IF NOT EXISTS decision_audit (
	request_id   TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL,
	ts           TIMESTAMPTZ NOT NULL,
	action       TEXT NOT NULL,
	intent       TEXT NOT NULL,
	confidence   DOUBLE PRECISION NOT NULL,
	reason       TEXT NOT NULL,
	risk_score   DOUBLE PRECISION NOT NULL,
	locked       BOOLEAN NOT NULL,
	signal_count INTEGER NOT NULL,
	cache_hit    BOOLEAN NOT NULL,
	latency_ms   BIGINT NOT NULL
)`

const insertAuditRecord = `
INSERT INTO decision_audit
	(request_id, session_id, ts, action, intent, confidence, reason,
	 risk_score, locked, signal_count, cache_hit, latency_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (request_id) DO NOTHING`

// PostgresSink writes decision records to a Postgres table. The table is
// created on startup if missing.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink connects to the given DSN and ensures the audit table
// exists.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect audit database: %w", err)
	}
	if _, err := pool.Exec(ctx, createAuditTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create audit table: %w", err)
	}
	return &PostgresSink{pool: pool}, nil
}

// Append implements Sink.
func (s *PostgresSink) Append(ctx context.Context, rec Record) error {
	_, err := s.pool.Exec(ctx, insertAuditRecord,
		rec.RequestID, rec.SessionID, rec.Timestamp, rec.Action,
		rec.Intent, rec.Confidence, rec.Reason, rec.RiskScore,
		rec.Locked, rec.SignalCount, rec.CacheHit, rec.LatencyMS)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}
