package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestJSONLAppendAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	ctx := context.Background()

	sink, err := NewJSONLSink(path)
	if err != nil {
		t.Fatalf("NewJSONLSink: %v", err)
	}

	rec := Record{
		RequestID:   "req-1",
		SessionID:   "sess-1",
		Timestamp:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Action:      "BLOCK",
		Intent:      "direct_attack",
		Confidence:  0.91,
		Reason:      "attack intent detected",
		RiskScore:   75.0,
		Locked:      true,
		SignalCount: 3,
		LatencyMS:   12,
	}
	if err := sink.Append(ctx, rec); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen and append again; the file must accumulate, not truncate.
	sink, err = NewJSONLSink(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	rec.RequestID = "req-2"
	rec.Action = "ALLOW"
	if err := sink.Append(ctx, rec); err != nil {
		t.Fatalf("Append after reopen: %v", err)
	}
	sink.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			t.Fatalf("bad line %q: %v", scanner.Text(), err)
		}
		records = append(records, r)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].RequestID != "req-1" || records[0].Action != "BLOCK" {
		t.Errorf("first record wrong: %+v", records[0])
	}
	if records[1].RequestID != "req-2" || records[1].Action != "ALLOW" {
		t.Errorf("second record wrong: %+v", records[1])
	}
}

func TestJSONLConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := NewJSONLSink(path)
	if err != nil {
		t.Fatalf("NewJSONLSink: %v", err)
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				sink.Append(context.Background(), Record{RequestID: "r", Action: "ALLOW"})
			}
		}()
	}
	wg.Wait()
	sink.Close()

	f, _ := os.Open(path)
	defer f.Close()
	scanner := bufio.NewScanner(f)
	lines := 0
	for scanner.Scan() {
		var r Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			t.Fatalf("interleaved write produced bad line: %v", err)
		}
		lines++
	}
	if lines != 400 {
		t.Errorf("got %d lines, want 400", lines)
	}
}

func TestNopSink(t *testing.T) {
	var s Sink = NopSink{}
	if err := s.Append(context.Background(), Record{}); err != nil {
		t.Errorf("NopSink.Append: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("NopSink.Close: %v", err)
	}
}
