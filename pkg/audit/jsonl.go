package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// JSONLSink appends one JSON object per line to a local file. Writes are
// serialized so records never interleave.
type JSONLSink struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewJSONLSink opens (or creates) the log file in append mode.
func NewJSONLSink(path string) (*JSONLSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &JSONLSink{file: f, enc: json.NewEncoder(f)}, nil
}

// Append implements Sink.
func (s *JSONLSink) Append(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(rec); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
