// Package trace provides observability sinks for query and ingestion
// trace records.
package trace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/logger"
)

// DefaultBuffer is the number of records JSONL queues before dropping.
const DefaultBuffer = 256

// Ensure JSONL implements the interface.
var _ driven.TraceSink = (*JSONL)(nil)

// JSONL appends trace records to a file, one JSON object per line.
// Records are written by a background goroutine; Emit never blocks.
type JSONL struct {
	file    *os.File
	records chan domain.TraceRecord
	done    chan struct{}
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// NewJSONL opens path for appending and starts the writer.
func NewJSONL(path string, buffer int) (*JSONL, error) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating trace directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening trace file: %w", err)
	}

	s := &JSONL{
		file:    f,
		records: make(chan domain.TraceRecord, buffer),
		done:    make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// Emit queues a record. It is dropped if the queue is full or the sink
// is closed.
func (s *JSONL) Emit(record domain.TraceRecord) {
	fill(&record)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.dropped.Add(1)
		return
	}
	select {
	case s.records <- record:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns the number of records that were not written.
func (s *JSONL) Dropped() int64 {
	return s.dropped.Load()
}

// Close drains queued records and closes the file.
func (s *JSONL) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.records)
	s.mu.Unlock()

	<-s.done
	return s.file.Close()
}

func (s *JSONL) run() {
	defer close(s.done)
	enc := json.NewEncoder(s.file)
	for r := range s.records {
		if err := enc.Encode(r); err != nil {
			logger.Warn("trace: writing record %s: %v", r.ID, err)
			s.dropped.Add(1)
		}
	}
}

// fill sets the ID and timestamp when the caller left them empty.
func fill(r *domain.TraceRecord) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
}
