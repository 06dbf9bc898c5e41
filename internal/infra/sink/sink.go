// Package sink implements the record sinks used by the logging route.
//
// This package contains:
//   - Sink interface: destination for one record per routed request
//   - SlogSink: structured log line per record
//   - BufferSink: in-memory append buffer
//   - RedisStreamSink: capped Redis stream for external aggregation
package sink

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Entry is the record emitted for one request.
type Entry struct {
	RequestID string
	Route     string
	Key       string
	Operation string
	Result    string
	Length    int
	Time      time.Time
}

// Sink receives entries from many goroutines at once and must be safe for
// concurrent use.
type Sink interface {
	Record(ctx context.Context, e Entry)
}

// SlogSink writes entries as structured log lines.
type SlogSink struct {
	log *slog.Logger
}

// NewSlogSink creates a sink writing to log, or slog.Default() when nil.
func NewSlogSink(log *slog.Logger) *SlogSink {
	if log == nil {
		log = slog.Default()
	}
	return &SlogSink{log: log}
}

func (s *SlogSink) Record(ctx context.Context, e Entry) {
	s.log.InfoContext(ctx, "request routed",
		"request_id", e.RequestID,
		"route", e.Route,
		"key", e.Key,
		"operation", e.Operation,
		"response", e.Result,
		"response_length", e.Length,
	)
}

// BufferSink keeps entries in memory.
type BufferSink struct {
	mu      sync.Mutex
	entries []Entry
}

func NewBufferSink() *BufferSink {
	return &BufferSink{}
}

func (s *BufferSink) Record(_ context.Context, e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

// Entries returns a copy of the recorded entries.
func (s *BufferSink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of recorded entries.
func (s *BufferSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

type multiSink []Sink

// Multi fans every entry out to each of sinks in order. Nil sinks are skipped.
func Multi(sinks ...Sink) Sink {
	var m multiSink
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	if len(m) == 1 {
		return m[0]
	}
	return m
}

func (m multiSink) Record(ctx context.Context, e Entry) {
	for _, s := range m {
		s.Record(ctx, e)
	}
}
