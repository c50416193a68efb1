package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/HerbHall/telerelay/internal/telemetry"
)

// RecordingSink is a thread-safe sink that keeps every published record for
// later inspection.
type RecordingSink struct {
	mu      sync.Mutex
	records []telemetry.Record
	err     error
}

// NewRecordingSink returns an empty RecordingSink.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

// Publish records r, or returns the error set with FailWith.
func (s *RecordingSink) Publish(_ context.Context, r telemetry.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, r)
	return nil
}

// FailWith makes every following Publish return err.
func (s *RecordingSink) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Records returns a copy of all recorded records.
func (s *RecordingSink) Records() []telemetry.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]telemetry.Record, len(s.records))
	copy(out, s.records)
	return out
}

// WaitFor blocks until at least n records arrived and returns them. The
// test fails after timeout.
func (s *RecordingSink) WaitFor(t *testing.T, n int, timeout time.Duration) []telemetry.Record {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		got := s.Records()
		if len(got) >= n {
			return got
		}
		if time.Now().After(deadline) {
			t.Fatalf("RecordingSink: got %d records after %s, want %d", len(got), timeout, n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
