package store

import (
	"context"
	"sync"

	"featuremill/pkg/domain"
	"featuremill/pkg/features"
)

// MemorySink keeps feature rows in process memory, keyed by the natural
// key. It is the fallback when no database is configured and the sink used
// by tests.
type MemorySink struct {
	mu   sync.Mutex
	rows map[string]domain.FeatureRecord
	err  error
}

// NewMemorySink returns an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{rows: make(map[string]domain.FeatureRecord)}
}

var _ features.Sink = (*MemorySink)(nil)

// WriteBatch upserts every record, or fails the whole batch when a failure
// is injected.
func (s *MemorySink) WriteBatch(_ context.Context, records []domain.FeatureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, record := range records {
		s.rows[record.StorageKey()] = record
	}
	return nil
}

// Rows returns a copy of everything stored.
func (s *MemorySink) Rows() []domain.FeatureRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.FeatureRecord, 0, len(s.rows))
	for _, record := range s.rows {
		out = append(out, record)
	}
	return out
}

// Len reports the stored row count.
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// FailWith makes subsequent batches fail with err; nil restores writes.
func (s *MemorySink) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}
