package features

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"featuremill/pkg/domain"
	"featuremill/pkg/journal"
)

type fakeSink struct {
	mu      sync.Mutex
	rows    map[string]domain.FeatureRecord
	batches int
	failing bool
	entered chan struct{}
	release chan struct{}
}

func newFakeSink() *fakeSink {
	return &fakeSink{rows: make(map[string]domain.FeatureRecord)}
}

func (s *fakeSink) WriteBatch(ctx context.Context, records []domain.FeatureRecord) error {
	if s.entered != nil {
		s.entered <- struct{}{}
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches++
	if s.failing {
		return errors.New("store unreachable")
	}
	for _, r := range records {
		s.rows[r.StorageKey()] = r
	}
	return nil
}

func (s *fakeSink) rowCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *fakeSink) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batches
}

func TestParseSchedule(t *testing.T) {
	for expr, want := range map[string]time.Duration{
		"15m":        15 * time.Minute,
		"@every 15m": 15 * time.Minute,
		"@every 1h":  time.Hour,
		"90s":        90 * time.Second,
	} {
		got, err := ParseSchedule(expr)
		require.NoError(t, err, expr)
		assert.Equal(t, want, got, expr)
	}

	for _, expr := range []string{"", "@every", "often", "500ms", "-1m"} {
		_, err := ParseSchedule(expr)
		assert.ErrorIs(t, err, ErrBadSchedule, expr)
	}
}

func TestFlushNowUpsertsAndClears(t *testing.T) {
	buffer := NewBuffer()
	sink := newFakeSink()
	m := NewMaterializer(buffer, sink, journal.LogReporter{}, time.Hour, time.Second)

	buffer.Put(stagedRecord("ETH-USD", 1000, 40))
	buffer.Put(stagedRecord("ETH-USD", 2000, 60))
	require.NoError(t, m.FlushNow(context.Background()))

	assert.Equal(t, 2, sink.rowCount(), "distinct event times become distinct rows")
	assert.Zero(t, buffer.Len())
	assert.Zero(t, m.ConsecutiveFailures())
}

func TestFlushRetriesAreIdempotent(t *testing.T) {
	buffer := NewBuffer()
	sink := newFakeSink()
	m := NewMaterializer(buffer, sink, journal.LogReporter{}, time.Hour, time.Second)

	buffer.Put(stagedRecord("ETH-USD", 1000, 40))
	require.NoError(t, m.FlushNow(context.Background()))

	// Redelivery restages the same key; re-flushing must not add rows.
	buffer.Put(stagedRecord("ETH-USD", 1000, 40))
	require.NoError(t, m.FlushNow(context.Background()))
	assert.Equal(t, 1, sink.rowCount())
}

func TestFailedFlushRetainsBufferAndCountsFailures(t *testing.T) {
	buffer := NewBuffer()
	sink := newFakeSink()
	sink.failing = true
	m := NewMaterializer(buffer, sink, journal.LogReporter{}, time.Hour, time.Second)

	buffer.Put(stagedRecord("ETH-USD", 1000, 40))
	buffer.Put(stagedRecord("BTC-USD", 1000, 55))

	assert.Error(t, m.FlushNow(context.Background()))
	assert.Error(t, m.FlushNow(context.Background()))
	assert.Equal(t, 2, buffer.Len(), "failed batch leaves the buffer untouched")
	assert.EqualValues(t, 2, m.ConsecutiveFailures())
	assert.False(t, m.Healthy(2))

	// Store recovers: next flush drains everything and resets health.
	sink.failing = false
	require.NoError(t, m.FlushNow(context.Background()))
	assert.Equal(t, 2, sink.rowCount())
	assert.Zero(t, buffer.Len())
	assert.Zero(t, m.ConsecutiveFailures())
	assert.True(t, m.Healthy(2))
}

func TestOverlappingTicksAreCoalesced(t *testing.T) {
	buffer := NewBuffer()
	sink := newFakeSink()
	sink.entered = make(chan struct{}, 1)
	sink.release = make(chan struct{})
	m := NewMaterializer(buffer, sink, journal.LogReporter{}, time.Hour, 0)

	buffer.Put(stagedRecord("ETH-USD", 1000, 40))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.tick(context.Background())
	}()
	<-sink.entered // first flush is inside the sink

	// Ticks landing while a flush is in flight are skipped, not queued.
	m.tick(context.Background())
	m.tick(context.Background())

	close(sink.release)
	wg.Wait()
	assert.Equal(t, 1, sink.batchCount())
}

func TestFlushFailureIsJournaled(t *testing.T) {
	dir := t.TempDir()
	w := journal.NewWriter(dir)

	buffer := NewBuffer()
	sink := newFakeSink()
	sink.failing = true
	m := NewMaterializer(buffer, sink, w, time.Hour, time.Second)

	buffer.Put(stagedRecord("ETH-USD", 1000, 40))
	assert.Error(t, m.FlushNow(context.Background()))

	records, err := journal.ReadAll(dir)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, journal.KindFlushFailure, records[0].Kind)
}

func TestStopRunsFinalFlush(t *testing.T) {
	buffer := NewBuffer()
	sink := newFakeSink()
	m := NewMaterializer(buffer, sink, journal.LogReporter{}, time.Hour, time.Second)
	m.Start()

	buffer.Put(stagedRecord("ETH-USD", 1000, 40))
	require.NoError(t, m.Stop(context.Background()))
	assert.Equal(t, 1, sink.rowCount())
	assert.Zero(t, buffer.Len())
}
