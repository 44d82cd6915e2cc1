package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"featuremill/pkg/domain"
)

func stagedRecord(symbol string, eventTime int64, rsi float64) domain.FeatureRecord {
	return domain.FeatureRecord{
		Group:     "technical_analysis",
		Version:   1,
		Key:       []string{symbol, "1m"},
		EventTime: eventTime,
		Features:  map[string]any{"symbol": symbol, "timeframe": "1m", "timestamp": eventTime, "rsi_14": rsi},
	}
}

func TestBufferDistinctEventTimesAreDistinctRows(t *testing.T) {
	b := NewBuffer()
	b.Put(stagedRecord("ETH-USD", 1000, 40))
	b.Put(stagedRecord("ETH-USD", 2000, 60))

	snap := b.Snapshot()
	assert.Len(t, snap.Records, 2, "different event times for the same symbol stay separate")
}

func TestBufferLastWriteWinsPerKey(t *testing.T) {
	b := NewBuffer()
	b.Put(stagedRecord("ETH-USD", 1000, 40))
	b.Put(stagedRecord("ETH-USD", 1000, 70))

	snap := b.Snapshot()
	require.Len(t, snap.Records, 1)
	assert.Equal(t, 70.0, snap.Records[0].Features["rsi_14"], "later arrival overwrites by ingestion order")
}

func TestBufferCommitClearsSnapshottedKeys(t *testing.T) {
	b := NewBuffer()
	b.Put(stagedRecord("ETH-USD", 1000, 40))
	b.Put(stagedRecord("BTC-USD", 1000, 55))

	snap := b.Snapshot()
	assert.Equal(t, 2, b.Len(), "snapshot does not drain the buffer")
	b.Commit(snap)
	assert.Zero(t, b.Len())
}

func TestBufferCommitKeepsKeysOverwrittenDuringFlush(t *testing.T) {
	b := NewBuffer()
	b.Put(stagedRecord("ETH-USD", 1000, 40))

	snap := b.Snapshot()
	// A newer value lands while the flush is in flight.
	b.Put(stagedRecord("ETH-USD", 1000, 90))
	b.Commit(snap)

	next := b.Snapshot()
	require.Len(t, next.Records, 1, "overwritten key must survive the commit")
	assert.Equal(t, 90.0, next.Records[0].Features["rsi_14"])
}

func TestBufferFailedFlushRetainsEverything(t *testing.T) {
	b := NewBuffer()
	b.Put(stagedRecord("ETH-USD", 1000, 40))
	b.Put(stagedRecord("BTC-USD", 1000, 55))

	_ = b.Snapshot() // flush attempt fails, so Commit is never called
	assert.Equal(t, 2, b.Len())
}
