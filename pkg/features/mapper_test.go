package features

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"featuremill/pkg/domain"
)

func testSchema() Schema {
	return Schema{
		Group:          "technical_analysis",
		Version:        1,
		PrimaryKey:     []string{"symbol", "timeframe"},
		EventTimeField: "timestamp",
	}
}

func TestSchemaValidate(t *testing.T) {
	assert.NoError(t, testSchema().Validate())

	bad := testSchema()
	bad.Group = " "
	assert.ErrorIs(t, bad.Validate(), ErrEmptyGroup)

	bad = testSchema()
	bad.Version = 0
	assert.ErrorIs(t, bad.Validate(), ErrBadVersion)

	bad = testSchema()
	bad.PrimaryKey = nil
	assert.ErrorIs(t, bad.Validate(), ErrEmptyPK)

	bad = testSchema()
	bad.PrimaryKey = []string{"symbol", "symbol"}
	assert.ErrorIs(t, bad.Validate(), ErrDuplicatePK)

	bad = testSchema()
	bad.EventTimeField = ""
	assert.ErrorIs(t, bad.Validate(), ErrEmptyEventTime)
}

func TestMapperBuildsIdentityFromSchema(t *testing.T) {
	m, err := NewMapper(testSchema())
	require.NoError(t, err)

	record, err := m.Map(map[string]any{
		"symbol":    "ETH-USD",
		"timeframe": "1m",
		"timestamp": float64(1700000000000),
		"rsi_14":    55.2,
	})
	require.NoError(t, err)
	assert.Equal(t, "technical_analysis", record.Group)
	assert.Equal(t, 1, record.Version)
	assert.Equal(t, []string{"ETH-USD", "1m"}, record.Key)
	assert.Equal(t, int64(1700000000000), record.EventTime)
	assert.Equal(t, "ETH-USD|1m", record.EntityKey())
	// Identity fields stay in the payload so the stored row is complete.
	assert.Equal(t, 55.2, record.Features["rsi_14"])
	assert.Equal(t, "ETH-USD", record.Features["symbol"])
}

func TestMapperMissingPKIsMappingFailure(t *testing.T) {
	m, err := NewMapper(testSchema())
	require.NoError(t, err)

	_, err = m.Map(map[string]any{"timeframe": "1m", "timestamp": float64(1)})
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = m.Map(map[string]any{"symbol": "ETH-USD", "timeframe": "1m"})
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestMapperRejectsBadEventTime(t *testing.T) {
	m, err := NewMapper(testSchema())
	require.NoError(t, err)

	for _, v := range []any{-5.0, 0.0, 1.5, "soon", true} {
		_, err = m.Map(map[string]any{"symbol": "ETH-USD", "timeframe": "1m", "timestamp": v})
		assert.ErrorIs(t, err, ErrBadEventTime, "timestamp=%v", v)
	}
}

func TestMapPayloadMalformedJSON(t *testing.T) {
	m, err := NewMapper(testSchema())
	require.NoError(t, err)

	_, err = m.MapPayload([]byte("{not json"))
	assert.ErrorIs(t, err, domain.ErrMalformedRecord)
}

func TestMapperAcceptsSentimentSignals(t *testing.T) {
	m, err := NewMapper(Schema{
		Group:          "news_signals",
		Version:        1,
		PrimaryKey:     []string{"asset"},
		EventTimeField: "timestamp",
	})
	require.NoError(t, err)

	signal := domain.SentimentSignal{
		Asset:     "BTC",
		Sentiment: domain.SentimentBullish,
		Score:     domain.SentimentBullish.Encoded(),
		Story:     "ETF inflows accelerate",
		Timestamp: 1700000000000,
	}
	record, err := m.Map(signal.Flatten())
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC"}, record.Key)
	assert.Equal(t, 1, record.Features["sentiment"])
}

func TestIndicatorRowShapeMatchesAcrossPaths(t *testing.T) {
	m, err := NewMapper(testSchema())
	require.NoError(t, err)

	record := domain.TARecord{
		Symbol:      "BTC-USD",
		Timeframe:   domain.Timeframe1m,
		Timestamp:   1700000060000,
		WindowCount: 7,
		Indicators:  map[string]float64{"sma_7": 101.5, "price_roc": 0.4},
	}

	payload, err := record.Encode()
	require.NoError(t, err)
	live, err := m.MapPayload(payload)
	require.NoError(t, err)
	replayed, err := m.Map(record.Flatten())
	require.NoError(t, err)

	assert.Equal(t, replayed.StorageKey(), live.StorageKey())
	assert.Contains(t, live.Features, "sma_7")
	assert.NotContains(t, live.Features, "indicators")

	liveJSON, err := json.Marshal(live.Features)
	require.NoError(t, err)
	replayedJSON, err := json.Marshal(replayed.Features)
	require.NoError(t, err)
	assert.JSONEq(t, string(replayedJSON), string(liveJSON))
}

func TestSentimentRowShapeMatchesAcrossPaths(t *testing.T) {
	m, err := NewMapper(Schema{
		Group:          "news_signals",
		Version:        1,
		PrimaryKey:     []string{"asset"},
		EventTimeField: "timestamp",
	})
	require.NoError(t, err)

	signal := domain.SentimentSignal{
		Asset:     "BTC",
		Sentiment: domain.SentimentBullish,
		Score:     domain.SentimentBullish.Encoded(),
		Story:     "ETF inflows accelerate",
		Model:     "stub",
		Timestamp: 1700000000000,
	}

	payload, err := signal.Encode()
	require.NoError(t, err)
	live, err := m.MapPayload(payload)
	require.NoError(t, err)
	replayed, err := m.Map(signal.Flatten())
	require.NoError(t, err)

	assert.Equal(t, replayed.StorageKey(), live.StorageKey())
	assert.Equal(t, "BULLISH", replayed.Features["sentiment_label"])

	liveJSON, err := json.Marshal(live.Features)
	require.NoError(t, err)
	replayedJSON, err := json.Marshal(replayed.Features)
	require.NoError(t, err)
	assert.JSONEq(t, string(replayedJSON), string(liveJSON))
}
