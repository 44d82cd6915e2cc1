package signals

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"featuremill/pkg/bus"
	"featuremill/pkg/domain"
)

func TestStubAnalyzerTagsMentionedAssets(t *testing.T) {
	stub := &StubAnalyzer{Assets: []string{"BTC", "ETH"}}

	signals, err := stub.Analyze(context.Background(), domain.NewsStory{
		Title:     "BTC rallies as spot ETF volumes surge",
		Timestamp: 1700000000000,
	})
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, "BTC", signals[0].Asset)
	assert.Equal(t, domain.SentimentBullish, signals[0].Sentiment)
	assert.Equal(t, 1, signals[0].Score)
	assert.Equal(t, int64(1700000000000), signals[0].Timestamp)
}

func TestStubAnalyzerBearishKeywords(t *testing.T) {
	stub := &StubAnalyzer{Assets: []string{"BTC", "ETH", "SOL"}}

	signals, err := stub.Analyze(context.Background(), domain.NewsStory{
		Title: "ETH plunges after bridge hack drains funds",
	})
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, domain.SentimentBearish, signals[0].Sentiment)
	assert.Equal(t, -1, signals[0].Score)
}

func TestStubAnalyzerIgnoresUnrelatedStories(t *testing.T) {
	stub := &StubAnalyzer{Assets: []string{"BTC"}}

	signals, err := stub.Analyze(context.Background(), domain.NewsStory{
		Title: "Central bank leaves rates unchanged",
	})
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestUnwindSkipsUnknownSentiments(t *testing.T) {
	analysis := storyAnalysis{}
	analysis.AssetSentiments = []struct {
		Asset     string `json:"asset"`
		Sentiment string `json:"sentiment"`
	}{
		{Asset: "BTC", Sentiment: "BULLISH"},
		{Asset: "ETH", Sentiment: "SIDEWAYS"},
	}

	signals := unwind(analysis, domain.NewsStory{Title: "t", Timestamp: 1}, "m")
	require.Len(t, signals, 1)
	assert.Equal(t, "BTC", signals[0].Asset)
}

func TestServicePublishesOneSignalPerAsset(t *testing.T) {
	membus := bus.NewMemoryBus()
	stub := &StubAnalyzer{Assets: []string{"BTC"}}
	svc := NewService(stub, membus.Producer("news_signals"), nil)

	payload := `{"title":"BTC breaks all-time high","timestamp":1700000000000}`
	require.NoError(t, svc.Consume(context.Background(), "", payload))

	messages := membus.Messages("news_signals")
	require.Len(t, messages, 1)
	assert.Equal(t, "BTC", messages[0].Key)

	var signal domain.SentimentSignal
	require.NoError(t, jsonUnmarshal(messages[0].Value, &signal))
	assert.Equal(t, 1, signal.Score)
	assert.Equal(t, "stub", signal.Model)
}

func jsonUnmarshal(s string, v any) error {
	return json.Unmarshal([]byte(s), v)
}

func TestServiceSkipsMalformedStories(t *testing.T) {
	membus := bus.NewMemoryBus()
	svc := NewService(&StubAnalyzer{Assets: []string{"BTC"}}, membus.Producer("news_signals"), nil)

	require.NoError(t, svc.Consume(context.Background(), "", `{"outlet":"x"}`))
	assert.Empty(t, membus.Messages("news_signals"))
}

func TestConfigAnalyzerSelection(t *testing.T) {
	cfg, err := LoadConfigFromReader(strings.NewReader(""))
	require.NoError(t, err)
	_, isStub := cfg.NewAnalyzer().(*StubAnalyzer)
	assert.True(t, isStub, "no API key selects the stub")

	cfg.APIKey = "sk-test"
	_, isLLM := cfg.NewAnalyzer().(*OpenAIAnalyzer)
	assert.True(t, isLLM)
}

func TestConfigValidation(t *testing.T) {
	_, err := LoadConfigFromReader(strings.NewReader("backoff: sometimes\n"))
	assert.Error(t, err)

	cfg, err := LoadConfigFromReader(strings.NewReader("backoff: 2s\nmax_retries: 5\n"))
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, "2s", cfg.Backoff)
}
