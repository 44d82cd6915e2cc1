package features

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"featuremill/pkg/journal"
)

type recordingReporter struct {
	records []journal.Record
}

func (r *recordingReporter) Report(rec journal.Record) {
	r.records = append(r.records, rec)
}

func TestServiceStagesValidRecords(t *testing.T) {
	mapper, err := NewMapper(testSchema())
	require.NoError(t, err)
	buffer := NewBuffer()
	svc := NewService(mapper, buffer, nil)

	payload := `{"symbol":"ETH-USD","timeframe":"1m","timestamp":1700000000000,"rsi_14":55.2}`
	require.NoError(t, svc.Consume(context.Background(), "ETH-USD|1m", payload))
	assert.Equal(t, 1, buffer.Len())
}

func TestServiceJournalsMappingFailureAndSkips(t *testing.T) {
	mapper, err := NewMapper(testSchema())
	require.NoError(t, err)
	buffer := NewBuffer()
	reporter := &recordingReporter{}
	svc := NewService(mapper, buffer, reporter)

	// Missing the event-time field: journaled, skipped, never retried.
	payload := `{"symbol":"ETH-USD","timeframe":"1m","rsi_14":55.2}`
	require.NoError(t, svc.Consume(context.Background(), "ETH-USD|1m", payload))
	assert.Zero(t, buffer.Len())
	require.Len(t, reporter.records, 1)
	assert.Equal(t, journal.KindMappingFailure, reporter.records[0].Kind)
	assert.NotEmpty(t, reporter.records[0].Payload)
}

func TestServiceJournalsMalformedPayload(t *testing.T) {
	mapper, err := NewMapper(testSchema())
	require.NoError(t, err)
	buffer := NewBuffer()
	reporter := &recordingReporter{}
	svc := NewService(mapper, buffer, reporter)

	require.NoError(t, svc.Consume(context.Background(), "k", "{broken"))
	assert.Zero(t, buffer.Len())
	require.Len(t, reporter.records, 1)
	assert.Equal(t, journal.KindMalformed, reporter.records[0].Kind)
}

func TestConfigDefaultsAndValidation(t *testing.T) {
	cfg, err := LoadConfigFromReader(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, "technical_analysis", cfg.Group)
	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, []string{"symbol", "timeframe"}, cfg.PrimaryKey)
	assert.Equal(t, "timestamp", cfg.EventTimeField)
	assert.Equal(t, 15*time.Minute, cfg.Interval())

	_, err = LoadConfigFromReader(strings.NewReader("schedule: often\n"))
	assert.ErrorIs(t, err, ErrBadSchedule)

	_, err = LoadConfigFromReader(strings.NewReader("primary_key: [symbol, symbol]\n"))
	assert.ErrorIs(t, err, ErrDuplicatePK)
}

func TestConfigEnvOverrides(t *testing.T) {
	t.Setenv("FEATURES_GROUP", "news_signals")
	t.Setenv("FEATURES_SCHEDULE", "@every 1m")

	cfg, err := LoadConfigFromReader(strings.NewReader("primary_key: [asset]\n"))
	require.NoError(t, err)
	assert.Equal(t, "news_signals", cfg.Group)
	assert.Equal(t, time.Minute, cfg.Interval())
}
