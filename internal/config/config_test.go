package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"featuremill/pkg/namespace"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadLiveDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "main.yaml", "Name: featuremill\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, namespace.ModeLive, cfg.IngestionMode())
	assert.Equal(t, dir, cfg.BaseDir())

	ns, err := cfg.ResolveNamespace(namespace.StageCandles)
	require.NoError(t, err)
	assert.Equal(t, "candles", ns.Topic)
	assert.Equal(t, "cg_candles", ns.Group)
}

func TestLoadHistoricalRequiresJobID(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "main.yaml", "Mode: HISTORICAL\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadHistoricalResolvesJobNamespaces(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "main.yaml", "Mode: HISTORICAL\nBackfillJobId: job-42\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	ns, err := cfg.ResolveNamespace(namespace.StageCandles)
	require.NoError(t, err)
	assert.Equal(t, "candles_historical_job-42", ns.Topic)
	assert.Equal(t, "cg_candles_historical_job-42", ns.Group)
}

func TestLoadRejectsJobIDInLiveMode(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "main.yaml", "Mode: LIVE\nBackfillJobId: job-42\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "main.yaml", "Mode: REPLAY\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadHydratesSections(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "candles.yaml", "symbols: [BTC-USD]\ntimeframe: 5m\n")
	writeConfig(t, dir, "ta.yaml", "max_history: 90\n")
	path := writeConfig(t, dir, "main.yaml", "Candles:\n  File: candles.yaml\nTA:\n  File: ta.yaml\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Candles.Value)
	assert.Equal(t, []string{"BTC-USD"}, cfg.Candles.Value.Symbols)
	require.NotNil(t, cfg.TA.Value)
	assert.Equal(t, 90, cfg.TA.Value.MaxHistory)
	assert.Nil(t, cfg.Features.Value, "unreferenced sections stay empty")
}

func TestLoadFailsOnBrokenSection(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "candles.yaml", "symbols: []\n")
	path := writeConfig(t, dir, "main.yaml", "Candles:\n  File: candles.yaml\n")

	_, err := Load(path)
	assert.Error(t, err)
}
