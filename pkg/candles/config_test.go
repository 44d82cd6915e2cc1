package candles

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"featuremill/pkg/domain"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfigFromReader(strings.NewReader("symbols:\n  - BTC-USD\n"))
	require.NoError(t, err)
	assert.Equal(t, domain.Timeframe1m, cfg.ResolvedTimeframe())
	assert.Equal(t, EmissionIncremental, cfg.ResolvedEmissionMode())
}

func TestLoadConfigExplicit(t *testing.T) {
	raw := `
symbols:
  - BTC-USD
  - ETH-USD
timeframe: 5m
emission_mode: FINAL_ONLY
`
	cfg, err := LoadConfigFromReader(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, domain.Timeframe5m, cfg.ResolvedTimeframe())
	assert.Equal(t, EmissionFinalOnly, cfg.ResolvedEmissionMode())
	assert.Len(t, cfg.Symbols, 2)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	_, err := LoadConfigFromReader(strings.NewReader("symbols: []\n"))
	assert.Error(t, err, "empty symbol list must fail at startup")

	_, err = LoadConfigFromReader(strings.NewReader("symbols: [BTC-USD]\ntimeframe: 2m\n"))
	assert.Error(t, err)

	_, err = LoadConfigFromReader(strings.NewReader("symbols: [BTC-USD]\nemission_mode: LIVE\n"))
	assert.Error(t, err)
}

func TestEnvOverridesEmissionMode(t *testing.T) {
	t.Setenv(envEmissionMode, "FINAL_ONLY")
	cfg, err := LoadConfigFromReader(strings.NewReader("symbols: [BTC-USD]\n"))
	require.NoError(t, err)
	assert.Equal(t, EmissionFinalOnly, cfg.ResolvedEmissionMode())
}
