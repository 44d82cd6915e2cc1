package candles

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"featuremill/pkg/domain"
)

const (
	defaultTimeframe    = "1m"
	defaultEmissionMode = string(EmissionIncremental)

	envEmissionMode = "CANDLES_EMISSION_MODE"
	envTimeframe    = "CANDLES_TIMEFRAME"
)

// Config holds the candles stage settings.
type Config struct {
	Symbols      []string `yaml:"symbols"`
	Timeframe    string   `yaml:"timeframe"`
	EmissionMode string   `yaml:"emission_mode"`

	timeframe domain.Timeframe
	mode      EmissionMode
}

// LoadConfig reads the stage configuration from disk.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open candles config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from a reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read candles config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal candles config: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Timeframe == "" {
		c.Timeframe = defaultTimeframe
	}
	if c.EmissionMode == "" {
		c.EmissionMode = defaultEmissionMode
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(envEmissionMode); v != "" {
		c.EmissionMode = v
	}
	if v := os.Getenv(envTimeframe); v != "" {
		c.Timeframe = v
	}
}

// Validate resolves and checks every field once, at startup.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return errors.New("candles config: at least one symbol is required")
	}
	for _, s := range c.Symbols {
		if strings.TrimSpace(s) == "" {
			return errors.New("candles config: empty symbol")
		}
	}
	tf, err := domain.ParseTimeframe(c.Timeframe)
	if err != nil {
		return fmt.Errorf("candles config: %w", err)
	}
	mode, err := ParseEmissionMode(c.EmissionMode)
	if err != nil {
		return fmt.Errorf("candles config: %w", err)
	}
	c.timeframe = tf
	c.mode = mode
	return nil
}

// ResolvedTimeframe returns the parsed timeframe. Validate must have run.
func (c *Config) ResolvedTimeframe() domain.Timeframe { return c.timeframe }

// ResolvedEmissionMode returns the parsed emission mode.
func (c *Config) ResolvedEmissionMode() EmissionMode { return c.mode }
