package ta

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	defaultMaxHistory = 60

	envMaxHistory = "TA_MAX_HISTORY"
)

// Config holds the indicator stage settings.
type Config struct {
	// MaxHistory bounds the rolling candle history per key. It must cover
	// the longest indicator lookback.
	MaxHistory int `yaml:"max_history"`
}

// LoadConfig reads the stage configuration from disk.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ta config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from a reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read ta config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal ta config: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.MaxHistory == 0 {
		c.MaxHistory = defaultMaxHistory
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(envMaxHistory); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			c.MaxHistory = parsed
		}
	}
}

// Validate checks the history bound once, at startup.
func (c *Config) Validate() error {
	if c.MaxHistory < MinHistory {
		return fmt.Errorf("ta config: max_history %d below minimum lookback %d", c.MaxHistory, MinHistory)
	}
	return nil
}
