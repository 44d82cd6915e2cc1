package backfill

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the backfill run settings: the trade dump to replay, the
// bounded time range and the partition count for the job topics.
type Config struct {
	TradesCSV  string `yaml:"trades_csv"`
	FromMs     int64  `yaml:"from_ms"`
	ToMs       int64  `yaml:"to_ms"`
	Partitions int    `yaml:"partitions"`
	MaxHistory int    `yaml:"max_history"`
	Timeframe  string `yaml:"timeframe"`
}

// LoadConfig reads the backfill configuration from disk.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open backfill config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from a reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read backfill config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal backfill config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Partitions == 0 {
		c.Partitions = 1
	}
	if c.Timeframe == "" {
		c.Timeframe = "1m"
	}
}

// Validate checks the replay bounds once, at startup.
func (c *Config) Validate() error {
	if c.TradesCSV == "" {
		return fmt.Errorf("backfill config: trades_csv is required")
	}
	if c.ToMs <= c.FromMs {
		return fmt.Errorf("backfill config: empty time range [%d,%d)", c.FromMs, c.ToMs)
	}
	if c.Partitions <= 0 {
		return fmt.Errorf("backfill config: partitions must be positive")
	}
	return nil
}
