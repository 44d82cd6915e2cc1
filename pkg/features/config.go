package features

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"featuremill/pkg/namespace"
)

const (
	defaultGroup          = "technical_analysis"
	defaultVersion        = 1
	defaultEventTimeField = "timestamp"
	defaultSchedule       = "@every 15m"
	defaultWriteTimeout   = "30s"
	defaultUnhealthyAfter = 3

	envGroup    = "FEATURES_GROUP"
	envVersion  = "FEATURES_GROUP_VERSION"
	envSchedule = "FEATURES_SCHEDULE"
)

// Config holds the materializer stage settings. One deployment serves one
// feature group; InputStage names the pipeline stage it consumes.
type Config struct {
	InputStage     string   `yaml:"input_stage"`
	Group          string   `yaml:"group"`
	Version        int      `yaml:"version"`
	PrimaryKey     []string `yaml:"primary_key"`
	EventTimeField string   `yaml:"event_time_field"`
	Schedule       string   `yaml:"schedule"`
	WriteTimeout   string   `yaml:"write_timeout"`
	UnhealthyAfter int64    `yaml:"unhealthy_after"`

	interval     time.Duration
	writeTimeout time.Duration
}

// LoadConfig reads the stage configuration from disk.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open features config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from a reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read features config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal features config: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.InputStage == "" {
		c.InputStage = "ta"
	}
	if c.Group == "" {
		c.Group = defaultGroup
	}
	if c.Version == 0 {
		c.Version = defaultVersion
	}
	if len(c.PrimaryKey) == 0 {
		c.PrimaryKey = []string{"symbol", "timeframe"}
	}
	if c.EventTimeField == "" {
		c.EventTimeField = defaultEventTimeField
	}
	if c.Schedule == "" {
		c.Schedule = defaultSchedule
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.UnhealthyAfter == 0 {
		c.UnhealthyAfter = defaultUnhealthyAfter
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(envGroup); v != "" {
		c.Group = v
	}
	if v := os.Getenv(envVersion); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			c.Version = parsed
		}
	}
	if v := os.Getenv(envSchedule); v != "" {
		c.Schedule = v
	}
}

// Validate resolves the schema and schedule once, at startup.
func (c *Config) Validate() error {
	if _, err := namespace.Resolve(c.InputStage, namespace.ModeLive, ""); err != nil {
		return fmt.Errorf("features config: input_stage: %w", err)
	}
	if err := c.Schema().Validate(); err != nil {
		return err
	}
	interval, err := ParseSchedule(c.Schedule)
	if err != nil {
		return err
	}
	c.interval = interval
	timeout, err := time.ParseDuration(c.WriteTimeout)
	if err != nil || timeout < 0 {
		return fmt.Errorf("features config: bad write_timeout %q", c.WriteTimeout)
	}
	c.writeTimeout = timeout
	return nil
}

// Schema builds the descriptor from the configured fields.
func (c *Config) Schema() Schema {
	pk := make([]string, len(c.PrimaryKey))
	for i, field := range c.PrimaryKey {
		pk[i] = strings.TrimSpace(field)
	}
	return Schema{
		Group:          c.Group,
		Version:        c.Version,
		PrimaryKey:     pk,
		EventTimeField: c.EventTimeField,
	}
}

// Interval is the flush cadence resolved by Validate.
func (c *Config) Interval() time.Duration {
	return c.interval
}

// Timeout is the per-flush store-write deadline resolved by Validate.
func (c *Config) Timeout() time.Duration {
	return c.writeTimeout
}
