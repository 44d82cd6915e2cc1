package signals

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultModel        = "gpt-4o-mini"
	defaultMaxRetries   = 3
	defaultRetryBackoff = time.Second

	envAPIKey  = "SIGNALS_API_KEY"
	envBaseURL = "SIGNALS_BASE_URL"
	envModel   = "SIGNALS_MODEL"
)

// Config holds the sentiment stage settings. Without an API key the stage
// falls back to the deterministic stub analyzer.
type Config struct {
	Model      string   `yaml:"model"`
	APIKey     string   `yaml:"api_key"`
	BaseURL    string   `yaml:"base_url"`
	MaxRetries int      `yaml:"max_retries"`
	Backoff    string   `yaml:"backoff"`
	Assets     []string `yaml:"assets"`

	RetryBackoff time.Duration `yaml:"-"`
}

// LoadConfig reads the stage configuration from disk.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open signals config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from a reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read signals config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal signals config: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.Backoff == "" {
		c.Backoff = defaultRetryBackoff.String()
	}
	if len(c.Assets) == 0 {
		c.Assets = []string{"BTC", "ETH", "SOL", "XRP"}
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(envAPIKey); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv(envBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(envModel); v != "" {
		c.Model = v
	}
}

// Validate resolves the backoff duration once, at startup.
func (c *Config) Validate() error {
	backoff, err := time.ParseDuration(c.Backoff)
	if err != nil || backoff < 0 {
		return fmt.Errorf("signals config: bad backoff %q", c.Backoff)
	}
	c.RetryBackoff = backoff
	if c.MaxRetries < 0 {
		return fmt.Errorf("signals config: negative max_retries %d", c.MaxRetries)
	}
	return nil
}

// NewAnalyzer picks the LLM analyzer when an API key is present and the
// keyword stub otherwise.
func (c *Config) NewAnalyzer() Analyzer {
	if c.APIKey != "" {
		return NewOpenAIAnalyzer(c)
	}
	return &StubAnalyzer{Assets: c.Assets}
}
