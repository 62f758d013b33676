// Package config provides unified configuration loading for collabmesh.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hupe1980/collabmesh/core"
	"github.com/hupe1980/collabmesh/logging"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable, e.g. COLLABMESH_DEV_LATENCY_MS.
const EnvPrefix = "COLLABMESH_"

// Composer providers.
const (
	ProviderCanned    = "canned"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Config contains all collabmesh configuration settings.
type Config struct {
	// Session contains settings for the simulated session.
	Session SessionConfig `json:"session" yaml:"session" envPrefix:"SESSION_"`

	// Dev are the initial dev panel settings; they can be changed at runtime.
	Dev core.DevSettings `json:"dev" yaml:"dev" envPrefix:"DEV_"`

	// Logging contains settings for operational logging.
	Logging LoggingConfig `json:"logging" yaml:"logging" envPrefix:"LOG_"`

	// Composer selects how agents produce text.
	Composer ComposerConfig `json:"composer" yaml:"composer" envPrefix:"COMPOSER_"`

	// Gateway configures the HTTP/websocket surface.
	Gateway GatewayConfig `json:"gateway" yaml:"gateway" envPrefix:"GATEWAY_"`

	// Relay configures the Redis event mirror.
	Relay RelayConfig `json:"relay" yaml:"relay" envPrefix:"RELAY_"`
}

// SessionConfig configures the participants and the connection lifecycle.
type SessionConfig struct {
	// Agents is the number of simulated remote participants (0..4).
	Agents int `json:"agents" yaml:"agents" env:"AGENTS"`

	// Seed makes agent behavior and collision draws reproducible. 0 seeds
	// from the global source.
	Seed uint64 `json:"seed" yaml:"seed" env:"SEED"`

	// ConflictProbability is the collision chance while the local user edits
	// the same block.
	ConflictProbability float64 `json:"conflict_probability" yaml:"conflict_probability" env:"CONFLICT_PROBABILITY"`

	// ConnectDelayMin and ConnectDelaySpan bound the initial connect delay.
	ConnectDelayMin  time.Duration `json:"connect_delay_min" yaml:"connect_delay_min" env:"CONNECT_DELAY_MIN"`
	ConnectDelaySpan time.Duration `json:"connect_delay_span" yaml:"connect_delay_span" env:"CONNECT_DELAY_SPAN"`

	// ReconnectDelay is how long a simulated reconnect takes.
	ReconnectDelay time.Duration `json:"reconnect_delay" yaml:"reconnect_delay" env:"RECONNECT_DELAY"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "debug", "info" (default), "warn" or "error".
	Level string `json:"level" yaml:"level" env:"LEVEL"`

	// Format is "json" (default) or "text".
	Format string `json:"format" yaml:"format" env:"FORMAT"`
}

// ComposerConfig configures agent text generation.
type ComposerConfig struct {
	// Provider is "canned" (default), "anthropic" or "openai".
	Provider string `json:"provider" yaml:"provider" env:"PROVIDER"`

	// Model overrides the provider's default model.
	Model string `json:"model,omitempty" yaml:"model,omitempty" env:"MODEL"`

	// APIKey is the API key for the provider. Supports ${VAR} syntax in files.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" env:"API_KEY"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" env:"BASE_URL"`

	// Timeout bounds a single completion request.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" env:"TIMEOUT"`
}

// RedactedAPIKey returns the API key with most characters masked.
func (c ComposerConfig) RedactedAPIKey() string {
	if c.APIKey == "" {
		return ""
	}
	if len(c.APIKey) < 12 {
		return "(set)"
	}
	return c.APIKey[:4] + "..." + c.APIKey[len(c.APIKey)-4:]
}

// String implements fmt.Stringer to prevent accidental API key logging.
func (c ComposerConfig) String() string {
	return fmt.Sprintf("ComposerConfig{Provider:%s, Model:%s, APIKey:%s}", c.Provider, c.Model, c.RedactedAPIKey())
}

// GatewayConfig configures the HTTP/websocket surface.
type GatewayConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" env:"ENABLED"`
	Addr    string `json:"addr" yaml:"addr" env:"ADDR"`
}

// RelayConfig configures mirroring of delivered events to Redis.
type RelayConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled" env:"ENABLED"`
	Addr     string `json:"addr" yaml:"addr" env:"ADDR"`
	Password string `json:"-" yaml:"password,omitempty" env:"PASSWORD"`
	DB       int    `json:"db" yaml:"db" env:"DB"`
	Channel  string `json:"channel" yaml:"channel" env:"CHANNEL"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Session: SessionConfig{
			Agents:              len(core.AgentUsers),
			ConflictProbability: 0.3,
			ConnectDelayMin:     600 * time.Millisecond,
			ConnectDelaySpan:    400 * time.Millisecond,
			ReconnectDelay:      2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Composer: ComposerConfig{
			Provider: ProviderCanned,
			Timeout:  5 * time.Second,
		},
		Gateway: GatewayConfig{
			Addr: ":8080",
		},
		Relay: RelayConfig{
			Addr:    "localhost:6379",
			Channel: "collabmesh:events",
		},
	}
}

// Load loads configuration. Order: defaults -> YAML file at path (when not
// empty) -> environment variables. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific YAML file on top of the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Composer.APIKey = os.ExpandEnv(cfg.Composer.APIKey)
	cfg.Relay.Password = os.ExpandEnv(cfg.Relay.Password)

	return cfg, nil
}

// ApplyEnv overrides cfg with COLLABMESH_* environment variables.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Session.Agents < 0 || c.Session.Agents > len(core.AgentUsers) {
		return fmt.Errorf("agents must be between 0 and %d, got %d", len(core.AgentUsers), c.Session.Agents)
	}

	if c.Session.ConflictProbability < 0 || c.Session.ConflictProbability > 1 {
		return fmt.Errorf("conflict_probability must be between 0 and 1, got %f", c.Session.ConflictProbability)
	}

	if c.Session.ConnectDelayMin < 0 || c.Session.ConnectDelaySpan < 0 || c.Session.ReconnectDelay < 0 {
		return fmt.Errorf("session delays must be non-negative")
	}

	if err := c.Dev.Validate(); err != nil {
		return err
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	if c.Logging.Format != "" && c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s (valid: json, text)", c.Logging.Format)
	}

	switch c.Composer.Provider {
	case "", ProviderCanned:
	case ProviderAnthropic, ProviderOpenAI:
		if c.Composer.Timeout < 0 {
			return fmt.Errorf("timeout must be non-negative, got %v", c.Composer.Timeout)
		}
	default:
		return fmt.Errorf("invalid provider: %s (valid: canned, anthropic, openai)", c.Composer.Provider)
	}

	if c.Gateway.Enabled && c.Gateway.Addr == "" {
		return fmt.Errorf("gateway addr is required when the gateway is enabled")
	}

	if c.Relay.Enabled && (c.Relay.Addr == "" || c.Relay.Channel == "") {
		return fmt.Errorf("relay addr and channel are required when the relay is enabled")
	}

	return nil
}

// NewLogger builds the process logger described by the logging settings.
func (c LoggingConfig) NewLogger(w io.Writer) (*logging.CollabLogger, error) {
	level, err := logging.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	cfg := logging.DefaultLoggerConfig()
	cfg.Level = level
	cfg.AddSource = false
	if c.Format != "" {
		cfg.Format = c.Format
	}
	if w != nil {
		cfg.Output = w
	}
	return logging.NewLogger(cfg), nil
}
