package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	// Server Configuration
	Server ServerConfig `yaml:"server"`

	// Provider Configuration
	Provider ProviderConfig `yaml:"provider"`

	// Thread Store
	Store StoreConfig `yaml:"store"`

	// Moderation Gate
	Moderation ModerationConfig `yaml:"moderation"`

	// Tracing
	Tracing TracingConfig `yaml:"tracing"`

	// DefaultAgent is served when a request names no agent.
	DefaultAgent string `yaml:"default_agent"`
}

// ServerConfig holds the HTTP listener configuration
type ServerConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	AuthSecret string `yaml:"auth_secret"`
	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// ProviderConfig selects and configures the chat model provider
type ProviderConfig struct {
	// Name is openai or bedrock.
	Name string `yaml:"name"`

	OpenAIKey string `yaml:"openai_key"`

	AWSRegion  string `yaml:"aws_region"`
	AWSProfile string `yaml:"aws_profile"`

	DefaultModel string  `yaml:"default_model"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float32 `yaml:"temperature"`
}

// StoreConfig selects and configures the thread checkpoint backend
type StoreConfig struct {
	// Backend is memory, file, redis, or firestore.
	Backend string `yaml:"backend"`

	// File backend
	Dir string `yaml:"dir"`

	// Redis backend
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	RedisPrefix   string        `yaml:"redis_prefix"`
	RedisTTL      time.Duration `yaml:"redis_ttl"`

	// Firestore backend
	GCPProject     string `yaml:"gcp_project"`
	GCPCredentials string `yaml:"gcp_credentials"`
	Collection     string `yaml:"collection"`
}

// ModerationConfig selects the moderation gate
type ModerationConfig struct {
	// Mode is disabled, keyword, or openai.
	Mode string `yaml:"mode"`
	// OpenAIKey overrides the provider key for the moderation API.
	OpenAIKey string `yaml:"openai_key"`
}

// TracingConfig holds OpenTelemetry export settings
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
	// Endpoint is the OTLP HTTP collector address; empty exports to stdout.
	Endpoint string `yaml:"endpoint"`
}

// LoadConfig loads configuration from a YAML file. An empty path yields
// the defaults with environment fallbacks applied.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- path comes from the operator's flag
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = 20
	}
	if cfg.Provider.Name == "" {
		cfg.Provider.Name = "openai"
	}
	if cfg.Provider.MaxTokens == 0 {
		cfg.Provider.MaxTokens = 1024
	}
	if cfg.Provider.Temperature == 0 {
		cfg.Provider.Temperature = 0.7
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "memory"
	}
	if cfg.Moderation.Mode == "" {
		cfg.Moderation.Mode = "disabled"
	}
	if cfg.DefaultAgent == "" {
		cfg.DefaultAgent = "chatbot"
	}

	// Load secrets from environment if not in config
	if cfg.Server.AuthSecret == "" {
		cfg.Server.AuthSecret = os.Getenv("AUTH_SECRET")
	}
	if cfg.Provider.OpenAIKey == "" {
		cfg.Provider.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Provider.AWSRegion == "" {
		cfg.Provider.AWSRegion = os.Getenv("AWS_REGION")
	}
	if cfg.Store.GCPProject == "" {
		cfg.Store.GCPProject = os.Getenv("GCP_PROJECT")
	}
	if cfg.Store.GCPCredentials == "" {
		cfg.Store.GCPCredentials = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}
	if cfg.Moderation.OpenAIKey == "" {
		cfg.Moderation.OpenAIKey = cfg.Provider.OpenAIKey
	}

	return &cfg, nil
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Provider.Name {
	case "openai":
		if c.Provider.OpenAIKey == "" {
			return fmt.Errorf("openai provider requires an API key")
		}
	case "bedrock":
	default:
		return fmt.Errorf("unknown provider %q", c.Provider.Name)
	}

	switch c.Store.Backend {
	case "memory", "file":
	case "redis":
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("redis backend requires redis_addr")
		}
	case "firestore":
		if c.Store.GCPProject == "" {
			return fmt.Errorf("firestore backend requires gcp_project")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	switch c.Moderation.Mode {
	case "disabled", "keyword":
	case "openai":
		if c.Moderation.OpenAIKey == "" {
			return fmt.Errorf("openai moderation requires an API key")
		}
	default:
		return fmt.Errorf("unknown moderation mode %q", c.Moderation.Mode)
	}

	return nil
}

// Addr returns the host:port the server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
