package config

import (
	"time"

	"github.com/bubblewire/bubblewire/internal/validate"
)

type Config struct {
	Gateway    GatewayConfig         `yaml:"gateway" json:"gateway"`
	Backend    BackendConfig         `yaml:"backend" json:"backend"`
	Chat       ChatConfig            `yaml:"chat" json:"chat"`
	Validation validate.PhrasePolicy `yaml:"validation" json:"validation"`
	Sessions   SessionsConfig        `yaml:"sessions" json:"sessions"`

	// ReloadDebounceMs coalesces bursts of file-change events before the
	// config file is re-read.
	ReloadDebounceMs int `yaml:"reloadDebounceMs" json:"reloadDebounceMs"`
}

func (c *Config) ReloadDebounce() time.Duration {
	return time.Duration(c.ReloadDebounceMs) * time.Millisecond
}

type GatewayConfig struct {
	Port int        `yaml:"port" json:"port"`
	Auth AuthConfig `yaml:"auth" json:"auth"`
}

type AuthConfig struct {
	Token string `yaml:"token" json:"token"`
}

// BackendConfig selects the generative provider and its sampling parameters.
type BackendConfig struct {
	Provider    string                    `yaml:"provider" json:"provider"`
	Model       string                    `yaml:"model" json:"model"`
	Temperature float64                   `yaml:"temperature" json:"temperature"`
	MaxTokens   int                       `yaml:"maxTokens" json:"maxTokens"`
	Providers   map[string]ProviderConfig `yaml:"providers" json:"providers"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"apiKey" json:"apiKey"`
	BaseURL string `yaml:"baseURL" json:"baseURL"`
	Type    string `yaml:"type" json:"type"` // "openai" | "anthropic" (default: inferred from provider name)
}

// ClientType returns which backend client to use for this provider.
func (p ProviderConfig) ClientType(providerName string) string {
	if p.Type != "" {
		return p.Type
	}
	if providerName == "anthropic" {
		return "anthropic"
	}
	return "openai"
}

// ChatConfig tunes the streaming emission behavior.
type ChatConfig struct {
	PaceIntervalMs int `yaml:"paceIntervalMs" json:"paceIntervalMs"`
	RetryBackoffMs int `yaml:"retryBackoffMs" json:"retryBackoffMs"`
}

func (c ChatConfig) PaceInterval() time.Duration {
	return time.Duration(c.PaceIntervalMs) * time.Millisecond
}

func (c ChatConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMs) * time.Millisecond
}

type SessionsConfig struct {
	Dir         string `yaml:"dir" json:"dir"`                 // empty: home/data/sessions
	TTLHours    int    `yaml:"ttlHours" json:"ttlHours"`
	JanitorSpec string `yaml:"janitorSpec" json:"janitorSpec"` // cron expression
}

func (s SessionsConfig) TTL() time.Duration {
	return time.Duration(s.TTLHours) * time.Hour
}

func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Port: 19700,
		},
		Backend: BackendConfig{
			Provider:    "anthropic",
			Model:       "claude-sonnet-4-20250514",
			Temperature: 0.7,
			MaxTokens:   4096,
			Providers: map[string]ProviderConfig{
				"anthropic": {Type: "anthropic"},
				"openai":    {Type: "openai"},
				"deepseek":  {BaseURL: "https://api.deepseek.com", Type: "openai"},
			},
		},
		Chat: ChatConfig{
			PaceIntervalMs: 1000,
			RetryBackoffMs: 500,
		},
		Validation: validate.DefaultPhrasePolicy(),
		Sessions: SessionsConfig{
			TTLHours:    72,
			JanitorSpec: "@hourly",
		},
		ReloadDebounceMs: 200,
	}
}
