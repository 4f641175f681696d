package config

import (
	"crypto/rand"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/bubblewire/bubblewire/internal/validate"
)

var current atomic.Pointer[Config]

// Get returns the current in-memory config (hot-reloaded when the file changes).
func Get() *Config { return current.Load() }

// Set sets the current in-memory config. Used at startup and by the file watcher.
func Set(c *Config) {
	if c != nil {
		current.Store(c)
	}
}

//go:embed config.example.yaml
var exampleConfigBytes []byte

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyLoadDefaults(&cfg)
	return &cfg, nil
}

func applyLoadDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.Gateway.Port <= 0 {
		cfg.Gateway.Port = def.Gateway.Port
	}
	if cfg.Backend.Provider == "" {
		cfg.Backend.Provider = def.Backend.Provider
	}
	if cfg.Backend.Model == "" {
		cfg.Backend.Model = def.Backend.Model
	}
	if cfg.Backend.MaxTokens <= 0 {
		cfg.Backend.MaxTokens = def.Backend.MaxTokens
	}
	if cfg.Backend.Providers == nil {
		cfg.Backend.Providers = def.Backend.Providers
	}
	if cfg.Chat.PaceIntervalMs <= 0 {
		cfg.Chat.PaceIntervalMs = def.Chat.PaceIntervalMs
	}
	if cfg.Chat.RetryBackoffMs <= 0 {
		cfg.Chat.RetryBackoffMs = def.Chat.RetryBackoffMs
	}
	if len(cfg.Validation.Enumerated) == 0 && len(cfg.Validation.YesNo) == 0 && len(cfg.Validation.HelpMenu) == 0 {
		cfg.Validation = validate.DefaultPhrasePolicy()
	} else {
		fillPolicyDefaults(&cfg.Validation)
	}
	if cfg.Sessions.Dir == "" {
		cfg.Sessions.Dir = SessionDir()
	}
	if cfg.Sessions.TTLHours <= 0 {
		cfg.Sessions.TTLHours = def.Sessions.TTLHours
	}
	if cfg.Sessions.JanitorSpec == "" {
		cfg.Sessions.JanitorSpec = def.Sessions.JanitorSpec
	}
	if cfg.ReloadDebounceMs <= 0 {
		cfg.ReloadDebounceMs = def.ReloadDebounceMs
	}
}

// fillPolicyDefaults keeps a partially overridden phrase policy workable:
// custom phrase lists may omit the count defaults.
func fillPolicyDefaults(p *validate.PhrasePolicy) {
	def := validate.DefaultPhrasePolicy()
	if p.EnumeratedDefault <= 0 {
		p.EnumeratedDefault = def.EnumeratedDefault
	}
	if p.YesNoDefault <= 0 {
		p.YesNoDefault = def.YesNoDefault
	}
	if p.HelpMenuDefault <= 0 {
		p.HelpMenuDefault = def.HelpMenuDefault
	}
	if p.PlausibilityMargin <= 0 {
		p.PlausibilityMargin = def.PlausibilityMargin
	}
}

// LoadFromExample unmarshals the embedded config.example.yaml as the default config.
func LoadFromExample() (*Config, error) {
	expanded := expandEnvVars(string(exampleConfigBytes))
	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse example config: %w", err)
	}
	applyLoadDefaults(&cfg)
	return &cfg, nil
}

func expandEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// ResolveHome returns the root data directory.
// Priority: BUBBLEWIRE_HOME env > ~/.bubblewire/
func ResolveHome() string {
	if home := os.Getenv("BUBBLEWIRE_HOME"); home != "" {
		return home
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return ".bubblewire"
	}
	return filepath.Join(userHome, ".bubblewire")
}

// ResolveConfigPath finds the config file.
// Priority: --config flag > BUBBLEWIRE_HOME/config.yaml
func ResolveConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	return filepath.Join(ResolveHome(), "config.yaml")
}

// Path returns the process-wide config file path (ResolveConfigPath("")).
func Path() string {
	return ResolveConfigPath("")
}

// GenerateToken returns a random hex token (32 bytes = 64 chars) for gateway auth.
func GenerateToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "fallback-token-please-set-gateway-auth-token-in-config"
	}
	return hex.EncodeToString(b)
}

// CreateFromExample writes the embedded config.example.yaml to targetPath with
// the token placeholder replaced by a generated token.
func CreateFromExample(targetPath string) error {
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	token := GenerateToken()
	content := strings.ReplaceAll(string(exampleConfigBytes), "${BUBBLEWIRE_TOKEN}", token)
	if err := os.WriteFile(targetPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Write marshals cfg to YAML and writes it to path. Creates parent directory if needed.
func Write(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ResolveProvider returns the configured provider for the backend section.
func ResolveProvider(cfg *Config) (name string, provCfg ProviderConfig, err error) {
	name = cfg.Backend.Provider
	provCfg, ok := cfg.Backend.Providers[name]
	if !ok {
		return "", ProviderConfig{}, fmt.Errorf("provider %q not configured", name)
	}
	return name, provCfg, nil
}
