// Package config loads revgate's application-scoped settings: the
// cache lifetime, default provider/model, multi-turn worker count, and
// prompt-splitter overlap. API keys are never read here; they come
// straight from the four recognized environment variables wherever a
// gateway is constructed.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tsanders/revgate/pkg/gateway/factory"
	"github.com/tsanders/revgate/pkg/multiturn"
	"github.com/tsanders/revgate/pkg/xdgpath"
)

// Config is revgate's resolved application configuration.
type Config struct {
	Provider ProviderConfig `yaml:"provider" mapstructure:"provider"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	MultiTurn MultiTurnConfig `yaml:"multi-turn" mapstructure:"multi-turn"`
}

// ProviderConfig holds the default model selection.
type ProviderConfig struct {
	DefaultModel   string                          `yaml:"default-model" mapstructure:"default-model"`
	ClaudeProvider factory.ClaudeProviderOverride `yaml:"claude-provider" mapstructure:"claude-provider"`
}

// CacheConfig holds review-result cache settings.
type CacheConfig struct {
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
	Disable bool          `yaml:"disable" mapstructure:"disable"`
}

// MultiTurnConfig holds the Multi-turn Executor's tunables. Only Strategy
// reaches the executor (via `revgate review`); Workers and Overlap are
// loaded and rendered but not read by it, which always uses
// multiturn.MaxWorkers and multiturn.Overlap.
type MultiTurnConfig struct {
	Strategy string `yaml:"strategy" mapstructure:"strategy"` // sequential, parallel
	Workers  int    `yaml:"workers" mapstructure:"workers"`
	Overlap  int    `yaml:"overlap" mapstructure:"overlap"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			DefaultModel:   "gpt-4o",
			ClaudeProvider: factory.ClaudeProviderDefault,
		},
		Cache: CacheConfig{
			TTL: time.Hour,
		},
		MultiTurn: MultiTurnConfig{
			Strategy: string(multiturn.StrategySequential),
			Workers:  multiturn.MaxWorkers,
			Overlap:  multiturn.Overlap,
		},
	}
}

// Load resolves configuration from defaults, file, and environment, in
// that order of increasing precedence, using viper for the layering.
// configPath, when non-empty, is read explicitly; otherwise Load
// searches the platform config directory for "config.yaml".
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("REVGATE")
	v.AutomaticEnv()

	def := DefaultConfig()
	setDefaults(v, def)

	if configPath == "" {
		if dir, err := xdgpath.ConfigDir(); err == nil {
			candidate := filepath.Join(dir, "config.yaml")
			if fileExists(candidate) {
				configPath = candidate
			}
		}
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", configPath, err)
		}
		if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("failed to parse config file %q: %w", configPath, err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault attempts Load, falling back to defaults and a warning
// on stderr if the config file is present but fails to parse.
func LoadOrDefault() *Config {
	cfg, err := Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load configuration: %v\n", err)
		fmt.Fprintf(os.Stderr, "Using default configuration.\n")
		return DefaultConfig()
	}
	return cfg
}

func setDefaults(v *viper.Viper, def *Config) {
	v.SetDefault("provider.default-model", def.Provider.DefaultModel)
	v.SetDefault("provider.claude-provider", string(def.Provider.ClaudeProvider))
	v.SetDefault("cache.ttl", def.Cache.TTL)
	v.SetDefault("cache.disable", def.Cache.Disable)
	v.SetDefault("multi-turn.strategy", def.MultiTurn.Strategy)
	v.SetDefault("multi-turn.workers", def.MultiTurn.Workers)
	v.SetDefault("multi-turn.overlap", def.MultiTurn.Overlap)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Marshal renders cfg back to YAML, for `revgate config show`/`init`.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
