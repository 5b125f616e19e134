package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsanders/revgate/pkg/gateway/factory"
	"github.com/tsanders/revgate/pkg/multiturn"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "gpt-4o", cfg.Provider.DefaultModel)
	assert.Equal(t, factory.ClaudeProviderDefault, cfg.Provider.ClaudeProvider)
	assert.False(t, cfg.Cache.Disable)
	assert.Equal(t, string(multiturn.StrategySequential), cfg.MultiTurn.Strategy)
	assert.Equal(t, multiturn.MaxWorkers, cfg.MultiTurn.Workers)
	assert.Equal(t, multiturn.Overlap, cfg.MultiTurn.Overlap)
}

func TestLoad(t *testing.T) {
	t.Run("valid config file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.yaml")

		configContent := `
provider:
  default-model: claude-sonnet
  claude-provider: openrouter

cache:
  ttl: 2h
  disable: false

multi-turn:
  strategy: parallel
  workers: 2
  overlap: 1
`
		require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o644))

		cfg, err := Load(configPath)
		require.NoError(t, err)

		assert.Equal(t, "claude-sonnet", cfg.Provider.DefaultModel)
		assert.Equal(t, factory.ClaudeProviderOpenRouter, cfg.Provider.ClaudeProvider)
		assert.Equal(t, "parallel", cfg.MultiTurn.Strategy)
		assert.Equal(t, 2, cfg.MultiTurn.Workers)
		assert.Equal(t, 1, cfg.MultiTurn.Overlap)
	})

	t.Run("partial config file keeps defaults for the rest", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.yaml")

		require.NoError(t, os.WriteFile(configPath, []byte("provider:\n  default-model: gpt-4o\n"), 0o644))

		cfg, err := Load(configPath)
		require.NoError(t, err)

		assert.Equal(t, "gpt-4o", cfg.Provider.DefaultModel)
		assert.Equal(t, string(multiturn.StrategySequential), cfg.MultiTurn.Strategy)
		assert.Equal(t, multiturn.MaxWorkers, cfg.MultiTurn.Workers)
	})

	t.Run("nonexistent file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})
}

func TestLoadOrDefault(t *testing.T) {
	t.Run("returns defaults when REVGATE_CONFIG_DIR has no config file", func(t *testing.T) {
		t.Setenv("REVGATE_CONFIG_DIR", t.TempDir())
		cfg := LoadOrDefault()
		assert.Equal(t, "gpt-4o", cfg.Provider.DefaultModel)
	})

	t.Run("loads from REVGATE_CONFIG_DIR/config.yaml when present", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("REVGATE_CONFIG_DIR", dir)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("provider:\n  default-model: gemini-pro\n"), 0o644))

		cfg := LoadOrDefault()
		assert.Equal(t, "gemini-pro", cfg.Provider.DefaultModel)
	})
}

func TestConfigMarshalIncludesFieldValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider.DefaultModel = "claude-opus"

	out, err := cfg.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(out), "claude-opus")
}
