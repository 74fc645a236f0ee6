package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/path/to/config.json")
	assert.NotNil(t, loader)
	assert.Equal(t, "/path/to/config.json", loader.configPath)
}

func TestLoaderLoad(t *testing.T) {
	t.Run("load default config when file doesn't exist", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "nonexistent.json")

		loader := NewLoader(configPath)
		cfg, err := loader.Load()

		require.NoError(t, err)
		assert.NotNil(t, cfg)
		assert.Equal(t, "anthropic", cfg.Vendor.Name)
		assert.Equal(t, 10, cfg.Agent.MaxTurns)
	})

	t.Run("load config from file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")

		// Create a test config file
		testConfig := `{
			"vendor": {
				"name": "openai",
				"model": "gpt-4o",
				"openai_api_key": "sk-test-key"
			},
			"agent": {
				"max_turns": 25
			}
		}`
		err := os.WriteFile(configPath, []byte(testConfig), 0644)
		require.NoError(t, err)

		loader := NewLoader(configPath)
		cfg, err := loader.Load()

		require.NoError(t, err)
		assert.NotNil(t, cfg)
		assert.Equal(t, "openai", cfg.Vendor.Name)
		assert.Equal(t, "gpt-4o", cfg.Vendor.Model)
		assert.Equal(t, "sk-test-key", cfg.Vendor.OpenAIAPIKey)
		assert.Equal(t, 25, cfg.Agent.MaxTurns)
	})

	t.Run("file values merge over defaults", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")

		testConfig := `{
			"shell": {
				"command_timeout": 30
			}
		}`
		err := os.WriteFile(configPath, []byte(testConfig), 0644)
		require.NoError(t, err)

		loader := NewLoader(configPath)
		cfg, err := loader.Load()

		require.NoError(t, err)
		assert.Equal(t, 30, cfg.Shell.CommandTimeout)
		assert.Equal(t, "/bin/bash", cfg.Shell.Path)
		assert.Equal(t, 5, cfg.Shell.CancelGrace)
	})

	t.Run("set default paths", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")

		testConfig := `{
			"vendor": {
				"anthropic_api_key": "sk-ant-test"
			}
		}`
		err := os.WriteFile(configPath, []byte(testConfig), 0644)
		require.NoError(t, err)

		loader := NewLoader(configPath)
		cfg, err := loader.Load()

		require.NoError(t, err)
		assert.NotEmpty(t, cfg.DataDir)
		assert.NotEmpty(t, cfg.Logging.File)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "invalid.json")

		err := os.WriteFile(configPath, []byte("invalid json"), 0644)
		require.NoError(t, err)

		loader := NewLoader(configPath)
		_, err = loader.Load()

		assert.Error(t, err)
	})
}

func TestLoaderSave(t *testing.T) {
	t.Run("save config to file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")

		cfg := DefaultConfig()
		cfg.Vendor.AnthropicAPIKey = "sk-ant-test"
		cfg.Agent.MaxTurns = 50

		loader := NewLoader(configPath)
		err := loader.Save(cfg)
		require.NoError(t, err)

		// Reload and verify round-trip
		reloaded, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, "sk-ant-test", reloaded.Vendor.AnthropicAPIKey)
		assert.Equal(t, 50, reloaded.Agent.MaxTurns)
	})

	t.Run("create config directory if missing", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "nested", "dir", "config.json")

		loader := NewLoader(configPath)
		err := loader.Save(DefaultConfig())
		require.NoError(t, err)

		_, err = os.Stat(configPath)
		assert.NoError(t, err)
	})
}

func TestGetConfigPath(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		loader := NewLoader("/tmp/cfg.json")
		assert.Equal(t, "/tmp/cfg.json", loader.GetConfigPath())
	})

	t.Run("default path under home", func(t *testing.T) {
		loader := NewLoader("")
		path := loader.GetConfigPath()
		assert.Contains(t, path, ".skein")
	})
}
