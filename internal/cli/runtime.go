package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/skeinworks/skein/internal/config"
	"github.com/skeinworks/skein/internal/logger"
	"github.com/skeinworks/skein/pkg/agent"
	"github.com/skeinworks/skein/pkg/history"
	"github.com/skeinworks/skein/pkg/hooks"
	"github.com/skeinworks/skein/pkg/shell"
	"github.com/skeinworks/skein/pkg/toolexecutor"
)

// loadRuntime loads the configuration and builds the logger. The returned
// close function flushes the log file sink.
func loadRuntime() (*config.Config, *logger.Logger, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if err := config.NewValidator().Validate(cfg); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return cfg, log, func() { _ = log.Close() }, nil
}

// newDispatcher builds the tool dispatcher from the tools section.
func newDispatcher(cfg *config.Config, registry *toolexecutor.Registry, log *logger.Logger) *toolexecutor.Dispatcher {
	return toolexecutor.NewDispatcher(registry, toolexecutor.DispatcherConfig{
		MaxParallel: cfg.Tools.MaxParallel,
		Timeout:     time.Duration(cfg.Tools.Timeout) * time.Second,
	}, log.GetZerolog())
}

// shellConfigFrom converts the shell config section into session settings.
func shellConfigFrom(cfg *config.Config, workspace string) shell.Config {
	return shell.Config{
		Path:           cfg.Shell.Path,
		Dir:            workspace,
		CommandTimeout: time.Duration(cfg.Shell.CommandTimeout) * time.Second,
		CancelGrace:    time.Duration(cfg.Shell.CancelGrace) * time.Second,
		StartupTimeout: time.Duration(cfg.Shell.StartupTimeout) * time.Second,
		Rows:           cfg.Shell.Rows,
		Cols:           cfg.Shell.Cols,
		TranscriptFile: cfg.Shell.TranscriptFile,
	}
}

// apiKeyFor picks the credential matching the configured vendor.
func apiKeyFor(cfg *config.Config) (string, error) {
	switch cfg.Vendor.Name {
	case "anthropic":
		if cfg.Vendor.AnthropicAPIKey == "" {
			return "", fmt.Errorf("anthropic API key is not configured (set ANTHROPIC_API_KEY or vendor.anthropic_api_key)")
		}
		return cfg.Vendor.AnthropicAPIKey, nil
	case "openai":
		if cfg.Vendor.OpenAIAPIKey == "" {
			return "", fmt.Errorf("openai API key is not configured (set OPENAI_API_KEY or vendor.openai_api_key)")
		}
		return cfg.Vendor.OpenAIAPIKey, nil
	default:
		return "", fmt.Errorf("unknown vendor: %s", cfg.Vendor.Name)
	}
}

// newRunner wires the provider and the agent loop from the config.
func newRunner(cfg *config.Config, registry *toolexecutor.Registry, dispatcher *toolexecutor.Dispatcher, log *logger.Logger) (*agent.Runner, error) {
	key, err := apiKeyFor(cfg)
	if err != nil {
		return nil, err
	}
	provider, err := agent.NewProvider(cfg.Vendor.Name, key)
	if err != nil {
		return nil, err
	}

	return agent.NewRunner(agent.Config{
		Provider:      provider,
		Registry:      registry,
		Dispatcher:    dispatcher,
		Logger:        log.GetZerolog(),
		Model:         cfg.Vendor.Model,
		SystemPrompt:  cfg.Agent.SystemPrompt,
		MaxTokens:     cfg.Vendor.MaxTokens,
		Temperature:   cfg.Vendor.Temperature,
		MaxTurns:      cfg.Agent.MaxTurns,
		MaxRetries:    cfg.Agent.MaxRetries,
		RetryBase:     time.Duration(cfg.Agent.RetryBaseMS) * time.Millisecond,
		SchemaRetries: cfg.Agent.SchemaRetries,
	})
}

// openHistory opens the run history store under the data directory.
func openHistory(cfg *config.Config, log *logger.Logger) (*history.Store, error) {
	return history.Open(history.Config{
		Dir:    filepath.Join(cfg.DataDir, "history"),
		Logger: log.GetZerolog(),
	})
}

// newHooks builds the lifecycle hook manager from the hooks section.
func newHooks(cfg *config.Config, log *logger.Logger) (*hooks.Manager, error) {
	entries := make([]hooks.Hook, 0, len(cfg.Hooks.Hooks))
	for _, h := range cfg.Hooks.Hooks {
		entries = append(entries, hooks.Hook{
			ID:      h.ID,
			Event:   hooks.Event(h.Event),
			Script:  h.Script,
			Timeout: time.Duration(h.Timeout) * time.Second,
			Enabled: h.Enabled,
		})
	}
	return hooks.NewManager(hooks.Config{
		Enabled: cfg.Hooks.Enabled,
		Hooks:   entries,
		Logger:  log.GetZerolog(),
	})
}

// resolveWorkspace returns the explicit workspace, the configured one, or
// the current directory.
func resolveWorkspace(cfg *config.Config, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if cfg.Tools.WorkspaceDir != "" {
		return cfg.Tools.WorkspaceDir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to resolve working directory: %w", err)
	}
	return wd, nil
}
