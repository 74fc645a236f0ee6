package config

// Config represents the main skein configuration
type Config struct {
	// Vendor holds model vendor selection and credentials
	Vendor VendorConfig `json:"vendor" mapstructure:"vendor"`

	// Agent holds turn-loop behavior
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// Shell holds interactive shell session settings
	Shell ShellConfig `json:"shell" mapstructure:"shell"`

	// Tools holds dispatcher and built-in tool settings
	Tools ToolsConfig `json:"tools" mapstructure:"tools"`

	// Hooks holds run lifecycle hook scripts
	Hooks HooksConfig `json:"hooks" mapstructure:"hooks"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// VendorConfig selects the model vendor and carries credentials
type VendorConfig struct {
	Name            string  `json:"name" mapstructure:"name"` // anthropic, openai
	Model           string  `json:"model" mapstructure:"model"`
	AnthropicAPIKey string  `json:"anthropic_api_key" mapstructure:"anthropic_api_key"`
	OpenAIAPIKey    string  `json:"openai_api_key" mapstructure:"openai_api_key"`
	MaxTokens       int     `json:"max_tokens" mapstructure:"max_tokens"`
	Temperature     float64 `json:"temperature" mapstructure:"temperature"`
}

// AgentConfig controls the turn loop
type AgentConfig struct {
	MaxTurns      int    `json:"max_turns" mapstructure:"max_turns"`
	MaxRetries    int    `json:"max_retries" mapstructure:"max_retries"`       // vendor-call retries
	RetryBaseMS   int    `json:"retry_base_ms" mapstructure:"retry_base_ms"`   // backoff base
	SchemaRetries int    `json:"schema_retries" mapstructure:"schema_retries"` // corrective re-prompts
	SystemPrompt  string `json:"system_prompt" mapstructure:"system_prompt"`
}

// ShellConfig controls the interactive shell session
type ShellConfig struct {
	Path           string `json:"path" mapstructure:"path"`
	CommandTimeout int    `json:"command_timeout" mapstructure:"command_timeout"` // seconds per drain window
	CancelGrace    int    `json:"cancel_grace" mapstructure:"cancel_grace"`       // seconds
	StartupTimeout int    `json:"startup_timeout" mapstructure:"startup_timeout"` // seconds for readiness probe
	Rows           uint16 `json:"rows" mapstructure:"rows"`
	Cols           uint16 `json:"cols" mapstructure:"cols"`
	TranscriptFile string `json:"transcript_file" mapstructure:"transcript_file"` // optional raw PTY mirror
}

// ToolsConfig controls tool dispatch
type ToolsConfig struct {
	MaxParallel  int    `json:"max_parallel" mapstructure:"max_parallel"` // parallel-safe lane bound
	Timeout      int    `json:"timeout" mapstructure:"timeout"`           // seconds per tool call
	WorkspaceDir string `json:"workspace_dir" mapstructure:"workspace_dir"`
}

// HooksConfig controls run lifecycle hooks
type HooksConfig struct {
	Enabled bool         `json:"enabled" mapstructure:"enabled"`
	Hooks   []HookConfig `json:"hooks" mapstructure:"hooks"`
}

// HookConfig is one lifecycle hook entry
type HookConfig struct {
	ID      string `json:"id" mapstructure:"id"`
	Event   string `json:"event" mapstructure:"event"` // run:start, run:finish, run:error
	Script  string `json:"script" mapstructure:"script"`
	Timeout int    `json:"timeout" mapstructure:"timeout"` // seconds
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Vendor: VendorConfig{
			Name:        "anthropic",
			Model:       "claude-sonnet-4-20250514",
			MaxTokens:   4096,
			Temperature: 0.7,
		},
		Agent: AgentConfig{
			MaxTurns:      10,
			MaxRetries:    3,
			RetryBaseMS:   1000,
			SchemaRetries: 2,
		},
		Shell: ShellConfig{
			Path:           "/bin/bash",
			CommandTimeout: 600,
			CancelGrace:    5,
			StartupTimeout: 10,
			Rows:           24,
			Cols:           120,
		},
		Tools: ToolsConfig{
			MaxParallel: 4,
			Timeout:     120,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Pretty:  true,
		},
		DataDir: "",
	}
}
