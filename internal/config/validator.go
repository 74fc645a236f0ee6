package config

import (
	"fmt"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks the whole configuration and returns the first problem found
func (v *Validator) Validate(cfg *Config) error {
	if err := v.ValidateVendor(cfg.Vendor.Name); err != nil {
		return err
	}
	if err := v.ValidateModel(cfg.Vendor.Model); err != nil {
		return err
	}
	if err := v.ValidateTemperature(cfg.Vendor.Temperature); err != nil {
		return err
	}
	if err := v.ValidateMaxTokens(cfg.Vendor.MaxTokens); err != nil {
		return err
	}
	if err := v.ValidateMaxTurns(cfg.Agent.MaxTurns); err != nil {
		return err
	}
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		return err
	}
	if cfg.Shell.CommandTimeout <= 0 {
		return fmt.Errorf("shell command timeout must be positive, got %d", cfg.Shell.CommandTimeout)
	}
	if cfg.Shell.CancelGrace <= 0 {
		return fmt.Errorf("shell cancel grace must be positive, got %d", cfg.Shell.CancelGrace)
	}
	if cfg.Tools.MaxParallel <= 0 {
		return fmt.Errorf("tools max parallel must be positive, got %d", cfg.Tools.MaxParallel)
	}
	return nil
}

// ValidateVendor validates the vendor name
func (v *Validator) ValidateVendor(name string) error {
	validVendors := []string{"anthropic", "openai"}
	for _, valid := range validVendors {
		if name == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid vendor: %s (must be one of: %s)", name, strings.Join(validVendors, ", "))
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, vendor string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", vendor)
	}

	switch vendor {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateModel validates a model name
func (v *Validator) ValidateModel(model string) error {
	if model == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	return nil
}

// ValidateTemperature validates temperature value
func (v *Validator) ValidateTemperature(temp float64) error {
	if temp < 0 || temp > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", temp)
	}
	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidateMaxTurns validates the turn budget
func (v *Validator) ValidateMaxTurns(turns int) error {
	if turns <= 0 {
		return fmt.Errorf("max turns must be positive, got %d", turns)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}
