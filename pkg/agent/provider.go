package agent

import (
	"context"
	"fmt"

	"github.com/skeinworks/skein/pkg/toolexecutor"
)

// Provider is the boundary to a vendor model API. Implementations translate
// the neutral request into vendor wire format and normalize the response
// into a ModelTurn; they perform no retries and no tool execution.
type Provider interface {
	// Complete sends one conversation turn to the vendor.
	Complete(ctx context.Context, req CompletionRequest) (*ModelTurn, error)

	// Name returns the vendor name.
	Name() string
}

// CompletionRequest contains the parameters for one vendor call.
type CompletionRequest struct {
	Model        string
	Messages     []Message
	Tools        []toolexecutor.Descriptor
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
	// ForceJSON constrains the reply to a single JSON object on vendors
	// that support a response format; others rely on the prompt alone.
	ForceJSON bool
}

// ModelTurn is one normalized model response.
type ModelTurn struct {
	Content    string
	ToolCalls  []ToolCall
	StopReason StopReason
	Usage      Usage
}

// NewProvider creates a provider for the named vendor.
func NewProvider(vendor, apiKey string) (Provider, error) {
	switch vendor {
	case "anthropic":
		return NewAnthropicProvider(apiKey), nil
	case "openai":
		return NewOpenAIProvider(apiKey), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownVendor, vendor)
	}
}
