package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/skeinworks/skein/pkg/toolexecutor"
)

// Config holds runner configuration.
type Config struct {
	Provider   Provider
	Registry   *toolexecutor.Registry
	Dispatcher *toolexecutor.Dispatcher
	Logger     zerolog.Logger

	Model        string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64

	// MaxTurns bounds the number of vendor round trips per run.
	MaxTurns int
	// MaxRetries bounds attempts per vendor call on transient errors.
	MaxRetries int
	// RetryBase is the first backoff delay; it doubles per attempt.
	RetryBase time.Duration
	// SchemaRetries bounds corrective re-prompts when an output schema is
	// violated.
	SchemaRetries int
}

// RunRequest is one agent invocation.
type RunRequest struct {
	// Prompt is the new user message. May be empty when Messages already
	// ends with a user turn.
	Prompt string
	// Messages is the prior conversation to continue, usually the Messages
	// of an earlier RunResult.
	Messages []Message
	// OutputSchema, when set, requires the final answer to be a JSON
	// object conforming to this JSON schema.
	OutputSchema map[string]interface{}
}

// RunResult is the outcome of a completed run.
type RunResult struct {
	RunID      string          `json:"run_id"`
	Content    string          `json:"content"`
	Structured json.RawMessage `json:"structured,omitempty"`
	ToolCalls  []ToolCall      `json:"tool_calls,omitempty"`
	Usage      Usage           `json:"usage"`
	Turns      int             `json:"turns"`
	// Messages is the full conversation including the final answer; feed
	// it back through RunRequest.Messages to continue the exchange.
	Messages []Message `json:"messages,omitempty"`
}

// Runner drives the model/tool loop against a single provider.
type Runner struct {
	provider   Provider
	registry   *toolexecutor.Registry
	dispatcher *toolexecutor.Dispatcher
	logger     zerolog.Logger
	cfg        Config
}

// NewRunner creates a new runner.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("tool dispatcher is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 10
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.SchemaRetries < 0 {
		cfg.SchemaRetries = 0
	} else if cfg.SchemaRetries == 0 {
		cfg.SchemaRetries = 2
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}

	return &Runner{
		provider:   cfg.Provider,
		registry:   cfg.Registry,
		dispatcher: cfg.Dispatcher,
		logger:     cfg.Logger,
		cfg:        cfg,
	}, nil
}

// Run executes the loop: send the conversation, execute requested tools,
// fold results back in, repeat. It returns when the model produces a final
// answer, or fails with ErrTurnLimit, ErrContextSaturated,
// ErrContentFiltered, a SchemaViolationError, or the last vendor error.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	runID := uuid.New().String()
	logger := r.logger.With().Str("run_id", runID).Logger()

	if req.Prompt == "" && len(req.Messages) == 0 {
		return nil, ErrEmptyPrompt
	}

	systemPrompt := r.cfg.SystemPrompt
	var schema *gojsonschema.Schema
	if req.OutputSchema != nil {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(req.OutputSchema))
		if err != nil {
			return nil, fmt.Errorf("invalid output schema: %w", err)
		}
		schema = compiled
		schemaJSON, err := json.Marshal(req.OutputSchema)
		if err != nil {
			return nil, fmt.Errorf("invalid output schema: %w", err)
		}
		systemPrompt = structuredPrompt(systemPrompt, schemaJSON)
	}

	messages := make([]Message, 0, len(req.Messages)+1)
	messages = append(messages, req.Messages...)
	if req.Prompt != "" {
		messages = append(messages, Message{Role: RoleUser, Content: req.Prompt})
	}

	tools := r.registry.Descriptors()
	logger.Info().
		Str("model", r.cfg.Model).
		Int("tools", len(tools)).
		Bool("structured", schema != nil).
		Msg("starting agent run")

	var (
		usage          Usage
		allToolCalls   []ToolCall
		schemaAttempts int
	)

	for turn := 1; turn <= r.cfg.MaxTurns; turn++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		response, err := r.completeWithRetry(ctx, logger, CompletionRequest{
			Model:        r.cfg.Model,
			Messages:     messages,
			Tools:        tools,
			SystemPrompt: systemPrompt,
			MaxTokens:    r.cfg.MaxTokens,
			Temperature:  r.cfg.Temperature,
			ForceJSON:    schema != nil,
		})
		if err != nil {
			return nil, err
		}
		usage.Add(response.Usage)

		switch response.StopReason {
		case StopLength:
			return nil, ErrContextSaturated
		case StopContentFilter:
			return nil, ErrContentFiltered
		}

		if len(response.ToolCalls) > 0 {
			messages = append(messages, Message{
				Role:      RoleAssistant,
				Content:   response.Content,
				ToolCalls: response.ToolCalls,
			})

			calls := make([]toolexecutor.Call, len(response.ToolCalls))
			for i, tc := range response.ToolCalls {
				calls[i] = toolexecutor.Call{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments}
			}
			results := r.dispatcher.Dispatch(ctx, calls)
			for _, result := range results {
				content := result.Output
				if !result.Success {
					content = result.Error
				}
				messages = append(messages, Message{
					Role:       RoleTool,
					Content:    content,
					ToolCallID: result.CallID,
				})
			}

			allToolCalls = append(allToolCalls, response.ToolCalls...)
			logger.Debug().
				Int("turn", turn).
				Int("tool_calls", len(calls)).
				Msg("tool batch completed")
			continue
		}

		// Final answer.
		if schema != nil {
			payload, violations := validateStructured(schema, response.Content)
			if violations != nil {
				schemaAttempts++
				if schemaAttempts > r.cfg.SchemaRetries {
					return nil, &SchemaViolationError{Violations: violations, Attempts: schemaAttempts}
				}
				logger.Warn().
					Int("attempt", schemaAttempts).
					Strs("violations", violations).
					Msg("output schema violated, re-prompting")
				messages = append(messages,
					Message{Role: RoleAssistant, Content: response.Content},
					Message{Role: RoleUser, Content: correctionPrompt(violations)},
				)
				continue
			}

			messages = append(messages, Message{Role: RoleAssistant, Content: response.Content})
			logger.Info().Int("turns", turn).Int("requests", usage.Requests).Msg("agent run completed")
			return &RunResult{
				RunID:      runID,
				Content:    response.Content,
				Structured: payload,
				ToolCalls:  allToolCalls,
				Usage:      usage,
				Turns:      turn,
				Messages:   messages,
			}, nil
		}

		messages = append(messages, Message{Role: RoleAssistant, Content: response.Content})
		logger.Info().Int("turns", turn).Int("requests", usage.Requests).Msg("agent run completed")
		return &RunResult{
			RunID:     runID,
			Content:   response.Content,
			ToolCalls: allToolCalls,
			Usage:     usage,
			Turns:     turn,
			Messages:  messages,
		}, nil
	}

	return nil, fmt.Errorf("%w: no final answer after %d turns", ErrTurnLimit, r.cfg.MaxTurns)
}

// completeWithRetry calls the provider, retrying transient failures with
// exponential backoff: base, 2x base, 4x base, and so on.
func (r *Runner) completeWithRetry(ctx context.Context, logger zerolog.Logger, req CompletionRequest) (*ModelTurn, error) {
	var lastErr error

	for attempt := 0; attempt < r.cfg.MaxRetries; attempt++ {
		response, err := r.provider.Complete(ctx, req)
		if err == nil {
			return response, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return nil, err
		}
		if attempt == r.cfg.MaxRetries-1 {
			break
		}

		delay := r.cfg.RetryBase * (1 << attempt)
		logger.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("vendor call failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", r.cfg.MaxRetries, lastErr)
}
