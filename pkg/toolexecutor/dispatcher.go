package toolexecutor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Call is a single model-requested tool invocation
type Call struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Result is the outcome of one Call, correlated by CallID
type Result struct {
	CallID     string `json:"call_id"`
	Name       string `json:"name"`
	Success    bool   `json:"success"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
	Truncated  bool   `json:"truncated,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// DispatcherConfig controls batch execution
type DispatcherConfig struct {
	MaxParallel int           // bound on concurrently running parallel-safe calls
	Timeout     time.Duration // per-call handler timeout
}

// Dispatcher executes batches of tool calls against a registry
type Dispatcher struct {
	registry    *Registry
	logger      zerolog.Logger
	maxParallel int64
	timeout     time.Duration
}

// NewDispatcher creates a dispatcher over the given registry
func NewDispatcher(registry *Registry, cfg DispatcherConfig, logger zerolog.Logger) *Dispatcher {
	maxParallel := cfg.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 4
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &Dispatcher{
		registry:    registry,
		logger:      logger,
		maxParallel: int64(maxParallel),
		timeout:     timeout,
	}
}

// Dispatch executes all calls and returns one result per call in request
// order, regardless of completion order. Parallel-safe calls run concurrently
// under the semaphore; compute-heavy calls run serially in request order on
// the dispatching goroutine so they never overlap each other. A failing call
// is captured in its own result; the batch always completes.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []Call) []Result {
	results := make([]Result, len(calls))
	if len(calls) == 0 {
		return results
	}

	var parallel, exclusive []int
	for i, call := range calls {
		def := d.registry.Get(call.Name)
		if def != nil && def.ComputeHeavy {
			exclusive = append(exclusive, i)
		} else {
			// Unknown tools take the parallel lane; executeCall records
			// the not-found failure in their result.
			parallel = append(parallel, i)
		}
	}

	d.logger.Debug().
		Int("calls", len(calls)).
		Int("parallel", len(parallel)).
		Int("exclusive", len(exclusive)).
		Msg("Dispatching tool call batch")

	var wg sync.WaitGroup
	sem := semaphore.NewWeighted(d.maxParallel)

	for _, idx := range parallel {
		wg.Add(1)
		go func(index int, call Call) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				results[index] = abortedResult(call, err)
				return
			}
			defer sem.Release(1)

			results[index] = d.executeCall(ctx, call)
		}(idx, calls[idx])
	}

	// The exclusive lane proceeds while parallel calls are in flight.
	for _, idx := range exclusive {
		if err := ctx.Err(); err != nil {
			results[idx] = abortedResult(calls[idx], err)
			continue
		}
		results[idx] = d.executeCall(ctx, calls[idx])
	}

	wg.Wait()

	return results
}

// executeCall runs a single call: lookup, argument validation, handler with
// timeout, output normalization. Every failure mode lands in the Result.
func (d *Dispatcher) executeCall(ctx context.Context, call Call) Result {
	startTime := time.Now()

	tool := d.registry.Get(call.Name)
	if tool == nil {
		d.logger.Error().Str("tool", call.Name).Str("call_id", call.ID).Msg("Tool not found")
		return Result{
			CallID:     call.ID,
			Name:       call.Name,
			Success:    false,
			Error:      fmt.Sprintf("%v: %s", ErrToolNotFound, call.Name),
			DurationMS: time.Since(startTime).Milliseconds(),
		}
	}

	if err := d.registry.validateArguments(call.Name, call.Arguments); err != nil {
		d.logger.Error().Str("tool", call.Name).Str("call_id", call.ID).Err(err).Msg("Argument validation failed")
		return Result{
			CallID:     call.ID,
			Name:       call.Name,
			Success:    false,
			Error:      err.Error(),
			DurationMS: time.Since(startTime).Milliseconds(),
		}
	}

	d.logger.Debug().Str("tool", call.Name).Str("call_id", call.ID).Msg("Executing tool")

	timeoutCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	resultChan := make(chan interface{}, 1)
	errChan := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				errChan <- fmt.Errorf("tool panicked: %v", r)
			}
		}()

		output, err := tool.Handler(timeoutCtx, call.Arguments)
		if err != nil {
			errChan <- err
		} else {
			resultChan <- output
		}
	}()

	select {
	case output := <-resultChan:
		duration := time.Since(startTime)
		text, truncated := truncateOutput(stringifyOutput(output))

		d.logger.Debug().
			Str("tool", call.Name).
			Str("call_id", call.ID).
			Dur("duration", duration).
			Bool("truncated", truncated).
			Msg("Tool execution completed")

		return Result{
			CallID:     call.ID,
			Name:       call.Name,
			Success:    true,
			Output:     text,
			Truncated:  truncated,
			DurationMS: duration.Milliseconds(),
		}

	case err := <-errChan:
		duration := time.Since(startTime)

		d.logger.Error().
			Str("tool", call.Name).
			Str("call_id", call.ID).
			Dur("duration", duration).
			Err(err).
			Msg("Tool execution failed")

		return Result{
			CallID:     call.ID,
			Name:       call.Name,
			Success:    false,
			Error:      err.Error(),
			DurationMS: duration.Milliseconds(),
		}

	case <-timeoutCtx.Done():
		duration := time.Since(startTime)

		d.logger.Error().
			Str("tool", call.Name).
			Str("call_id", call.ID).
			Dur("duration", duration).
			Msg("Tool execution timeout")

		return Result{
			CallID:     call.ID,
			Name:       call.Name,
			Success:    false,
			Error:      fmt.Sprintf("tool execution timeout after %v", d.timeout),
			DurationMS: duration.Milliseconds(),
		}
	}
}

// abortedResult records a call that never started because the batch context
// ended first
func abortedResult(call Call, err error) Result {
	return Result{
		CallID:  call.ID,
		Name:    call.Name,
		Success: false,
		Error:   fmt.Sprintf("tool call aborted: %v", err),
	}
}

// stringifyOutput normalizes handler output to text for the conversation
func stringifyOutput(output interface{}) string {
	switch v := output.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// truncateOutput truncates output if it exceeds the size limit
func truncateOutput(text string) (string, bool) {
	const maxSize = 10 * 1024 // 10KB

	if len(text) <= maxSize {
		return text, false
	}

	return text[:maxSize] + "\n... [output truncated]", true
}
