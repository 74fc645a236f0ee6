// Package agent runs the model/tool loop: it sends a conversation to a
// vendor model, executes the tool calls the model requests, folds the
// results back into the conversation, and repeats until the model produces
// a final answer or a budget runs out.
//
// Invariants:
// - Transient vendor failures are retried with exponential backoff; all
//   other vendor errors surface immediately.
// - Tool calls route through toolexecutor only; a failed tool never aborts
//   the run, its error is returned to the model as the tool result.
// - When an output schema is set, the final answer is validated against it
//   and re-prompted a bounded number of times before the run fails.
//
// Usage:
//
//	runner, _ := agent.NewRunner(agent.Config{
//		Provider:   provider,
//		Registry:   registry,
//		Dispatcher: dispatcher,
//		Model:      "claude-sonnet-4-20250514",
//	})
//	result, _ := runner.Run(ctx, agent.RunRequest{Prompt: "hello"})
//	_ = result
package agent
