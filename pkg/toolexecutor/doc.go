// Package toolexecutor registers structured tools and dispatches batches of
// model-requested tool calls.
//
// Invariants:
//   - Tool names are unique within a registry; definitions are immutable once registered.
//   - Arguments are schema-validated before a handler runs.
//   - Dispatch returns exactly one result per call, in request order, regardless
//     of completion order.
//   - A failing call never aborts the batch; the failure is isolated to its result.
//   - Compute-heavy calls are serialized against one another; parallel-safe calls
//     run concurrently under a bounded semaphore.
//
// Usage:
//
//	reg := toolexecutor.NewRegistry(logger)
//	_ = reg.Register(toolexecutor.ToolDefinition{
//		Name:        "echo",
//		Description: "Echo input",
//		Parameters:  []toolexecutor.ToolParameter{{Name: "text", Type: "string", Description: "text", Required: true}},
//		Handler:     func(ctx context.Context, args map[string]interface{}) (interface{}, error) { return args["text"], nil },
//	})
//	d := toolexecutor.NewDispatcher(reg, toolexecutor.DispatcherConfig{}, logger)
//	results := d.Dispatch(ctx, calls)
package toolexecutor
